package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/storyloom/storyloom/pkg/story"
	"github.com/storyloom/storyloom/pkg/story/metrics"
	"github.com/storyloom/storyloom/pkg/story/storage"
	"github.com/storyloom/storyloom/pkg/story/visualizer"
	"github.com/storyloom/storyloom/services"
	"github.com/storyloom/storyloom/util"
)

const (
	defaultBranchLength = 3
	minBranchLength     = 2
	maxBranchLength     = 10
)

// StoryServer holds the session's story and the storyteller behind the
// story tools.
type StoryServer struct {
	story  *story.Story
	teller func() *services.Storyteller
}

func NewStoryServer() *StoryServer {
	return &StoryServer{
		story: story.NewStory(),
		// The OpenAI client panics without an API key; defer building
		// it until a generation tool is actually called.
		teller: sync.OnceValue(services.NewStoryteller),
	}
}

// Package-level so every story tool shares one session
var storyServer *StoryServer

func RegisterStoryTools(s *server.MCPServer) {
	storyServer = NewStoryServer()

	generateTool := mcp.NewTool("story_generate",
		mcp.WithDescription("Generate the initial linear story from a prompt. Creates exactly 5 nodes in a chain with no branches; branches are added later with story_extend. Replaces any story in the current session."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Prompt for the main storyline, e.g. \"Create a story about a student's day at school.\"")),
	)

	extendTool := mcp.NewTool("story_extend",
		mcp.WithDescription(`Grow branches from a story node. Branches either merge back into the main storyline at a destination node, or end the story as alternative endings. The final story node of each branch receives an achievement unless disabled.

Use story_outline first to find node paths. Paths are dot-separated child indexes, "." being the root.`),
		mcp.WithString("source_path", mcp.Required(), mcp.Description("Path of the node to branch from")),
		mcp.WithString("merge_path", mcp.Description("Path of the node the branches merge back into; omit for alternative endings")),
		mcp.WithNumber("branch_length", mcp.Description("Nodes per branch including the first (2-10, default 3)")),
		mcp.WithString("mode", mcp.Description("\"single\" for one branch (default), \"options\" for 2-3 distinct branches")),
		mcp.WithBoolean("achievements", mcp.Description("Award achievements at branch endings (default true)")),
		mcp.WithString("instructions", mcp.Description("Extra guidance for what should happen in the branch")),
	)

	outlineTool := mcp.NewTool("story_outline",
		mcp.WithDescription("List every node of the current story with its path, indented with arrows"),
	)

	nodeTool := mcp.NewTool("story_node",
		mcp.WithDescription("Show the details of one story node: description, options, achievement and merge info"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Node path, dot-separated child indexes")),
	)

	saveTool := mcp.NewTool("story_save",
		mcp.WithDescription("Save the current story. The default json store writes the file given; the neo4j store persists Scene nodes with CHOICE and MERGES_TO relationships and needs NEO4J_URI, NEO4J_USERNAME and NEO4J_PASSWORD."),
		mcp.WithString("file", mcp.Description("Destination file path (json store)")),
		mcp.WithString("store", mcp.Description("\"json\" (default) or \"neo4j\"")),
	)

	loadTool := mcp.NewTool("story_load",
		mcp.WithDescription("Load a story from a store, replacing the session story"),
		mcp.WithString("file", mcp.Description("Source file path (json store)")),
		mcp.WithString("store", mcp.Description("\"json\" (default) or \"neo4j\"")),
	)

	visualizeTool := mcp.NewTool("story_visualize",
		mcp.WithDescription("Render the current story as an interactive D3 tree in a standalone HTML file"),
		mcp.WithString("file", mcp.Required(), mcp.Description("Destination HTML file path")),
	)

	validateTool := mcp.NewTool("story_validate",
		mcp.WithDescription("Check the story tree structure: unresolvable merge targets, unnamed nodes, duplicate titles"),
	)

	resetTool := mcp.NewTool("story_reset",
		mcp.WithDescription("Drop the session story"),
	)

	s.AddTool(generateTool, util.ErrorGuard(storyGenerateHandler))
	s.AddTool(extendTool, util.ErrorGuard(storyExtendHandler))
	s.AddTool(outlineTool, util.ErrorGuard(storyOutlineHandler))
	s.AddTool(nodeTool, util.ErrorGuard(storyNodeHandler))
	s.AddTool(saveTool, util.ErrorGuard(storySaveHandler))
	s.AddTool(loadTool, util.ErrorGuard(storyLoadHandler))
	s.AddTool(visualizeTool, util.ErrorGuard(storyVisualizeHandler))
	s.AddTool(validateTool, util.ErrorGuard(storyValidateHandler))
	s.AddTool(resetTool, util.ErrorGuard(storyResetHandler))
}

func storyGenerateHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	prompt, ok := arguments["prompt"].(string)
	if !ok || prompt == "" {
		return mcp.NewToolResultError("prompt must be a non-empty string"), nil
	}

	root, err := storyServer.teller().SeedStory(context.Background(), prompt)
	if err != nil {
		metrics.GenerationTotal.WithLabelValues("seed", "error").Inc()
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate story: %v", err)), nil
	}
	metrics.GenerationTotal.WithLabelValues("seed", "success").Inc()

	storyServer.story.Set(root)
	stats := story.Stats(root)
	metrics.ObserveStory(stats)

	response := fmt.Sprintf("Generated story %q with %d nodes.\n\n%s", root.Name, stats.Nodes, outlineText(root))
	return mcp.NewToolResultText(response), nil
}

func storyExtendHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; call story_generate first"), nil
	}

	sourceArg, ok := arguments["source_path"].(string)
	if !ok {
		return mcp.NewToolResultError("source_path must be a string"), nil
	}
	sourcePath, err := story.ParseTreePath(sourceArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	branchLength := defaultBranchLength
	if lengthArg, ok := arguments["branch_length"].(float64); ok {
		branchLength = int(lengthArg)
	}
	if branchLength < minBranchLength || branchLength > maxBranchLength {
		return mcp.NewToolResultError(fmt.Sprintf("branch_length must be between %d and %d", minBranchLength, maxBranchLength)), nil
	}

	single := true
	if mode, ok := arguments["mode"].(string); ok && mode != "" {
		switch mode {
		case "single":
		case "options":
			single = false
		default:
			return mcp.NewToolResultError("mode must be \"single\" or \"options\""), nil
		}
	}

	achievements := true
	if achievementsArg, ok := arguments["achievements"].(bool); ok {
		achievements = achievementsArg
	}

	var mergePath story.TreePath
	altEnding := true
	if mergeArg, ok := arguments["merge_path"].(string); ok && mergeArg != "" {
		mergePath, err = story.ParseTreePath(mergeArg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		altEnding = false
	}

	sourceNode, err := storyServer.story.NodeAt(sourcePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("source node not found: %v", err)), nil
	}

	var destNode *story.Node
	if !altEnding {
		destNode, err = storyServer.story.NodeAt(mergePath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("merge destination not found: %v", err)), nil
		}
	}

	instructions, _ := arguments["instructions"].(string)
	prompt := extensionPrompt(sourceNode, destNode, instructions, branchLength, single)

	spec := services.BranchSpec{
		Length:       branchLength,
		AltEnding:    altEnding,
		Single:       single,
		Achievements: achievements,
	}

	branches, err := storyServer.teller().GrowBranches(context.Background(), prompt, spec)
	if err != nil {
		metrics.GenerationTotal.WithLabelValues("branch", "error").Inc()
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate branches: %v", err)), nil
	}
	metrics.GenerationTotal.WithLabelValues("branch", "success").Inc()

	opts := story.GraftOptions{
		BranchLength: branchLength,
		Achievements: achievements,
	}
	if !altEnding {
		opts.MergePath = mergePath
	}

	if err := storyServer.story.Graft(sourcePath, branches, opts); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to graft branches: %v", err)), nil
	}

	root := storyServer.story.Snapshot()
	metrics.ObserveStory(story.Stats(root))

	message := fmt.Sprintf("Successfully added %d new branch(es) to %q.", len(branches), sourceNode.Name)
	if altEnding {
		message += fmt.Sprintf(" They will create alternative endings after %d steps.", branchLength)
	} else {
		message += fmt.Sprintf(" They will merge back to %q after %d steps.", destNode.Name, branchLength)
	}

	return mcp.NewToolResultText(message + "\n\n" + outlineText(root)), nil
}

// extensionPrompt assembles the user prompt for branch growth from the
// source and destination node prose.
func extensionPrompt(source, dest *story.Node, instructions string, branchLength int, single bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Source node: %s\nDescription: %s\n\n", source.Name, source.Description)
	if dest != nil {
		fmt.Fprintf(&b, "Destination node: %s\nDescription: %s\n\n", dest.Name, dest.Description)
	}

	if instructions != "" {
		b.WriteString(instructions)
	} else if single {
		fmt.Fprintf(&b, "Create a branch from '%s'", source.Name)
	} else {
		fmt.Fprintf(&b, "Create branches from '%s'", source.Name)
	}
	if instructions == "" {
		if dest != nil {
			fmt.Fprintf(&b, " that eventually leads to '%s'", dest.Name)
		} else {
			b.WriteString(" with an alternative ending")
		}
	}
	b.WriteString("\n\n")

	if dest != nil {
		fmt.Fprintf(&b, "Create a branch that naturally leads to the destination node after %d steps.", branchLength)
	} else {
		b.WriteString("Create an alternative ending that provides closure to the story.")
	}

	return b.String()
}

func storyOutlineHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; call story_generate first"), nil
	}
	return mcp.NewToolResultText(outlineText(storyServer.story.Snapshot())), nil
}

func outlineText(root *story.Node) string {
	var b strings.Builder
	b.WriteString("Story outline (path: node):\n")
	for _, entry := range story.Outline(root) {
		fmt.Fprintf(&b, "%s: %s\n", entry.Path, entry.Label)
	}
	return b.String()
}

func storyNodeHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; call story_generate first"), nil
	}

	pathArg, ok := arguments["path"].(string)
	if !ok {
		return mcp.NewToolResultError("path must be a string"), nil
	}
	path, err := story.ParseTreePath(pathArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	node, err := storyServer.story.NodeAt(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Node: %s\nPath: %s\n\n%s\n", node.Name, path, node.Description)

	if node.Achievement != nil {
		fmt.Fprintf(&b, "\n🏆 %s: %s\n", node.Achievement.Title, node.Achievement.Description)
	}

	switch {
	case node.IsMerge():
		fmt.Fprintf(&b, "\nThis node merges back to the main storyline at path %s.\n", node.MergeTarget)
	case len(node.Children) > 0:
		b.WriteString("\nOptions:\n")
		for i, child := range node.Children {
			fmt.Fprintf(&b, "  %d. %s\n", i, child.Name)
		}
	default:
		b.WriteString("\nThis is an endpoint of the story.\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

// storeForArgs picks the persistence backend for story_save/story_load.
func storeForArgs(arguments map[string]interface{}) (storage.StoryStore, string, error) {
	kind, _ := arguments["store"].(string)
	switch kind {
	case "", "json":
		file, ok := arguments["file"].(string)
		if !ok || file == "" {
			return nil, "", fmt.Errorf("file must be a non-empty string for the json store")
		}
		return storage.NewJSONStoryStore(file), file, nil
	case "neo4j":
		uri := os.Getenv("NEO4J_URI")
		username := os.Getenv("NEO4J_USERNAME")
		password := os.Getenv("NEO4J_PASSWORD")
		if uri == "" {
			return nil, "", fmt.Errorf("NEO4J_URI is not set, please set it in MCP Config")
		}
		store, err := storage.NewNeo4jStoryStore(uri, username, password)
		if err != nil {
			return nil, "", err
		}
		return store, uri, nil
	default:
		return nil, "", fmt.Errorf("store must be \"json\" or \"neo4j\"")
	}
}

func storySaveHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; nothing to save"), nil
	}

	store, target, err := storeForArgs(arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	if err := store.StoreStory(context.Background(), storyServer.story.Snapshot()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save story: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Story saved to %s", target)), nil
}

func storyLoadHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	store, target, err := storeForArgs(arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	root, err := store.LoadStory(context.Background())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load story: %v", err)), nil
	}

	if issues := story.Errors(story.Validate(root)); len(issues) > 0 {
		payload, _ := json.MarshalIndent(issues, "", "  ")
		return mcp.NewToolResultError(fmt.Sprintf("loaded story is invalid:\n%s", payload)), nil
	}

	storyServer.story.Set(root)
	stats := story.Stats(root)
	metrics.ObserveStory(stats)

	return mcp.NewToolResultText(fmt.Sprintf("Loaded story %q with %d nodes from %s", root.Name, stats.Nodes, target)), nil
}

func storyVisualizeHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; nothing to visualize"), nil
	}

	file, ok := arguments["file"].(string)
	if !ok || file == "" {
		return mcp.NewToolResultError("file must be a non-empty string"), nil
	}

	viz := visualizer.NewD3Visualizer(file)
	if err := viz.Visualize(storyServer.story.Snapshot()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render visualization: %v", err)), nil
	}
	metrics.VisualizationTotal.Inc()

	return mcp.NewToolResultText(fmt.Sprintf("Visualization saved to %s", file)), nil
}

func storyValidateHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; nothing to validate"), nil
	}

	root := storyServer.story.Snapshot()
	issues := story.Validate(root)
	if len(issues) == 0 {
		return mcp.NewToolResultText("Story structure is valid."), nil
	}

	payload, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func storyResetHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	storyServer.story.Reset()
	metrics.ObserveStory(story.StoryStats{})
	return mcp.NewToolResultText("Session story dropped."), nil
}
