package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/storyloom/storyloom/pkg/story"
	"github.com/storyloom/storyloom/util"
)

func RegisterCompareTool(s *server.MCPServer) {
	tool := mcp.NewTool("story_compare",
		mcp.WithDescription("Compare the prose of two story branches, e.g. to see how far two options at the same branch point diverge"),
		mcp.WithString("path_a", mcp.Required(), mcp.Description("Path of the first branch root")),
		mcp.WithString("path_b", mcp.Required(), mcp.Description("Path of the second branch root")),
	)

	s.AddTool(tool, util.ErrorGuard(compareHandler))
}

func compareHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer == nil || storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; call story_generate first"), nil
	}

	nodeA, err := resolveArgPath(arguments, "path_a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodeB, err := resolveArgPath(arguments, "path_b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(branchProse(nodeA), branchProse(nodeB), false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	fmt.Fprintf(&b, "Comparing %q with %q:\n\n", nodeA.Name, nodeB.Name)
	b.WriteString(dmp.DiffPrettyText(diffs))

	return mcp.NewToolResultText(b.String()), nil
}

func resolveArgPath(arguments map[string]interface{}, key string) (*story.Node, error) {
	raw, ok := arguments[key].(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	path, err := story.ParseTreePath(raw)
	if err != nil {
		return nil, err
	}
	return storyServer.story.NodeAt(path)
}

// branchProse flattens a subtree into readable text, one line per beat.
func branchProse(root *story.Node) string {
	var b strings.Builder
	story.Walk(root, func(n *story.Node, _ story.TreePath) bool {
		fmt.Fprintf(&b, "%s: %s\n", n.Name, n.Description)
		return true
	})
	return b.String()
}
