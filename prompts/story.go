package prompts

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func RegisterStoryPrompts(s *server.MCPServer) {
	premise := mcp.NewPrompt("story_premise",
		mcp.WithPromptDescription("Brainstorm a story premise before generating the seed story"),
		mcp.WithArgument("theme", mcp.ArgumentDescription("Theme or genre for the story, e.g. mystery, friendship")),
		mcp.WithArgument("audience", mcp.ArgumentDescription("Who the story is for, e.g. middle schoolers")),
	)
	s.AddPrompt(premise, storyPremiseHandler)
}

func storyPremiseHandler(arguments map[string]string) (*mcp.GetPromptResult, error) {
	theme := arguments["theme"]
	audience := arguments["audience"]

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Story premise for a %s story", theme),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Propose three one-paragraph premises for a %s story aimed at %s, then pass the best one to the story_generate tool.", theme, audience),
				},
			},
		},
	}, nil
}
