package export

import (
	"fmt"
	"strings"

	"github.com/storyloom/storyloom/pkg/story"
)

// Markdown renders the story tree as a nested Markdown outline, with
// achievements and merge pointers annotated inline.
func Markdown(root *story.Node) string {
	var b strings.Builder

	if root == nil {
		return ""
	}

	fmt.Fprintf(&b, "# %s\n\n", root.Name)
	if root.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", root.Description)
	}

	for _, child := range root.Children {
		writeNode(&b, child, 0)
	}

	return b.String()
}

func writeNode(b *strings.Builder, n *story.Node, depth int) {
	indent := strings.Repeat("  ", depth)

	fmt.Fprintf(b, "%s- **%s**", indent, n.Name)
	if n.IsMerge() {
		fmt.Fprintf(b, " _(merges back at path %s)_", n.MergeTarget)
	}
	b.WriteString("\n")

	if n.Description != "" {
		fmt.Fprintf(b, "%s  %s\n", indent, n.Description)
	}
	if n.Achievement != nil {
		fmt.Fprintf(b, "%s  🏆 *%s*: %s\n", indent, n.Achievement.Title, n.Achievement.Description)
	}

	for _, child := range n.Children {
		writeNode(b, child, depth+1)
	}
}
