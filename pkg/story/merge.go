package story

import (
	"fmt"

	"github.com/pkg/errors"
)

// GraftOptions controls how generated branches are joined to the tree.
type GraftOptions struct {
	// BranchLength is the node count of each branch, including its
	// first node. Minimum 2.
	BranchLength int
	// MergePath addresses the main-story node the branches flow back
	// into. Nil means the branches are alternative endings.
	MergePath TreePath
	// Achievements awards an achievement at the end of each branch.
	Achievements bool
}

// AltEnding reports whether the branches end the story instead of
// merging back.
func (o GraftOptions) AltEnding() bool {
	return o.MergePath == nil
}

// Graft appends branches to the node at source. Each branch is walked
// to its terminal story node, which receives an achievement when
// enabled; merging branches then get a pointer node that records the
// destination path rather than the destination itself, keeping the
// tree acyclic.
func Graft(root *Node, source TreePath, branches []*Node, opts GraftOptions) error {
	if len(branches) == 0 {
		return nil
	}
	if opts.BranchLength < 2 {
		return errors.Errorf("branch length must be at least 2, got %d", opts.BranchLength)
	}
	if _, err := NodeAt(root, source); err != nil {
		return errors.Wrap(err, "branch source not found")
	}

	var dest *Node
	if !opts.AltEnding() {
		if opts.MergePath.Equal(source) {
			return errors.New("merge destination cannot be the branch source")
		}
		var err error
		dest, err = NodeAt(root, opts.MergePath)
		if err != nil {
			return errors.Wrap(err, "merge destination not found")
		}
	}

	for _, branch := range branches {
		terminal := terminalNode(branch, opts.BranchLength)

		if opts.Achievements {
			ensureAchievement(terminal, opts.AltEnding())
		}

		if dest != nil {
			// The terminal beat hands off to the merge pointer; anything
			// the model generated past it is cut.
			terminal.Children = []*Node{{
				Name:        fmt.Sprintf("Merge back to: %s", dest.Name),
				Description: fmt.Sprintf("This path merges back to the main storyline at '%s'.", dest.Name),
				Children:    []*Node{},
				MergeTarget: append(TreePath{}, opts.MergePath...),
			}}
		}
	}

	return Attach(root, source, branches)
}

// terminalNode follows first children to the last story beat of a
// branch, stopping before the branch overshoots its intended length.
func terminalNode(branch *Node, branchLength int) *Node {
	current := branch
	depth := 0
	for len(current.Children) > 0 && depth < branchLength-2 {
		current = current.Children[0]
		depth++
	}
	return current
}

// ensureAchievement backfills an achievement when the model left the
// terminal node without one.
func ensureAchievement(n *Node, altEnding bool) {
	if n.Achievement != nil {
		return
	}

	if altEnding {
		n.Achievement = &Achievement{
			Type:        "Achievement",
			Title:       fmt.Sprintf("Alternate Ending: %s", n.Name),
			Description: "Congratulations! You've discovered an alternate ending to the story. Your unique choices led to this special conclusion.",
		}
		return
	}

	n.Achievement = &Achievement{
		Type:        "Achievement",
		Title:       fmt.Sprintf("Completed: %s", n.Name),
		Description: fmt.Sprintf("Congratulations! You completed the '%s' storyline and demonstrated excellent decision-making skills.", n.Name),
	}
}
