package story

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Issue is a single validation finding.
type Issue struct {
	Path     string `json:"path"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Validate checks the structural invariants of a story tree: every node
// is named, merge pointers are leaves that resolve to a real node
// outside their own position, and titles are unique enough to keep the
// node picker usable.
func Validate(root *Node) []Issue {
	issues := make([]Issue, 0)
	if root == nil {
		return append(issues, Issue{Path: ".", Severity: SeverityError, Message: "story has no root node"})
	}

	seen := mapset.NewSet[string]()
	duplicates := mapset.NewSet[string]()

	Walk(root, func(n *Node, path TreePath) bool {
		if n.Name == "" {
			issues = append(issues, Issue{
				Path:     path.String(),
				Severity: SeverityError,
				Message:  "node has no name",
			})
		}
		if n.Description == "" {
			issues = append(issues, Issue{
				Path:     path.String(),
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("node %q has no description", n.Name),
			})
		}

		if n.Name != "" && !seen.Add(n.Name) {
			duplicates.Add(n.Name)
		}

		if n.IsMerge() {
			if len(n.Children) > 0 {
				issues = append(issues, Issue{
					Path:     path.String(),
					Severity: SeverityError,
					Message:  fmt.Sprintf("merge node %q must be a leaf", n.Name),
				})
			}
			if n.MergeTarget.Equal(path) {
				issues = append(issues, Issue{
					Path:     path.String(),
					Severity: SeverityError,
					Message:  fmt.Sprintf("merge node %q points at itself", n.Name),
				})
			} else if _, err := NodeAt(root, n.MergeTarget); err != nil {
				issues = append(issues, Issue{
					Path:     path.String(),
					Severity: SeverityError,
					Message:  fmt.Sprintf("merge node %q has unresolvable target %s", n.Name, n.MergeTarget),
				})
			}
		}

		if n.Achievement != nil && n.Achievement.Title == "" {
			issues = append(issues, Issue{
				Path:     path.String(),
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("achievement on %q has no title", n.Name),
			})
		}

		return true
	})

	for _, name := range duplicates.ToSlice() {
		issues = append(issues, Issue{
			Path:     ".",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("node title %q appears more than once", name),
		})
	}

	return issues
}

// Errors filters issues down to the ones that make the tree unusable.
func Errors(issues []Issue) []Issue {
	errs := make([]Issue, 0)
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}
