package story

import (
	"fmt"
	"strconv"
	"strings"
)

// Achievement is awarded when a reader completes a branch
type Achievement struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TreePath addresses a node by the child indexes walked from the root.
// An empty path addresses the root itself.
type TreePath []int

// Node is a single beat in the story tree. A node with a non-empty
// MergeTarget is a pointer back into the main storyline and must be a
// leaf; storing the path instead of the destination node keeps the tree
// acyclic.
type Node struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Children    []*Node      `json:"children"`
	Achievement *Achievement `json:"achievement,omitempty"`
	MergeTarget TreePath     `json:"merge_target,omitempty"`
}

// IsMerge reports whether the node points back into the main storyline.
func (n *Node) IsMerge() bool {
	return len(n.MergeTarget) > 0
}

// IsEnding reports whether the node is a terminal story beat.
func (n *Node) IsEnding() bool {
	return len(n.Children) == 0 && !n.IsMerge()
}

// Clone returns a deep copy of the node and its subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	clone := &Node{
		Name:        n.Name,
		Description: n.Description,
	}
	if n.Achievement != nil {
		a := *n.Achievement
		clone.Achievement = &a
	}
	if n.MergeTarget != nil {
		clone.MergeTarget = append(TreePath{}, n.MergeTarget...)
	}
	for _, child := range n.Children {
		clone.Children = append(clone.Children, child.Clone())
	}
	return clone
}

// StoryStats summarizes the shape of a story tree.
type StoryStats struct {
	Nodes        int `json:"nodes"`
	MaxDepth     int `json:"max_depth"`
	BranchPoints int `json:"branch_points"`
	Endings      int `json:"endings"`
	Merges       int `json:"merges"`
	Achievements int `json:"achievements"`
}

// String renders the path as dot-separated child indexes, e.g. "0.2.1".
// The root renders as ".".
func (p TreePath) String() string {
	if len(p) == 0 {
		return "."
	}
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// Equal reports whether two paths address the same node.
func (p TreePath) Equal(other TreePath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// ParseTreePath parses the dot-separated form produced by String.
// Both "" and "." address the root.
func ParseTreePath(s string) (TreePath, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return TreePath{}, nil
	}

	parts := strings.Split(s, ".")
	path := make(TreePath, 0, len(parts))
	for _, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid tree path %q: segment %q must be a non-negative index", s, part)
		}
		path = append(path, idx)
	}
	return path, nil
}
