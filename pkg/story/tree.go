package story

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NodeAt resolves a path to the node it addresses.
func NodeAt(root *Node, path TreePath) (*Node, error) {
	if root == nil {
		return nil, errors.New("story has no root node")
	}

	current := root
	for depth, idx := range path {
		if idx >= len(current.Children) {
			return nil, errors.Errorf("path %s does not resolve: node %q has %d children, wanted index %d at depth %d",
				path, current.Name, len(current.Children), idx, depth)
		}
		current = current.Children[idx]
	}
	return current, nil
}

// Walk visits every node depth-first in child order. Returning false
// from fn stops the walk.
func Walk(root *Node, fn func(n *Node, path TreePath) bool) {
	if root == nil {
		return
	}
	walk(root, TreePath{}, fn)
}

func walk(n *Node, path TreePath, fn func(n *Node, path TreePath) bool) bool {
	if !fn(n, path) {
		return false
	}
	for i, child := range n.Children {
		childPath := append(append(TreePath{}, path...), i)
		if !walk(child, childPath, fn) {
			return false
		}
	}
	return true
}

// OutlineEntry is a flattened view of one node for node pickers.
type OutlineEntry struct {
	Label string   `json:"label"`
	Name  string   `json:"name"`
	Path  TreePath `json:"path"`
}

// Outline flattens the tree into labeled entries, prefixing each level
// with an arrow so nesting stays readable in plain text.
func Outline(root *Node) []OutlineEntry {
	entries := make([]OutlineEntry, 0)
	Walk(root, func(n *Node, path TreePath) bool {
		entries = append(entries, OutlineEntry{
			Label: strings.Repeat("→ ", len(path)) + n.Name,
			Name:  n.Name,
			Path:  path,
		})
		return true
	})
	return entries
}

// Attach appends branches to the children of the node at path. Existing
// children are always preserved.
func Attach(root *Node, path TreePath, branches []*Node) error {
	if len(branches) == 0 {
		return nil
	}

	target, err := NodeAt(root, path)
	if err != nil {
		return errors.Wrap(err, "attach target not found")
	}

	target.Children = append(target.Children, branches...)
	return nil
}

// Stats computes summary statistics for the tree.
func Stats(root *Node) StoryStats {
	var stats StoryStats
	Walk(root, func(n *Node, path TreePath) bool {
		stats.Nodes++
		if len(path) > stats.MaxDepth {
			stats.MaxDepth = len(path)
		}
		if len(n.Children) > 1 {
			stats.BranchPoints++
		}
		if n.IsEnding() {
			stats.Endings++
		}
		if n.IsMerge() {
			stats.Merges++
		}
		if n.Achievement != nil {
			stats.Achievements++
		}
		return true
	})
	return stats
}

// IsLinear reports whether the tree is a simple chain, which is what a
// freshly generated seed story must be.
func IsLinear(root *Node) bool {
	linear := true
	Walk(root, func(n *Node, _ TreePath) bool {
		if len(n.Children) > 1 {
			linear = false
			return false
		}
		return true
	})
	return linear
}

// Story is a concurrency-safe holder for the session's story tree.
type Story struct {
	mu     sync.RWMutex
	root   *Node
	logger *logrus.Logger
}

// NewStory creates an empty story.
func NewStory() *Story {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Story{logger: logger}
}

// Set replaces the story tree.
func (s *Story) Set(root *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.logger.WithField("nodes", Stats(root).Nodes).Info("Story replaced")
}

// Reset drops the story tree.
func (s *Story) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = nil
}

// Empty reports whether a story has been generated yet.
func (s *Story) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root == nil
}

// Snapshot returns a deep copy of the tree, safe to read without locks.
func (s *Story) Snapshot() *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root.Clone()
}

// NodeAt resolves a path against the current tree and returns a copy.
func (s *Story) NodeAt(path TreePath) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, err := NodeAt(s.root, path)
	if err != nil {
		return nil, err
	}
	return node.Clone(), nil
}

// Graft grows branches from the node at source, applying merge and
// achievement handling, under the story lock.
func (s *Story) Graft(source TreePath, branches []*Node, opts GraftOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return errors.New("no story to extend; generate a seed story first")
	}
	if err := Graft(s.root, source, branches, opts); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"source":   source.String(),
		"branches": len(branches),
	}).Info("Branches grafted")
	return nil
}
