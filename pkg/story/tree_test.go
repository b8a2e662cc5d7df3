package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds a linear story from the given node names.
func chain(names ...string) *Node {
	var root, current *Node
	for _, name := range names {
		node := &Node{
			Name:        name,
			Description: name + " description",
			Children:    []*Node{},
		}
		if root == nil {
			root = node
		} else {
			current.Children = []*Node{node}
		}
		current = node
	}
	return root
}

func TestParseTreePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TreePath
		wantErr bool
	}{
		{name: "root empty", input: "", want: TreePath{}},
		{name: "root dot", input: ".", want: TreePath{}},
		{name: "single", input: "0", want: TreePath{0}},
		{name: "nested", input: "0.2.1", want: TreePath{0, 2, 1}},
		{name: "whitespace", input: " 0.1 ", want: TreePath{0, 1}},
		{name: "negative", input: "-1", wantErr: true},
		{name: "junk", input: "0.x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTreePath(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestTreePathString(t *testing.T) {
	assert.Equal(t, ".", TreePath{}.String())
	assert.Equal(t, "0.2.1", TreePath{0, 2, 1}.String())
}

func TestNodeAt(t *testing.T) {
	root := chain("Title", "First", "Second")

	node, err := NodeAt(root, TreePath{})
	require.NoError(t, err)
	assert.Equal(t, "Title", node.Name)

	node, err = NodeAt(root, TreePath{0, 0})
	require.NoError(t, err)
	assert.Equal(t, "Second", node.Name)

	_, err = NodeAt(root, TreePath{0, 0, 5})
	assert.Error(t, err)

	_, err = NodeAt(nil, TreePath{})
	assert.Error(t, err)
}

func TestOutline(t *testing.T) {
	root := chain("Title", "First")
	root.Children[0].Children = append(root.Children[0].Children,
		&Node{Name: "Option A", Children: []*Node{}},
		&Node{Name: "Option B", Children: []*Node{}})

	entries := Outline(root)
	require.Len(t, entries, 4)
	assert.Equal(t, "Title", entries[0].Label)
	assert.Equal(t, "→ First", entries[1].Label)
	assert.Equal(t, "→ → Option B", entries[3].Label)
	assert.True(t, entries[3].Path.Equal(TreePath{0, 1}))
}

func TestAttachPreservesExistingChildren(t *testing.T) {
	root := chain("Title", "First", "Second")

	branches := []*Node{
		{Name: "Option A", Children: []*Node{}},
		{Name: "Option B", Children: []*Node{}},
	}
	require.NoError(t, Attach(root, TreePath{0}, branches))

	first, err := NodeAt(root, TreePath{0})
	require.NoError(t, err)
	require.Len(t, first.Children, 3)
	assert.Equal(t, "Second", first.Children[0].Name)
	assert.Equal(t, "Option A", first.Children[1].Name)
	assert.Equal(t, "Option B", first.Children[2].Name)
}

func TestAttachEmptyIsNoop(t *testing.T) {
	root := chain("Title", "First")
	require.NoError(t, Attach(root, TreePath{}, nil))
	require.Len(t, root.Children, 1)
}

func TestStats(t *testing.T) {
	root := chain("Title", "First", "Second", "Third", "End")
	require.NoError(t, Attach(root, TreePath{0}, []*Node{{
		Name:     "Detour",
		Children: []*Node{{Name: "Return", Children: []*Node{}, MergeTarget: TreePath{0, 0, 0}}},
		Achievement: &Achievement{
			Type:  "Achievement",
			Title: "Scenic Route",
		},
	}}))

	stats := Stats(root)
	assert.Equal(t, 7, stats.Nodes)
	assert.Equal(t, 4, stats.MaxDepth)
	assert.Equal(t, 1, stats.BranchPoints)
	assert.Equal(t, 1, stats.Endings)
	assert.Equal(t, 1, stats.Merges)
	assert.Equal(t, 1, stats.Achievements)
}

func TestIsLinear(t *testing.T) {
	root := chain("Title", "First", "Second")
	assert.True(t, IsLinear(root))

	require.NoError(t, Attach(root, TreePath{0}, []*Node{{Name: "Option", Children: []*Node{}}}))
	assert.False(t, IsLinear(root))
}

func TestCloneIsIndependent(t *testing.T) {
	root := chain("Title", "First")
	root.Children[0].Achievement = &Achievement{Title: "Done"}
	root.Children[0].MergeTarget = TreePath{0}

	clone := root.Clone()
	clone.Children[0].Name = "Changed"
	clone.Children[0].Achievement.Title = "Changed"
	clone.Children[0].MergeTarget[0] = 9

	assert.Equal(t, "First", root.Children[0].Name)
	assert.Equal(t, "Done", root.Children[0].Achievement.Title)
	assert.Equal(t, 0, root.Children[0].MergeTarget[0])
}

func TestStorySessions(t *testing.T) {
	s := NewStory()
	assert.True(t, s.Empty())
	assert.Nil(t, s.Snapshot())

	s.Set(chain("Title", "First"))
	assert.False(t, s.Empty())

	// Snapshot is a copy; mutating it must not touch the session tree.
	snapshot := s.Snapshot()
	snapshot.Name = "Changed"
	node, err := s.NodeAt(TreePath{})
	require.NoError(t, err)
	assert.Equal(t, "Title", node.Name)

	s.Reset()
	assert.True(t, s.Empty())
}
