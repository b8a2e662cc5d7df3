package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func branchOfLength(length int, label string) *Node {
	names := make([]string, length)
	for i := range names {
		names[i] = label
		if i > 0 {
			names[i] = label + " continued"
		}
	}
	return chain(names...)
}

func TestGraftMergingBranch(t *testing.T) {
	root := chain("Title", "First", "Second", "Third")

	branch := branchOfLength(3, "Detour")
	opts := GraftOptions{
		BranchLength: 3,
		MergePath:    TreePath{0, 0, 0},
		Achievements: true,
	}
	require.NoError(t, Graft(root, TreePath{0}, []*Node{branch}, opts))

	// The branch hangs off First after the existing Second child.
	first, err := NodeAt(root, TreePath{0})
	require.NoError(t, err)
	require.Len(t, first.Children, 2)
	assert.Equal(t, "Detour", first.Children[1].Name)

	// The terminal beat got an achievement and a merge pointer leaf.
	terminal, err := NodeAt(root, TreePath{0, 1, 0})
	require.NoError(t, err)
	require.NotNil(t, terminal.Achievement)
	assert.True(t, strings.HasPrefix(terminal.Achievement.Title, "Completed: "))

	require.Len(t, terminal.Children, 1)
	merge := terminal.Children[0]
	assert.True(t, merge.IsMerge())
	assert.Equal(t, "Merge back to: Third", merge.Name)
	assert.True(t, merge.MergeTarget.Equal(TreePath{0, 0, 0}))
	assert.Empty(t, merge.Children)
}

func TestGraftAlternativeEnding(t *testing.T) {
	root := chain("Title", "First", "Second")

	branch := branchOfLength(2, "Twist")
	opts := GraftOptions{BranchLength: 3, Achievements: true}
	require.NoError(t, Graft(root, TreePath{0, 0}, []*Node{branch}, opts))

	terminal, err := NodeAt(root, TreePath{0, 0, 0, 0})
	require.NoError(t, err)
	require.NotNil(t, terminal.Achievement)
	assert.True(t, strings.HasPrefix(terminal.Achievement.Title, "Alternate Ending: "))
	assert.True(t, terminal.IsEnding())
}

func TestGraftKeepsModelAchievement(t *testing.T) {
	root := chain("Title", "First")

	branch := branchOfLength(2, "Quest")
	terminal := branch.Children[0]
	terminal.Achievement = &Achievement{Type: "Achievement", Title: "Custom", Description: "From the model."}

	opts := GraftOptions{BranchLength: 3, Achievements: true}
	require.NoError(t, Graft(root, TreePath{0}, []*Node{branch}, opts))

	assert.Equal(t, "Custom", terminal.Achievement.Title)
}

func TestGraftCutsOvershoot(t *testing.T) {
	root := chain("Title", "First", "Second")

	// The model generated 5 beats for a 3-beat branch; everything past
	// the intended terminal is replaced by the merge pointer.
	branch := chain("B1", "B2", "B3", "B4", "B5")
	opts := GraftOptions{BranchLength: 3, MergePath: TreePath{0, 0}}
	require.NoError(t, Graft(root, TreePath{0}, []*Node{branch}, opts))

	terminal, err := NodeAt(root, TreePath{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, "B2", terminal.Name)
	require.Len(t, terminal.Children, 1)
	assert.True(t, terminal.Children[0].IsMerge())
}

func TestGraftErrors(t *testing.T) {
	root := chain("Title", "First")
	branch := branchOfLength(3, "Detour")

	err := Graft(root, TreePath{0}, []*Node{branch}, GraftOptions{BranchLength: 1})
	assert.ErrorContains(t, err, "branch length")

	err = Graft(root, TreePath{0, 5}, []*Node{branch}, GraftOptions{BranchLength: 3})
	assert.ErrorContains(t, err, "branch source not found")

	err = Graft(root, TreePath{0}, []*Node{branch}, GraftOptions{BranchLength: 3, MergePath: TreePath{0}})
	assert.ErrorContains(t, err, "cannot be the branch source")

	err = Graft(root, TreePath{0}, []*Node{branch}, GraftOptions{BranchLength: 3, MergePath: TreePath{0, 9}})
	assert.ErrorContains(t, err, "merge destination not found")

	// No branches is a no-op, not an error.
	assert.NoError(t, Graft(root, TreePath{0}, nil, GraftOptions{BranchLength: 1}))
}
