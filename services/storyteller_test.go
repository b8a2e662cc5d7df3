package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/pkg/story"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare object", input: `{"name": "Story"}`, want: `{"name": "Story"}`},
		{name: "json fence", input: "```json\n{\"name\": \"Story\"}\n```", want: `{"name": "Story"}`},
		{name: "plain fence", input: "```\n[1, 2]\n```", want: `[1, 2]`},
		{name: "fence with chatter", input: "Here you go:\n```json\n{\"name\": \"Story\"}\n```\nEnjoy!", want: `{"name": "Story"}`},
		{name: "not json", input: "Once upon a time", wantErr: true},
		{name: "fenced garbage", input: "```json\nnot json\n```", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSeedStory(t *testing.T) {
	content := "```json\n" + `{
		"name": "The Voyage",
		"description": "A sea story.",
		"children": [
			{"name": "Setting Sail", "description": "The crew departs.", "children": []}
		]
	}` + "\n```"

	root, err := DecodeSeedStory(content)
	require.NoError(t, err)
	assert.Equal(t, "The Voyage", root.Name)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "Setting Sail", root.Children[0].Name)
}

func TestDecodeSeedStoryRejectsUntitled(t *testing.T) {
	_, err := DecodeSeedStory(`{"description": "no title"}`)
	assert.Error(t, err)
}

func TestDecodeBranchesArray(t *testing.T) {
	branches, err := DecodeBranches(`[
		{"name": "Left", "description": "Go left.", "children": []},
		{"name": "Right", "description": "Go right.", "children": []}
	]`)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "Left", branches[0].Name)
	assert.Equal(t, "Right", branches[1].Name)
}

func TestDecodeBranchesWrapsSingleObject(t *testing.T) {
	branches, err := DecodeBranches(`{"name": "Only Path", "description": "One way.", "children": []}`)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, "Only Path", branches[0].Name)
}

func TestDecodeBranchesEmptyArray(t *testing.T) {
	_, err := DecodeBranches(`[]`)
	assert.Error(t, err)
}

func TestFallbackSeedStoryIsLinearFiveNodes(t *testing.T) {
	root := FallbackSeedStory()
	require.True(t, story.IsLinear(root))
	assert.Equal(t, 5, story.Stats(root).Nodes)
}

func TestFallbackBranchesLength(t *testing.T) {
	for _, length := range []int{2, 3, 5, 10} {
		branches := FallbackBranches(length)
		require.Len(t, branches, 2)
		for _, branch := range branches {
			nodes := story.Stats(branch).Nodes
			assert.Equal(t, length, nodes, "branch should have %d nodes, got %d", length, nodes)
			assert.True(t, story.IsLinear(branch))
		}
	}
}

func TestBranchSystemMessage(t *testing.T) {
	single := branchSystemMessage(BranchSpec{Length: 4, Single: true, AltEnding: true, Achievements: true})
	assert.Contains(t, single, "SINGLE new branch")
	assert.Contains(t, single, "EXACTLY 4 nodes")
	assert.Contains(t, single, "alternative ending")
	assert.Contains(t, single, "achievement")

	multi := branchSystemMessage(BranchSpec{Length: 3})
	assert.Contains(t, multi, "2-3 interesting and distinct branching options")
	assert.Contains(t, multi, "EXACTLY 3 nodes")
	assert.Contains(t, multi, "lead back to the main story")
	assert.False(t, strings.Contains(multi, "achievement"))
}
