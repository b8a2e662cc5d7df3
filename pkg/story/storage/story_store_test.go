package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/pkg/story"
)

func testStory() *story.Node {
	return &story.Node{
		Name:        "The Quiet Harbor",
		Description: "A story about a fishing village.",
		Children: []*story.Node{
			{
				Name:        "The Storm",
				Description: "A storm rolls in.",
				Children: []*story.Node{
					{
						Name:        "Safe Return",
						Description: "The boats come home.",
						Children:    []*story.Node{},
						Achievement: &story.Achievement{
							Type:        "Achievement",
							Title:       "Weathered the Storm",
							Description: "You brought everyone home safely.",
						},
					},
					{
						Name:        "Merge back to: The Storm",
						Description: "This path merges back to the main storyline at 'The Storm'.",
						Children:    []*story.Node{},
						MergeTarget: story.TreePath{0},
					},
				},
			},
		},
	}
}

func TestJSONStoryStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories", "story.json")
	store := NewJSONStoryStore(path)
	ctx := context.Background()

	original := testStory()
	require.NoError(t, store.StoreStory(ctx, original))

	loaded, err := store.LoadStory(ctx)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	// Merge pointers and achievements survive the trip.
	storm := loaded.Children[0]
	require.Len(t, storm.Children, 2)
	assert.NotNil(t, storm.Children[0].Achievement)
	assert.True(t, storm.Children[1].MergeTarget.Equal(story.TreePath{0}))
}

func TestJSONStoryStoreRejectsNil(t *testing.T) {
	store := NewJSONStoryStore(filepath.Join(t.TempDir(), "story.json"))
	assert.Error(t, store.StoreStory(context.Background(), nil))
}

func TestJSONStoryStoreMissingFile(t *testing.T) {
	store := NewJSONStoryStore(filepath.Join(t.TempDir(), "missing.json"))
	_, err := store.LoadStory(context.Background())
	assert.True(t, os.IsNotExist(err))
}
