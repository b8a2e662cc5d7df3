package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/storyloom/storyloom/pkg/story"
)

// StoryStore defines an interface for persisting story trees
type StoryStore interface {
	// StoreStory persists a story tree
	StoreStory(ctx context.Context, root *story.Node) error

	// LoadStory loads a story tree from storage
	LoadStory(ctx context.Context) (*story.Node, error)
}

// JSONStoryStore implements StoryStore using JSON files
type JSONStoryStore struct {
	filePath string
}

// NewJSONStoryStore creates a new JSON story store
func NewJSONStoryStore(filePath string) *JSONStoryStore {
	return &JSONStoryStore{
		filePath: filePath,
	}
}

// StoreStory stores the story tree as JSON
func (s *JSONStoryStore) StoreStory(ctx context.Context, root *story.Node) error {
	if root == nil {
		return errors.New("cannot store an empty story")
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode story")
	}

	return os.WriteFile(s.filePath, data, 0644)
}

// LoadStory loads a story tree from a JSON file
func (s *JSONStoryStore) LoadStory(ctx context.Context) (*story.Node, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, err
	}

	var root story.Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrapf(err, "failed to decode story from %s", s.filePath)
	}

	return &root, nil
}
