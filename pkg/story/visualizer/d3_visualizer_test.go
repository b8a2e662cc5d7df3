package visualizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/pkg/story"
)

func sampleStory() *story.Node {
	return &story.Node{
		Name:        "The Lighthouse",
		Description: "A keeper's tale.",
		Children: []*story.Node{{
			Name:        "First Watch",
			Description: "The night begins.",
			Children:    []*story.Node{},
		}},
	}
}

func TestRender(t *testing.T) {
	html, err := Render(sampleStory())
	require.NoError(t, err)

	page := string(html)
	assert.Contains(t, page, "<title>The Lighthouse</title>")
	assert.Contains(t, page, "d3.v7.min.js")
	// The story JSON must land in the script unescaped so D3 can parse it.
	assert.Contains(t, page, `"name":"The Lighthouse"`)
	assert.Contains(t, page, `"name":"First Watch"`)
	assert.False(t, strings.Contains(page, "&#34;name&#34;"), "story JSON must not be HTML-escaped")
}

func TestRenderNilRoot(t *testing.T) {
	_, err := Render(nil)
	assert.Error(t, err)
}

func TestVisualizeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "story.html")
	v := NewD3Visualizer(path)

	require.NoError(t, v.Visualize(sampleStory()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "The Lighthouse")
}

func TestVisualizeNilRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.html")
	err := NewD3Visualizer(path).Visualize(nil)
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
