package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/storyloom/storyloom/pkg/story"
)

var (
	// Story shape metrics
	StoryNodeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_nodes_total",
		Help: "Number of nodes in the current story tree",
	})

	StoryDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_max_depth",
		Help: "Maximum depth of the current story tree",
	})

	StoryBranchPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_branch_points",
		Help: "Number of nodes with more than one child",
	})

	StoryMerges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_merge_nodes",
		Help: "Number of merge pointers back into the main storyline",
	})

	// Generation metrics
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_generations_total",
			Help: "Total number of generation requests",
		},
		[]string{"kind", "status"},
	)

	VisualizationTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_visualizations_total",
		Help: "Total number of visualizations rendered",
	})
)

// ObserveStory updates the story shape gauges from tree stats.
func ObserveStory(stats story.StoryStats) {
	StoryNodeCount.Set(float64(stats.Nodes))
	StoryDepth.Set(float64(stats.MaxDepth))
	StoryBranchPoints.Set(float64(stats.BranchPoints))
	StoryMerges.Set(float64(stats.Merges))
}
