package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/storyloom/storyloom/pkg/story"
	"github.com/storyloom/storyloom/pkg/story/export"
	"github.com/storyloom/storyloom/pkg/story/storage"
	"github.com/storyloom/storyloom/pkg/story/visualizer"
)

var (
	inputFile      = flag.String("input", "", "Story JSON file to render")
	vizOutput      = flag.String("viz-output", "", "Output file for the D3 HTML visualization")
	markdownOutput = flag.String("markdown-output", "", "Output file for the Markdown outline")
	validateOnly   = flag.Bool("validate", false, "Validate the story and exit")
	logLevel       = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if *inputFile == "" {
		logger.Fatal("Input story file must be specified")
	}

	ctx := context.Background()
	store := storage.NewJSONStoryStore(*inputFile)

	root, err := store.LoadStory(ctx)
	if err != nil {
		logger.Fatalf("Failed to load story: %v", err)
	}

	issues := story.Validate(root)
	for _, issue := range issues {
		entry := logger.WithField("path", issue.Path)
		if issue.Severity == story.SeverityError {
			entry.Error(issue.Message)
		} else {
			entry.Warn(issue.Message)
		}
	}
	if errs := story.Errors(issues); len(errs) > 0 {
		logger.Fatalf("Story has %d structural error(s)", len(errs))
	}

	stats := story.Stats(root)
	logger.Infof("Story %q: %d nodes, depth %d, %d branch points, %d endings, %d merges, %d achievements",
		root.Name, stats.Nodes, stats.MaxDepth, stats.BranchPoints, stats.Endings, stats.Merges, stats.Achievements)

	if *validateOnly {
		return
	}

	if *vizOutput != "" {
		viz := visualizer.NewD3Visualizer(*vizOutput)
		if err := viz.Visualize(root); err != nil {
			logger.Errorf("Failed to render visualization: %v", err)
		} else {
			logger.Infof("Visualization saved to %s", *vizOutput)
		}
	}

	if *markdownOutput != "" {
		if err := os.WriteFile(*markdownOutput, []byte(export.Markdown(root)), 0644); err != nil {
			logger.Errorf("Failed to write Markdown outline: %v", err)
		} else {
			logger.Infof("Markdown outline saved to %s", *markdownOutput)
		}
	}
}
