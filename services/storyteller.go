package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/storyloom/storyloom/pkg/story"
)

const (
	storyTemperature = 0.7
	storyMaxTokens   = 1000
)

// BranchSpec describes what kind of branches to grow.
type BranchSpec struct {
	// Length is the node count per branch, including the first branch
	// node.
	Length int
	// AltEnding makes the branch conclude the story instead of leading
	// back to the main storyline.
	AltEnding bool
	// Single generates one branch instead of 2-3 options.
	Single bool
	// Achievements asks the model for an achievement on each final node.
	Achievements bool
}

// Storyteller turns prompts into story trees via an OpenAI-compatible
// chat model. Responses that cannot be parsed degrade to canned
// structures so a flaky model never wedges the session.
type Storyteller struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

// NewStoryteller builds a storyteller on the default OpenAI client.
func NewStoryteller() *Storyteller {
	return NewStorytellerWithClient(DefaultOpenAIClient(), StoryModel())
}

// NewStorytellerWithClient builds a storyteller on an explicit client,
// mainly for wiring alternative OpenAI-compatible endpoints.
func NewStorytellerWithClient(client *openai.Client, model string) *Storyteller {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Storyteller{
		client: client,
		model:  model,
		logger: logger,
	}
}

const seedSystemMessage = `You are a storyteller. Create a linear story with a beginning, middle, and end.
Respond with valid JSON that represents a simple, linear narrative.

The JSON should have this structure:
{
  "name": "Main Story Title",
  "description": "A paragraph describing the overall story theme.",
  "children": [
    {
      "name": "First Story Node",
      "description": "Detailed paragraph about this part of the story.",
      "children": [
        {
          "name": "Second Story Node",
          "description": "Next part of the story...",
          "children": []
        }
      ]
    }
  ]
}

Create EXACTLY 5 nodes in a linear chain (each one having only ONE child, except the last node).
Do not include any branching choices at this stage.`

const achievementInstructions = `For the FINAL node in each branch, include an 'achievement' object with this structure:
"achievement": {
  "type": "Achievement",
  "title": "A Creative Achievement Title",
  "description": "Congratulatory message explaining what the reader accomplished in this branch."
}

The achievement title should be catchy and relevant to what happened in this branch.
The description should be congratulatory and explain what skills or values the reader demonstrated.`

// branchSystemMessage builds the system prompt for branch growth.
func branchSystemMessage(spec BranchSpec) string {
	var b strings.Builder

	if spec.Single {
		b.WriteString(`You are a branching story generator.
Respond with valid JSON that represents a SINGLE new branch for an existing story.

The JSON should have a 'name' field for the node title, a 'description' field with
a detailed paragraph, and a 'children' array that will contain the next nodes.

`)
		fmt.Fprintf(&b, "Create a branch with EXACTLY %d nodes (including the first node in the branch).\n", spec.Length)
	} else {
		b.WriteString(`You are a branching story generator.
Respond with valid JSON that represents new branches for an existing story.

The JSON should be an array of story options, each with a 'name' field for the node title,
a 'description' field with a detailed paragraph, and a 'children' array that will contain
the next nodes.

Create 2-3 interesting and distinct branching options.

`)
		fmt.Fprintf(&b, "For each option, create a branch with EXACTLY %d nodes (including the first node in the branch).\n", spec.Length)
	}

	if spec.AltEnding {
		b.WriteString("The final node should be an alternative ending with closure.\n")
	} else {
		b.WriteString("The final node should naturally lead back to the main story.\n")
	}

	if spec.Achievements {
		b.WriteString("\n")
		b.WriteString(achievementInstructions)
	}

	return b.String()
}

// SeedStory generates the initial linear story.
func (s *Storyteller) SeedStory(ctx context.Context, prompt string) (*story.Node, error) {
	content, err := s.complete(ctx, seedSystemMessage, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "seed story generation failed")
	}

	root, err := DecodeSeedStory(content)
	if err != nil {
		s.logger.WithError(err).Warn("Model returned unparseable seed story, using fallback")
		return FallbackSeedStory(), nil
	}
	if !story.IsLinear(root) {
		s.logger.Warn("Seed story is not a single chain, keeping it anyway")
	}
	return root, nil
}

// GrowBranches generates branch options for an existing story node.
// The prompt is expected to carry the source and destination context.
func (s *Storyteller) GrowBranches(ctx context.Context, prompt string, spec BranchSpec) ([]*story.Node, error) {
	content, err := s.complete(ctx, branchSystemMessage(spec), prompt)
	if err != nil {
		return nil, errors.Wrap(err, "branch generation failed")
	}

	branches, err := DecodeBranches(content)
	if err != nil {
		s.logger.WithError(err).Warn("Model returned unparseable branches, using fallback")
		return FallbackBranches(spec.Length), nil
	}
	return branches, nil
}

func (s *Storyteller) complete(ctx context.Context, systemMessage, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   storyMaxTokens,
		Temperature: storyTemperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from model")
	}

	return resp.Choices[0].Message.Content, nil
}

var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON pulls the JSON body out of a model response, stripping a
// surrounding markdown fence if present.
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	if match := jsonFencePattern.FindStringSubmatch(content); match != nil {
		content = match[1]
	}

	if !gjson.Valid(content) {
		return "", errors.New("response is not valid JSON")
	}
	return content, nil
}

// DecodeSeedStory parses a seed story response into a root node.
func DecodeSeedStory(content string) (*story.Node, error) {
	payload, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	var root story.Node
	if err := json.Unmarshal([]byte(payload), &root); err != nil {
		return nil, errors.Wrap(err, "failed to decode seed story")
	}
	if root.Name == "" {
		return nil, errors.New("seed story has no title")
	}
	return &root, nil
}

// DecodeBranches parses a branch response. Single-branch responses come
// back as one object and are wrapped into a slice.
func DecodeBranches(content string) ([]*story.Node, error) {
	payload, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	if gjson.Parse(payload).IsArray() {
		var branches []*story.Node
		if err := json.Unmarshal([]byte(payload), &branches); err != nil {
			return nil, errors.Wrap(err, "failed to decode branch options")
		}
		if len(branches) == 0 {
			return nil, errors.New("model returned no branch options")
		}
		return branches, nil
	}

	var branch story.Node
	if err := json.Unmarshal([]byte(payload), &branch); err != nil {
		return nil, errors.Wrap(err, "failed to decode branch")
	}
	return []*story.Node{&branch}, nil
}

// FallbackSeedStory is the canned linear story used when the model
// response cannot be parsed.
func FallbackSeedStory() *story.Node {
	return &story.Node{
		Name:        "Student's Day",
		Description: "A day in the life of a student following a linear narrative.",
		Children: []*story.Node{{
			Name:        "Morning Begins",
			Description: "The student starts their day with their morning routine.",
			Children: []*story.Node{{
				Name:        "Heading to School",
				Description: "After getting ready, the student heads to school.",
				Children: []*story.Node{{
					Name:        "First Class",
					Description: "The student attends their first class of the day.",
					Children: []*story.Node{{
						Name:        "End of Day",
						Description: "The student completes their day and heads home.",
						Children:    []*story.Node{},
					}},
				}},
			}},
		}},
	}
}

// FallbackBranches is the canned two-option branch set used when the
// model response cannot be parsed.
func FallbackBranches(length int) []*story.Node {
	options := []*story.Node{
		{
			Name:        "Option A",
			Description: "This is the first possible branch of the story.",
			Children:    []*story.Node{},
		},
		{
			Name:        "Option B",
			Description: "This is the second possible branch of the story.",
			Children:    []*story.Node{},
		},
	}

	for _, option := range options {
		current := option
		for i := 2; i < length; i++ {
			next := &story.Node{
				Name:        fmt.Sprintf("Node %d in Branch", i),
				Description: "Continuing the story in this branch...",
				Children:    []*story.Node{},
			}
			current.Children = []*story.Node{next}
			current = next
		}
		if length >= 2 {
			current.Children = []*story.Node{{
				Name:        "Final Node in Branch",
				Description: "The conclusion of this branch of the story.",
				Children:    []*story.Node{},
			}}
		}
	}

	return options
}
