package tools

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkoukk/tiktoken-go"
	"github.com/qdrant/go-client/qdrant"
	"github.com/sashabaranov/go-openai"

	"github.com/storyloom/storyloom/pkg/story"
	"github.com/storyloom/storyloom/services"
	"github.com/storyloom/storyloom/util"
)

const (
	defaultRecallCollection = "storyloom"
	maxNodeTokens           = 512
)

var embeddingModelDimensions = map[openai.EmbeddingModel]uint64{
	openai.AdaEmbeddingV2:  1536,
	openai.SmallEmbedding3: 1536,
	openai.LargeEmbedding3: 3072,
}

var qdrantClient = sync.OnceValue(func() *qdrant.Client {
	host := os.Getenv("QDRANT_HOST")
	port := os.Getenv("QDRANT_PORT")
	apiKey := os.Getenv("QDRANT_API_KEY")
	if host == "" || port == "" || apiKey == "" {
		panic("QDRANT_HOST, QDRANT_PORT, or QDRANT_API_KEY is not set, please set it in MCP Config")
	}

	portInt, err := strconv.Atoi(port)
	if err != nil {
		panic(fmt.Sprintf("failed to parse QDRANT_PORT: %v", err))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   portInt,
		APIKey: apiKey,
		UseTLS: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect to Qdrant: %v", err))
	}

	return client
})

// RegisterRecallTools wires the vector-memory tools: story nodes are
// indexed by their prose so merge destinations can be found
// semantically instead of by scanning the outline.
func RegisterRecallTools(s *server.MCPServer) {
	indexTool := mcp.NewTool("story_recall_index",
		mcp.WithDescription("Index every node of the current story into vector memory for semantic lookup"),
		mcp.WithString("collection", mcp.Description("Memory collection name (default storyloom)")),
	)

	searchTool := mcp.NewTool("story_recall_search",
		mcp.WithDescription("Search indexed story nodes semantically; useful for suggesting merge destinations that fit a branch's theme"),
		mcp.WithString("query", mcp.Required(), mcp.Description("What the branch is about, e.g. \"the student makes amends with a friend\"")),
		mcp.WithString("collection", mcp.Description("Memory collection name (default storyloom)")),
	)

	dropTool := mcp.NewTool("story_recall_drop",
		mcp.WithDescription("Delete a story memory collection"),
		mcp.WithString("collection", mcp.Description("Memory collection name (default storyloom)")),
	)

	s.AddTool(indexTool, util.ErrorGuard(recallIndexHandler))
	s.AddTool(searchTool, util.ErrorGuard(recallSearchHandler))
	s.AddTool(dropTool, util.ErrorGuard(recallDropHandler))
}

func collectionArg(arguments map[string]interface{}) string {
	if collection, ok := arguments["collection"].(string); ok && collection != "" {
		return collection
	}
	return defaultRecallCollection
}

func recallIndexHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if storyServer == nil || storyServer.story.Empty() {
		return mcp.NewToolResultError("no story in session; call story_generate first"), nil
	}

	collection := collectionArg(arguments)
	ctx := context.Background()
	model := services.EmbeddingModel()

	dimensions, ok := embeddingModelDimensions[model]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported embedding model: %s", model)), nil
	}

	if err := ensureCollection(ctx, collection, dimensions); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var points []*qdrant.PointStruct
	var indexErr error

	root := storyServer.story.Snapshot()
	story.Walk(root, func(n *story.Node, path story.TreePath) bool {
		if n.IsMerge() {
			// Merge pointers carry no original prose worth indexing.
			return true
		}

		content, err := truncateTokens(fmt.Sprintf("%s: %s", n.Name, n.Description), maxNodeTokens)
		if err != nil {
			indexErr = err
			return false
		}

		resp, err := services.DefaultOpenAIClient().CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{content},
			Model: model,
		})
		if err != nil {
			indexErr = fmt.Errorf("failed to generate embeddings: %v", err)
			return false
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+path.String())).String()),
			Vectors: qdrant.NewVectors(resp.Data[0].Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"path":    path.String(),
				"name":    n.Name,
				"content": content,
			}),
		})
		return true
	})
	if indexErr != nil {
		return mcp.NewToolResultError(indexErr.Error()), nil
	}

	waitUpsert := true
	upsertResp, err := qdrantClient().Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &waitUpsert,
		Points:         points,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to upsert points: %v", err)), nil
	}

	result := fmt.Sprintf("Indexed %d story nodes into %s\nOperation ID: %d\nStatus: %s",
		len(points), collection, upsertResp.OperationId, upsertResp.Status)
	return mcp.NewToolResultText(result), nil
}

func ensureCollection(ctx context.Context, collection string, dimensions uint64) error {
	if info, err := qdrantClient().GetCollectionInfo(ctx, collection); err == nil && info != nil {
		return nil
	}

	err := qdrantClient().CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     dimensions,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %v", err)
	}
	return nil
}

func recallSearchHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	query, ok := arguments["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query must be a non-empty string"), nil
	}
	collection := collectionArg(arguments)
	ctx := context.Background()

	resp, err := services.DefaultOpenAIClient().CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{query},
		Model: services.EmbeddingModel(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate embeddings for query: %v", err)), nil
	}

	scoreThreshold := float32(0.3)
	limit := uint64(5)

	searchResult, err := qdrantClient().Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(resp.Data[0].Embedding...),
		Limit:          &limit,
		ScoreThreshold: &scoreThreshold,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{
				Enable: true,
			},
		},
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search story memory: %v", err)), nil
	}

	if len(searchResult) == 0 {
		return mcp.NewToolResultText("No story nodes matched the query. Index the story first with story_recall_index."), nil
	}

	resultText := fmt.Sprintf("Candidate nodes for %q (use the path with story_extend's merge_path):\n\n", query)
	for i, hit := range searchResult {
		resultText += fmt.Sprintf("%d. %s (path %s, score %.4f)\n   %s\n",
			i+1,
			hit.Payload["name"].GetStringValue(),
			hit.Payload["path"].GetStringValue(),
			hit.Score,
			hit.Payload["content"].GetStringValue())
	}

	return mcp.NewToolResultText(resultText), nil
}

func recallDropHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	collection := collectionArg(arguments)
	ctx := context.Background()

	if info, err := qdrantClient().GetCollectionInfo(ctx, collection); err != nil || info == nil {
		return mcp.NewToolResultError(fmt.Sprintf("collection %s does not exist", collection)), nil
	}

	if err := qdrantClient().DeleteCollection(ctx, collection); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete collection: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted collection: %s", collection)), nil
}

// truncateTokens caps node prose at max tokens so a runaway description
// never blows the embedding request.
func truncateTokens(content string, max int) (string, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return "", fmt.Errorf("failed to get encoding: %v", err)
	}

	tokens := encoding.Encode(content, nil, nil)
	if len(tokens) <= max {
		return content, nil
	}
	return encoding.Decode(tokens[:max]), nil
}
