package services

import (
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
)

var DefaultOpenAIClient = sync.OnceValue(func() *openai.Client {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		panic("OPENAI_API_KEY is not set, please set it in MCP Config")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	config := openai.DefaultConfig(apiKey)

	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return openai.NewClientWithConfig(config)
})

// StoryModel returns the chat model used for story generation.
func StoryModel() string {
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		return model
	}
	return openai.GPT4oMini
}

// EmbeddingModel returns the embedding model used for story recall.
func EmbeddingModel() openai.EmbeddingModel {
	if model := os.Getenv("OPENAI_EMBEDDING_MODEL"); model != "" {
		return openai.EmbeddingModel(model)
	}
	return openai.SmallEmbedding3
}
