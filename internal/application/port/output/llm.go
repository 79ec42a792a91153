package output

import (
	"context"
	"encoding/json"

	"research-agent/internal/domain/entity"
)

type ModelTier string

const (
	TierFast ModelTier = "fast"
	TierPro  ModelTier = "pro"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ResponseSchema asks the model for a JSON object matching Schema.
type ResponseSchema struct {
	Name   string
	Schema json.Marshaler
}

type ChatRequest struct {
	Messages    []entity.Message
	Temperature float32
	Tier        ModelTier
	Schema      *ResponseSchema
}

type ChatResponse struct {
	Message entity.Message
}

type EmbeddingPort interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
