package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEmbedder embeds text via OpenAI's embeddings endpoint. Satisfies the
// connectors.Embedder capability structurally (Embed(ctx, []string)
// ([][]float64, error)) without importing that package.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder builds an OpenAIEmbedder for cfg. Model defaults to
// text-embedding-3-small when unset.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{client: openai.NewClient(opts...), model: model}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, phrases []string) ([][]float64, error) {
	if len(phrases) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: phrases},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
