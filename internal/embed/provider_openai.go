package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds texts via OpenAI's embeddings API, bound to one
// model at construction (adapted from internal/memory/embeddings/openai).
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

var _ Provider = (*OpenAIProvider)(nil)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIProvider constructs an OpenAIProvider for cfg.Model (default
// text-embedding-3-small).
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embed: openai API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Dimension() int {
	switch p.model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

// MaxBatchSize mirrors OpenAI's per-request input limit.
func (p *OpenAIProvider) MaxBatchSize() int { return 2048 }

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: openai embeddings request failed: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}
