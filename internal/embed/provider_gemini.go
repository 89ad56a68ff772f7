package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider embeds texts via Google's Gemini embedding models.
type GeminiProvider struct {
	client *genai.Client
	model  string
	dim    int
}

var _ Provider = (*GeminiProvider)(nil)

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey    string
	Model     string // default: text-embedding-004
	Dimension int    // default: 768
}

// NewGeminiProvider constructs a GeminiProvider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embed: gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 768
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.Model, dim: cfg.Dimension}, nil
}

func (p *GeminiProvider) Name() string      { return "gemini" }
func (p *GeminiProvider) Dimension() int    { return p.dim }
func (p *GeminiProvider) MaxBatchSize() int { return 100 }

func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed: gemini embed_content failed: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
