package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaProvider embeds texts via a local Ollama server, one text per
// HTTP call since Ollama's /api/embeddings endpoint is not batched
// (adapted from internal/memory/embeddings/ollama).
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
	dim     int
}

var _ Provider = (*OllamaProvider)(nil)

// OllamaConfig configures an OllamaProvider.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// NewOllamaProvider constructs an OllamaProvider (default
// http://localhost:11434, nomic-embed-text).
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &OllamaProvider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
		dim:     ollamaDimension(cfg.Model),
	}
}

func ollamaDimension(model string) int {
	switch model {
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 768
	}
}

func (p *OllamaProvider) Name() string      { return "ollama" }
func (p *OllamaProvider) Dimension() int    { return p.dim }
func (p *OllamaProvider) MaxBatchSize() int { return 100 }

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: ollama embed of text %d failed: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(msg))
	}
	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}
