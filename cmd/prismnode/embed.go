package main

import (
	"context"
	"log/slog"

	"github.com/prism-search/prism/internal/config"
	"github.com/prism-search/prism/internal/embed"
)

// buildEmbedder wires the provider-agnostic embedding layer (spec.md
// §4.8) from configuration. It returns nil if no provider is
// configured — collections whose schema calls for auto-embedding then
// fail at load/index time rather than at startup, the same deferred
// failure buildStore's callers already accept for optional tiers.
func buildEmbedder(ctx context.Context, cfg config.EmbeddingConfig, log *slog.Logger) (*embed.Embedder, error) {
	if len(cfg.Providers) == 0 {
		return nil, nil
	}

	providers := make(map[string]embed.Provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		provider, err := buildProvider(ctx, name, pc)
		if err != nil {
			return nil, err
		}
		// The registry keys by model_id, which a schema's auto-embedding
		// config names directly; each configured provider publishes
		// itself under its own model name.
		providers[pc.Model] = provider
	}
	registry := embed.NewRegistry(providers)

	l1 := embed.NewL1Cache(int64(cfg.Cache.L1Size) * (1 << 10))
	var l2 *embed.L2Cache
	if cfg.Cache.L2Path != "" {
		var err error
		l2, err = embed.NewL2Cache(cfg.Cache.L2Path)
		if err != nil {
			return nil, err
		}
	}

	return embed.NewEmbedder(registry, l1, l2, embed.Config{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
	}, log), nil
}

func buildProvider(ctx context.Context, name string, pc config.ProviderConfig) (embed.Provider, error) {
	switch name {
	case "openai":
		return embed.NewOpenAIProvider(embed.OpenAIConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: pc.Model})
	case "ollama":
		return embed.NewOllamaProvider(embed.OllamaConfig{BaseURL: pc.BaseURL, Model: pc.Model}), nil
	case "gemini":
		return embed.NewGeminiProvider(ctx, embed.GeminiConfig{APIKey: pc.APIKey, Model: pc.Model})
	default:
		return nil, nil
	}
}
