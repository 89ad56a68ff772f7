package embed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/prism-search/prism/internal/perr"
)

// AnthropicScorer implements rank.CrossEncoderScorer by asking a Claude
// model to rate the relevance of a (query, text) pair on a 0-1 scale
// (spec.md §4.7's cross-encoder reranking mode).
type AnthropicScorer struct {
	client anthropic.Client
}

// AnthropicScorerConfig configures an AnthropicScorer.
type AnthropicScorerConfig struct {
	APIKey  string
	BaseURL string
}

// NewAnthropicScorer constructs an AnthropicScorer.
func NewAnthropicScorer(cfg AnthropicScorerConfig) (*AnthropicScorer, error) {
	if cfg.APIKey == "" {
		return nil, perr.Configuration("embed.scorer_api_key", "anthropic API key is required")
	}
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicScorer{client: anthropic.NewClient(options...)}, nil
}

const scorerSystemPrompt = `You rate how relevant a passage is to a search query.
Respond with a single number between 0 and 1, where 0 means completely
irrelevant and 1 means a perfect match. Output only the number, nothing else.`

// Score asks model to rate how relevant text is to query, returning a
// value in [0, 1]. Any malformed model response is a non-retryable
// error; the caller (rank.Rerank) falls back to the first-phase score.
func (s *AnthropicScorer) Score(ctx context.Context, model, query, text string) (float64, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 16,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: scorerSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Query: %s\n\nPassage: %s", query, text),
			)),
		},
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return 0, perr.Backend("embed.scorer_request", err)
	}

	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		raw := strings.TrimSpace(block.Text)
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, perr.Backend("embed.scorer_parse", fmt.Errorf("non-numeric scorer response %q: %w", raw, err))
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		return score, nil
	}
	return 0, perr.Backend("embed.scorer_parse", fmt.Errorf("scorer response had no text content"))
}
