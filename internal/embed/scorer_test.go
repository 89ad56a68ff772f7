package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewAnthropicScorerRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicScorer(AnthropicScorerConfig{}); err == nil {
		t.Fatalf("expected an error when APIKey is empty")
	}
}

func anthropicMessageResponse(text string) string {
	return fmt.Sprintf(`{
		"id": "msg_test",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [{"type": "text", "text": %q}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 2}
	}`, text)
}

func TestAnthropicScorerParsesNumericResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, anthropicMessageResponse("0.82"))
	}))
	defer server.Close()

	scorer, err := NewAnthropicScorer(AnthropicScorerConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropicScorer: %v", err)
	}

	score, err := scorer.Score(context.Background(), "claude-test", "query text", "passage text")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 0.82 {
		t.Fatalf("expected score 0.82, got %v", score)
	}
}

func TestAnthropicScorerClampsOutOfRangeValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, anthropicMessageResponse("1.5"))
	}))
	defer server.Close()

	scorer, err := NewAnthropicScorer(AnthropicScorerConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropicScorer: %v", err)
	}

	score, err := scorer.Score(context.Background(), "claude-test", "q", "t")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score clamped to 1, got %v", score)
	}
}

func TestAnthropicScorerRejectsNonNumericResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, anthropicMessageResponse("not a number"))
	}))
	defer server.Close()

	scorer, err := NewAnthropicScorer(AnthropicScorerConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropicScorer: %v", err)
	}

	if _, err := scorer.Score(context.Background(), "claude-test", "q", "t"); err == nil {
		t.Fatalf("expected an error for a non-numeric scorer response")
	}
}

func TestAnthropicScorerPropagatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
	}))
	defer server.Close()

	scorer, err := NewAnthropicScorer(AnthropicScorerConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropicScorer: %v", err)
	}

	if _, err := scorer.Score(context.Background(), "claude-test", "q", "t"); err == nil {
		t.Fatalf("expected an error when the backend returns a 500")
	}
}
