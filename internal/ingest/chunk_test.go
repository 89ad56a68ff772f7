package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/prism-search/prism/internal/document"
)

func TestChunkProcessorSplitsOversizedField(t *testing.T) {
	p, _ := Build(PipelineConfig{
		Name: "passages",
		Steps: []StepConfig{
			{Chunk: &ChunkStepConfig{Field: "body", ChunkSize: 40, ChunkOverlap: 5, MinChunkSize: 1}},
		},
	})

	body := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 5)
	doc := document.Document{ID: "1", Fields: map[string]document.Value{"body": document.Text(body)}}

	out, err := p.Process(doc, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, ok := out.Fields["body_passages"].AsString()
	if !ok {
		t.Fatalf("expected body_passages to be set")
	}
	var passages []string
	if err := json.Unmarshal([]byte(raw), &passages); err != nil {
		t.Fatalf("expected valid JSON array, got %q: %v", raw, err)
	}
	if len(passages) < 2 {
		t.Fatalf("expected multiple passages for oversized field, got %d", len(passages))
	}
	for _, chunk := range passages {
		if len(chunk) > 60 {
			t.Fatalf("expected chunks bounded near chunk size + overlap, got length %d", len(chunk))
		}
	}

	// original field untouched
	if s, _ := out.Fields["body"].AsString(); s != body {
		t.Fatalf("expected body field to be left unchanged")
	}
}

func TestChunkProcessorLeavesShortFieldUnsplit(t *testing.T) {
	p, _ := Build(PipelineConfig{
		Name:  "passages",
		Steps: []StepConfig{{Chunk: &ChunkStepConfig{Field: "body"}}},
	})
	doc := document.Document{ID: "1", Fields: map[string]document.Value{"body": document.Text("short text")}}

	out, err := p.Process(doc, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _ := out.Fields["body_passages"].AsString()
	var passages []string
	if err := json.Unmarshal([]byte(raw), &passages); err != nil {
		t.Fatalf("expected valid JSON array, got %q: %v", raw, err)
	}
	if len(passages) != 1 || passages[0] != "short text" {
		t.Fatalf("expected single passage matching input, got %v", passages)
	}
}

func TestChunkProcessorMissingFieldErrors(t *testing.T) {
	p, _ := Build(PipelineConfig{
		Name:  "passages",
		Steps: []StepConfig{{Chunk: &ChunkStepConfig{Field: "body"}}},
	})
	doc := document.Document{ID: "1", Fields: map[string]document.Value{}}
	if _, err := p.Process(doc, fixedNow); err == nil {
		t.Fatalf("expected an error for a missing field")
	}
}
