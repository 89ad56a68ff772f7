package ingest

import (
	"testing"
	"time"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

func fixedNow() time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
}

func TestPipelineLowercaseAndSetNow(t *testing.T) {
	p, err := Build(PipelineConfig{
		Name: "normalize",
		Steps: []StepConfig{
			{Lowercase: "title"},
			{Set: &SetStepConfig{Field: "indexed_at", Value: "{{_now}}"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := document.Document{ID: "6", Fields: map[string]document.Value{
		"title":   document.Text("UPPER"),
		"content": document.Text("x"),
	}}

	out, err := p.Process(doc, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := out.Fields["title"].AsString(); s != "upper" {
		t.Fatalf("expected title 'upper', got %q", s)
	}
	stamped, _ := out.Fields["indexed_at"].AsString()
	if !containsT(stamped) {
		t.Fatalf("expected indexed_at to look like an RFC3339 timestamp, got %q", stamped)
	}
}

func containsT(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] >= '0' && s[i] <= '9' && s[i+1] == 'T' {
			return true
		}
	}
	return false
}

func TestPipelineIsIdempotentOnNormalizedForm(t *testing.T) {
	p, _ := Build(PipelineConfig{
		Name: "normalize",
		Steps: []StepConfig{
			{Lowercase: "title"},
		},
	})
	doc := document.Document{ID: "1", Fields: map[string]document.Value{"title": document.Text("already lower")}}

	once, err := p.Process(doc, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := p.Process(once, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s1, _ := once.Fields["title"].AsString()
	s2, _ := twice.Fields["title"].AsString()
	if s1 != s2 {
		t.Fatalf("expected idempotent lowercase, got %q then %q", s1, s2)
	}
}

func TestPipelineHTMLStrip(t *testing.T) {
	p, _ := Build(PipelineConfig{Name: "strip", Steps: []StepConfig{{HTMLStrip: "body"}}})
	doc := document.Document{ID: "1", Fields: map[string]document.Value{"body": document.Text("<p>hello <b>world</b></p>")}}
	out, err := p.Process(doc, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := out.Fields["body"].AsString(); s != "hello world" {
		t.Fatalf("expected 'hello world', got %q", s)
	}
}

func TestPipelineRemoveNeverErrors(t *testing.T) {
	p, _ := Build(PipelineConfig{Name: "clean", Steps: []StepConfig{{Remove: "nonexistent"}}})
	doc := document.Document{ID: "1", Fields: map[string]document.Value{}}
	if _, err := p.Process(doc, fixedNow); err != nil {
		t.Fatalf("expected remove of a missing field to succeed, got %v", err)
	}
}

func TestPipelineRenameMissingFieldErrors(t *testing.T) {
	p, _ := Build(PipelineConfig{Name: "mv", Steps: []StepConfig{{Rename: &RenameStepConfig{From: "a", To: "b"}}}})
	doc := document.Document{ID: "1", Fields: map[string]document.Value{}}
	if _, err := p.Process(doc, fixedNow); err == nil {
		t.Fatalf("expected an error for renaming a missing field")
	}
}

func TestProcessBatchIsolatesPerDocumentFailures(t *testing.T) {
	p, _ := Build(PipelineConfig{Name: "normalize", Steps: []StepConfig{{Lowercase: "title"}}})
	docs := []document.Document{
		{ID: "ok", Fields: map[string]document.Value{"title": document.Text("HELLO")}},
		{ID: "bad", Fields: map[string]document.Value{}},
		{ID: "ok2", Fields: map[string]document.Value{"title": document.Text("WORLD")}},
	}

	processed, failed := p.ProcessBatch(docs, fixedNow)
	if len(processed) != 2 {
		t.Fatalf("expected 2 processed documents, got %d", len(processed))
	}
	if len(failed) != 1 || failed[0].DocID != "bad" {
		t.Fatalf("expected 'bad' to be isolated as a failure, got %+v", failed)
	}
}

func TestRegistryUnknownPipelineIsConfigurationError(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = r.Get("missing")
	if perr.KindOf(err) != perr.KindConfiguration {
		t.Fatalf("expected KindConfiguration, got %v", perr.KindOf(err))
	}
}

func TestBuildRejectsUnknownStep(t *testing.T) {
	_, err := Build(PipelineConfig{Name: "bad", Steps: []StepConfig{{}}})
	if err == nil {
		t.Fatalf("expected an error for a step naming no known processor")
	}
}
