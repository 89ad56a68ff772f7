package ingest

import (
	"fmt"
	"time"

	"github.com/prism-search/prism/internal/document"
)

// Pipeline is a named, ordered processor chain (spec.md §4.5).
type Pipeline struct {
	Name       string
	Processors []Processor
}

// Process runs every processor over doc in order, stopping at the first
// failure. Callers processing a batch should isolate a per-document
// failure with ProcessBatch rather than calling Process directly in a
// loop, so one bad document doesn't abort the rest.
func (p *Pipeline) Process(doc document.Document, now func() time.Time) (document.Document, error) {
	out := doc.Clone()
	for _, proc := range p.Processors {
		if err := proc.Apply(&out, now); err != nil {
			return document.Document{}, fmt.Errorf("pipeline %s: processor %s: %w", p.Name, proc.Name(), err)
		}
	}
	return out, nil
}

// FailedDocument records a document excluded from a batch by a processor
// failure, per spec.md §4.5's per-document isolation rule.
type FailedDocument struct {
	DocID string
	Error string
}

// ProcessBatch runs the pipeline over every document in docs. A document
// whose processing fails is excluded from the returned slice and recorded
// in the failures list; the remaining documents still proceed.
func (p *Pipeline) ProcessBatch(docs []document.Document, now func() time.Time) ([]document.Document, []FailedDocument) {
	processed := make([]document.Document, 0, len(docs))
	var failed []FailedDocument
	for _, doc := range docs {
		out, err := p.Process(doc, now)
		if err != nil {
			failed = append(failed, FailedDocument{DocID: doc.ID, Error: err.Error()})
			continue
		}
		processed = append(processed, out)
	}
	return processed, failed
}
