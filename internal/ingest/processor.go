// Package ingest implements the named, ordered processor chains that run
// over a document before it reaches a backend writer (spec.md §4.5).
package ingest

import (
	"time"

	"github.com/prism-search/prism/internal/document"
)

// Processor transforms a document in place, returning an error if it
// cannot be applied. A processor must not hold document state across
// calls; all per-call state comes from its fields set at construction.
type Processor interface {
	// Name identifies the processor kind for logging and error messages
	// (e.g. "lowercase", "html_strip").
	Name() string

	// Apply runs the processor against doc, mutating its Fields map.
	Apply(doc *document.Document, now func() time.Time) error
}
