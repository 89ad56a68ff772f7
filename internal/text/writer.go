package text

import (
	"fmt"
	"time"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// FieldConfig is the resolved per-field layout the writer and scorer need:
// whether the field is stored/indexed and which tokenizer indexes it.
type FieldConfig struct {
	Stored    bool
	Indexed   bool
	Tokenizer string
}

// FieldLayout maps field name to its resolved configuration.
type FieldLayout map[string]FieldConfig

// Writer buffers documents for one active segment. It is not safe for
// concurrent use; a collection's per-collection write lock (spec.md
// §4.9) serializes access.
type Writer struct {
	layout      FieldLayout
	tokenizers  *registry
	stampIndexedAt bool
	now         func() time.Time

	seg *Segment
}

// NewWriter constructs a Writer over layout using tokenizers to resolve
// each field's configured tokenizer by name.
func NewWriter(id int64, layout FieldLayout, tokenizers *registry, stampIndexedAt bool) *Writer {
	return &Writer{
		layout:         layout,
		tokenizers:     tokenizers,
		stampIndexedAt: stampIndexedAt,
		now:            time.Now,
		seg:            newSegment(id),
	}
}

// Add indexes and stores one document into the active segment.
func (w *Writer) Add(doc document.Document) error {
	doc = doc.Clone()
	if w.stampIndexedAt {
		doc.Fields["_indexed_at"] = document.I64(w.now().UTC().UnixMicro())
	}

	w.seg.stored[doc.ID] = doc
	w.seg.docCount++

	for field, v := range doc.Fields {
		cfg, ok := w.layout[field]
		if !ok || !cfg.Indexed {
			continue
		}
		s, ok := v.AsString()
		if !ok {
			continue
		}
		tok, ok := w.tokenizers.Get(cfg.Tokenizer)
		if !ok {
			return perr.Backend("text.unknown_tokenizer", fmt.Errorf("unknown tokenizer %q for field %q", cfg.Tokenizer, field))
		}
		terms := tok.Tokenize(s)
		w.indexTerms(field, doc.ID, terms)
	}
	return nil
}

func (w *Writer) indexTerms(field, docID string, terms []string) {
	fp, ok := w.seg.postings[field]
	if !ok {
		fp = make(fieldPostings)
		w.seg.postings[field] = fp
	}
	positions := make(map[string][]int, len(terms))
	for pos, term := range terms {
		positions[term] = append(positions[term], pos)
	}
	for term, positionsList := range positions {
		fp[term] = append(fp[term], posting{DocID: docID, TermFreq: len(positionsList), Positions: positionsList})
	}

	byDoc, ok := w.seg.docLen[field]
	if !ok {
		byDoc = make(map[string]int)
		w.seg.docLen[field] = byDoc
	}
	byDoc[docID] = len(terms)
}

// Delete tombstones docID within this not-yet-committed segment (used
// when a bulk request upserts and deletes the same id before commit).
func (w *Writer) Delete(docID string) {
	w.seg.tombstones[docID] = true
}

// Len reports how many documents are currently buffered in this writer's
// active segment.
func (w *Writer) Len() int { return w.seg.docCount }

// Commit finalizes and returns the segment. The Writer must not be reused
// afterward.
func (w *Writer) Commit() *Segment {
	w.seg.finalize()
	return w.seg
}
