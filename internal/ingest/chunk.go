package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// defaultSeparators is the hierarchy a ChunkProcessor splits on, largest
// semantic unit first: paragraph, line, sentence, clause, word,
// character. Each level is tried only once the levels above it have
// failed to produce a piece under ChunkSize.
var defaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " ", ""}

// ChunkProcessor splits an oversized text field into overlapping passages
// and stores them as a JSON array under Field+"_passages", leaving Field
// itself untouched. A schema can mark the passages field for per-passage
// embedding so a long document's semantic recall isn't diluted by
// averaging one vector over its entire length.
type ChunkProcessor struct {
	Field        string
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

func (p *ChunkProcessor) Name() string { return "chunk" }

func (p *ChunkProcessor) Apply(doc *document.Document, _ func() time.Time) error {
	v, ok := doc.Fields[p.Field]
	if !ok {
		return perr.Input("ingest.chunk.missing_field", "chunk: field "+p.Field+" is missing")
	}
	s, ok := v.AsString()
	if !ok {
		return perr.Input("ingest.chunk.not_a_string", "chunk: field "+p.Field+" is not a string")
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}

	size := p.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := p.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	minSize := p.MinChunkSize
	if minSize <= 0 {
		minSize = 100
	}

	raw := splitRecursive(s, defaultSeparators, size, minSize)
	passages := mergeWithOverlap(raw, overlap)
	if len(passages) == 0 {
		return nil
	}

	encoded, _ := json.Marshal(passages)
	doc.Fields[p.Field+"_passages"] = document.String(string(encoded))
	return nil
}

// splitRecursive tries separators in order, falling back to the next one
// whenever a piece still exceeds size; pieces under minSize are merged
// into the chunk being accumulated rather than emitted on their own.
func splitRecursive(text string, separators []string, size, minSize int) []string {
	if len(text) == 0 {
		return nil
	}
	separator := ""
	for _, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = strings.Split(text, "")
	} else {
		splits = strings.Split(text, separator)
	}

	var result []string
	var current strings.Builder
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			result = append(result, chunk)
		}
		current.Reset()
	}

	for i, split := range splits {
		piece := split
		if separator != "" && i < len(splits)-1 {
			piece += separator
		}

		if current.Len() >= minSize && current.Len()+len(piece) > size {
			flush()
		}

		if len(piece) > size && len(separators) > 1 {
			flush()
			result = append(result, splitRecursive(piece, nextSeparators(separators, separator), size, minSize)...)
			continue
		}
		current.WriteString(piece)
	}
	flush()

	return result
}

func nextSeparators(separators []string, used string) []string {
	for i, sep := range separators {
		if sep == used {
			return separators[i+1:]
		}
	}
	return nil
}

func mergeWithOverlap(chunks []string, overlap int) []string {
	if len(chunks) <= 1 || overlap <= 0 {
		return chunks
	}
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		if i == 0 {
			out[i] = chunk
			continue
		}
		prev := chunks[i-1]
		n := overlap
		if n > len(prev) {
			n = len(prev)
		}
		out[i] = prev[len(prev)-n:] + chunk
	}
	return out
}
