package ingest

import (
	"strings"
	"time"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// nowTemplate is the literal value set substitutes with the current UTC
// timestamp.
const nowTemplate = "{{_now}}"

// LowercaseProcessor replaces a field's string value with its lowercase
// form.
type LowercaseProcessor struct {
	Field string
}

func (p *LowercaseProcessor) Name() string { return "lowercase" }

func (p *LowercaseProcessor) Apply(doc *document.Document, _ func() time.Time) error {
	v, ok := doc.Fields[p.Field]
	if !ok {
		return perr.Input("ingest.lowercase.missing_field", "lowercase: field "+p.Field+" is missing")
	}
	s, ok := v.AsString()
	if !ok {
		return perr.Input("ingest.lowercase.not_a_string", "lowercase: field "+p.Field+" is not a string")
	}
	v.Str = strings.ToLower(s)
	doc.Fields[p.Field] = v
	return nil
}

// HTMLStripProcessor strips `<…>` tags from a field's string value using a
// simple state machine (no HTML parser: tags are not validated, only
// stripped character-by-character).
type HTMLStripProcessor struct {
	Field string
}

func (p *HTMLStripProcessor) Name() string { return "html_strip" }

func (p *HTMLStripProcessor) Apply(doc *document.Document, _ func() time.Time) error {
	v, ok := doc.Fields[p.Field]
	if !ok {
		return perr.Input("ingest.html_strip.missing_field", "html_strip: field "+p.Field+" is missing")
	}
	s, ok := v.AsString()
	if !ok {
		return perr.Input("ingest.html_strip.not_a_string", "html_strip: field "+p.Field+" is not a string")
	}
	v.Str = stripHTML(s)
	doc.Fields[p.Field] = v
	return nil
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SetProcessor assigns Value to Field. If Value is literally "{{_now}}"
// the current UTC timestamp (RFC 3339) is substituted instead. Never
// fails.
type SetProcessor struct {
	Field string
	Value string
}

func (p *SetProcessor) Name() string { return "set" }

func (p *SetProcessor) Apply(doc *document.Document, now func() time.Time) error {
	if p.Value == nowTemplate {
		if now == nil {
			now = time.Now
		}
		doc.Fields[p.Field] = document.String(now().UTC().Format(time.RFC3339))
		return nil
	}
	doc.Fields[p.Field] = document.String(p.Value)
	return nil
}

// RemoveProcessor deletes Field if present. Never fails.
type RemoveProcessor struct {
	Field string
}

func (p *RemoveProcessor) Name() string { return "remove" }

func (p *RemoveProcessor) Apply(doc *document.Document, _ func() time.Time) error {
	delete(doc.Fields, p.Field)
	return nil
}

// RenameProcessor moves the value at From to To.
type RenameProcessor struct {
	From string
	To   string
}

func (p *RenameProcessor) Name() string { return "rename" }

func (p *RenameProcessor) Apply(doc *document.Document, _ func() time.Time) error {
	v, ok := doc.Fields[p.From]
	if !ok {
		return perr.Input("ingest.rename.missing_field", "rename: field "+p.From+" is missing")
	}
	delete(doc.Fields, p.From)
	doc.Fields[p.To] = v
	return nil
}
