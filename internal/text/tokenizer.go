// Package text implements the inverted-index backend: tokenization,
// segment writing, BM25-scored search, and top-terms/aggregation support
// (spec.md §4.2).
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// lowerCaser performs Unicode-aware lowercasing (full case folding, not
// just ASCII) so that terms from any script normalize to the same index
// token regardless of the writing system a document uses.
var lowerCaser = cases.Lower(language.Und)

// Tokenizer splits a field's string value into a sequence of index terms.
type Tokenizer interface {
	Tokenize(s string) []string
}

// TokenizerFunc adapts a function to a Tokenizer.
type TokenizerFunc func(s string) []string

func (f TokenizerFunc) Tokenize(s string) []string { return f(s) }

// DefaultTokenizer NFKC-normalizes, splits on whitespace and punctuation,
// and lowercases.
var DefaultTokenizer Tokenizer = TokenizerFunc(defaultTokenize)

func defaultTokenize(s string) []string {
	s = norm.NFKC.String(s)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, lowerCaser.String(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// CodeTokenizer splits on camelCase/PascalCase/snake_case/kebab-case
// boundaries, emitting the original token, each lowercased sub-token, and
// digit runs as separate terms.
var CodeTokenizer Tokenizer = TokenizerFunc(codeTokenize)

func codeTokenize(s string) []string {
	s = norm.NFKC.String(s)
	var out []string
	for _, word := range splitWordBoundaries(s) {
		if word == "" {
			continue
		}
		out = append(out, word)
		for _, sub := range splitCaseBoundaries(word) {
			lower := lowerCaser.String(sub)
			if lower != word {
				out = append(out, lower)
			}
		}
	}
	return out
}

// splitWordBoundaries splits on whitespace, punctuation other than
// underscore/hyphen (which are handled by splitCaseBoundaries), keeping
// identifier-like runs intact.
func splitWordBoundaries(s string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// splitCaseBoundaries splits one identifier-like word on snake_case,
// kebab-case, camelCase, and PascalCase boundaries, plus digit runs.
func splitCaseBoundaries(word string) []string {
	var parts []string
	var cur []rune
	flushKind := rune(0) // 0=none, 'a'=letter-lower, 'A'=letter-upper, '0'=digit
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, string(cur))
			cur = nil
		}
	}
	runes := []rune(word)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			flush()
			flushKind = 0
			continue
		case unicode.IsDigit(r):
			if flushKind != '0' {
				flush()
			}
			flushKind = '0'
		case unicode.IsUpper(r):
			// Start a new part on a case transition, but keep runs of
			// upper-case letters together (e.g. "HTTPServer" -> "HTTP","Server").
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if flushKind == 'a' || (flushKind == 'A' && nextLower && prevLower == false && len(cur) > 0) {
				flush()
			}
			flushKind = 'A'
		default: // lowercase letter
			if flushKind == '0' {
				flush()
			}
			flushKind = 'a'
		}
		cur = append(cur, r)
	}
	flush()
	return parts
}

// registry maps tokenizer name to implementation, per the schema's
// per-field `tokenizer` selection (spec.md §6).
type registry struct {
	byName map[string]Tokenizer
}

// NewTokenizerRegistry returns a registry pre-populated with the required
// built-in tokenizers. "code-ast" is registered as an alias for "code":
// spec.md §4.2 itself requires falling back to "code" whenever the
// language can't be detected, and this tree has no AST walker for any
// language, so every code-ast field takes that fallback path.
func NewTokenizerRegistry() *registry {
	return &registry{byName: map[string]Tokenizer{
		"default":  DefaultTokenizer,
		"code":     CodeTokenizer,
		"code-ast": CodeTokenizer,
	}}
}

func (r *registry) Register(name string, t Tokenizer) { r.byName[name] = t }

func (r *registry) Get(name string) (Tokenizer, bool) {
	if name == "" {
		name = "default"
	}
	t, ok := r.byName[name]
	return t, ok
}
