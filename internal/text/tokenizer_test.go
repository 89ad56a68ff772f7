package text

import (
	"reflect"
	"testing"
)

func TestDefaultTokenizerLowercasesAndSplits(t *testing.T) {
	got := DefaultTokenizer.Tokenize("Hello, World! 123")
	want := []string{"hello", "world", "123"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDefaultTokenizerNFKCNormalizesCompatibilityForms(t *testing.T) {
	// "①" (CIRCLED DIGIT ONE, category No) isn't unicode.IsDigit and would
	// otherwise be dropped as punctuation; NFKC decomposes it to plain "1"
	// before the digit/letter scan runs, folding it into the run.
	got := DefaultTokenizer.Tokenize("①STANBUL")
	want := []string{"1stanbul"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCodeTokenizerSplitsCamelCase(t *testing.T) {
	got := CodeTokenizer.Tokenize("getHTTPServer")
	if got[0] != "getHTTPServer" {
		t.Fatalf("expected original token first, got %v", got)
	}
	found := map[string]bool{}
	for _, tok := range got {
		found[tok] = true
	}
	for _, want := range []string{"get", "http", "server"} {
		if !found[want] {
			t.Fatalf("expected sub-token %q in %v", want, got)
		}
	}
}

func TestCodeTokenizerSplitsSnakeAndKebabCase(t *testing.T) {
	got := CodeTokenizer.Tokenize("max_query_string-length")
	found := map[string]bool{}
	for _, tok := range got {
		found[tok] = true
	}
	for _, want := range []string{"max", "query", "string", "length"} {
		if !found[want] {
			t.Fatalf("expected sub-token %q in %v", want, got)
		}
	}
}

func TestTokenizerRegistryFallsBackCodeASTToCode(t *testing.T) {
	r := NewTokenizerRegistry()
	ast, ok := r.Get("code-ast")
	if !ok {
		t.Fatalf("expected code-ast to be registered")
	}
	code, _ := r.Get("code")
	if !reflect.DeepEqual(ast.Tokenize("getHTTPServer"), code.Tokenize("getHTTPServer")) {
		t.Fatalf("expected code-ast to alias code until an AST walker exists")
	}
}

func TestTokenizerRegistryDefaultsEmptyNameToDefault(t *testing.T) {
	r := NewTokenizerRegistry()
	got, ok := r.Get("")
	if !ok {
		t.Fatalf("expected empty name to resolve to the default tokenizer")
	}
	if !reflect.DeepEqual(got.Tokenize("Hello World"), DefaultTokenizer.Tokenize("Hello World")) {
		t.Fatalf("expected default tokenizer for empty name")
	}
}
