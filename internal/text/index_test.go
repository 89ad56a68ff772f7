package text

import (
	"context"
	"testing"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/storage"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	layout := FieldLayout{
		"title": {Stored: true, Indexed: true, Tokenizer: "default"},
		"body":  {Stored: true, Indexed: true, Tokenizer: "default"},
	}
	return NewIndex("articles/text/0", store, layout, NewTokenizerRegistry(), DefaultBM25Params, nil, false)
}

func TestIndexWriteCommitReloadSearch(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	w := ix.NewWriter()
	if err := w.Add(document.Document{ID: "1", Fields: map[string]document.Value{
		"title": document.Text("the quick brown fox"),
		"body":  document.Text("jumps over the lazy dog"),
	}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Add(document.Document{ID: "2", Fields: map[string]document.Value{
		"title": document.Text("lazy cat sleeps"),
		"body":  document.Text("all day long"),
	}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ix.Commit(ctx, w); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	res, err := ix.Search("lazy", 50, 10, 0)
	if err != nil {
		t.Fatalf("search before reload should succeed (and find nothing): %v", err)
	}
	if len(res.Hits) != 0 {
		t.Fatalf("expected no visible hits before an explicit Reload, got %d", len(res.Hits))
	}

	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	res, err = ix.Search("lazy", 50, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 hits for 'lazy', got %d: %+v", len(res.Hits), res.Hits)
	}
}

func TestIndexSearchFieldScopedTerm(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)
	w := ix.NewWriter()
	_ = w.Add(document.Document{ID: "1", Fields: map[string]document.Value{
		"title": document.Text("fox"),
		"body":  document.Text("unrelated"),
	}})
	_ = w.Add(document.Document{ID: "2", Fields: map[string]document.Value{
		"title": document.Text("unrelated"),
		"body":  document.Text("fox"),
	}})
	if err := ix.Commit(ctx, w); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	res, err := ix.Search("title:fox", 50, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].DocID != "1" {
		t.Fatalf("expected only doc 1 to match title:fox, got %+v", res.Hits)
	}
}

func TestIndexSearchPhraseRequiresAdjacency(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)
	w := ix.NewWriter()
	_ = w.Add(document.Document{ID: "1", Fields: map[string]document.Value{"body": document.Text("quick brown fox")}})
	_ = w.Add(document.Document{ID: "2", Fields: map[string]document.Value{"body": document.Text("brown quick fox")}})
	if err := ix.Commit(ctx, w); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	res, err := ix.Search(`"quick brown"`, 50, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].DocID != "1" {
		t.Fatalf("expected only doc 1 to match the exact phrase, got %+v", res.Hits)
	}
}

func TestIndexDeleteTombstonesCommittedDocument(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	w := ix.NewWriter()
	_ = w.Add(document.Document{ID: "1", Fields: map[string]document.Value{"title": document.Text("fox")}})
	_ = w.Add(document.Document{ID: "2", Fields: map[string]document.Value{"title": document.Text("fox")}})
	if err := ix.Commit(ctx, w); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if err := ix.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload after delete failed: %v", err)
	}

	res, err := ix.Search("fox", 50, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].DocID != "2" {
		t.Fatalf("expected only doc 2 to remain live, got %+v", res.Hits)
	}
}

func TestIndexReloadPicksUpLaterSegments(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	w1 := ix.NewWriter()
	_ = w1.Add(document.Document{ID: "1", Fields: map[string]document.Value{"title": document.Text("alpha")}})
	if err := ix.Commit(ctx, w1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	w2 := ix.NewWriter()
	_ = w2.Add(document.Document{ID: "2", Fields: map[string]document.Value{"title": document.Text("beta")}})
	if err := ix.Commit(ctx, w2); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	res, _ := ix.Search("beta", 50, 10, 0)
	if len(res.Hits) != 0 {
		t.Fatalf("expected the second segment to stay invisible until Reload")
	}

	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	res, _ = ix.Search("alpha OR beta", 50, 10, 0)
	if len(res.Hits) != 2 {
		t.Fatalf("expected both segments visible after reload, got %+v", res.Hits)
	}
}
