package vector

import (
	"context"
	"testing"

	"github.com/prism-search/prism/internal/storage"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewIndex("articles/vector/0", store, MetricEuclidean, DefaultParams)
}

func TestIndexWriteCommitReloadSearch(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	w := ix.NewWriter()
	w.Upsert("1", []float32{0, 0})
	w.Upsert("2", []float32{10, 10})
	if err := ix.Commit(ctx, w); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	hits := ix.Search([]float32{0, 0}, 2)
	if len(hits) != 0 {
		t.Fatalf("expected no visible hits before an explicit Reload, got %d", len(hits))
	}

	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	hits = ix.Search([]float32{0, 0}, 2)
	if len(hits) != 2 || hits[0].DocID != "1" {
		t.Fatalf("expected doc 1 closest, got %+v", hits)
	}
}

func TestIndexUpsertTombstonesOlderCopy(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	w1 := ix.NewWriter()
	w1.Upsert("1", []float32{100, 100})
	if err := ix.Commit(ctx, w1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	w2 := ix.NewWriter()
	w2.Upsert("1", []float32{0, 0})
	if err := ix.Commit(ctx, w2); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	vec, ok := ix.Vector("1")
	if !ok || vec[0] != 0 {
		t.Fatalf("expected the newest upserted vector to be live, got %+v ok=%v", vec, ok)
	}

	hits := ix.Search([]float32{0, 0}, 5)
	if len(hits) != 1 {
		t.Fatalf("expected exactly one live hit for doc 1 after upsert, got %+v", hits)
	}
}

func TestIndexDeleteRemovesFromSearch(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	w := ix.NewWriter()
	w.Upsert("1", []float32{0, 0})
	w.Upsert("2", []float32{1, 1})
	if err := ix.Commit(ctx, w); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	w2 := ix.NewWriter()
	w2.Delete("1")
	if err := ix.Commit(ctx, w2); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	hits := ix.Search([]float32{0, 0}, 5)
	for _, h := range hits {
		if h.DocID == "1" {
			t.Fatalf("expected doc 1 to be deleted, found in hits: %+v", hits)
		}
	}
	if _, ok := ix.Vector("1"); ok {
		t.Fatalf("expected doc 1 to be absent after delete")
	}
}

func TestIndexCompactionMergesCandidateSegments(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	w1 := ix.NewWriter()
	w1.Upsert("1", []float32{0, 0})
	w1.Upsert("2", []float32{1, 1})
	if err := ix.Commit(ctx, w1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	// Tombstone doc 1 via upsert, pushing segment 0's tombstone ratio to 1/2.
	w2 := ix.NewWriter()
	w2.Upsert("1", []float32{9, 9})
	if err := ix.Commit(ctx, w2); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	candidates := ix.CompactionCandidates()
	if len(candidates) != 1 || candidates[0] != 0 {
		t.Fatalf("expected segment 0 to be a compaction candidate, got %+v", candidates)
	}

	if err := ix.Compact(ctx, candidates); err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	if err := ix.Reload(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if len(ix.CompactionCandidates()) != 0 {
		t.Fatalf("expected no compaction candidates after compacting")
	}

	hits := ix.Search([]float32{1, 1}, 5)
	found := map[string]bool{}
	for _, h := range hits {
		found[h.DocID] = true
	}
	if !found["2"] || !found["1"] {
		t.Fatalf("expected both live docs to survive compaction, got %+v", hits)
	}
}
