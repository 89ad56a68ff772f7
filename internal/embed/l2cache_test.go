package embed

import (
	"context"
	"path/filepath"
	"testing"
)

// modernc.org/sqlite is a pure-Go driver, so these tests exercise a
// real on-disk WAL database rather than mocking database/sql: the
// dynamic IN(...) placeholder list MultiGet builds isn't a good fit
// for DATA-DOG/go-sqlmock's literal query matching.
func newTestL2Cache(t *testing.T) *L2Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "embeddings.db")
	c, err := NewL2Cache(path)
	if err != nil {
		t.Fatalf("NewL2Cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestL2CachePipelinedPutThenMultiGet(t *testing.T) {
	c := newTestL2Cache(t)
	ctx := context.Background()

	entries := map[string][]float32{
		"a": {1, 2, 3},
		"b": {4, 5, 6},
	}
	if err := c.PipelinedPut(ctx, entries); err != nil {
		t.Fatalf("PipelinedPut: %v", err)
	}

	got, err := c.MultiGet(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d: %v", len(got), got)
	}
	if got["a"][0] != 1 || got["a"][1] != 2 || got["a"][2] != 3 {
		t.Fatalf("got wrong vector for a: %v", got["a"])
	}
	if _, ok := got["missing"]; ok {
		t.Fatalf("did not expect a hit for an unwritten key")
	}
}

func TestL2CachePipelinedPutUpdatesExistingKey(t *testing.T) {
	c := newTestL2Cache(t)
	ctx := context.Background()

	if err := c.PipelinedPut(ctx, map[string][]float32{"a": {1, 1, 1}}); err != nil {
		t.Fatalf("PipelinedPut: %v", err)
	}
	if err := c.PipelinedPut(ctx, map[string][]float32{"a": {9, 9, 9}}); err != nil {
		t.Fatalf("PipelinedPut overwrite: %v", err)
	}

	got, err := c.MultiGet(ctx, []string{"a"})
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	if got["a"][0] != 9 {
		t.Fatalf("expected overwrite to take effect, got %v", got["a"])
	}
}

func TestL2CacheMultiGetEmptyKeysReturnsEmpty(t *testing.T) {
	c := newTestL2Cache(t)
	got, err := c.MultiGet(context.Background(), nil)
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result for empty key set, got %v", got)
	}
}

func TestL2CachePipelinedPutEmptyIsNoop(t *testing.T) {
	c := newTestL2Cache(t)
	if err := c.PipelinedPut(context.Background(), nil); err != nil {
		t.Fatalf("PipelinedPut with no entries should not error: %v", err)
	}
}

func TestEncodeDecodeVectorRoundTrips(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e10}
	got := decodeVector(encodeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], vec[i])
		}
	}
}
