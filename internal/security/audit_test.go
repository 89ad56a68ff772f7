package security

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prism-search/prism/internal/audit"
	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/ingest"
)

type fakeIndexer struct {
	mu   sync.Mutex
	done chan struct{}
	last struct {
		collection string
		docs       []document.Document
	}
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{done: make(chan struct{}, 1)}
}

func (f *fakeIndexer) Index(_ context.Context, collection string, docs []document.Document) ([]ingest.FailedDocument, error) {
	f.mu.Lock()
	f.last.collection = collection
	f.last.docs = docs
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil, nil
}

func testAuditLogger(t *testing.T) *audit.Logger {
	t.Helper()
	cfg := audit.DefaultConfig()
	cfg.Enabled = true
	logger, err := audit.NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestRequestAuditorIndexesWhenEnabled(t *testing.T) {
	indexer := newFakeIndexer()
	auditor := NewRequestAuditor(testAuditLogger(t), indexer, true)

	auditor.Record(context.Background(), Principal{ID: "writer"}, "docs-en", "search", true, "ok", 5*time.Millisecond)

	select {
	case <-indexer.done:
	case <-time.After(time.Second):
		t.Fatal("expected fire-and-forget indexing to run")
	}

	indexer.mu.Lock()
	defer indexer.mu.Unlock()
	if indexer.last.collection != ReservedAuditCollection {
		t.Fatalf("expected indexing into %q, got %q", ReservedAuditCollection, indexer.last.collection)
	}
	if len(indexer.last.docs) != 1 {
		t.Fatalf("expected one audit document, got %d", len(indexer.last.docs))
	}
}

func TestRequestAuditorSkipsIndexingWhenDisabled(t *testing.T) {
	indexer := newFakeIndexer()
	auditor := NewRequestAuditor(testAuditLogger(t), indexer, false)

	auditor.Record(context.Background(), Principal{ID: "writer"}, "docs-en", "search", true, "ok", time.Millisecond)

	select {
	case <-indexer.done:
		t.Fatal("expected no indexing call when index_to_collection is disabled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestAuditorNilSafe(t *testing.T) {
	var auditor *RequestAuditor
	auditor.Record(context.Background(), Principal{ID: "writer"}, "docs", "search", true, "ok", time.Millisecond)
}
