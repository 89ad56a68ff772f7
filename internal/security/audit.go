package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prism-search/prism/internal/audit"
	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/ingest"
)

// ReservedAuditCollection is the collection name every request audit
// event is indexed into when index_to_collection is enabled (spec.md
// §4.11). Collection schema loading MUST treat this name as reserved the
// same way "_" prefixes are reserved in ES-style systems.
const ReservedAuditCollection = "_audit"

// Indexer is the narrow slice of collection.Manager the auditor needs,
// kept separate so internal/security never imports internal/collection
// directly (the same narrow-interface pattern internal/federation uses
// for its peer RPC surface).
type Indexer interface {
	Index(ctx context.Context, collection string, docs []document.Document) ([]ingest.FailedDocument, error)
}

// RequestAuditor emits one AuditEvent per request to the log sink, and —
// when configured to — fire-and-forget indexes the same event into
// ReservedAuditCollection. Indexing failures are logged and otherwise
// swallowed; they never fail the request that triggered them.
type RequestAuditor struct {
	log               *audit.Logger
	indexer           Indexer
	indexToCollection bool
}

// NewRequestAuditor builds a RequestAuditor. indexer may be nil, in which
// case only the log sink receives events regardless of indexToCollection.
func NewRequestAuditor(log *audit.Logger, indexer Indexer, indexToCollection bool) *RequestAuditor {
	return &RequestAuditor{log: log, indexer: indexer, indexToCollection: indexToCollection}
}

// Record emits the audit event for one completed request. principal.ID may
// be empty for a request that failed authentication before a principal
// was resolved.
func (a *RequestAuditor) Record(ctx context.Context, principal Principal, collection, action string, allowed bool, code string, duration time.Duration) {
	if a == nil {
		return
	}
	if a.log != nil {
		a.log.LogRequest(ctx, principal.ID, collection, action, allowed, code, duration)
	}
	if a.indexer == nil || !a.indexToCollection {
		return
	}
	go a.indexFireAndForget(principal, collection, action, allowed, code, duration)
}

func (a *RequestAuditor) indexFireAndForget(principal Principal, collection, action string, allowed bool, code string, duration time.Duration) {
	doc := document.Document{
		ID: uuid.NewString(),
		Fields: map[string]document.Value{
			"principal":   document.String(principal.ID),
			"collection":  document.String(collection),
			"action":      document.String(action),
			"allowed":     document.Bool(allowed),
			"code":        document.String(code),
			"duration_ms": document.I64(duration.Milliseconds()),
			"indexed_at":  document.Timestamp(time.Now()),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := a.indexer.Index(ctx, ReservedAuditCollection, []document.Document{doc}); err != nil {
		slog.Default().Warn("audit event indexing failed", "error", err)
	}
}
