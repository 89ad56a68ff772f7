package collection

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/embed"
	"github.com/prism-search/prism/internal/hybrid"
	"github.com/prism-search/prism/internal/ingest"
	"github.com/prism-search/prism/internal/perr"
	"github.com/prism-search/prism/internal/rank"
	"github.com/prism-search/prism/internal/schema"
	"github.com/prism-search/prism/internal/storage"
	"github.com/prism-search/prism/internal/text"
	"github.com/prism-search/prism/internal/vector"
)

// defaultLockTimeout bounds how long an operation waits to acquire the
// write locks it needs before failing with no side effects (spec.md
// §4.9's critical invariant).
const defaultLockTimeout = 10 * time.Second

// Aggregator is the aggregation engine's contract as seen from the
// collection manager: run a bucket/metric spec over a materialized
// document set. internal/aggregate supplies the concrete implementation;
// Manager works against this interface so it doesn't need to import that
// package's request/response shapes directly.
type Aggregator interface {
	Run(ctx context.Context, docs []document.Document, spec map[string]any) (map[string]any, error)
}

// Collection is one loaded collection's live state: its schema, its
// backend instances, and the ingest pipeline (if any) documents are run
// through before indexing.
type Collection struct {
	Name     string
	Schema   *schema.CollectionSchema
	backends *backendSet
	pipeline *ingest.Pipeline
	now      func() time.Time
}

// Manager owns the schema registry, the set of loaded collections, and
// routes index/search/delete/aggregate/export/detach/attach/drop to the
// right backends in the right order (spec.md §4.9).
type Manager struct {
	store    storage.Store
	registry *SchemaRegistry
	ingest   *ingest.Registry
	embedder *embed.Embedder
	scorer   rank.CrossEncoderScorer
	aggr     Aggregator
	log      *slog.Logger

	locks *lockSet

	mu          sync.RWMutex
	collections map[string]*Collection
}

// ManagerDeps bundles Manager's constructor dependencies; every field but
// Store and Registry may be left zero.
type ManagerDeps struct {
	Store      storage.Store
	Registry   *SchemaRegistry
	Ingest     *ingest.Registry
	Embedder   *embed.Embedder
	Scorer     rank.CrossEncoderScorer
	Aggregator Aggregator
	Log        *slog.Logger
}

// NewManager constructs a Manager with no collections loaded yet; call
// LoadCollection (or Attach) per schema to bring one online.
func NewManager(deps ManagerDeps) *Manager {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Manager{
		store:       deps.Store,
		registry:    deps.Registry,
		ingest:      deps.Ingest,
		embedder:    deps.Embedder,
		scorer:      deps.Scorer,
		aggr:        deps.Aggregator,
		log:         deps.Log,
		locks:       newLockSet(),
		collections: make(map[string]*Collection),
	}
}

// LoadCollection builds and hot-loads the backend set for an already
// registered schema, then reloads every shard so it's immediately
// searchable.
func (m *Manager) LoadCollection(ctx context.Context, name string) (*Collection, error) {
	cs, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}

	bs, err := buildBackends(name, cs, m.store)
	if err != nil {
		return nil, err
	}
	if err := bs.reload(ctx); err != nil {
		return nil, err
	}

	var pipeline *ingest.Pipeline
	if cs.Indexing != nil && cs.Indexing.Pipeline != "" && m.ingest != nil {
		pipeline, err = m.ingest.Get(cs.Indexing.Pipeline)
		if err != nil {
			return nil, err
		}
	}

	col := &Collection{Name: name, Schema: cs, backends: bs, pipeline: pipeline, now: time.Now}

	m.mu.Lock()
	m.collections[name] = col
	m.mu.Unlock()
	m.log.Info("collection loaded", "collection", name)
	return col, nil
}

func (m *Manager) collection(name string) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[name]
	if !ok {
		return nil, perr.NotFound("collection.not_loaded", fmt.Sprintf("collection %q is not loaded", name))
	}
	return col, nil
}

// Index ingests docs into name's active backends: runs the configured
// pipeline (per-document isolation — a bad document doesn't block the
// rest), resolves any auto-embedding source field through the embedding
// layer, writes every shard's buffered segment, and commits and reloads
// in the same call so writes are visible to the very next Search.
func (m *Manager) Index(ctx context.Context, name string, docs []document.Document) ([]ingest.FailedDocument, error) {
	col, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	lock := m.locks.forCollection(name)
	if !lock.acquire(defaultLockTimeout) {
		return nil, perr.Conflict("collection.index_lock_timeout", describeTimeout("index", name, defaultLockTimeout))
	}
	defer lock.release()
	return m.indexLocked(ctx, col, docs)
}

// indexLocked is Index's body for a caller that already holds col's write
// lock (Attach indexes a snapshot's documents while holding it).
func (m *Manager) indexLocked(ctx context.Context, col *Collection, docs []document.Document) ([]ingest.FailedDocument, error) {
	var failed []ingest.FailedDocument
	if col.pipeline != nil {
		docs, failed = col.pipeline.ProcessBatch(docs, col.now)
	}
	if len(docs) == 0 {
		return failed, nil
	}

	vectors, err := m.resolveAutoEmbedding(ctx, col, docs)
	if err != nil {
		return failed, err
	}

	bs := col.backends
	textWriters := make(map[int]*text.Writer, len(bs.textShards))
	vectorWriters := make(map[int]*vector.Writer, len(bs.vectorShards))

	for _, doc := range docs {
		if len(bs.textShards) > 0 {
			si := shardIndex(doc.ID, len(bs.textShards))
			w, ok := textWriters[si]
			if !ok {
				w = bs.textShards[si].NewWriter()
				textWriters[si] = w
			}
			if err := w.Add(doc); err != nil {
				failed = append(failed, ingest.FailedDocument{DocID: doc.ID, Error: err.Error()})
				continue
			}
		}
		if len(bs.vectorShards) > 0 {
			vec, ok := vectors[doc.ID]
			if !ok {
				vec, ok = precomputedVector(doc, col.Schema.Backends.Vector)
			}
			if ok {
				si := shardIndex(doc.ID, len(bs.vectorShards))
				w, ok := vectorWriters[si]
				if !ok {
					w = bs.vectorShards[si].NewWriter()
					vectorWriters[si] = w
				}
				w.Upsert(doc.ID, vec)
			}
		}
		if bs.graph != nil {
			bs.graph.AddNode(doc.ID, doc.Fields)
		}
	}

	for i, w := range textWriters {
		if w.Len() == 0 {
			continue
		}
		if err := bs.textShards[i].Commit(ctx, w); err != nil {
			return failed, err
		}
	}
	for i, w := range vectorWriters {
		if w.Len() == 0 {
			continue
		}
		if err := bs.vectorShards[i].Commit(ctx, w); err != nil {
			return failed, err
		}
	}

	if err := bs.reload(ctx); err != nil {
		return failed, err
	}
	return failed, nil
}

// resolveAutoEmbedding gathers every document's auto-embedding source
// text (if the collection's vector backend configures one) and resolves
// vectors for all of them in a single embedding-layer call.
func (m *Manager) resolveAutoEmbedding(ctx context.Context, col *Collection, docs []document.Document) (map[string][]float32, error) {
	vc := col.Schema.Backends.Vector
	if vc == nil || vc.AutoEmbedding == nil || m.embedder == nil {
		return nil, nil
	}
	ae := vc.AutoEmbedding

	var sources []vector.AutoEmbedSource
	for _, doc := range docs {
		if v, ok := doc.Fields[ae.TargetField]; ok && v.Kind != document.KindString {
			continue // a precomputed vector field already carries its value
		}
		if v, ok := doc.Fields[ae.SourceField]; ok {
			if s, ok := v.AsString(); ok {
				sources = append(sources, vector.AutoEmbedSource{DocID: doc.ID, Text: s})
			}
		}
	}
	if len(sources) == 0 {
		return nil, nil
	}
	return vector.AutoEmbed(ctx, m.embedder, ae.Model, sources)
}

// precomputedVector reads a vector a caller already computed and attached
// to the document as little-endian float32 bytes under the auto-embedding
// target field name (or "vector" when no auto-embedding is configured).
func precomputedVector(doc document.Document, vc *schema.VectorBackendConfig) ([]float32, bool) {
	field := "vector"
	if vc != nil && vc.AutoEmbedding != nil && vc.AutoEmbedding.TargetField != "" {
		field = vc.AutoEmbedding.TargetField
	}
	v, ok := doc.Fields[field]
	if !ok || v.Kind != document.KindBytes || len(v.Blob)%4 != 0 {
		return nil, false
	}
	return decodeFloat32LE(v.Blob), true
}

// Delete removes docID from every active backend of name.
func (m *Manager) Delete(ctx context.Context, name, docID string) error {
	col, err := m.collection(name)
	if err != nil {
		return err
	}

	lock := m.locks.forCollection(name)
	if !lock.acquire(defaultLockTimeout) {
		return perr.Conflict("collection.delete_lock_timeout", describeTimeout("delete", name, defaultLockTimeout))
	}
	defer lock.release()

	bs := col.backends
	if ix := bs.textShardFor(docID); ix != nil {
		if err := ix.Delete(ctx, docID); err != nil {
			return err
		}
	}
	if ix := bs.vectorShardFor(docID); ix != nil {
		w := ix.NewWriter()
		w.Delete(docID)
		if err := ix.Commit(ctx, w); err != nil {
			return err
		}
	}
	if bs.graph != nil {
		bs.graph.DeleteNode(docID)
	}
	return bs.reload(ctx)
}

// SearchRequest is one query against a loaded collection: a text query
// string, a query vector, or both (spec.md §4.7), plus paging.
type SearchRequest struct {
	Query  string
	Vector []float32

	Strategy     hybrid.Strategy
	RRFK         int
	TextWeight   float64
	VectorWeight float64

	MaxParseDepth int
	Limit         int
	Offset        int
}

// SearchResponse is the ranked, re-ranked result set for one Search call.
type SearchResponse struct {
	Hits    []rank.Candidate
	Warning *rank.Warning
}

// Search fans req out to every active text/vector shard, fuses per the
// collection's hybrid config (or req's override), applies the
// recency/boost/signal ranking stages, and runs the optional second-phase
// re-rank (spec.md §4.6, §4.7).
func (m *Manager) Search(ctx context.Context, name string, req SearchRequest) (SearchResponse, error) {
	col, err := m.collection(name)
	if err != nil {
		return SearchResponse{}, err
	}
	bs := col.backends

	hreq := hybrid.Request{
		Query: req.Query, Vector: req.Vector,
		Strategy: req.Strategy, RRFK: req.RRFK,
		TextWeight: req.TextWeight, VectorWeight: req.VectorWeight,
	}

	maxParseDepth := req.MaxParseDepth
	if maxParseDepth == 0 {
		maxParseDepth = 50
	}
	window := req.Limit + req.Offset
	if window <= 0 {
		window = 50
	}
	if rr := col.Schema.Reranking; rr != nil && req.Query != "" && rr.Candidates > window {
		window = rr.Candidates
	}

	var textSearcher hybrid.TextSearcher
	if len(bs.textShards) > 0 {
		textSearcher = fanoutTextSearcher{shards: bs.textShards, maxParseDepth: maxParseDepth, window: window}
	}
	var vectorSearcher hybrid.VectorSearcher
	if len(bs.vectorShards) > 0 {
		vectorSearcher = fanoutVectorSearcher{shards: bs.vectorShards, window: window}
	}

	fused, err := hybrid.Run(ctx, hreq, col.Schema.Hybrid, textSearcher, vectorSearcher)
	if err != nil {
		return SearchResponse{}, err
	}

	candidates := make([]rank.Candidate, 0, len(fused))
	for _, f := range fused {
		candidates = append(candidates, rank.Candidate{DocID: f.DocID, Score: f.Score, Fields: lookupFields(bs, f.DocID)})
	}

	var rankingCfg schema.RankingConfig
	if col.Schema.Ranking != nil {
		rankingCfg = *col.Schema.Ranking
	}
	rankingCfg.BoostEnabled = col.Schema.SystemFields.Boost
	candidates = rank.Apply(candidates, rankingCfg, col.now())

	var warning *rank.Warning
	if col.Schema.Reranking != nil && req.Query != "" {
		textField := func(c rank.Candidate) string { return joinedText(c.Fields) }
		candidates, warning = rank.Rerank(ctx, req.Query, candidates, *col.Schema.Reranking, m.scorer, textField, req.Limit)
	} else if req.Limit > 0 && len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}

	return SearchResponse{Hits: candidates, Warning: warning}, nil
}

// Aggregate materializes name's live documents and runs spec through the
// injected Aggregator (spec.md §4.2's aggregation surface).
func (m *Manager) Aggregate(ctx context.Context, name string, spec map[string]any) (map[string]any, error) {
	col, err := m.collection(name)
	if err != nil {
		return nil, err
	}
	if m.aggr == nil {
		return nil, perr.Configuration("collection.no_aggregator", "no aggregation engine configured")
	}
	return m.aggr.Run(ctx, liveDocuments(col.backends), spec)
}

func lookupFields(bs *backendSet, docID string) map[string]document.Value {
	if ix := bs.textShardFor(docID); ix != nil {
		if doc, ok := ix.Get(docID); ok {
			return doc.Fields
		}
	}
	return nil
}

func joinedText(fields map[string]document.Value) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		if s, ok := fields[k].AsString(); ok {
			if out != "" {
				out += " "
			}
			out += s
		}
	}
	return out
}

// decodeFloat32LE decodes a little-endian float32 byte blob, the same
// wire layout internal/embed's L2 cache uses for stored vectors.
func decodeFloat32LE(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// ExportOptions selects a snapshot format and, when EncryptKey is set,
// wraps the snapshot (archive or portable) in the AES-256-GCM envelope
// (spec.md §8). EncryptKey must be exactly 32 bytes.
type ExportOptions struct {
	Format     SnapshotFormat
	EncryptKey []byte
}

// Export snapshots a loaded collection without affecting its live state.
func (m *Manager) Export(ctx context.Context, name string, opts ExportOptions) ([]byte, error) {
	col, err := m.collection(name)
	if err != nil {
		return nil, err
	}
	return m.snapshot(ctx, col, opts)
}

func (m *Manager) snapshot(ctx context.Context, col *Collection, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch opts.Format {
	case FormatArchive:
		if err := exportArchive(ctx, m.store, col, &buf); err != nil {
			return nil, err
		}
	case FormatPortable, "":
		if err := exportPortable(col, &buf); err != nil {
			return nil, err
		}
	default:
		return nil, perr.Input("collection.unknown_snapshot_format", fmt.Sprintf("unknown snapshot format %q", opts.Format))
	}
	if len(opts.EncryptKey) == 0 {
		return buf.Bytes(), nil
	}
	return encryptSnapshot(buf.Bytes(), opts.EncryptKey)
}

// DetachOptions configures Manager.Detach.
type DetachOptions struct {
	Format     SnapshotFormat
	EncryptKey []byte
	// DeleteData removes the collection's on-disk segments once the
	// snapshot has been taken successfully. Without it, detach only
	// unloads the in-memory backend set; the data stays on disk for a
	// later Attach.
	DeleteData bool
}

// Detach snapshots a collection, then unloads it from memory (spec.md
// §4.9). The snapshot always runs first: if it fails, the collection is
// left exactly as it was, loaded and untouched — there is no code path
// that unloads without a successful snapshot in hand.
func (m *Manager) Detach(ctx context.Context, name string, opts DetachOptions) ([]byte, error) {
	col, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	lock := m.locks.forCollection(name)
	if !lock.acquire(defaultLockTimeout) {
		return nil, perr.Conflict("collection.detach_lock_timeout", describeTimeout("detach", name, defaultLockTimeout))
	}
	defer lock.release()

	snap, err := m.snapshot(ctx, col, ExportOptions{Format: opts.Format, EncryptKey: opts.EncryptKey})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	delete(m.collections, name)
	m.mu.Unlock()

	if opts.DeleteData {
		if err := deleteCollectionData(ctx, m.store, name); err != nil {
			return snap, err
		}
	}
	m.locks.remove(name)
	m.log.Info("collection detached", "collection", name, "delete_data", opts.DeleteData)
	return snap, nil
}

// AttachOptions configures Manager.Attach.
type AttachOptions struct {
	Format     SnapshotFormat
	DecryptKey []byte
	// TargetName renames the collection on attach; empty keeps the name
	// the snapshot's schema carries.
	TargetName string
}

// Attach extracts a snapshot to disk, registers its schema (optionally
// under a new name), and hot-loads the resulting collection. The write
// lock of the collection name being attached (TargetName when set) is
// held from schema registration until the snapshot's documents are
// indexed, so no concurrent Index, Delete or Detach on that name
// interleaves with the attach (spec.md §4.9's atomicity invariant for
// attach-over-existing).
func (m *Manager) Attach(ctx context.Context, data []byte, opts AttachOptions) (*Collection, error) {
	if len(opts.DecryptKey) > 0 {
		plain, err := decryptSnapshot(data, opts.DecryptKey)
		if err != nil {
			return nil, err
		}
		data = plain
	}

	var cs *schema.CollectionSchema
	var docs []document.Document
	var vectors map[string][]float32

	switch opts.Format {
	case FormatArchive:
		var err error
		cs, err = importArchive(ctx, m.store, bytes.NewReader(data), opts.TargetName)
		if err != nil {
			return nil, err
		}
	case FormatPortable, "":
		var err error
		cs, docs, vectors, err = importPortable(bytes.NewReader(data), opts.TargetName)
		if err != nil {
			return nil, err
		}
	default:
		return nil, perr.Input("collection.unknown_snapshot_format", fmt.Sprintf("unknown snapshot format %q", opts.Format))
	}

	locksNeeded := []*writeLock{m.locks.forCollection(cs.Collection)}
	release, err := acquireAll(locksNeeded, defaultLockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	m.registry.Register(cs)

	col, err := m.LoadCollection(ctx, cs.Collection)
	if err != nil {
		return nil, err
	}

	if len(docs) > 0 {
		vectorField := "vector"
		if vc := cs.Backends.Vector; vc != nil && vc.AutoEmbedding != nil && vc.AutoEmbedding.TargetField != "" {
			vectorField = vc.AutoEmbedding.TargetField
		}
		withVectors := make([]document.Document, len(docs))
		for i, doc := range docs {
			if vec, ok := vectors[doc.ID]; ok {
				doc = doc.Clone()
				doc.Fields[vectorField] = document.Bytes(encodeFloat32LE(vec))
			}
			withVectors[i] = doc
		}
		if _, err := m.indexLocked(ctx, col, withVectors); err != nil {
			return nil, err
		}
	}

	m.log.Info("collection attached", "collection", cs.Collection, "documents", len(docs))
	return col, nil
}

// Drop permanently removes a collection: its in-memory state, its
// on-disk backend data, and its schema registration. The collection's
// write lock, which covers all of its backends and which Index, Delete
// and Detach also take, is acquired up front, so none of those
// interleaves with the removal (spec.md §4.9's critical invariant).
// Search does not take this lock.
func (m *Manager) Drop(ctx context.Context, name string) error {
	if _, err := m.collection(name); err != nil {
		return err
	}

	lock := m.locks.forCollection(name)
	release, err := acquireAll([]*writeLock{lock}, defaultLockTimeout)
	if err != nil {
		return err
	}
	defer release()

	if err := deleteCollectionData(ctx, m.store, name); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.collections, name)
	m.mu.Unlock()
	m.registry.Remove(name)
	m.locks.remove(name)

	m.log.Info("collection dropped", "collection", name)
	return nil
}

func deleteCollectionData(ctx context.Context, store storage.Store, name string) error {
	objects, err := store.List(ctx, name+"/")
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := store.Delete(ctx, obj.Path); err != nil {
			return err
		}
	}
	return nil
}

// encodeFloat32LE is decodeFloat32LE's inverse, used to hand an attached
// snapshot's vectors back through the ordinary precomputed-vector
// ingestion path rather than writing to the vector backend directly.
func encodeFloat32LE(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func liveDocuments(bs *backendSet) []document.Document {
	seen := make(map[string]bool)
	var out []document.Document
	for _, ix := range bs.textShards {
		for _, doc := range ix.All() {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			out = append(out, doc)
		}
	}
	return out
}
