package text

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
	"github.com/prism-search/prism/internal/storage"
)

// manifestFile lists the committed, storage-durable segment ids for one
// text index. A segment is visible only once its id appears here (spec.md
// §3's Segment invariant: fully visible or not visible, never torn).
type manifestFile struct {
	SegmentIDs []int64 `json:"segment_ids"`
}

// Index is one text backend shard: a field layout, a tokenizer registry,
// and a sequence of committed, storage-backed segments. Readers do not
// auto-reload (spec.md §4.2); Reload must be called explicitly before
// Search to pick up newly committed segments.
type Index struct {
	basePath string
	store    storage.Store

	layout         FieldLayout
	tokenizers     *registry
	params         BM25Params
	fieldWeights   map[string]float64
	stampIndexedAt bool

	mu       sync.RWMutex
	segments []*Segment
	loaded   map[int64]*Segment
	nextID   int64
}

// NewIndex constructs an Index rooted at basePath (e.g.
// "<collection>/text/<shard>") within store.
func NewIndex(basePath string, store storage.Store, layout FieldLayout, tokenizers *registry, params BM25Params, fieldWeights map[string]float64, stampIndexedAt bool) *Index {
	return &Index{
		basePath:       basePath,
		store:          store,
		layout:         layout,
		tokenizers:     tokenizers,
		params:         params,
		fieldWeights:   fieldWeights,
		stampIndexedAt: stampIndexedAt,
		loaded:         make(map[int64]*Segment),
	}
}

func (ix *Index) manifestPath() string { return ix.basePath + "/manifest.json" }
func (ix *Index) segmentPath(id int64) string {
	return fmt.Sprintf("%s/segments/%d.json", ix.basePath, id)
}

// NewWriter allocates a fresh active writer for a new segment id.
func (ix *Index) NewWriter() *Writer {
	ix.mu.Lock()
	id := ix.nextID
	ix.nextID++
	ix.mu.Unlock()
	return NewWriter(id, ix.layout, ix.tokenizers, ix.stampIndexedAt)
}

// Commit serializes w's segment to storage and advances the manifest.
// This arms a pending reader reload; callers must call Reload before the
// new segment becomes visible to Search.
func (ix *Index) Commit(ctx context.Context, w *Writer) error {
	seg := w.Commit()

	blob, err := json.Marshal(seg.toFile())
	if err != nil {
		return perr.Backend("text.segment_encode", err)
	}
	if err := ix.store.Write(ctx, ix.segmentPath(seg.ID), blob); err != nil {
		return err
	}

	manifest, err := ix.readManifest(ctx)
	if err != nil {
		return err
	}
	manifest.SegmentIDs = append(manifest.SegmentIDs, seg.ID)
	manifestBlob, err := json.Marshal(manifest)
	if err != nil {
		return perr.Backend("text.manifest_encode", err)
	}
	return ix.store.Write(ctx, ix.manifestPath(), manifestBlob)
}

// Delete tombstones docID in whichever committed segment currently holds
// a live copy, persisting the updated segment file (spec.md §4.9's
// `delete` routing; deletes never mutate segment bodies beyond the
// tombstone bit, mirroring the vector backend's own Delete).
func (ix *Index) Delete(ctx context.Context, docID string) error {
	manifest, err := ix.readManifest(ctx)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, segID := range manifest.SegmentIDs {
		seg, ok := ix.loaded[segID]
		if !ok {
			blob, err := ix.store.Read(ctx, ix.segmentPath(segID))
			if err != nil {
				return err
			}
			var f segmentFile
			if err := json.Unmarshal(blob, &f); err != nil {
				return perr.Backend("text.segment_decode", err)
			}
			seg = segmentFromFile(f)
		}
		if !seg.isLive(docID) {
			continue
		}
		seg.tombstones[docID] = true

		blob, err := json.Marshal(seg.toFile())
		if err != nil {
			return perr.Backend("text.segment_encode", err)
		}
		if err := ix.store.Write(ctx, ix.segmentPath(segID), blob); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) readManifest(ctx context.Context) (manifestFile, error) {
	exists, err := ix.store.Exists(ctx, ix.manifestPath())
	if err != nil {
		return manifestFile{}, err
	}
	if !exists {
		return manifestFile{}, nil
	}
	blob, err := ix.store.Read(ctx, ix.manifestPath())
	if err != nil {
		return manifestFile{}, err
	}
	var m manifestFile
	if err := json.Unmarshal(blob, &m); err != nil {
		return manifestFile{}, perr.Backend("text.manifest_decode", err)
	}
	return m, nil
}

// Reload reads the current manifest and loads any segment not already
// cached, then atomically swaps the visible segment list. Segments
// dropped from the manifest (post-compaction) are evicted from the
// in-memory cache.
func (ix *Index) Reload(ctx context.Context) error {
	manifest, err := ix.readManifest(ctx)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	live := make(map[int64]*Segment, len(manifest.SegmentIDs))
	for _, id := range manifest.SegmentIDs {
		if seg, ok := ix.loaded[id]; ok {
			live[id] = seg
			continue
		}
		blob, err := ix.store.Read(ctx, ix.segmentPath(id))
		if err != nil {
			return err
		}
		var f segmentFile
		if err := json.Unmarshal(blob, &f); err != nil {
			return perr.Backend("text.segment_decode", err)
		}
		live[id] = segmentFromFile(f)
	}

	ordered := make([]*Segment, 0, len(manifest.SegmentIDs))
	ids := append([]int64(nil), manifest.SegmentIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		ordered = append(ordered, live[id])
	}

	ix.loaded = live
	ix.segments = ordered
	return nil
}

// Search parses queryString and evaluates it against the currently
// visible segments (as of the last Reload), returning results truncated
// to limit starting at offset.
func (ix *Index) Search(queryString string, maxParseDepth, limit, offset int) (SearchResult, error) {
	q, err := ParseQuery(queryString, maxParseDepth)
	if err != nil {
		return SearchResult{}, err
	}

	ix.mu.RLock()
	segs := ix.segments
	ix.mu.RUnlock()

	return Search(segs, q, ix.params, ix.fieldWeights, limit, offset), nil
}

// Get reconstructs a document by id from the most recent live copy across
// visible segments (a later segment's copy of an id shadows an earlier
// one).
func (ix *Index) Get(docID string) (document.Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for i := len(ix.segments) - 1; i >= 0; i-- {
		seg := ix.segments[i]
		if seg.isLive(docID) {
			return seg.stored[docID], true
		}
	}
	return document.Document{}, false
}

// All materializes every currently live document across visible segments,
// a later segment's copy shadowing an earlier one for the same id. Used
// by the aggregation engine, which operates over the full document set
// rather than a query's match set.
func (ix *Index) All() []document.Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	byID := make(map[string]document.Document)
	live := make(map[string]bool)
	for _, seg := range ix.segments {
		for id, doc := range seg.stored {
			if seg.tombstones[id] {
				delete(byID, id)
				live[id] = false
				continue
			}
			byID[id] = doc
			live[id] = true
		}
	}
	out := make([]document.Document, 0, len(byID))
	for id, doc := range byID {
		if live[id] {
			out = append(out, doc)
		}
	}
	return out
}
