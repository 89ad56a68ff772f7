package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/prism-search/prism/internal/perr"
	"github.com/prism-search/prism/internal/storage"
)

// oversampleFactor is how many extra candidates each live segment is
// asked for beyond k, so that tombstones filtered out post-search still
// leave k true results once segments are merged (spec.md §4.3).
const oversampleFactor = 2.0

// compactionTombstoneThreshold is the tombstoned-fraction above which a
// segment becomes a compaction candidate.
const compactionTombstoneThreshold = 0.3

// manifestFile lists the committed, storage-durable segment ids for one
// vector shard, in the same shape as internal/text's manifest.
type manifestFile struct {
	SegmentIDs []int64 `json:"segment_ids"`
}

// Hit is one nearest-neighbor result: DocID plus its distance to the
// query (smaller is closer) and a similarity Score (larger is better),
// kept alongside Distance so hybrid fusion can use either ranking or
// normalized score.
type Hit struct {
	DocID    string
	Distance float64
	Score    float64
}

// Index is one vector backend shard: a metric/params pair and a sequence
// of committed, storage-backed segments. Like internal/text's Index,
// readers do not auto-reload; Reload must be called explicitly before
// Search observes newly committed segments.
type Index struct {
	basePath string
	store    storage.Store
	metric   Metric
	params   Params

	mu       sync.RWMutex
	segments []*Segment
	loaded   map[int64]*Segment
	nextID   int64
}

// NewIndex constructs an Index rooted at basePath (e.g.
// "<collection>/vector/<shard>") within store.
func NewIndex(basePath string, store storage.Store, metric Metric, params Params) *Index {
	return &Index{
		basePath: basePath,
		store:    store,
		metric:   metric,
		params:   params,
		loaded:   make(map[int64]*Segment),
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
	return NewWriter(id, ix.metric, ix.params)
}

// Commit serializes w's buffered vectors as a new segment, tombstones any
// older live copy of an upserted or deleted id across already-committed
// segments, and advances the manifest. Callers must call Reload before
// the change becomes visible to Search.
func (ix *Index) Commit(ctx context.Context, w *Writer) error {
	seg := w.build()

	blob, err := json.Marshal(seg.toFile())
	if err != nil {
		return perr.Backend("vector.segment_encode", err)
	}
	if err := ix.store.Write(ctx, ix.segmentPath(seg.ID), blob); err != nil {
		return err
	}

	superseded := make(map[string]bool, len(w.vectors)+len(w.deletes))
	for id := range w.vectors {
		superseded[id] = true
	}
	for id := range w.deletes {
		superseded[id] = true
	}
	if len(superseded) > 0 {
		if err := ix.tombstoneAcrossCommittedSegments(ctx, superseded); err != nil {
			return err
		}
	}

	manifest, err := ix.readManifest(ctx)
	if err != nil {
		return err
	}
	manifest.SegmentIDs = append(manifest.SegmentIDs, seg.ID)
	manifestBlob, err := json.Marshal(manifest)
	if err != nil {
		return perr.Backend("vector.manifest_encode", err)
	}
	return ix.store.Write(ctx, ix.manifestPath(), manifestBlob)
}

// tombstoneAcrossCommittedSegments rewrites every already-committed
// segment that holds a live copy of an id in ids, marking it tombstoned
// and persisting the updated segment file.
func (ix *Index) tombstoneAcrossCommittedSegments(ctx context.Context, ids map[string]bool) error {
	manifest, err := ix.readManifest(ctx)
	if err != nil {
		return err
	}
	for _, segID := range manifest.SegmentIDs {
		blob, err := ix.store.Read(ctx, ix.segmentPath(segID))
		if err != nil {
			return err
		}
		var f segmentFile
		if err := json.Unmarshal(blob, &f); err != nil {
			return perr.Backend("vector.segment_decode", err)
		}
		seg := segmentFromFile(f)

		changed := false
		for id := range ids {
			if seg.isLive(id) {
				seg.Tombstone(id)
				changed = true
			}
		}
		if !changed {
			continue
		}
		updated, err := json.Marshal(seg.toFile())
		if err != nil {
			return perr.Backend("vector.segment_encode", err)
		}
		if err := ix.store.Write(ctx, ix.segmentPath(segID), updated); err != nil {
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
		return manifestFile{}, perr.Backend("vector.manifest_decode", err)
	}
	return m, nil
}

// Reload reads the current manifest and loads any segment not already
// cached, then atomically swaps the visible segment list.
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
			return perr.Backend("vector.segment_decode", err)
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

// Search finds the k nearest live vectors to query across all currently
// visible segments (as of the last Reload). Each segment is searched for
// ceil(k * oversampleFactor) candidates so that tombstones filtered out
// after the per-segment search still leave k true results once segments
// are merged and re-sorted.
func (ix *Index) Search(query []float32, k int) []Hit {
	ix.mu.RLock()
	segs := ix.segments
	ix.mu.RUnlock()

	overK := int(math.Ceil(float64(k) * oversampleFactor))
	if overK < k {
		overK = k
	}

	var merged []Hit
	for _, seg := range segs {
		for _, c := range seg.Graph.Search(query, overK, 0) {
			if seg.Tombstones[c.id] {
				continue
			}
			merged = append(merged, Hit{DocID: c.id, Distance: c.dist, Score: -c.dist})
		}
	}

	// A doc id can appear only once among live, non-tombstoned copies
	// across segments (upsert tombstones the old copy), but guard with a
	// min-distance merge in case that invariant is ever violated.
	byID := make(map[string]Hit, len(merged))
	for _, h := range merged {
		if existing, ok := byID[h.DocID]; !ok || h.Distance < existing.Distance {
			byID[h.DocID] = h
		}
	}
	out := make([]Hit, 0, len(byID))
	for _, h := range byID {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].DocID < out[j].DocID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Vector returns the most recent live copy of id's vector across visible
// segments, if any.
func (ix *Index) Vector(id string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for i := len(ix.segments) - 1; i >= 0; i-- {
		seg := ix.segments[i]
		if seg.isLive(id) {
			return seg.Graph.Vector(id)
		}
	}
	return nil, false
}

// CompactionCandidates returns the ids of visible segments whose
// tombstoned fraction exceeds compactionTombstoneThreshold.
func (ix *Index) CompactionCandidates() []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var ids []int64
	for _, seg := range ix.segments {
		if seg.tombstoneRatio() > compactionTombstoneThreshold {
			ids = append(ids, seg.ID)
		}
	}
	return ids
}

// Compact merges the live vectors of the segments named in staleIDs
// (typically the result of CompactionCandidates) into one new segment,
// commits it, and drops the stale segment ids from the manifest. The old
// segment files are not deleted from storage, so a reader mid-search
// against the pre-compaction manifest is never served a torn view; Search
// sees the merged segment after the next Reload (mirrors internal/text's
// Commit/Reload separation).
func (ix *Index) Compact(ctx context.Context, staleIDs []int64) error {
	if len(staleIDs) == 0 {
		return nil
	}
	stale := make(map[int64]bool, len(staleIDs))
	for _, id := range staleIDs {
		stale[id] = true
	}

	ix.mu.RLock()
	segs := append([]*Segment(nil), ix.segments...)
	ix.mu.RUnlock()

	w := ix.NewWriter()
	for _, seg := range segs {
		if !stale[seg.ID] {
			continue
		}
		for _, id := range seg.Graph.IDs() {
			if seg.isLive(id) {
				vec, _ := seg.Graph.Vector(id)
				w.Upsert(id, vec)
			}
		}
	}
	newSeg := w.build()

	blob, err := json.Marshal(newSeg.toFile())
	if err != nil {
		return perr.Backend("vector.segment_encode", err)
	}
	if err := ix.store.Write(ctx, ix.segmentPath(newSeg.ID), blob); err != nil {
		return err
	}

	manifest, err := ix.readManifest(ctx)
	if err != nil {
		return err
	}
	kept := manifest.SegmentIDs[:0]
	for _, id := range manifest.SegmentIDs {
		if !stale[id] {
			kept = append(kept, id)
		}
	}
	manifest.SegmentIDs = append(kept, newSeg.ID)

	manifestBlob, err := json.Marshal(manifest)
	if err != nil {
		return perr.Backend("vector.manifest_encode", err)
	}
	return ix.store.Write(ctx, ix.manifestPath(), manifestBlob)
}
