package text

import (
	"sort"

	"github.com/prism-search/prism/internal/document"
)

// posting is one term occurrence: the positions it appears at within one
// document's field, used for exact phrase matching.
type posting struct {
	DocID     string
	TermFreq  int
	Positions []int
}

// fieldPostings maps a term to its postings list within one field.
type fieldPostings map[string][]posting

// Segment is an immutable inverted-index segment: committed documents,
// their stored fields, and per-field term postings. Segments are never
// mutated after Seal; compaction builds a replacement segment instead.
type Segment struct {
	ID int64

	// postings[field][term] -> postings list, sorted by docID.
	postings map[string]fieldPostings

	// stored holds the stored-field values for document reconstruction.
	stored map[string]document.Document

	// docLen[field][docID] is the token count for BM25 length
	// normalization; avgDocLen[field] is its mean across the segment.
	docLen    map[string]map[string]int
	avgDocLen map[string]float64

	// tombstones marks docIDs logically deleted from this segment by a
	// later upsert or explicit delete.
	tombstones map[string]bool

	docCount int
}

func newSegment(id int64) *Segment {
	return &Segment{
		ID:         id,
		postings:   make(map[string]fieldPostings),
		stored:     make(map[string]document.Document),
		docLen:     make(map[string]map[string]int),
		avgDocLen:  make(map[string]float64),
		tombstones: make(map[string]bool),
	}
}

func (s *Segment) isLive(docID string) bool {
	_, stored := s.stored[docID]
	return stored && !s.tombstones[docID]
}

// finalize computes avgDocLen per field once all documents are added; the
// segment is immutable afterward.
func (s *Segment) finalize() {
	for field, byDoc := range s.docLen {
		if len(byDoc) == 0 {
			continue
		}
		total := 0
		for _, l := range byDoc {
			total += l
		}
		s.avgDocLen[field] = float64(total) / float64(len(byDoc))
	}
	for _, fp := range s.postings {
		for term, list := range fp {
			sorted := append([]posting(nil), list...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocID < sorted[j].DocID })
			fp[term] = sorted
		}
	}
}
