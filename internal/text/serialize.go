package text

import "github.com/prism-search/prism/internal/document"

// segmentFile is the on-disk (JSON) mirror of Segment's unexported
// fields, used only at the storage boundary.
type segmentFile struct {
	ID         int64
	Postings   map[string]map[string][]posting
	Stored     map[string]document.Document
	DocLen     map[string]map[string]int
	AvgDocLen  map[string]float64
	Tombstones map[string]bool
	DocCount   int
}

func (s *Segment) toFile() segmentFile {
	postings := make(map[string]map[string][]posting, len(s.postings))
	for field, fp := range s.postings {
		postings[field] = map[string][]posting(fp)
	}
	return segmentFile{
		ID:         s.ID,
		Postings:   postings,
		Stored:     s.stored,
		DocLen:     s.docLen,
		AvgDocLen:  s.avgDocLen,
		Tombstones: s.tombstones,
		DocCount:   s.docCount,
	}
}

func segmentFromFile(f segmentFile) *Segment {
	postings := make(map[string]fieldPostings, len(f.Postings))
	for field, fp := range f.Postings {
		postings[field] = fieldPostings(fp)
	}
	return &Segment{
		ID:         f.ID,
		postings:   postings,
		stored:     f.Stored,
		docLen:     f.DocLen,
		avgDocLen:  f.AvgDocLen,
		tombstones: f.Tombstones,
		docCount:   f.DocCount,
	}
}
