package text

import (
	"path"
	"sort"
	"strconv"
	"strings"
)

// Hit is one scored, ranked result (spec.md §4.2: "(doc-id, score,
// stored-fields)").
type Hit struct {
	DocID string
	Score float64
}

// matchSet maps docID to its accumulated score within one evaluation.
type matchSet map[string]float64

// SearchResult is the outcome of one Search call.
type SearchResult struct {
	Hits  []Hit
	Total int
}

// Search evaluates q against every live (non-tombstoned) document across
// seg's segments, applying BM25 with params and fieldWeights (a
// multiplicative boost applied at parse/eval time, not post-processing,
// per spec.md §4.2), then truncates to limit starting at offset.
func Search(segs []*Segment, q Query, params BM25Params, fieldWeights map[string]float64, limit, offset int) SearchResult {
	combined := matchSet{}
	for _, seg := range segs {
		m := evalQuery(q, seg, params, fieldWeights)
		for docID, score := range m {
			if !seg.isLive(docID) {
				continue
			}
			combined[docID] += score
		}
	}

	hits := make([]Hit, 0, len(combined))
	for docID, score := range combined {
		hits = append(hits, Hit{DocID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})

	total := len(hits)
	if offset > len(hits) {
		offset = len(hits)
	}
	hits = hits[offset:]
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return SearchResult{Hits: hits, Total: total}
}

func weightFor(field string, fieldWeights map[string]float64) float64 {
	if field == "" {
		return 1
	}
	if w, ok := fieldWeights[field]; ok && w > 0 {
		return w
	}
	return 1
}

func evalQuery(q Query, seg *Segment, params BM25Params, fieldWeights map[string]float64) matchSet {
	switch v := q.(type) {
	case TermQuery:
		return scoreTerm(seg, v.Field, v.Term, params, fieldWeights).scale(max1(v.Boost))
	case PhraseQuery:
		return scorePhrase(seg, v.Field, v.Terms, params, fieldWeights).scale(max1(v.Boost))
	case WildcardQuery:
		return scoreWildcard(seg, v.Field, v.Pattern, params, fieldWeights).scale(max1(v.Boost))
	case RangeQuery:
		return scoreRange(seg, v)
	case AndQuery:
		return evalAnd(v.Clauses, seg, params, fieldWeights)
	case OrQuery:
		return evalOr(v.Clauses, seg, params, fieldWeights)
	case NotQuery:
		excluded := evalQuery(v.Clause, seg, params, fieldWeights)
		out := matchSet{}
		for docID := range seg.stored {
			if _, ok := excluded[docID]; !ok {
				out[docID] = 1
			}
		}
		return out
	default:
		return matchSet{}
	}
}

func (m matchSet) scale(f float64) matchSet {
	if f == 1 {
		return m
	}
	out := make(matchSet, len(m))
	for k, v := range m {
		out[k] = v * f
	}
	return out
}

func max1(f float64) float64 {
	if f <= 0 {
		return 1
	}
	return f
}

func scoreTerm(seg *Segment, field, term string, params BM25Params, fieldWeights map[string]float64) matchSet {
	out := matchSet{}
	fields := fieldsToSearch(seg, field)
	for _, f := range fields {
		fp, ok := seg.postings[f]
		if !ok {
			continue
		}
		list, ok := fp[term]
		if !ok {
			continue
		}
		weight := weightFor(f, fieldWeights)
		df := len(list)
		avgLen := seg.avgDocLen[f]
		for _, p := range list {
			docLen := float64(seg.docLen[f][p.DocID])
			out[p.DocID] += bm25Score(p.TermFreq, df, seg.docCount, docLen, avgLen, params) * weight
		}
	}
	return out
}

func scorePhrase(seg *Segment, field string, terms []string, params BM25Params, fieldWeights map[string]float64) matchSet {
	out := matchSet{}
	if len(terms) == 0 {
		return out
	}
	fields := fieldsToSearch(seg, field)
	for _, f := range fields {
		fp, ok := seg.postings[f]
		if !ok {
			continue
		}
		first, ok := fp[terms[0]]
		if !ok {
			continue
		}
		weight := weightFor(f, fieldWeights)
		for _, p := range first {
			if phraseMatchesAt(fp, terms, p.DocID) {
				df := len(first)
				docLen := float64(seg.docLen[f][p.DocID])
				out[p.DocID] += bm25Score(p.TermFreq, df, seg.docCount, docLen, seg.avgDocLen[f], params) * weight
			}
		}
	}
	return out
}

func phraseMatchesAt(fp fieldPostings, terms []string, docID string) bool {
	positionSets := make([][]int, len(terms))
	for i, term := range terms {
		list, ok := fp[term]
		if !ok {
			return false
		}
		found := false
		for _, p := range list {
			if p.DocID == docID {
				positionSets[i] = p.Positions
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, start := range positionSets[0] {
		matched := true
		for i := 1; i < len(positionSets); i++ {
			want := start + i
			has := false
			for _, pos := range positionSets[i] {
				if pos == want {
					has = true
					break
				}
			}
			if !has {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func scoreWildcard(seg *Segment, field, pattern string, params BM25Params, fieldWeights map[string]float64) matchSet {
	out := matchSet{}
	fields := fieldsToSearch(seg, field)
	for _, f := range fields {
		fp, ok := seg.postings[f]
		if !ok {
			continue
		}
		for term := range fp {
			if ok, _ := path.Match(pattern, term); ok {
				sub := scoreTerm(seg, f, term, params, fieldWeights)
				for docID, score := range sub {
					out[docID] += score
				}
			}
		}
	}
	return out
}

func scoreRange(seg *Segment, r RangeQuery) matchSet {
	out := matchSet{}
	for docID, doc := range seg.stored {
		v, ok := doc.Fields[r.Field]
		if !ok {
			continue
		}
		s, ok := v.AsString()
		if !ok {
			continue
		}
		if inRange(s, r) {
			out[docID] = 1
		}
	}
	return out
}

func inRange(value string, r RangeQuery) bool {
	vf, vErr := strconv.ParseFloat(value, 64)
	lf, lErr := strconv.ParseFloat(r.Low, 64)
	hf, hErr := strconv.ParseFloat(r.High, 64)
	numeric := vErr == nil && (r.LowOpen || lErr == nil) && (r.HighOpen || hErr == nil)

	if !r.LowOpen {
		if numeric {
			if r.IncludeLow && vf < lf {
				return false
			}
			if !r.IncludeLow && vf <= lf {
				return false
			}
		} else {
			cmp := strings.Compare(value, r.Low)
			if r.IncludeLow && cmp < 0 {
				return false
			}
			if !r.IncludeLow && cmp <= 0 {
				return false
			}
		}
	}
	if !r.HighOpen {
		if numeric {
			if r.IncludeHigh && vf > hf {
				return false
			}
			if !r.IncludeHigh && vf >= hf {
				return false
			}
		} else {
			cmp := strings.Compare(value, r.High)
			if r.IncludeHigh && cmp > 0 {
				return false
			}
			if !r.IncludeHigh && cmp >= 0 {
				return false
			}
		}
	}
	return true
}

func fieldsToSearch(seg *Segment, field string) []string {
	if field != "" {
		return []string{field}
	}
	fields := make([]string, 0, len(seg.postings))
	for f := range seg.postings {
		fields = append(fields, f)
	}
	return fields
}

func evalAnd(clauses []Query, seg *Segment, params BM25Params, fieldWeights map[string]float64) matchSet {
	var nots []Query
	var positives []Query
	for _, c := range clauses {
		if n, ok := c.(NotQuery); ok {
			nots = append(nots, n.Clause)
			continue
		}
		positives = append(positives, c)
	}
	if len(positives) == 0 {
		return matchSet{}
	}
	result := evalQuery(positives[0], seg, params, fieldWeights)
	for _, c := range positives[1:] {
		next := evalQuery(c, seg, params, fieldWeights)
		merged := matchSet{}
		for docID, score := range result {
			if s2, ok := next[docID]; ok {
				merged[docID] = score + s2
			}
		}
		result = merged
	}
	for _, n := range nots {
		excluded := evalQuery(n, seg, params, fieldWeights)
		for docID := range excluded {
			delete(result, docID)
		}
	}
	return result
}

func evalOr(clauses []Query, seg *Segment, params BM25Params, fieldWeights map[string]float64) matchSet {
	out := matchSet{}
	for _, c := range clauses {
		sub := evalQuery(c, seg, params, fieldWeights)
		for docID, score := range sub {
			out[docID] += score
		}
	}
	return out
}
