package rank

import (
	"sort"
	"time"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/schema"
)

// Candidate is one scored result flowing through the ranking engine: its
// doc id, the score accumulated so far, and the stored fields the
// recency/boost/signal/re-rank stages read from.
type Candidate struct {
	DocID         string
	Score         float64
	OriginalScore float64
	Fields        map[string]document.Value
}

// Apply runs spec.md §4.6 stages 1-4 (recency decay, document boost,
// additive signals, re-sort) over candidates in place and returns the
// re-sorted slice. now is injected so decay is deterministic in tests.
func Apply(candidates []Candidate, cfg schema.RankingConfig, now time.Time) []Candidate {
	for i := range candidates {
		c := &candidates[i]
		c.OriginalScore = c.Score

		if cfg.Recency != nil {
			if v, ok := c.Fields[cfg.Recency.Field]; ok {
				if ts, ok := asTime(v); ok {
					age := now.Sub(ts).Seconds()
					c.Score *= RecencyMultiplier(cfg.Recency.Mode, age, cfg.Recency.Scale.Seconds(), cfg.Recency.DecayRate, cfg.Recency.Offset.Seconds())
				}
			}
		}

		if cfg.BoostEnabled {
			if v, ok := c.Fields["_boost"]; ok {
				if b, ok := asFloat(v); ok {
					c.Score *= b
				}
			}
		}

		for _, sig := range cfg.Signals {
			if v, ok := c.Fields[sig.Field]; ok {
				if f, ok := asFloat(v); ok {
					c.Score += f * sig.Weight
				}
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].OriginalScore != candidates[j].OriginalScore {
			return candidates[i].OriginalScore > candidates[j].OriginalScore
		}
		return candidates[i].DocID < candidates[j].DocID
	})
	return candidates
}

func asTime(v document.Value) (time.Time, bool) {
	if v.Kind == document.KindTimestamp {
		return v.Time, true
	}
	return time.Time{}, false
}

func asFloat(v document.Value) (float64, bool) {
	switch v.Kind {
	case document.KindF64:
		return v.F64, true
	case document.KindI64:
		return float64(v.I64), true
	case document.KindU64:
		return float64(v.U64), true
	}
	return 0, false
}
