// Package rank implements the post-retrieval ranking engine: recency
// decay, document boost, additive signals, re-sort, and optional
// second-phase re-ranking (spec.md §4.6).
package rank

import "math"

// RecencyMultiplier computes the recency-decay multiplier for a
// document of the given age (in the same unit as scale/offset, e.g.
// seconds), per spec.md §4.6's three formulas. age < offset always
// returns 1 regardless of mode.
func RecencyMultiplier(mode string, age, scale, decayRate, offset float64) float64 {
	if age < offset {
		return 1
	}
	if scale == 0 {
		scale = 1
	}
	ratio := age / scale
	switch mode {
	case "linear":
		m := 1 - (1-decayRate)*ratio
		if m < 0 {
			m = 0
		}
		return m
	case "gaussian":
		return math.Exp(-0.5 * ratio * ratio * math.Abs(math.Log(decayRate)) / math.Ln2)
	default: // "exponential"
		return math.Pow(decayRate, ratio)
	}
}
