package rank

import (
	"context"
	"sort"

	"github.com/prism-search/prism/internal/schema"
)

// CrossEncoderScorer is the embedding layer's cross-encoder contract as
// seen from the ranking engine: score a (query, joined-text-fields)
// pair. internal/embed supplies the concrete implementation.
type CrossEncoderScorer interface {
	Score(ctx context.Context, model, query, text string) (float64, error)
}

// Warning is returned alongside the first-phase results when re-ranking
// fails; the request itself never fails (spec.md §4.6 item 5).
type Warning struct {
	Message string
}

// Rerank truncates firstPhase to cfg.Candidates items (callers are
// responsible for retrieving enough candidates; Manager.Search widens its
// first-phase window to cfg.Candidates), applies the configured
// second-phase scorer, and
// truncates to limit. On any scorer/expression failure it returns the
// untouched first-phase results (limit-truncated) plus a Warning,
// per spec.md §4.6's "never fail the request" rule.
func Rerank(ctx context.Context, query string, firstPhase []Candidate, cfg schema.RerankingConfig, scorer CrossEncoderScorer, textField func(Candidate) string, limit int) ([]Candidate, *Warning) {
	candidates := firstPhase
	if cfg.Candidates > 0 && len(candidates) > cfg.Candidates {
		candidates = candidates[:cfg.Candidates]
	}

	rescored := make([]Candidate, len(candidates))
	copy(rescored, candidates)

	var err error
	switch cfg.Mode {
	case "cross_encoder":
		err = rerankCrossEncoder(ctx, query, rescored, cfg.Model, scorer, textField)
	case "expression":
		err = rerankExpression(rescored, cfg.Expression)
	default:
		return truncate(firstPhase, limit), nil
	}
	if err != nil {
		return truncate(firstPhase, limit), &Warning{Message: err.Error()}
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		if rescored[i].Score != rescored[j].Score {
			return rescored[i].Score > rescored[j].Score
		}
		return rescored[i].DocID < rescored[j].DocID
	})
	return truncate(rescored, limit), nil
}

func rerankCrossEncoder(ctx context.Context, query string, candidates []Candidate, model string, scorer CrossEncoderScorer, textField func(Candidate) string) error {
	if scorer == nil {
		return errScorerUnavailable
	}
	for i := range candidates {
		score, err := scorer.Score(ctx, model, query, textField(candidates[i]))
		if err != nil {
			return err
		}
		candidates[i].Score = score
	}
	return nil
}

func rerankExpression(candidates []Candidate, expr string) error {
	for i := range candidates {
		vars := map[string]float64{"_score": candidates[i].Score}
		for name, v := range candidates[i].Fields {
			if f, ok := asFloat(v); ok {
				vars[name] = f
			}
		}
		score, err := EvaluateExpression(expr, vars)
		if err != nil {
			return err
		}
		candidates[i].Score = score
	}
	return nil
}

func truncate(candidates []Candidate, limit int) []Candidate {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}

var errScorerUnavailable = scorerUnavailableError{}

type scorerUnavailableError struct{}

func (scorerUnavailableError) Error() string { return "cross-encoder scorer not configured" }
