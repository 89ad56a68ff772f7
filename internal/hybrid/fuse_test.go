package hybrid

import (
	"context"
	"math"
	"testing"
)

func TestRRFFuseMatchesWorkedExample(t *testing.T) {
	// spec.md §8 scenario 2: text ranks a=1,c=2; vector ranks c=1,a=2; k=60.
	text := []RankedResult{{DocID: "a", Rank: 1}, {DocID: "c", Rank: 2}}
	vector := []RankedResult{{DocID: "c", Rank: 1}, {DocID: "a", Rank: 2}}

	fused := RRFFuse(text, vector, 60)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused results, got %d", len(fused))
	}
	want := 1.0/61 + 1.0/62
	for _, f := range fused {
		if math.Abs(f.Score-want) > 1e-9 {
			t.Fatalf("expected fused score ~%v, got %v for %s", want, f.Score, f.DocID)
		}
	}
	if fused[0].DocID != "a" {
		t.Fatalf("expected a to win the text-rank tie-break, got %+v", fused)
	}
}

func TestRRFFuseHandlesAbsentBackend(t *testing.T) {
	text := []RankedResult{{DocID: "a", Rank: 1}}
	fused := RRFFuse(text, nil, 60)
	if len(fused) != 1 || fused[0].DocID != "a" {
		t.Fatalf("expected single fused result from text alone, got %+v", fused)
	}
}

func TestWeightedFuseNormalizesIndependently(t *testing.T) {
	text := []RankedResult{{DocID: "a", Score: 10}, {DocID: "b", Score: 0}}
	vector := []RankedResult{{DocID: "a", Score: 1}, {DocID: "b", Score: 2}}

	fused := WeightedFuse(text, vector, 0.5, 0.5)
	byID := map[string]Fused{}
	for _, f := range fused {
		byID[f.DocID] = f
	}
	// a: text norm 1.0, vector norm 0.0 -> 0.5; b: text norm 0.0, vector norm 1.0 -> 0.5
	if math.Abs(byID["a"].Score-0.5) > 1e-9 || math.Abs(byID["b"].Score-0.5) > 1e-9 {
		t.Fatalf("expected tied fused scores of 0.5, got %+v", byID)
	}
}

type fakeText struct{ results []RankedResult }

func (f fakeText) Search(ctx context.Context, query string) ([]RankedResult, error) {
	return f.results, nil
}

type fakeVector struct{ results []RankedResult }

func (f fakeVector) Search(ctx context.Context, vector []float32) ([]RankedResult, error) {
	return f.results, nil
}

func TestRunFansOutAndFusesBothBackends(t *testing.T) {
	text := fakeText{results: []RankedResult{{DocID: "a", Rank: 1}}}
	vec := fakeVector{results: []RankedResult{{DocID: "a", Rank: 1}}}

	out, err := Run(context.Background(), Request{Query: "q", Vector: []float32{1}}, nil, text, vec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].DocID != "a" {
		t.Fatalf("expected single fused doc a, got %+v", out)
	}
}

func TestRunWithOnlyTextBackend(t *testing.T) {
	text := fakeText{results: []RankedResult{{DocID: "a", Rank: 1}, {DocID: "b", Rank: 2}}}
	out, err := Run(context.Background(), Request{Query: "q"}, nil, text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fused results from text alone, got %+v", out)
	}
}
