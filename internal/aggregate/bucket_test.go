package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/prism-search/prism/internal/document"
)

func docWithCategory(id, category string, price float64, at time.Time) document.Document {
	return document.Document{
		ID: id,
		Fields: map[string]document.Value{
			"category": document.String(category),
			"price":    document.F64(price),
			"created":  document.Timestamp(at),
		},
	}
}

func TestTermsAggregation(t *testing.T) {
	docs := []document.Document{
		docWithCategory("1", "books", 10, time.Time{}),
		docWithCategory("2", "books", 20, time.Time{}),
		docWithCategory("3", "toys", 5, time.Time{}),
	}
	out := runSpec(t, docs, map[string]any{
		"by_cat": map[string]any{"terms": map[string]any{"field": "category"}},
	})
	result := out["by_cat"].(map[string]any)
	buckets := result["buckets"].([]map[string]any)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d (%v)", len(buckets), buckets)
	}
	if buckets[0]["key"] != "books" || buckets[0]["doc_count"].(int64) != 2 {
		t.Fatalf("expected books bucket first with count 2, got %v", buckets[0])
	}
}

func TestTermsAggregationWithNestedMetric(t *testing.T) {
	docs := []document.Document{
		docWithCategory("1", "books", 10, time.Time{}),
		docWithCategory("2", "books", 20, time.Time{}),
		docWithCategory("3", "toys", 5, time.Time{}),
	}
	out := runSpec(t, docs, map[string]any{
		"by_cat": map[string]any{
			"terms": map[string]any{"field": "category"},
			"aggs": map[string]any{
				"avg_price": map[string]any{"avg": map[string]any{"field": "price"}},
			},
		},
	})
	buckets := out["by_cat"].(map[string]any)["buckets"].([]map[string]any)
	for _, b := range buckets {
		if b["key"] == "books" {
			if got := b["avg_price"].(float64); got != 15 {
				t.Fatalf("avg_price for books = %v, want 15", got)
			}
		}
	}
}

func TestHistogramAggregation(t *testing.T) {
	docs := []document.Document{
		docWithCategory("1", "a", 5, time.Time{}),
		docWithCategory("2", "a", 12, time.Time{}),
		docWithCategory("3", "a", 23, time.Time{}),
	}
	out := runSpec(t, docs, map[string]any{
		"h": map[string]any{"histogram": map[string]any{"field": "price", "interval": 10.0}},
	})
	buckets := out["h"].(map[string]any)["buckets"].([]map[string]any)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d (%v)", len(buckets), buckets)
	}
	if buckets[0]["key"].(float64) != 0 {
		t.Fatalf("first bucket key = %v, want 0", buckets[0]["key"])
	}
}

func TestDateHistogramAggregation(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	docs := []document.Document{
		docWithCategory("1", "a", 1, base),
		docWithCategory("2", "a", 1, base.Add(3*time.Hour)),
		docWithCategory("3", "a", 1, base.Add(48*time.Hour)),
	}
	out := runSpec(t, docs, map[string]any{
		"d": map[string]any{"date_histogram": map[string]any{"field": "created", "interval": "day"}},
	})
	buckets := out["d"].(map[string]any)["buckets"].([]map[string]any)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 day buckets, got %d (%v)", len(buckets), buckets)
	}
}

func TestRangeAggregationIncludesEmptyBuckets(t *testing.T) {
	docs := []document.Document{
		docWithCategory("1", "a", 5, time.Time{}),
		docWithCategory("2", "a", 50, time.Time{}),
	}
	out := runSpec(t, docs, map[string]any{
		"r": map[string]any{
			"range": map[string]any{
				"field": "price",
				"ranges": []any{
					map[string]any{"to": 10.0},
					map[string]any{"from": 10.0, "to": 20.0},
					map[string]any{"from": 20.0},
				},
			},
		},
	})
	buckets := out["r"].(map[string]any)["buckets"].([]map[string]any)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 range buckets (including empty), got %d (%v)", len(buckets), buckets)
	}
	if buckets[1]["doc_count"].(int64) != 0 {
		t.Fatalf("middle range bucket should be empty, got %v", buckets[1])
	}
}

func TestSplitSegmentsCoversWholeRange(t *testing.T) {
	segments := splitSegments(10000)
	if len(segments) == 0 {
		t.Fatal("expected at least one segment")
	}
	covered := 0
	for i, seg := range segments {
		if seg[0] != covered {
			t.Fatalf("segment %d starts at %d, want %d", i, seg[0], covered)
		}
		covered = seg[1]
	}
	if covered != 10000 {
		t.Fatalf("segments cover %d documents, want 10000", covered)
	}
}

func TestParallelCollectionIsDeterministic(t *testing.T) {
	scores := make([]float64, 50000)
	for i := range scores {
		scores[i] = float64(i % 7)
	}
	docs := docsWithScores(scores...)

	engine := NewEngine(0)
	first, err := engine.Run(context.Background(), docs, map[string]any{
		"s": map[string]any{"sum": map[string]any{"field": "score"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := engine.Run(context.Background(), docs, map[string]any{
		"s": map[string]any{"sum": map[string]any{"field": "score"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first["s"] != second["s"] {
		t.Fatalf("non-deterministic sum across runs: %v vs %v", first["s"], second["s"])
	}
}
