package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/prism-search/prism/internal/document"
)

var timeZero = time.Time{}

func TestFilterAggregation(t *testing.T) {
	docs := docsWithCategoryAndPrice()
	out := runSpec(t, docs, map[string]any{
		"expensive": map[string]any{
			"filter": map[string]any{"field": "price", "eq": "50"},
		},
	})
	body := out["expensive"].(map[string]any)
	if body["doc_count"].(int64) != 1 {
		t.Fatalf("doc_count = %v, want 1", body["doc_count"])
	}
}

func TestFiltersAggregationSeedsEmptyBuckets(t *testing.T) {
	docs := docsWithCategoryAndPrice()
	out := runSpec(t, docs, map[string]any{
		"by_cat": map[string]any{
			"filters": map[string]any{
				"filters": map[string]any{
					"books": map[string]any{"field": "category", "eq": "books"},
					"music": map[string]any{"field": "category", "eq": "music"},
				},
			},
		},
	})
	buckets := out["by_cat"].(map[string]any)["buckets"].(map[string]any)
	if _, ok := buckets["music"]; !ok {
		t.Fatalf("expected a music bucket even with zero matches, got %v", buckets)
	}
	books := buckets["books"].(map[string]any)
	if books["doc_count"].(int64) != 2 {
		t.Fatalf("books doc_count = %v, want 2", books["doc_count"])
	}
}

func TestGlobalAggregationIgnoresEnclosingScope(t *testing.T) {
	docs := docsWithCategoryAndPrice()
	out := runSpec(t, docs, map[string]any{
		"by_cat": map[string]any{
			"terms": map[string]any{"field": "category"},
			"aggs": map[string]any{
				"all_docs": map[string]any{
					"global": map[string]any{},
					"aggs": map[string]any{
						"count": map[string]any{"count": map[string]any{}},
					},
				},
			},
		},
	})
	buckets := out["by_cat"].(map[string]any)["buckets"].([]map[string]any)
	for _, b := range buckets {
		global := b["all_docs"].(map[string]any)
		if global["count"].(int64) != int64(len(docs)) {
			t.Fatalf("global count inside bucket %v = %v, want %d", b["key"], global["count"], len(docs))
		}
	}
}

func TestFilterRequiresPredicate(t *testing.T) {
	engine := NewEngine(0)
	_, err := engine.Run(context.Background(), nil, map[string]any{
		"f": map[string]any{"filter": map[string]any{"field": "price"}},
	})
	if err == nil {
		t.Fatal("expected error when filter has neither eq nor exists")
	}
}

func docsWithCategoryAndPrice() []document.Document {
	return []document.Document{
		docWithCategory("1", "books", 10, timeZero),
		docWithCategory("2", "books", 50, timeZero),
		docWithCategory("3", "toys", 5, timeZero),
	}
}
