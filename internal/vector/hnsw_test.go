package vector

import "testing"

func TestGraphSearchFindsExactMatch(t *testing.T) {
	g := NewGraph(MetricEuclidean, DefaultParams)
	g.Insert("a", []float32{0, 0})
	g.Insert("b", []float32{10, 10})
	g.Insert("c", []float32{1, 1})

	hits := g.Search([]float32{1, 1}, 1, 0)
	if len(hits) != 1 || hits[0].id != "c" {
		t.Fatalf("expected c to be the exact nearest match, got %+v", hits)
	}
}

func TestGraphSearchOrdersByDistance(t *testing.T) {
	g := NewGraph(MetricEuclidean, DefaultParams)
	g.Insert("near", []float32{1, 0})
	g.Insert("mid", []float32{5, 0})
	g.Insert("far", []float32{20, 0})

	hits := g.Search([]float32{0, 0}, 3, 0)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].id != "near" || hits[1].id != "mid" || hits[2].id != "far" {
		t.Fatalf("expected near < mid < far ordering, got %+v", hits)
	}
}

func TestGraphDegreeBoundedByM(t *testing.T) {
	params := Params{M: 2, EfConstruction: 10, EfSearch: 10}
	g := NewGraph(MetricEuclidean, params)
	for i := 0; i < 10; i++ {
		g.Insert(string(rune('a'+i)), []float32{float32(i), 0})
	}
	for id, neighbors := range g.neighbors {
		if len(neighbors) > params.M {
			t.Fatalf("node %s has %d neighbors, want <= %d", id, len(neighbors), params.M)
		}
	}
}

func TestCosineMetricRanksParallelVectorClosest(t *testing.T) {
	g := NewGraph(MetricCosine, DefaultParams)
	g.Insert("same-direction", []float32{2, 0})
	g.Insert("orthogonal", []float32{0, 2})
	g.Insert("opposite", []float32{-2, 0})

	hits := g.Search([]float32{1, 0}, 3, 0)
	if hits[0].id != "same-direction" {
		t.Fatalf("expected same-direction vector to be closest under cosine, got %+v", hits)
	}
	if hits[2].id != "opposite" {
		t.Fatalf("expected opposite-direction vector to be farthest under cosine, got %+v", hits)
	}
}
