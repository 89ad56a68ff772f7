package embed

import (
	"context"
	"testing"
)

type stubProvider struct {
	name string
	dim  int
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) Dimension() int    { return s.dim }
func (s *stubProvider) MaxBatchSize() int { return 10 }
func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func TestRegistryGetKnownModel(t *testing.T) {
	p := &stubProvider{name: "stub", dim: 4}
	r := NewRegistry(map[string]Provider{"my-model": p})

	got, err := r.Get("my-model")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != p {
		t.Fatalf("expected registry to return the registered provider")
	}
}

func TestRegistryGetUnknownModelErrors(t *testing.T) {
	r := NewRegistry(map[string]Provider{})
	if _, err := r.Get("ghost"); err == nil {
		t.Fatalf("expected an error for an unregistered model_id")
	}
}
