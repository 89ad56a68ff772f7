package federation

import (
	"context"
	"testing"
	"time"
)

func TestPoolGetReusesExistingConnection(t *testing.T) {
	p := NewPool(TLSConfig{AllowInsecure: true}, time.Minute)
	defer p.CloseAll()

	ctx := context.Background()
	c1, err := p.Get(ctx, "peer-a", "127.0.0.1:1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	c2, err := p.Get(ctx, "peer-a", "127.0.0.1:1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected a pooled connection to be reused")
	}
}

func TestPoolPruneRemovesIdleConnections(t *testing.T) {
	p := NewPool(TLSConfig{AllowInsecure: true}, time.Millisecond)
	defer p.CloseAll()

	ctx := context.Background()
	if _, err := p.Get(ctx, "peer-a", "127.0.0.1:1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	p.Prune(time.Now().Add(time.Second))

	p.mu.Lock()
	_, stillPresent := p.entries["peer-a"]
	p.mu.Unlock()
	if stillPresent {
		t.Fatalf("expected the idle connection to have been pruned")
	}
}
