package federation

import (
	"context"
	"testing"
	"time"
)

func TestStartPruningRejectsMalformedSchedule(t *testing.T) {
	pool := NewPool(TLSConfig{AllowInsecure: true}, time.Minute)
	defer pool.CloseAll()

	if err := StartPruning(context.Background(), pool, PrunerConfig{Schedule: "not a cron expression"}); err == nil {
		t.Fatalf("expected an error for a malformed cron expression")
	}
}

func TestStartPruningRunsOnSchedule(t *testing.T) {
	pool := NewPool(TLSConfig{AllowInsecure: true}, time.Nanosecond)
	defer pool.CloseAll()
	if _, err := pool.Get(context.Background(), "peer-a", "127.0.0.1:1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := StartPruning(ctx, pool, PrunerConfig{Schedule: "@every 10ms"}); err != nil {
		t.Fatalf("StartPruning: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	pool.mu.Lock()
	_, present := pool.entries["peer-a"]
	pool.mu.Unlock()
	if present {
		t.Fatalf("expected the scheduled prune to have removed the idle connection")
	}
}
