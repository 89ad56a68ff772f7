package storage

import (
	"context"
	"testing"
)

func newTestCachedStore(t *testing.T, maxCacheBytes int64, mode WriteMode) (*CachedStore, *LocalStore, *LocalStore) {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	remote, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewCachedStore(local, remote, maxCacheBytes, mode), local, remote
}

func TestCachedStoreWriteThroughPopulatesBothTiers(t *testing.T) {
	ctx := context.Background()
	cs, local, remote := newTestCachedStore(t, 1<<20, WriteThrough)

	if err := cs.Write(ctx, "seg/0001", []byte("payload")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if ok, _ := local.Exists(ctx, "seg/0001"); !ok {
		t.Fatalf("expected write-through to populate the local tier")
	}
	if ok, _ := remote.Exists(ctx, "seg/0001"); !ok {
		t.Fatalf("expected the remote tier to hold the object")
	}
}

func TestCachedStoreWriteAroundSkipsLocal(t *testing.T) {
	ctx := context.Background()
	cs, local, remote := newTestCachedStore(t, 1<<20, WriteAround)

	if err := cs.Write(ctx, "seg/0001", []byte("payload")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if ok, _ := local.Exists(ctx, "seg/0001"); ok {
		t.Fatalf("expected write-around to leave the local tier cold")
	}
	if ok, _ := remote.Exists(ctx, "seg/0001"); !ok {
		t.Fatalf("expected the remote tier to hold the object")
	}
}

func TestCachedStoreReadPopulatesCacheOnMiss(t *testing.T) {
	ctx := context.Background()
	cs, local, remote := newTestCachedStore(t, 1<<20, WriteAround)

	if err := remote.Write(ctx, "seg/0001", []byte("from-remote")); err != nil {
		t.Fatalf("seed remote failed: %v", err)
	}

	data, err := cs.Read(ctx, "seg/0001")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "from-remote" {
		t.Fatalf("expected data from remote, got %q", data)
	}
	if ok, _ := local.Exists(ctx, "seg/0001"); !ok {
		t.Fatalf("expected a remote read to populate the local cache")
	}
}

func TestCachedStoreDeleteRemovesBothTiers(t *testing.T) {
	ctx := context.Background()
	cs, local, remote := newTestCachedStore(t, 1<<20, WriteThrough)
	if err := cs.Write(ctx, "seg/0001", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := cs.Delete(ctx, "seg/0001"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if ok, _ := local.Exists(ctx, "seg/0001"); ok {
		t.Fatalf("expected delete to clear the local tier")
	}
	if ok, _ := remote.Exists(ctx, "seg/0001"); ok {
		t.Fatalf("expected delete to clear the remote tier")
	}
}
