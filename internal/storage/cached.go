package storage

import (
	"context"

	"github.com/prism-search/prism/internal/cache"
)

// WriteMode selects how CachedStore propagates writes to the remote tier.
type WriteMode string

const (
	// WriteThrough writes to both the local cache and the remote tier.
	WriteThrough WriteMode = "through"
	// WriteAround writes only to the remote tier, leaving the cache cold.
	WriteAround WriteMode = "around"
)

// CachedStore layers a byte-bounded local cache in front of a remote
// Store. Reads cascade local → remote, populating the cache on a remote
// hit; writes go to both tiers (write-through) or remote-only
// (write-around) depending on WriteMode. Eviction is handled by
// cache.ByteBoundedLRU's multi-victim loop.
type CachedStore struct {
	local     Store
	remote    Store
	lru       *cache.ByteBoundedLRU
	writeMode WriteMode
}

// NewCachedStore wraps remote with a byte-bounded cache backed by local.
// maxCacheBytes bounds the cache's tracked size; local itself is expected
// to be a Store the process owns exclusively (e.g. a LocalStore over a
// scratch directory), since CachedStore evicts paths from it directly.
func NewCachedStore(local, remote Store, maxCacheBytes int64, mode WriteMode) *CachedStore {
	if mode == "" {
		mode = WriteThrough
	}
	cs := &CachedStore{local: local, remote: remote, writeMode: mode}
	cs.lru = cache.NewByteBoundedLRU(maxCacheBytes, func(key string, _ any) {
		_ = cs.local.Delete(context.Background(), key)
	})
	return cs
}

func (s *CachedStore) Write(ctx context.Context, path string, data []byte) error {
	if err := s.remote.Write(ctx, path, data); err != nil {
		return err
	}
	if s.writeMode == WriteThrough {
		if err := s.local.Write(ctx, path, data); err != nil {
			return err
		}
		s.lru.Put(path, struct{}{}, int64(len(data)))
	}
	return nil
}

func (s *CachedStore) Read(ctx context.Context, path string) ([]byte, error) {
	if _, ok := s.lru.Get(path); ok {
		data, err := s.local.Read(ctx, path)
		if err == nil {
			return data, nil
		}
		// Cache entry and backing file disagree; fall through to remote.
	}

	data, err := s.remote.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.local.Write(ctx, path, data); err == nil {
		s.lru.Put(path, struct{}{}, int64(len(data)))
	}
	return data, nil
}

func (s *CachedStore) ReadRange(ctx context.Context, path string, r ByteRange) ([]byte, error) {
	// Ranged reads bypass the cache: caching a partial object under the
	// same key as a full one would make Read's cache hit path wrong.
	return s.remote.ReadRange(ctx, path, r)
}

func (s *CachedStore) Exists(ctx context.Context, path string) (bool, error) {
	if _, ok := s.lru.Get(path); ok {
		return true, nil
	}
	return s.remote.Exists(ctx, path)
}

func (s *CachedStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return s.remote.List(ctx, prefix)
}

func (s *CachedStore) Delete(ctx context.Context, path string) error {
	if err := s.remote.Delete(ctx, path); err != nil {
		return err
	}
	s.lru.Remove(path)
	return s.local.Delete(ctx, path)
}

func (s *CachedStore) Rename(ctx context.Context, from, to string) error {
	if err := s.remote.Rename(ctx, from, to); err != nil {
		return err
	}
	s.lru.Remove(from)
	_ = s.local.Delete(ctx, from)
	return nil
}
