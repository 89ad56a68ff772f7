package main

import (
	"context"
	"fmt"

	"github.com/prism-search/prism/internal/config"
	"github.com/prism-search/prism/internal/storage"
)

// buildStore constructs the configured storage.Store backend (spec.md
// §4.1): a bare local store, a bare S3-compatible remote store, or a
// local-cached layer in front of remote.
func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "local":
		return storage.NewLocalStore(cfg.Local.Path)
	case "remote":
		return storage.NewRemoteStore(ctx, cfg.Remote.Bucket, cfg.Remote.Prefix, cfg.Remote.Region, cfg.Remote.Endpoint)
	case "cached":
		local, err := storage.NewLocalStore(cfg.Local.Path)
		if err != nil {
			return nil, err
		}
		remote, err := storage.NewRemoteStore(ctx, cfg.Remote.Bucket, cfg.Remote.Prefix, cfg.Remote.Region, cfg.Remote.Endpoint)
		if err != nil {
			return nil, err
		}
		// MaxEntries is a document-count budget; the cache itself tracks
		// bytes, so approximate a per-entry footprint rather than add a
		// second, byte-denominated config knob for the same tier.
		const approxBytesPerEntry = 1 << 20
		maxBytes := int64(cfg.Cache.MaxEntries) * approxBytesPerEntry
		mode := storage.WriteMode(cfg.Cache.WriteMode)
		return storage.NewCachedStore(local, remote, maxBytes, mode), nil
	default:
		return nil, fmt.Errorf("prismnode: unknown storage backend %q", cfg.Backend)
	}
}
