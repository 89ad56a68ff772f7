package embed

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/prism-search/prism/internal/perr"
)

// L2Cache is the persistent key-value layer behind L1Cache, backed by a
// WAL-mode SQLite database so concurrent readers don't block the
// writer (spec.md §5's "Embedding cache L2 ... runs in write-ahead-log
// mode with batched multi-get/pipelined writes").
type L2Cache struct {
	db *sql.DB
}

// NewL2Cache opens (creating if needed) a SQLite database at path in
// WAL mode and ensures its schema exists.
func NewL2Cache(path string) (*L2Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, perr.IO("embed.l2_open", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, perr.IO("embed.l2_wal", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (key TEXT PRIMARY KEY, vector BLOB NOT NULL)`); err != nil {
		return nil, perr.IO("embed.l2_schema", err)
	}
	return &L2Cache{db: db}, nil
}

func (c *L2Cache) Close() error { return c.db.Close() }

// MultiGet fetches every cached vector for keys in a single query
// (spec.md §4.8's "bulk reads use a single multi-get").
func (c *L2Cache) MultiGet(ctx context.Context, keys []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = k
	}
	query := fmt.Sprintf("SELECT key, vector FROM embeddings WHERE key IN (%s)", strings.Join(placeholders, ","))

	err := withRetry(ctx, func() error {
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var blob []byte
			if err := rows.Scan(&key, &blob); err != nil {
				return err
			}
			out[key] = decodeVector(blob)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, perr.Backend("embed.l2_multiget", err)
	}
	return out, nil
}

// PipelinedPut writes every entry in one transaction (spec.md §4.8's
// "bulk writes use a single pipelined write").
func (c *L2Cache) PipelinedPut(ctx context.Context, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}
	return withRetry(ctx, func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (key, vector) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET vector = excluded.vector`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for key, vec := range entries {
			if _, err := stmt.ExecContext(ctx, key, encodeVector(vec)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func withRetry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.Retry(op, b)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
