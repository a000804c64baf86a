// Package redis implements a Redis-backed map store.
//
// Archives are stored chunked: a JSON manifest key plus numbered chunk
// keys, written in one MULTI/EXEC transaction so a reader never sees a
// half-saved map. Operations run under a per-op timeout and retry
// transient failures with exponential backoff.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fazildgr8/stretch-ai/mapstore"
)

// DefaultPrefix namespaces every key the store creates.
const DefaultPrefix = "stretch:maps"

// DefaultTimeout is the default per-operation timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultChunkSize is the default archive chunk size (1 MiB).
const DefaultChunkSize = 1 << 20

// Config configures the Redis map store.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Prefix namespaces keys (default: stretch:maps).
	Prefix string
	// Timeout is the per-operation timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on transient failures
	// (default 3).
	Retries int
	// ChunkSize is the archive chunk size in bytes (default 1 MiB).
	ChunkSize int
}

// Store persists map archives in Redis.
type Store struct {
	config Config
	client *goredis.Client
}

// New creates a Redis map store from the given config.
// Returns an error if the URL is empty or invalid. The connection is
// established lazily on first use.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis store requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis store: invalid URL: %w", err)
	}

	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	return &Store{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

func (s *Store) manifestKey(name string) string {
	return fmt.Sprintf("%s:%s:manifest", s.config.Prefix, name)
}

func (s *Store) chunkKey(name string, seq int) string {
	return fmt.Sprintf("%s:%s:chunk:%d", s.config.Prefix, name, seq)
}

// withRetry runs op under the per-op timeout, retrying with
// exponential backoff. Missing keys and already-classified store
// errors are final; only raw transport failures retry.
func (s *Store) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + s.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		lastErr = op(opCtx)
		cancel()

		var serr *mapstore.StoreError
		if lastErr == nil || errors.Is(lastErr, goredis.Nil) || errors.As(lastErr, &serr) {
			return lastErr
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// wrapOp maps a redis error onto the mapstore taxonomy.
func wrapOp(op, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goredis.Nil) {
		return mapstore.NotFound(op, name)
	}
	return mapstore.Wrap(op, name, err)
}

// readManifest fetches and decodes the manifest key. A missing key
// propagates goredis.Nil; undecodable JSON is reported as corrupt.
func (s *Store) readManifest(ctx context.Context, name string) (*mapstore.Manifest, error) {
	raw, err := s.client.Get(ctx, s.manifestKey(name)).Bytes()
	if err != nil {
		return nil, err
	}
	var m mapstore.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &mapstore.StoreError{Kind: mapstore.ErrCorrupt, Op: "load", Name: name,
			Err: fmt.Errorf("manifest: %w", err)}
	}
	return &m, nil
}

// Save implements mapstore.Store. Replacing a larger archive deletes
// the now-stale higher-seq chunks in the same transaction.
func (s *Store) Save(ctx context.Context, name string, data []byte) error {
	if err := mapstore.ValidateName(name); err != nil {
		return err
	}
	manifest, chunks := mapstore.SplitArchive(name, data, s.config.ChunkSize)
	body, err := json.Marshal(manifest)
	if err != nil {
		return wrapOp("save", name, err)
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		prev, err := s.readManifest(ctx, name)
		if err != nil {
			var serr *mapstore.StoreError
			if !errors.Is(err, goredis.Nil) && !errors.As(err, &serr) {
				return err
			}
			// Missing or unreadable old manifest: overwrite blindly.
			prev = nil
		}

		_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, s.manifestKey(name), body, 0)
			for _, c := range chunks {
				pipe.Set(ctx, s.chunkKey(name, c.Seq), c.Data, 0)
			}
			if prev != nil {
				for seq := manifest.Chunks + 1; seq <= prev.Chunks; seq++ {
					pipe.Del(ctx, s.chunkKey(name, seq))
				}
			}
			return nil
		})
		return err
	})
	return wrapOp("save", name, err)
}

// Load implements mapstore.Store. The archive is reassembled through
// the accumulator, so missing chunks, size drift, and checksum
// mismatches all surface as ErrCorrupt.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	if err := mapstore.ValidateName(name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.withRetry(ctx, func(ctx context.Context) error {
		manifest, err := s.readManifest(ctx, name)
		if err != nil {
			return err
		}

		acc := mapstore.NewAccumulator(name, 0)
		if err := acc.SetManifest(*manifest); err != nil {
			return err
		}
		for seq := 1; seq <= manifest.Chunks; seq++ {
			raw, err := s.client.Get(ctx, s.chunkKey(name, seq)).Bytes()
			if errors.Is(err, goredis.Nil) {
				return &mapstore.StoreError{Kind: mapstore.ErrCorrupt, Op: "load", Name: name,
					Err: fmt.Errorf("chunk %d missing", seq)}
			}
			if err != nil {
				return err
			}
			if err := acc.AddChunk(mapstore.Chunk{Seq: seq, Data: raw}); err != nil {
				return err
			}
		}

		data, err = acc.Bytes()
		return err
	})
	if err != nil {
		return nil, wrapOp("load", name, err)
	}
	return data, nil
}

// List implements mapstore.Store.
func (s *Store) List(ctx context.Context) ([]mapstore.Info, error) {
	var infos []mapstore.Info
	err := s.withRetry(ctx, func(ctx context.Context) error {
		infos = infos[:0]
		iter := s.client.Scan(ctx, 0, s.config.Prefix+":*:manifest", 0).Iterator()
		for iter.Next(ctx) {
			raw, err := s.client.Get(ctx, iter.Val()).Bytes()
			if errors.Is(err, goredis.Nil) {
				// Deleted between scan and get.
				continue
			}
			if err != nil {
				return err
			}
			var m mapstore.Manifest
			if err := json.Unmarshal(raw, &m); err != nil {
				// An unreadable manifest should not hide the rest.
				continue
			}
			infos = append(infos, mapstore.Info{Name: m.Name, Size: m.Size, SavedAt: m.SavedAt})
		}
		if err := iter.Err(); err != nil {
			return err
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
		return nil
	})
	if err != nil {
		return nil, wrapOp("list", "", err)
	}
	return infos, nil
}

// Delete implements mapstore.Store. Chunk keys are collected by scan
// rather than manifest count, so stale chunks from older saves go too.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := mapstore.ValidateName(name); err != nil {
		return err
	}

	err := s.withRetry(ctx, func(ctx context.Context) error {
		exists, err := s.client.Exists(ctx, s.manifestKey(name)).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return goredis.Nil
		}

		keys := []string{s.manifestKey(name)}
		iter := s.client.Scan(ctx, 0, fmt.Sprintf("%s:%s:chunk:*", s.config.Prefix, name), 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		return s.client.Del(ctx, keys...).Err()
	})
	return wrapOp("delete", name, err)
}

// Close implements mapstore.Store.
func (s *Store) Close() error {
	return s.client.Close()
}

// Verify Store implements the mapstore contract.
var _ mapstore.Store = (*Store)(nil)
