package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// Document is a raw upstream feed body kept for a short while.
type Document struct {
	Body      []byte    `msgpack:"body"`
	FetchedAt time.Time `msgpack:"fetched_at"`
}

type Cache interface {
	Get(ctx context.Context, key string) (*Document, error)
	Set(ctx context.Context, key string, doc *Document, ttl time.Duration) error
	// Delete drops the keys, missing keys are ignored
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

type Config struct {
	// Backend is either "memory", "redis" or "none"
	Backend string `toml:"backend" env:"PODMERGE_CACHE_BACKEND, overwrite"`
	// TTL is how long the public feed document is kept
	TTL time.Duration `toml:"ttl" env:"PODMERGE_CACHE_TTL, overwrite"`
	// Size is the maximum number of documents kept by the memory backend
	Size int `toml:"size" env:"PODMERGE_CACHE_SIZE, overwrite"`
	// RedisURL is used by the redis backend, e.g. redis://localhost:6379/0
	RedisURL string `toml:"redis_url" env:"PODMERGE_CACHE_REDIS_URL, overwrite"`
	// RefreshSchedule is an optional cron expression to refresh the public feed ahead of requests
	RefreshSchedule string `toml:"refresh_schedule" env:"PODMERGE_CACHE_REFRESH_SCHEDULE, overwrite"`
}

// New creates a cache for the configured backend.
// Returns nil (and no error) when caching is disabled.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Size, cfg.TTL), nil
	case "redis":
		r, err := NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "none":
		return nil, nil
	default:
		return nil, errors.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}
