package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "podmerge/"

// Redis implements caching layer for feed documents using Redis.
// Documents are stored msgpack encoded and gzipped.
type Redis struct {
	client *redis.Client
}

var _ Cache = (*Redis)(nil)

func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}

	return &Redis{client: client}, nil
}

func (c *Redis) Set(ctx context.Context, key string, doc *Document, ttl time.Duration) error {
	data, err := compressObj(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode document")
	}

	return c.client.Set(ctx, keyPrefix+key, data, ttl).Err()
}

func (c *Redis) Get(ctx context.Context, key string) (*Document, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	doc := &Document{}
	if err := decompressObj(data, doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode document")
	}

	return doc, nil
}

func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, keyPrefix+key)
	}
	return c.client.Del(ctx, prefixed...).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
