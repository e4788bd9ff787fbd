package fetch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/podmerge/podmerge/pkg/cache"
	"github.com/podmerge/podmerge/pkg/stats"
)

type upstream interface {
	Fetch(ctx context.Context, src Source, token string) ([]byte, error)
}

// CachingFetcher keeps public documents for a short while.
// Gated sources are always passed through: their content depends on the caller's token.
type CachingFetcher struct {
	next  upstream
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewCaching(next upstream, c cache.Cache, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{next: next, cache: c, ttl: ttl}
}

func (f *CachingFetcher) Fetch(ctx context.Context, src Source, token string) ([]byte, error) {
	if src.Gated() || f.cache == nil || f.ttl <= 0 {
		return f.next.Fetch(ctx, src, token)
	}

	key := cacheKey(src)
	logger := log.WithField("source", src.Name)

	doc, err := f.cache.Get(ctx, key)
	switch {
	case err == nil:
		stats.CacheHit()
		logger.WithField("age", time.Since(doc.FetchedAt).Round(time.Second)).Debug("cache hit")
		return doc.Body, nil
	case errors.Is(err, cache.ErrNotFound):
		stats.CacheMiss()
	default:
		stats.CacheError()
		logger.WithError(err).Warn("cache lookup failed")
	}

	// Concurrent misses share a single upstream request. It runs detached from
	// the first caller so an aborted request doesn't fail the others.
	ch := f.group.DoChan(key, func() (interface{}, error) {
		return f.refresh(context.WithoutCancel(ctx), src, key)
	})

	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "%s feed request abandoned", src.Name)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Refresh downloads the source and replaces the cached copy.
func (f *CachingFetcher) Refresh(ctx context.Context, src Source) error {
	if src.Gated() {
		return errors.Errorf("%s feed is gated and can't be cached", src.Name)
	}
	if f.cache == nil || f.ttl <= 0 {
		return nil
	}

	_, err, _ := f.group.Do(cacheKey(src), func() (interface{}, error) {
		return f.refresh(ctx, src, cacheKey(src))
	})
	return err
}

// Evict drops the cached copy of the source, so the next request goes upstream.
func (f *CachingFetcher) Evict(ctx context.Context, src Source) error {
	if src.Gated() || f.cache == nil {
		return nil
	}

	key := cacheKey(src)
	f.group.Forget(key)
	return f.cache.Delete(ctx, key)
}

func (f *CachingFetcher) refresh(ctx context.Context, src Source, key string) ([]byte, error) {
	body, err := f.next.Fetch(ctx, src, "")
	if err != nil {
		return nil, err
	}

	doc := &cache.Document{Body: body, FetchedAt: time.Now().UTC()}
	if err := f.cache.Set(ctx, key, doc, f.ttl); err != nil {
		stats.CacheError()
		log.WithError(err).WithField("source", src.Name).Warn("failed to cache feed")
	}

	return body, nil
}

func cacheKey(src Source) string {
	return "feed/" + src.URL
}
