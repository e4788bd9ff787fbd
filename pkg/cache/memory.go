package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process cache with a fixed expiration.
type Memory struct {
	lru *expirable.LRU[string, *Document]
}

var _ Cache = (*Memory)(nil)

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 1
	}
	return &Memory{
		lru: expirable.NewLRU[string, *Document](size, nil, ttl),
	}
}

func (m *Memory) Get(_ context.Context, key string) (*Document, error) {
	doc, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Set stores the document. The expiration is fixed when the cache is
// created, so ttl only matters when it disables caching.
func (m *Memory) Set(_ context.Context, key string, doc *Document, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.lru.Add(key, doc)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.lru.Remove(key)
	}
	return nil
}

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
