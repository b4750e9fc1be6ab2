package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	value   []byte
	present bool
}

// CachedStore is a write-through LRU read cache in front of a slower backend.
// Iterate always goes to the backend.
type CachedStore struct {
	backend KVStore
	cache   *lru.Cache[string, cacheEntry]
}

func NewCachedStore(backend KVStore, size int) (*CachedStore, error) {
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &CachedStore{backend: backend, cache: cache}, nil
}

func (c *CachedStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if e, ok := c.cache.Get(string(key)); ok {
		if !e.present {
			return nil, nil
		}
		return append([]byte{}, e.value...), nil
	}
	v, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(string(key), cacheEntry{value: append([]byte(nil), v...), present: v != nil})
	return v, nil
}

func (c *CachedStore) Set(ctx context.Context, key, value []byte) error {
	if err := c.backend.Set(ctx, key, value); err != nil {
		c.cache.Remove(string(key))
		return err
	}
	c.cache.Add(string(key), cacheEntry{value: append([]byte{}, value...), present: true})
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, key []byte) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.cache.Remove(string(key))
		return err
	}
	c.cache.Add(string(key), cacheEntry{present: false})
	return nil
}

func (c *CachedStore) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	return c.backend.Iterate(ctx, prefix, fn)
}

// Purge drops every cached entry.
func (c *CachedStore) Purge() {
	c.cache.Purge()
}
