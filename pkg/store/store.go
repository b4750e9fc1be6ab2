// Package store provides the key-value storage the policy modules persist their state
// in. Backends are interchangeable; every account sees a prefixed view of one backend.
package store

import (
	"bytes"
	"context"
	"errors"
)

// ErrNotFound is returned by Item.Load and Map.Load when no value is stored.
var ErrNotFound = errors.New("not found")

// KVStore is a byte-oriented key-value store. Get returns (nil, nil) for missing keys.
// Iterate visits keys with the given prefix in ascending byte order.
type KVStore interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
}

// PrefixStore scopes every key under a fixed prefix.
type PrefixStore struct {
	parent KVStore
	prefix []byte
}

// NewPrefixStore returns a view of parent restricted to prefix.
func NewPrefixStore(parent KVStore, prefix []byte) *PrefixStore {
	return &PrefixStore{parent: parent, prefix: append([]byte(nil), prefix...)}
}

// AccountStore returns the view an account's policy module operates on.
func AccountStore(parent KVStore, account string) *PrefixStore {
	return NewPrefixStore(parent, []byte("acct/"+account+"/"))
}

func (p *PrefixStore) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

func (p *PrefixStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	return p.parent.Get(ctx, p.key(key))
}

func (p *PrefixStore) Set(ctx context.Context, key, value []byte) error {
	return p.parent.Set(ctx, p.key(key), value)
}

func (p *PrefixStore) Delete(ctx context.Context, key []byte) error {
	return p.parent.Delete(ctx, p.key(key))
}

func (p *PrefixStore) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	return p.parent.Iterate(ctx, p.key(prefix), func(key, value []byte) error {
		return fn(bytes.TrimPrefix(key, p.prefix), value)
	})
}

// prefixEnd returns the smallest key greater than every key with the prefix, or nil
// when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Has reports whether key holds a value.
func Has(ctx context.Context, s KVStore, key []byte) (bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}
