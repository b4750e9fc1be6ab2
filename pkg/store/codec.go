package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Marshal encodes v as RFC 8785 canonical JSON so equal records are stored as equal bytes
// on every backend.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("store: canonicalize failed: %w", err)
	}
	return canonical, nil
}

// Unmarshal decodes a value written by Marshal.
func Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: unmarshal failed: %w", err)
	}
	return nil
}

// Item is a typed singleton record.
type Item[T any] struct {
	key []byte
}

func NewItem[T any](key string) Item[T] {
	return Item[T]{key: []byte(key)}
}

func (i Item[T]) Key() string { return string(i.key) }

// Load returns ErrNotFound when the record has never been saved.
func (i Item[T]) Load(ctx context.Context, s KVStore) (T, error) {
	v, ok, err := i.MayLoad(ctx, s)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%s: %w", i.key, ErrNotFound)
	}
	return v, nil
}

func (i Item[T]) MayLoad(ctx context.Context, s KVStore) (T, bool, error) {
	var v T
	raw, err := s.Get(ctx, i.key)
	if err != nil {
		return v, false, err
	}
	if raw == nil {
		return v, false, nil
	}
	if err := Unmarshal(raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (i Item[T]) Save(ctx context.Context, s KVStore, v T) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, i.key, raw)
}

func (i Item[T]) Remove(ctx context.Context, s KVStore) error {
	return s.Delete(ctx, i.key)
}

// Map is a typed namespace of records keyed by string.
type Map[T any] struct {
	prefix []byte
}

func NewMap[T any](namespace string) Map[T] {
	return Map[T]{prefix: []byte(namespace + "/")}
}

func (m Map[T]) key(k string) []byte {
	return append(append([]byte(nil), m.prefix...), k...)
}

func (m Map[T]) Load(ctx context.Context, s KVStore, k string) (T, error) {
	v, ok, err := m.MayLoad(ctx, s, k)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%s%s: %w", m.prefix, k, ErrNotFound)
	}
	return v, nil
}

func (m Map[T]) MayLoad(ctx context.Context, s KVStore, k string) (T, bool, error) {
	var v T
	raw, err := s.Get(ctx, m.key(k))
	if err != nil {
		return v, false, err
	}
	if raw == nil {
		return v, false, nil
	}
	if err := Unmarshal(raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (m Map[T]) Save(ctx context.Context, s KVStore, k string, v T) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, m.key(k), raw)
}

func (m Map[T]) Remove(ctx context.Context, s KVStore, k string) error {
	return s.Delete(ctx, m.key(k))
}

// Range visits every record in key order.
func (m Map[T]) Range(ctx context.Context, s KVStore, fn func(k string, v T) error) error {
	return s.Iterate(ctx, m.prefix, func(key, raw []byte) error {
		var v T
		if err := Unmarshal(raw, &v); err != nil {
			return err
		}
		return fn(string(key[len(m.prefix):]), v)
	})
}
