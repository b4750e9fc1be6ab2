package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryStore implements KVStore in memory.
// Thread-safe via RWMutex.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.data[string(key)]; ok {
		// return copy to avoid race on mutation outside lock
		return append([]byte{}, v...), nil
	}
	return nil, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte{}, value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *MemoryStore) Iterate(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	type kv struct {
		k string
		v []byte
	}
	var matched []kv
	for k, v := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			matched = append(matched, kv{k: k, v: append([]byte(nil), v...)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].k < matched[j].k })
	for _, e := range matched {
		if err := fn([]byte(e.k), e.v); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
