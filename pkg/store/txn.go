package store

import (
	"bytes"
	"context"
	"sort"
)

// Txn buffers writes on top of a parent store. Reads see the buffered writes; nothing
// reaches the parent until Commit. Dropping a Txn without committing discards it.
type Txn struct {
	parent KVStore
	// nil value marks a deletion
	writes map[string][]byte
}

func NewTxn(parent KVStore) *Txn {
	return &Txn{parent: parent, writes: make(map[string][]byte)}
}

func (t *Txn) Get(ctx context.Context, key []byte) ([]byte, error) {
	if v, ok := t.writes[string(key)]; ok {
		if v == nil {
			return nil, nil
		}
		return append([]byte(nil), v...), nil
	}
	return t.parent.Get(ctx, key)
}

func (t *Txn) Set(_ context.Context, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	t.writes[string(key)] = append([]byte{}, value...)
	return nil
}

func (t *Txn) Delete(_ context.Context, key []byte) error {
	t.writes[string(key)] = nil
	return nil
}

// Iterate merges buffered writes with the parent's keys.
func (t *Txn) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	err := t.parent.Iterate(ctx, prefix, func(key, value []byte) error {
		merged[string(key)] = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return err
	}
	for k, v := range t.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// Commit flushes buffered writes to the parent in key order and resets the buffer.
func (t *Txn) Commit(ctx context.Context) error {
	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := t.writes[k]
		var err error
		if v == nil {
			err = t.parent.Delete(ctx, []byte(k))
		} else {
			err = t.parent.Set(ctx, []byte(k), v)
		}
		if err != nil {
			return err
		}
	}
	t.writes = make(map[string][]byte)
	return nil
}

// Discard drops buffered writes.
func (t *Txn) Discard() {
	t.writes = make(map[string][]byte)
}

// Pending returns the number of buffered writes.
func (t *Txn) Pending() int {
	return len(t.writes)
}
