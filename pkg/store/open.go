package store

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	SQLitePath    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// CacheSize > 0 puts an LRU read cache in front of persistent backends.
	CacheSize int
}

// Open returns the configured backend and a function releasing its resources.
func Open(ctx context.Context, opts Options) (KVStore, func() error, error) {
	var (
		kv      KVStore
		closeFn = func() error { return nil }
	)

	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), closeFn, nil
	case BackendSQLite:
		s, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		kv, closeFn = s, s.Close
	case BackendPostgres:
		s, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		kv, closeFn = s, s.Close
	case BackendRedis:
		s := NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		kv, closeFn = s, s.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}

	if opts.CacheSize > 0 {
		cached, err := NewCachedStore(kv, opts.CacheSize)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		kv = cached
	}
	return kv, closeFn, nil
}
