package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// sqlStore implements KVStore over a single two-column table. The dialects only differ
// in placeholders and DDL.
type sqlStore struct {
	db     *sql.DB
	get    string
	upsert string
	del    string
	all    string
	scan   string
	scanTo string
}

func (s *sqlStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (s *sqlStore) Set(ctx context.Context, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.upsert, key, value); err != nil {
		return fmt.Errorf("failed to persist key: %w", err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, key []byte) error {
	if _, err := s.db.ExecContext(ctx, s.del, key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

func (s *sqlStore) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	end := prefixEnd(prefix)
	switch {
	case len(prefix) == 0:
		rows, err = s.db.QueryContext(ctx, s.all)
	case end != nil:
		rows, err = s.db.QueryContext(ctx, s.scanTo, prefix, end)
	default:
		rows, err = s.db.QueryContext(ctx, s.scan, prefix)
	}
	if err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}
