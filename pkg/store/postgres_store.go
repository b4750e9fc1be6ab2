package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements KVStore using PostgreSQL.
type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore{
		db:  db,
		get: `SELECT v FROM account_state WHERE k = $1`,
		upsert: `
		INSERT INTO account_state (k, v)
		VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET
			v = EXCLUDED.v
	`,
		del:    `DELETE FROM account_state WHERE k = $1`,
		all:    `SELECT k, v FROM account_state ORDER BY k`,
		scan:   `SELECT k, v FROM account_state WHERE k >= $1 ORDER BY k`,
		scanTo: `SELECT k, v FROM account_state WHERE k >= $1 AND k < $2 ORDER BY k`,
	}}
}

// OpenPostgres connects to url and ensures the schema exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS account_state (
		k BYTEA PRIMARY KEY,
		v BYTEA NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to migrate account_state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
