package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists account state in a local SQLite file.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore wraps an open sqlite handle and creates the table if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{sqlStore{
		db:     db,
		get:    `SELECT v FROM account_state WHERE k = ?`,
		upsert: `INSERT INTO account_state (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		del:    `DELETE FROM account_state WHERE k = ?`,
		all:    `SELECT k, v FROM account_state ORDER BY k`,
		scan:   `SELECT k, v FROM account_state WHERE k >= ? ORDER BY k`,
		scanTo: `SELECT k, v FROM account_state WHERE k >= ? AND k < ? ORDER BY k`,
	}}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite serialises writers; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS account_state (
        k BLOB PRIMARY KEY,
        v BLOB NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
