package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS wallet_state (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// SQLite persists blobs in a single-table sqlite database on disk.
type SQLite struct {
	db *sqlx.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.Get(&value, `SELECT value FROM wallet_state WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Save(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO wallet_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
