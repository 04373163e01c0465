package tokenstore

import (
	"database/sql"
	"errors"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// tokenKey is the fixed key the bearer token lives under. There is at most
// one active token per device.
const tokenKey = "user_token"

// Store persists a single bearer token in a sqlite-backed key-value table so
// the session survives process restarts.
type Store struct {
	conn *sql.DB
}

// New opens the token database and runs migrations.
func New(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// StoreToken writes the bearer token, replacing any previous one.
func (s *Store) StoreToken(token string) error {
	_, err := s.conn.Exec(
		"INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		tokenKey, token,
	)
	return err
}

// GetToken returns the stored token, or "" when none is stored. A missing
// row is not an error; callers treat any returned error as "no token" too.
func (s *Store) GetToken() (string, error) {
	var value string
	err := s.conn.QueryRow(
		"SELECT value FROM credentials WHERE key = ?", tokenKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// ClearToken removes the stored token. Invoked when a backend call comes
// back unauthorized.
func (s *Store) ClearToken() error {
	_, err := s.conn.Exec("DELETE FROM credentials WHERE key = ?", tokenKey)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
