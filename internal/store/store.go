// package store persists refresh tokens across process restarts.
//
// Tokens live in a single SQLite table keyed by a logical name so the two
// bridges can share one database file without colliding. Writes are
// last-write-wins; the bridges are single-process so no further guarantees
// are needed.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"
)

//go:embed schema.sql
var schema string

// Well-known token keys, one per bridge instance.
const (
	KeyMicrosoftRefresh = "microsoft_refresh"
	KeySpotifyRefresh   = "spotify_refresh"
)

// TokenStore is a durable key-value store for refresh tokens.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a TokenStore on the given database connection,
// creating the backing table if it does not exist.
func NewTokenStore(db *sql.DB) (*TokenStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create token table: %w", err)
	}
	return &TokenStore{db: db}, nil
}

// Get retrieves the value stored under key. A missing key yields an empty
// string and no error.
func (s *TokenStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM tokens WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query token: %w", err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *TokenStore) Set(key, value string) error {
	query := `
		INSERT INTO tokens (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}
