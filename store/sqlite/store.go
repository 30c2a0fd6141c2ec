// Package sqlite provides a SQLite-backed fhirmsg.Storage. Envelopes are
// kept whole as JSON so the raw exchange can be audited later.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/carebridge/fhirmsg"
)

const schema = `
CREATE TABLE IF NOT EXISTS envelopes (
	id          TEXT PRIMARY KEY,
	envelope_id TEXT NOT NULL,
	event_code  TEXT NOT NULL,
	stored_at   TIMESTAMP NOT NULL,
	raw         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_envelopes_envelope_id ON envelopes(envelope_id);
`

// Store persists envelopes to a SQLite database.
type Store struct {
	db *sql.DB
}

var _ fhirmsg.Storage = (*Store)(nil)

// Open opens (and migrates) the database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Persist stores the envelope and returns its storage id.
func (s *Store) Persist(ctx context.Context, env *fhirmsg.Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal: %w", err)
	}
	code := fhirmsg.EventUnknown
	if hdr, ok := env.Header(); ok {
		code = hdr.EventCode()
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO envelopes (id, envelope_id, event_code, stored_at, raw) VALUES (?, ?, ?, ?, ?)`,
		id, env.ID, code, time.Now().UTC(), string(raw))
	if err != nil {
		return "", fmt.Errorf("sqlite: insert: %w", err)
	}
	return id, nil
}

// Get returns a stored envelope's raw bytes by storage id.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT raw FROM envelopes WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get: %w", err)
	}
	return []byte(raw), nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
