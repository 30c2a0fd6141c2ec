// Package memory provides an in-memory fhirmsg.Storage for development and
// testing.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/carebridge/fhirmsg"
)

// Store keeps serialized envelopes in a map keyed by storage id.
type Store struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

var _ fhirmsg.Storage = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[string][]byte)}
}

// Persist serializes and stores the envelope, returning its storage id.
func (s *Store) Persist(_ context.Context, env *fhirmsg.Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.rows[id] = raw
	s.mu.Unlock()
	return id, nil
}

// Get returns a stored envelope's raw bytes.
func (s *Store) Get(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.rows[id]
	return raw, ok
}

// Len reports the number of stored envelopes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
