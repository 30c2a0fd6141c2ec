package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/fhirmsg"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PersistAndGet(t *testing.T) {
	s := openTestStore(t)
	env := &fhirmsg.Envelope{
		Kind: fhirmsg.KindMessage,
		ID:   "env-1",
		Entries: []fhirmsg.Entry{
			{Identity: "h1", Resource: &fhirmsg.MessageHeader{Event: fhirmsg.Coding{Code: fhirmsg.EventDocument}}},
		},
	}

	id, err := s.Persist(context.Background(), env)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	raw, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	var out fhirmsg.Envelope
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "env-1", out.ID)
	hdr, ok := out.Header()
	require.True(t, ok)
	assert.Equal(t, fhirmsg.EventDocument, hdr.EventCode())
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.Error(t, err)
}

// TestStore_ParserIntegration verifies the storage id lands on records the
// parser produces.
func TestStore_ParserIntegration(t *testing.T) {
	s := openTestStore(t)

	env := &fhirmsg.Envelope{
		Kind: fhirmsg.KindMessage,
		ID:   "env-2",
		Entries: []fhirmsg.Entry{
			{Identity: "h1", Resource: &fhirmsg.MessageHeader{
				Event:  fhirmsg.Coding{Code: fhirmsg.EventDocument},
				Source: fhirmsg.Source{Name: "HIS"},
			}},
		},
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	p := fhirmsg.NewParser(fhirmsg.ParserConfig{
		Accept:  fhirmsg.AcceptEvents(fhirmsg.EventDocument),
		Storage: s,
	})
	rec, err := p.Parse(context.Background(), raw)
	require.NoError(t, err)
	require.NotEmpty(t, rec.StorageID)

	stored, err := s.Get(context.Background(), rec.StorageID)
	require.NoError(t, err)
	assert.Contains(t, string(stored), "env-2")
}
