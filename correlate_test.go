package fhirmsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentLog_FindByCorrelationID(t *testing.T) {
	l := NewSentLog()
	l.Record(&SentRecord{ID: "s1", EnvelopeID: "env-1"})
	l.Record(&SentRecord{ID: "s2", EnvelopeID: "urn:uuid:env-2"})

	// Both sides tolerate prefixed and bare forms.
	for _, candidate := range []string{"env-1", "urn:uuid:env-1"} {
		r, ok := l.FindByCorrelationID(candidate)
		require.True(t, ok, candidate)
		assert.Equal(t, "s1", r.ID)
	}
	r, ok := l.FindByCorrelationID("env-2")
	require.True(t, ok)
	assert.Equal(t, "s2", r.ID)

	_, ok = l.FindByCorrelationID("env-3")
	assert.False(t, ok)
	_, ok = l.FindByCorrelationID("")
	assert.False(t, ok)
}

// TestSentLog_EarliestMatchWins pins the tie-break for duplicate envelope
// identities.
func TestSentLog_EarliestMatchWins(t *testing.T) {
	l := NewSentLog()
	l.Record(&SentRecord{ID: "first", EnvelopeID: "dup"})
	l.Record(&SentRecord{ID: "second", EnvelopeID: "dup"})

	r, ok := l.FindByCorrelationID("dup")
	require.True(t, ok)
	assert.Equal(t, "first", r.ID)
}

func TestSentLog_SnapshotNewestFirst(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	l := NewSentLog()
	l.Record(&SentRecord{ID: "old", SentAt: base})
	l.Record(&SentRecord{ID: "new", SentAt: base.Add(time.Minute)})
	l.Record(&SentRecord{ID: "mid", SentAt: base.Add(30 * time.Second)})

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "new", snap[0].ID)
	assert.Equal(t, "mid", snap[1].ID)
	assert.Equal(t, "old", snap[2].ID)
	assert.Equal(t, 3, l.Len())

	// Snapshot is a copy; mutating it leaves the log intact.
	snap[0] = nil
	again := l.Snapshot()
	assert.Equal(t, "new", again[0].ID)
}

func TestSentLog_Get(t *testing.T) {
	l := NewSentLog()
	l.Record(&SentRecord{ID: "s1", Description: "question"})
	r, ok := l.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "question", r.Description)
	_, ok = l.Get("missing")
	assert.False(t, ok)

	l.Record(nil)
	assert.Equal(t, 1, l.Len())
}

func TestInbox_SnapshotNewestFirst(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	in := NewInbox()
	in.Append(&Record{ID: "a", ReceivedAt: base})
	in.Append(&Record{ID: "b", ReceivedAt: base.Add(time.Second)})
	in.Append(nil)

	snap := in.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, "a", snap[1].ID)

	r, ok := in.Get("a")
	require.True(t, ok)
	assert.Equal(t, base, r.ReceivedAt)
	_, ok = in.Get("zzz")
	assert.False(t, ok)
}

// TestInbox_StableOrderForEqualTimestamps verifies records received in the
// same instant keep their append order.
func TestInbox_StableOrderForEqualTimestamps(t *testing.T) {
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	in := NewInbox()
	in.Append(&Record{ID: "one", ReceivedAt: at})
	in.Append(&Record{ID: "two", ReceivedAt: at})

	snap := in.Snapshot()
	assert.Equal(t, "one", snap[0].ID)
	assert.Equal(t, "two", snap[1].ID)
}
