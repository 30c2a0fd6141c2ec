package fhirmsg

import (
	"sort"
	"sync"
	"time"
)

// SentRecord tracks one outbound envelope's identity plus enough metadata to
// present it later. Appended once per successful send, never mutated.
type SentRecord struct {
	ID               string
	EnvelopeID       string
	SentAt           time.Time
	EventCode        string
	PatientName      string
	PatientBirthDate string
	Description      string
	RecipientName    string
	StorageID        string
	RawEnvelope      string
}

// SentLog is the append-only log of sent envelopes and the read-time join
// point for correlating responses back to their requests. The lookup is not
// part of the parse path: a response may arrive before anyone queries the
// match, or with no matching sent record at all, and neither is an error.
type SentLog struct {
	mu      sync.Mutex
	records []*SentRecord
}

func NewSentLog() *SentLog { return &SentLog{} }

// Record appends a sent record under exclusive access.
func (l *SentLog) Record(r *SentRecord) {
	if r == nil {
		return
	}
	l.mu.Lock()
	l.records = append(l.records, r)
	l.mu.Unlock()
}

// Snapshot returns a copy of all sent records, newest first.
func (l *SentLog) Snapshot() []*SentRecord {
	l.mu.Lock()
	out := make([]*SentRecord, len(l.records))
	copy(out, l.records)
	l.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.After(out[j].SentAt)
	})
	return out
}

// Get returns the sent record with the given record id.
func (l *SentLog) Get(id string) (*SentRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// FindByCorrelationID matches a response's correlation identifier against
// the recorded envelope identities. Both sides are normalized to tolerate
// scheme-prefixed and bare forms. When several outstanding sends share an
// identity the earliest appended wins; no match returns false, not an error.
func (l *SentLog) FindByCorrelationID(candidate string) (*SentRecord, bool) {
	if candidate == "" {
		return nil, false
	}
	want := NormalizeRef(candidate)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.EnvelopeID == "" {
			continue
		}
		if NormalizeRef(r.EnvelopeID) == want {
			return r, true
		}
	}
	return nil, false
}

// Len returns the number of sent records appended so far.
func (l *SentLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
