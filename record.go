package fhirmsg

import (
	"sort"
	"sync"
	"time"
)

// Record is the flattened scalar view of one received envelope, produced by
// the Parser. Records are immutable once appended to an Inbox.
type Record struct {
	ID         string
	ReceivedAt time.Time
	EventCode  string

	// Source system metadata from the header.
	SourceName     string
	SourceSoftware string
	SourceVersion  string
	SourceContact  string

	// Subject and sending parties.
	PatientName            string
	PatientBirthDate       string
	SenderName             string
	SenderOrganization     string
	SenderOrganizationType string

	// Document payload (event "document").
	DocumentTitle       string
	DocumentType        string
	DocumentCategory    string
	DocumentContentType string
	DocumentContent     string // decoded text, when the payload is textual
	DocumentBase64      string // encoded binary, when the payload is binary
	DocumentFilename    string
	DocumentDate        time.Time
	DocumentAuthorName  string

	// Communication payload (event "status").
	CommunicationText string
	CommunicationSent time.Time

	// Request payload.
	RequestDescription string
	RequestStatus      string
	RequestPriority    string
	RequestAuthoredOn  time.Time
	RequesterName      string
	RecipientName      string

	// ResponseToID is the correlation candidate: the identity of the request
	// envelope this one responds to, if any.
	ResponseToID string

	// StorageID is set when the external storage collaborator persisted the
	// envelope; empty otherwise.
	StorageID string

	EnvelopeID  string
	RawEnvelope string
}

// IsDocument reports whether the record carries a transferred document.
func (r *Record) IsDocument() bool { return r.EventCode == EventDocument }

// IsCommunication reports whether the record carries a text status message.
func (r *Record) IsCommunication() bool { return r.EventCode == EventStatus }

// IsBinary reports whether the document payload is opaque binary content.
func (r *Record) IsBinary() bool {
	return r.DocumentContentType != "" && IsBinaryType(r.DocumentContentType)
}

// Inbox is the append-only log of parsed records. Appends and snapshot reads
// are guarded; inject a fresh Inbox per consumer rather than sharing a
// process-wide one.
type Inbox struct {
	mu      sync.Mutex
	records []*Record
}

func NewInbox() *Inbox { return &Inbox{} }

// Append adds a record under exclusive access.
func (in *Inbox) Append(r *Record) {
	if r == nil {
		return
	}
	in.mu.Lock()
	in.records = append(in.records, r)
	in.mu.Unlock()
}

// Snapshot returns a copy of all records, newest first.
func (in *Inbox) Snapshot() []*Record {
	in.mu.Lock()
	out := make([]*Record, len(in.records))
	copy(out, in.records)
	in.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out
}

// Get returns the record with the given id.
func (in *Inbox) Get(id string) (*Record, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, r := range in.records {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Len returns the number of records appended so far.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.records)
}
