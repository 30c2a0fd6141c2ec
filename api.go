// Package fhirmsg implements the envelope engine for exchanging clinical
// communication events (document transfers, information requests, text
// responses) between two parties over an asynchronous chat-style transport.
//
// Outbound, the Builder assembles self-contained multi-resource envelopes
// and the Exchange sends them and records their identity for correlation.
// Inbound, the Parser validates raw envelopes, resolves cross-references,
// decodes payload content and appends a flattened Record to the Inbox; the
// SentLog joins responses back to their requests at read time.
package fhirmsg

import "context"

// Transport is the Strategy interface for the chat-style feed that carries
// serialized envelopes. The engine has no opinion on delivery reliability or
// ordering across envelopes.
type Transport interface {
	// Send delivers one serialized envelope to the other participants.
	Send(ctx context.Context, raw []byte) error
	// Receive drains the raw envelopes delivered since the previous call.
	Receive(ctx context.Context) ([][]byte, error)
	// Close releases underlying resources.
	Close(ctx context.Context) error
}

// Storage is the external persist-and-return-id collaborator. A failed
// persist is non-fatal to the caller: the envelope is still processed, the
// storage id just stays empty.
type Storage interface {
	Persist(ctx context.Context, env *Envelope) (string, error)
}

// AcceptPolicy decides which envelopes a parser instance processes. One
// deployment accepts a fixed set of event codes; the other is driven purely
// by the presence of a request payload carrier.
type AcceptPolicy func(eventCode string, hasRequestCarrier bool) bool

// AcceptEvents accepts envelopes whose header event code is listed.
func AcceptEvents(codes ...string) AcceptPolicy {
	accepted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		accepted[c] = struct{}{}
	}
	return func(eventCode string, _ bool) bool {
		_, ok := accepted[eventCode]
		return ok
	}
}

// AcceptRequests accepts any envelope carrying a CommunicationRequest entry,
// regardless of event code.
func AcceptRequests() AcceptPolicy {
	return func(_ string, hasRequestCarrier bool) bool {
		return hasRequestCarrier
	}
}

// Observer receives engine lifecycle events. Implementations should be
// non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// API is the complete exchange surface, for extensibility.
type API interface {
	SendDocument(ctx context.Context, subject Subject, title string, content []byte, filename string) (*Envelope, error)
	SendRequest(ctx context.Context, subject Subject, description string) (*Envelope, error)
	SendTextResponse(ctx context.Context, originalEnvelopeID string, subject Subject, text string) (*Envelope, error)
	SendDocumentResponse(ctx context.Context, originalEnvelopeID string, subject Subject, title string, content []byte, filename string) (*Envelope, error)
	PollOnce(ctx context.Context) int
	Run(ctx context.Context) error
	Inbox() *Inbox
	Sent() *SentLog
	AddObserver(obs Observer)
	Close(ctx context.Context) error
}

var _ API = (*Exchange)(nil)
