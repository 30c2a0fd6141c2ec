package fhirmsg

import (
	"context"
	"sync"
	"sync/atomic"
)

// Default exchange facade. Optional; multi-party processes hold their own
// Exchange instances instead.
var (
	defaultExchange atomic.Pointer[Exchange]
	defaultMu       sync.Mutex
)

// SetDefault installs the process-wide default Exchange.
func SetDefault(x *Exchange) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultExchange.Store(x)
}

// Default returns the process-wide default Exchange, or nil if SetDefault
// was never called.
func Default() *Exchange {
	return defaultExchange.Load()
}

// SendDocument sends via the default exchange.
func SendDocument(ctx context.Context, subject Subject, title string, content []byte, filename string) (*Envelope, error) {
	x := Default()
	if x == nil {
		return nil, ErrDefaultExchangeNotInitialized
	}
	return x.SendDocument(ctx, subject, title, content, filename)
}

// SendRequest sends via the default exchange.
func SendRequest(ctx context.Context, subject Subject, description string) (*Envelope, error) {
	x := Default()
	if x == nil {
		return nil, ErrDefaultExchangeNotInitialized
	}
	return x.SendRequest(ctx, subject, description)
}

// SendTextResponse sends via the default exchange.
func SendTextResponse(ctx context.Context, originalEnvelopeID string, subject Subject, text string) (*Envelope, error) {
	x := Default()
	if x == nil {
		return nil, ErrDefaultExchangeNotInitialized
	}
	return x.SendTextResponse(ctx, originalEnvelopeID, subject, text)
}

// SendDocumentResponse sends via the default exchange.
func SendDocumentResponse(ctx context.Context, originalEnvelopeID string, subject Subject, title string, content []byte, filename string) (*Envelope, error) {
	x := Default()
	if x == nil {
		return nil, ErrDefaultExchangeNotInitialized
	}
	return x.SendDocumentResponse(ctx, originalEnvelopeID, subject, title, content, filename)
}

// PollOnce polls via the default exchange. Returns 0 when no default is set.
func PollOnce(ctx context.Context) int {
	x := Default()
	if x == nil {
		return 0
	}
	return x.PollOnce(ctx)
}
