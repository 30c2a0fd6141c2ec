package fhirmsg

import (
	"errors"
	"fmt"
)

// ErrSkip marks an envelope the parser deliberately ignored: not a message,
// no header, or an event this parser instance does not accept. Skips are
// expected outcomes, not failures.
var ErrSkip = errors.New("envelope skipped")

var (
	errSkipNotMessage = fmt.Errorf("%w: top-level kind is not %q", ErrSkip, KindMessage)
	errSkipNoHeader   = fmt.Errorf("%w: no header entry", ErrSkip)
)

func skipEvent(code string) error {
	return fmt.Errorf("%w: event %q not accepted", ErrSkip, code)
}

// IsSkip reports whether err is a skip outcome.
func IsSkip(err error) bool { return errors.Is(err, ErrSkip) }

// StructuralError reports a malformed raw envelope. It aborts processing of
// that single envelope only and never affects others.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string { return fmt.Sprintf("malformed envelope: %v", e.Err) }
func (e *StructuralError) Unwrap() error { return e.Err }

// ErrUnknownTransport is returned by NewTransport for unregistered names.
type ErrUnknownTransport struct{ name string }

func (e ErrUnknownTransport) Error() string { return fmt.Sprintf("unknown transport: %s", e.name) }

var (
	ErrNoTransportConfigured         = errors.New("fhirmsg: no transport configured")
	ErrDefaultExchangeNotInitialized = errors.New("fhirmsg: default exchange not initialized")
)
