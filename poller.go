package fhirmsg

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// PollOnce drains the transport once and processes every delivered envelope
// independently. One malformed or panicking envelope never affects the rest
// of the batch. Returns the number of records produced.
func (x *Exchange) PollOnce(ctx context.Context) int {
	ctx = InjectAll(ctx, x.logger, x.clock)
	raws, err := x.transport.Receive(ctx)
	if err != nil {
		x.logger.Warn().Err(err).Msg("transport receive failed")
		x.notify(Event{Type: Error, Err: err})
		return 0
	}

	processed := 0
	for _, raw := range raws {
		if x.parseOne(ctx, raw) {
			processed++
		}
	}
	return processed
}

// parseOne parses a single raw envelope, containing panics and classifying
// the outcome for observers.
func (x *Exchange) parseOne(ctx context.Context, raw []byte) (ok bool) {
	start := x.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while parsing envelope: %v", r)
			x.logger.Error().Err(err).Msg("envelope processing panicked")
			x.notify(Event{Type: ParseError, Err: err, Duration: x.clock.Since(start)})
			ok = false
		}
	}()

	rec, err := x.parser.Parse(ctx, raw)
	switch {
	case err == nil:
		x.notify(Event{
			Type:       ParseDone,
			EnvelopeID: rec.EnvelopeID,
			EventCode:  rec.EventCode,
			RecordID:   rec.ID,
			Duration:   x.clock.Since(start),
		})
		return true
	case IsSkip(err):
		x.notify(Event{Type: ParseSkip, Err: err, Duration: x.clock.Since(start)})
		return false
	default:
		x.logger.Warn().Err(err).Msg("envelope rejected")
		x.notify(Event{Type: ParseError, Err: err, Duration: x.clock.Since(start)})
		return false
	}
}

// Run polls the transport on the configured interval until ctx is cancelled.
// Each tick runs in its own goroutine; if a tick is still in flight when the
// next fires, the new tick is skipped rather than stacked.
func (x *Exchange) Run(ctx context.Context) error {
	ticker := time.NewTicker(x.pollInterval)
	defer ticker.Stop()

	var inFlight atomic.Bool
	x.logger.Info().Dur("interval", x.pollInterval).Msg("poller started")

	for {
		select {
		case <-ctx.Done():
			x.logger.Info().Msg("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if !inFlight.CompareAndSwap(false, true) {
				x.logger.Debug().Msg("previous poll still in flight, skipping tick")
				x.notify(Event{Type: PollSkipped})
				continue
			}
			go func() {
				defer inFlight.Store(false)
				x.PollOnce(ctx)
			}()
		}
	}
}
