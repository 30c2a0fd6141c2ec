package redisstream

import (
	"fmt"
	"time"

	"github.com/carebridge/fhirmsg"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Use builds an Exchange on the Redis Streams transport and installs it as
// the process-wide default.
//
// Example:
//
//	x := redisstream.Use(redisstream.Config{
//	    Addr:        "localhost:6379",
//	    Stream:      "ward-7",
//	    Participant: "gp",
//	},
//	    redisstream.WithParty(party),
//	)
func Use(cfg Config, opts ...Option) *fhirmsg.Exchange {
	eb := fhirmsg.NewExchangeBuilder().
		WithTransport(TransportName, cfg.toMap())

	for _, o := range opts {
		if o != nil {
			o(eb)
		}
	}

	x, err := eb.Build()
	if err != nil {
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}

	fhirmsg.SetDefault(x)
	return x
}

// Option configures the Exchange when calling Use.
type Option func(*fhirmsg.ExchangeBuilder)

// WithParty sets the sending-side party configuration.
func WithParty(p fhirmsg.Party) Option {
	return func(eb *fhirmsg.ExchangeBuilder) { eb.WithParty(p) }
}

// WithAccept sets the receive-side accept policy.
func WithAccept(a fhirmsg.AcceptPolicy) Option {
	return func(eb *fhirmsg.ExchangeBuilder) { eb.WithAccept(a) }
}

// WithStorage attaches an external storage collaborator.
func WithStorage(s fhirmsg.Storage) Option {
	return func(eb *fhirmsg.ExchangeBuilder) { eb.WithStorage(s) }
}

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(eb *fhirmsg.ExchangeBuilder) { eb.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(eb *fhirmsg.ExchangeBuilder) { eb.WithClock(c) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...fhirmsg.Observer) Option {
	return func(eb *fhirmsg.ExchangeBuilder) { eb.WithObserver(obs...) }
}

// WithPollInterval sets the poll cadence (default: 3s).
func WithPollInterval(d time.Duration) Option {
	return func(eb *fhirmsg.ExchangeBuilder) { eb.WithPollInterval(d) }
}
