package fhirmsg

import "github.com/trickstertwo/xlog"

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits engine events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("envelope_id", e.EnvelopeID),
		xlog.Str("event_code", e.EventCode),
		xlog.Str("record_id", e.RecordID),
	)
	switch e.Type {
	case ParseError, PersistError, Error:
		ev.Warn().Err(e.Err).Msg("fhirmsg event")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		ev.Debug().Msg("fhirmsg event")
	}
}
