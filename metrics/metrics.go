// Package metrics exposes Prometheus counters for the exchange via the
// observer hook.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carebridge/fhirmsg"
)

// Observer counts engine events by type and event code.
type Observer struct {
	sent      *prometheus.CounterVec
	processed *prometheus.CounterVec
	skipped   prometheus.Counter
	errors    *prometheus.CounterVec
	pollSkips prometheus.Counter
	sendDur   prometheus.Histogram
	parseDur  prometheus.Histogram
}

var _ fhirmsg.Observer = (*Observer)(nil)

// New registers the exchange metrics on reg and returns the observer. Pass
// prometheus.DefaultRegisterer for the default registry.
func New(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)
	return &Observer{
		sent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fhirmsg_envelopes_sent_total",
			Help: "Envelopes successfully handed to the transport.",
		}, []string{"event"}),
		processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fhirmsg_envelopes_processed_total",
			Help: "Received envelopes parsed into inbox records.",
		}, []string{"event"}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "fhirmsg_envelopes_skipped_total",
			Help: "Received envelopes deliberately ignored.",
		}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fhirmsg_errors_total",
			Help: "Engine errors by kind.",
		}, []string{"kind"}),
		pollSkips: f.NewCounter(prometheus.CounterOpts{
			Name: "fhirmsg_poll_ticks_skipped_total",
			Help: "Poll ticks skipped because the previous poll was in flight.",
		}),
		sendDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fhirmsg_send_duration_seconds",
			Help:    "Wall time from send start to transport accept.",
			Buckets: prometheus.DefBuckets,
		}),
		parseDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fhirmsg_parse_duration_seconds",
			Help:    "Wall time to parse one received envelope.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (o *Observer) OnEvent(e fhirmsg.Event) {
	switch e.Type {
	case fhirmsg.SendDone:
		o.sent.WithLabelValues(e.EventCode).Inc()
		o.sendDur.Observe(e.Duration.Seconds())
	case fhirmsg.ParseDone:
		o.processed.WithLabelValues(e.EventCode).Inc()
		o.parseDur.Observe(e.Duration.Seconds())
	case fhirmsg.ParseSkip:
		o.skipped.Inc()
	case fhirmsg.ParseError:
		o.errors.WithLabelValues("parse").Inc()
	case fhirmsg.PersistError:
		o.errors.WithLabelValues("persist").Inc()
	case fhirmsg.Error:
		o.errors.WithLabelValues("engine").Inc()
	case fhirmsg.PollSkipped:
		o.pollSkips.Inc()
	}
}
