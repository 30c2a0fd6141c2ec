package fhirmsg

import "time"

// EventType enumerates engine lifecycle events for the Observer pattern.
type EventType string

const (
	SendStart    EventType = "send_start"
	SendDone     EventType = "send_done"
	ParseDone    EventType = "parse_done"
	ParseSkip    EventType = "parse_skip"
	ParseError   EventType = "parse_error"
	PersistError EventType = "persist_error"
	PollSkipped  EventType = "poll_skipped"
	Error        EventType = "error"
)

// Event carries telemetry for observers.
type Event struct {
	Type       EventType
	EnvelopeID string
	EventCode  string
	RecordID   string
	Duration   time.Duration
	Err        error
}
