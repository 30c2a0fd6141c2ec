package fhirmsg

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Exchange is the Facade composing the Builder, Parser, Transport and the
// two logs for one side of the conversation. The send path and the receive
// path share no state beyond those logs.
type Exchange struct {
	builder   *Builder
	parser    *Parser
	transport Transport
	storage   Storage
	sent      *SentLog
	clock     xclock.Clock
	logger    *xlog.Logger

	pollInterval time.Duration

	observersMu sync.RWMutex
	observers   []Observer
}

// Builder returns the envelope builder.
func (x *Exchange) Builder() *Builder { return x.builder }

// Parser returns the envelope parser.
func (x *Exchange) Parser() *Parser { return x.parser }

// Inbox returns the received log.
func (x *Exchange) Inbox() *Inbox { return x.parser.Inbox() }

// Sent returns the sent-correlation log.
func (x *Exchange) Sent() *SentLog { return x.sent }

// SendDocument builds and sends a document-transfer envelope.
func (x *Exchange) SendDocument(ctx context.Context, subject Subject, title string, content []byte, filename string) (*Envelope, error) {
	env := x.builder.BuildDocumentTransfer(subject, title, content, filename)
	return env, x.send(ctx, env, subject, title)
}

// SendRequest builds and sends an information-request envelope.
func (x *Exchange) SendRequest(ctx context.Context, subject Subject, description string) (*Envelope, error) {
	env := x.builder.BuildRequest(subject, description)
	return env, x.send(ctx, env, subject, description)
}

// SendTextResponse builds and sends a text response correlated to the
// envelope identified by originalEnvelopeID.
func (x *Exchange) SendTextResponse(ctx context.Context, originalEnvelopeID string, subject Subject, text string) (*Envelope, error) {
	env := x.builder.BuildTextResponse(originalEnvelopeID, subject, text)
	return env, x.send(ctx, env, subject, text)
}

// SendDocumentResponse builds and sends a document correlated to the
// envelope identified by originalEnvelopeID.
func (x *Exchange) SendDocumentResponse(ctx context.Context, originalEnvelopeID string, subject Subject, title string, content []byte, filename string) (*Envelope, error) {
	env := x.builder.BuildDocumentResponse(originalEnvelopeID, subject, title, content, filename)
	return env, x.send(ctx, env, subject, title)
}

// send serializes the envelope, hands it to the transport and records the
// sent identity for later correlation. Nothing is recorded on a failed send.
func (x *Exchange) send(ctx context.Context, env *Envelope, subject Subject, description string) error {
	hdr, _ := env.Header()
	code := EventUnknown
	if hdr != nil {
		code = hdr.EventCode()
	}

	raw, err := json.Marshal(env)
	if err != nil {
		x.notify(Event{Type: Error, EnvelopeID: env.ID, EventCode: code, Err: err})
		return err
	}

	// Persist before dispatch, non-fatal like the parse path.
	var storageID string
	if x.storage != nil {
		if id, err := x.storage.Persist(ctx, env); err != nil {
			x.logger.Warn().Err(err).Str("envelope_id", env.ID).Msg("storage persist failed")
			x.notify(Event{Type: PersistError, EnvelopeID: env.ID, EventCode: code, Err: err})
		} else {
			storageID = id
		}
	}

	start := x.clock.Now()
	x.notify(Event{Type: SendStart, EnvelopeID: env.ID, EventCode: code})
	if err := x.transport.Send(ctx, raw); err != nil {
		x.notify(Event{Type: Error, EnvelopeID: env.ID, EventCode: code, Err: err})
		return err
	}

	x.sent.Record(&SentRecord{
		ID:               uuid.NewString(),
		EnvelopeID:       env.ID,
		SentAt:           x.clock.Now(),
		EventCode:        code,
		PatientName:      subject.Name,
		PatientBirthDate: subject.BirthDate,
		Description:      description,
		RecipientName:    x.builder.Party().Receiver.Display(),
		StorageID:        storageID,
		RawEnvelope:      string(raw),
	})
	x.notify(Event{Type: SendDone, EnvelopeID: env.ID, EventCode: code, Duration: x.clock.Since(start)})
	return nil
}

// Close releases the underlying transport.
func (x *Exchange) Close(ctx context.Context) error {
	return x.transport.Close(ctx)
}

// AddObserver registers an observer for engine events.
func (x *Exchange) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	x.observersMu.Lock()
	x.observers = append(x.observers, obs)
	x.observersMu.Unlock()
}

func (x *Exchange) notify(e Event) {
	x.observersMu.RLock()
	obs := make([]Observer, len(x.observers))
	copy(obs, x.observers)
	x.observersMu.RUnlock()
	for _, o := range obs {
		o.OnEvent(e)
	}
}

// ExchangeBuilder constructs Exchange instances (Builder pattern).
type ExchangeBuilder struct {
	party         Party
	accept        AcceptPolicy
	transportName string
	transportCfg  map[string]any
	transportInst Transport
	storage       Storage
	inbox         *Inbox
	sent          *SentLog
	logger        *xlog.Logger
	clock         xclock.Clock
	observers     []Observer
	pollInterval  time.Duration
}

// NewExchangeBuilder returns a builder with sensible defaults.
func NewExchangeBuilder() *ExchangeBuilder {
	return &ExchangeBuilder{
		pollInterval: 3 * time.Second, // matches the transport's chat cadence
	}
}

func (eb *ExchangeBuilder) WithParty(p Party) *ExchangeBuilder {
	eb.party = p
	return eb
}

func (eb *ExchangeBuilder) WithAccept(a AcceptPolicy) *ExchangeBuilder {
	eb.accept = a
	return eb
}

func (eb *ExchangeBuilder) WithTransport(name string, cfg map[string]any) *ExchangeBuilder {
	eb.transportName = name
	eb.transportCfg = cfg
	return eb
}

// WithTransportInstance accepts a ready Transport (e.g. from an adapter).
func (eb *ExchangeBuilder) WithTransportInstance(t Transport) *ExchangeBuilder {
	eb.transportInst = t
	return eb
}

func (eb *ExchangeBuilder) WithStorage(s Storage) *ExchangeBuilder {
	eb.storage = s
	return eb
}

func (eb *ExchangeBuilder) WithInbox(in *Inbox) *ExchangeBuilder {
	eb.inbox = in
	return eb
}

func (eb *ExchangeBuilder) WithSentLog(l *SentLog) *ExchangeBuilder {
	eb.sent = l
	return eb
}

func (eb *ExchangeBuilder) WithLogger(l *xlog.Logger) *ExchangeBuilder {
	eb.logger = l
	return eb
}

func (eb *ExchangeBuilder) WithClock(c xclock.Clock) *ExchangeBuilder {
	eb.clock = c
	return eb
}

func (eb *ExchangeBuilder) WithObserver(obs ...Observer) *ExchangeBuilder {
	for _, o := range obs {
		if o != nil {
			eb.observers = append(eb.observers, o)
		}
	}
	return eb
}

func (eb *ExchangeBuilder) WithPollInterval(d time.Duration) *ExchangeBuilder {
	if d > 0 {
		eb.pollInterval = d
	}
	return eb
}

func (eb *ExchangeBuilder) Build() (*Exchange, error) {
	var tr Transport
	var err error
	switch {
	case eb.transportInst != nil:
		tr = eb.transportInst
	case eb.transportName != "":
		tr, err = NewTransport(eb.transportName, eb.transportCfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoTransportConfigured
	}

	clk := eb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := eb.logger
	if lg == nil {
		lg = xlog.Default()
	}
	inbox := eb.inbox
	if inbox == nil {
		inbox = NewInbox()
	}
	sent := eb.sent
	if sent == nil {
		sent = NewSentLog()
	}

	x := &Exchange{
		builder:      NewBuilder(eb.party).WithClock(clk).WithLogger(lg),
		transport:    tr,
		storage:      eb.storage,
		sent:         sent,
		clock:        clk,
		logger:       lg,
		pollInterval: eb.pollInterval,
	}
	x.parser = NewParser(ParserConfig{
		Accept:  eb.accept,
		Storage: eb.storage,
		Inbox:   inbox,
		Clock:   clk,
		Logger:  lg,
		Notify:  x.notify,
	})

	// Attach a logging observer first unless one was supplied externally.
	hasLoggingObserver := false
	for _, o := range eb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		x.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range eb.observers {
		x.AddObserver(o)
	}
	return x, nil
}

// New constructs an Exchange via the builder and returns a close func for
// convenience.
func New(init func(eb *ExchangeBuilder)) (*Exchange, func() error, error) {
	eb := NewExchangeBuilder()
	if init != nil {
		init(eb)
	}
	x, err := eb.Build()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return x.Close(context.Background()) }
	return x, closeFn, nil
}
