package fhirmsg

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ParserConfig wires a Parser's collaborators. Accept is required; the rest
// default to fresh or ambient instances.
type ParserConfig struct {
	Accept  AcceptPolicy
	Storage Storage
	Inbox   *Inbox
	Clock   xclock.Clock
	Logger  *xlog.Logger
	// Notify, when set, receives side-channel events (persist failures).
	Notify func(Event)
}

// Parser validates incoming raw envelopes and extracts a flattened Record
// from each. Field-level problems (unresolved references, undecodable
// payloads, failed persists) degrade to absent data; only malformed
// top-level JSON fails an envelope, and that failure never leaks past it.
type Parser struct {
	accept  AcceptPolicy
	storage Storage
	inbox   *Inbox
	clock   xclock.Clock
	logger  *xlog.Logger
	notify  func(Event)
}

// NewParser returns a Parser for the given configuration.
func NewParser(cfg ParserConfig) *Parser {
	p := &Parser{
		accept:  cfg.Accept,
		storage: cfg.Storage,
		inbox:   cfg.Inbox,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		notify:  cfg.Notify,
	}
	if p.accept == nil {
		p.accept = AcceptEvents(EventDocument, EventStatus)
	}
	if p.inbox == nil {
		p.inbox = NewInbox()
	}
	if p.clock == nil {
		p.clock = xclock.Default()
	}
	if p.logger == nil {
		p.logger = xlog.Default()
	}
	return p
}

// Inbox returns the received log records are appended to.
func (p *Parser) Inbox() *Inbox { return p.inbox }

// envelopePools sorts an envelope's entries into typed pools, one pass.
type envelopePools struct {
	headers       pool[*MessageHeader]
	endpoints     pool[*Endpoint]
	practitioners pool[*Practitioner]
	patients      pool[*Patient]
	documents     pool[*DocumentReference]
	comms         pool[*Communication]
	requests      pool[*CommunicationRequest]
	roles         pool[*PractitionerRole]
	organizations pool[*Organization]
}

func sortEntries(entries []Entry) *envelopePools {
	ps := &envelopePools{}
	for _, e := range entries {
		switch r := e.Resource.(type) {
		case *MessageHeader:
			ps.headers.add(e.Identity, r)
		case *Endpoint:
			ps.endpoints.add(e.Identity, r)
		case *Practitioner:
			ps.practitioners.add(e.Identity, r)
		case *Patient:
			ps.patients.add(e.Identity, r)
		case *DocumentReference:
			ps.documents.add(e.Identity, r)
		case *Communication:
			ps.comms.add(e.Identity, r)
		case *CommunicationRequest:
			ps.requests.add(e.Identity, r)
		case *PractitionerRole:
			ps.roles.add(e.Identity, r)
		case *Organization:
			ps.organizations.add(e.Identity, r)
		case *Unknown, nil:
			// Unknown kinds are carried, not processed.
		}
	}
	return ps
}

// practitionerByRef resolves a reference that may point at a practitioner
// directly or at a practitioner role, following the role to its
// practitioner.
func (ps *envelopePools) practitionerByRef(ref string) (*Practitioner, bool) {
	if role, ok := ps.roles.resolve(ref); ok {
		if pr, ok := ps.practitioners.resolve(role.PractitionerRef); ok {
			return pr, true
		}
		return nil, false
	}
	return ps.practitioners.resolve(ref)
}

// Parse deserializes and validates one raw envelope, resolves its internal
// references, decodes its payload and appends the resulting Record to the
// inbox. Skip outcomes satisfy IsSkip; malformed JSON returns a
// *StructuralError.
func (p *Parser) Parse(ctx context.Context, raw []byte) (*Record, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &StructuralError{Err: err}
	}
	if env.Kind != KindMessage {
		p.logger.Debug().Str("kind", env.Kind).Msg("not a message envelope, skipping")
		return nil, errSkipNotMessage
	}

	pools := sortEntries(env.Entries)
	if pools.headers.empty() {
		p.logger.Debug().Str("envelope_id", env.ID).Msg("envelope has no header entry, skipping")
		return nil, errSkipNoHeader
	}
	if pools.headers.size() > 1 {
		// Documented policy: first header in entry order wins.
		p.logger.Debug().
			Str("envelope_id", env.ID).
			Int("headers", pools.headers.size()).
			Msg("multiple header entries, using first")
	}
	hdr, _ := pools.headers.first()

	code := hdr.EventCode()
	if !p.accept(code, !pools.requests.empty()) {
		p.logger.Debug().
			Str("envelope_id", env.ID).
			Str("event", code).
			Msg("event not accepted by this parser, skipping")
		return nil, skipEvent(code)
	}

	rec := &Record{
		ID:          uuid.NewString(),
		ReceivedAt:  p.clock.Now(),
		EventCode:   code,
		EnvelopeID:  env.ID,
		RawEnvelope: string(raw),
	}
	p.extractHeader(hdr, rec)
	p.extractParties(pools, hdr, rec)
	p.extractSubject(pools, rec)
	p.extractDocument(pools, rec)
	p.extractCommunication(pools, rec)
	p.extractRequest(pools, rec)

	if p.storage != nil {
		if id, err := p.storage.Persist(ctx, &env); err != nil {
			// Persist failure is not a processing failure.
			p.logger.Warn().Err(err).Str("envelope_id", env.ID).Msg("storage persist failed")
			if p.notify != nil {
				p.notify(Event{Type: PersistError, EnvelopeID: env.ID, EventCode: code, Err: err})
			}
		} else {
			rec.StorageID = id
		}
	}

	p.inbox.Append(rec)
	p.logger.Info().
		Str("record_id", rec.ID).
		Str("envelope_id", env.ID).
		Str("event", code).
		Str("source", rec.SourceName).
		Msg("processed envelope")
	return rec, nil
}

func (p *Parser) extractHeader(hdr *MessageHeader, rec *Record) {
	rec.SourceName = hdr.Source.Name
	if rec.SourceName == "" {
		rec.SourceName = "Unknown Source"
	}
	rec.SourceSoftware = hdr.Source.Software
	rec.SourceVersion = hdr.Source.Version
	rec.SourceContact = hdr.Source.Contact
	if hdr.Response != nil && hdr.Response.Identifier != "" {
		rec.ResponseToID = hdr.Response.Identifier
		p.logger.Debug().Str("response_to", rec.ResponseToID).Msg("envelope is a response")
	}
}

func (p *Parser) extractParties(pools *envelopePools, hdr *MessageHeader, rec *Record) {
	if hdr.Sender != "" {
		if pr, ok := pools.practitionerByRef(hdr.Sender); ok {
			rec.SenderName = pr.DisplayName()
		} else {
			p.logger.Debug().Str("ref", hdr.Sender).Msg("sender reference unresolved")
		}
	}
	if org, ok := pools.organizations.first(); ok {
		rec.SenderOrganization = org.Name
		if len(org.Type) > 0 {
			rec.SenderOrganizationType = org.Type[0].Label()
		}
	}
}

func (p *Parser) extractSubject(pools *envelopePools, rec *Record) {
	if pat, ok := pools.patients.first(); ok {
		rec.PatientName = pat.DisplayName()
		rec.PatientBirthDate = pat.BirthDate
	}
}

func (p *Parser) extractDocument(pools *envelopePools, rec *Record) {
	doc, ok := pools.documents.first()
	if !ok {
		return
	}
	rec.DocumentTitle = doc.Description
	rec.DocumentType = "Document"
	if doc.Type != nil {
		if label := doc.Type.Label(); label != "" {
			rec.DocumentType = label
		}
	}
	if len(doc.Category) > 0 {
		rec.DocumentCategory = doc.Category[0].Label()
	}
	rec.DocumentDate = doc.Date

	if doc.AuthorRef != "" {
		if pr, ok := pools.practitionerByRef(doc.AuthorRef); ok {
			rec.DocumentAuthorName = pr.DisplayName()
		} else {
			p.logger.Debug().Str("ref", doc.AuthorRef).Msg("document author reference unresolved")
		}
	}

	for _, pc := range doc.Content {
		att, ok := pc.Attached()
		if !ok {
			continue
		}
		c := DecodeContent(att, p.logger)
		rec.DocumentContentType = c.ContentType
		rec.DocumentFilename = c.Filename
		if c.IsBinary {
			rec.DocumentBase64 = c.Base64()
		} else {
			rec.DocumentContent = c.Text
		}
		break
	}
}

func (p *Parser) extractCommunication(pools *envelopePools, rec *Record) {
	com, ok := pools.comms.first()
	if !ok {
		return
	}
	rec.CommunicationSent = com.Sent
	for _, pc := range com.Payload {
		att, ok := pc.Attached()
		if !ok {
			continue
		}
		if c := DecodeContent(att, p.logger); !c.IsBinary {
			rec.CommunicationText = c.Text
		}
		break
	}
	// Fall back to the communication's own sender when the header's did not
	// resolve.
	if rec.SenderName == "" && com.SenderRef != "" {
		if pr, ok := pools.practitionerByRef(com.SenderRef); ok {
			rec.SenderName = pr.DisplayName()
		}
	}
}

func (p *Parser) extractRequest(pools *envelopePools, rec *Record) {
	req, ok := pools.requests.first()
	if !ok {
		return
	}
	rec.RequestStatus = req.Status
	rec.RequestPriority = req.Priority
	rec.RequestAuthoredOn = req.AuthoredOn
	for _, pc := range req.Payload {
		att, ok := pc.Attached()
		if !ok {
			continue
		}
		if c := DecodeContent(att, p.logger); !c.IsBinary {
			rec.RequestDescription = c.Text
		}
		break
	}
	if req.RequesterRef != "" {
		if pr, ok := pools.practitionerByRef(req.RequesterRef); ok {
			rec.RequesterName = pr.DisplayName()
		} else {
			p.logger.Debug().Str("ref", req.RequesterRef).Msg("requester reference unresolved")
		}
	}
	if len(req.RecipientRefs) > 0 {
		if pr, ok := pools.practitionerByRef(req.RecipientRefs[0]); ok {
			rec.RecipientName = pr.DisplayName()
		}
	}
}
