package fhirmsg

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ConnectionTypeChat marks endpoints reached over the chat transport.
const ConnectionTypeChat = "chat"

// defaultSubjectIDSystem namespaces the preserved prior identity of a
// re-identified subject when the party config does not set one.
const defaultSubjectIDSystem = "https://carebridge.example/identifiers/subject"

// Fixed document codings, matching the nursing-document profile this engine
// ships for.
var (
	documentTypeCoding     = Coding{System: "http://loinc.org", Code: "34746-8", Display: "Nurse Note"}
	documentCategoryCoding = Coding{System: "http://loinc.org", Code: "11543-6", Display: "Nursery records"}
)

// Person is the builder-side description of a practitioner.
type Person struct {
	Prefix           string
	Given            string
	Family           string
	IdentifierSystem string
	IdentifierValue  string
}

func (p Person) humanName() HumanName {
	n := HumanName{Family: p.Family}
	if p.Prefix != "" {
		n.Prefix = []string{p.Prefix}
	}
	if p.Given != "" {
		n.Given = []string{p.Given}
	}
	return n
}

// Display renders the person's full name.
func (p Person) Display() string { return p.humanName().Display() }

// OrganizationInfo is the builder-side description of the sending
// organization.
type OrganizationInfo struct {
	Name        string
	Identifiers []Identifier
	Type        *Coding
}

// Party holds everything the builder needs to assemble outgoing envelopes
// for one side of the exchange: both endpoints, the acting persons, the
// organization and the source software metadata.
type Party struct {
	SourceName         string
	SourceAddress      string
	DestinationName    string
	DestinationAddress string

	Software string
	Version  string
	Contact  string

	Sender       Person
	Receiver     Person
	Organization OrganizationInfo

	// SubjectIDSystem namespaces the prior identity preserved on a
	// re-identified subject. Defaults to defaultSubjectIDSystem.
	SubjectIDSystem string

	// Language tags attachment payloads, e.g. "de".
	Language string
}

// Subject identifies the patient an envelope concerns. A non-empty ID is a
// prior-context identity; the builder always assigns a fresh identity and
// preserves the old one as a secondary identifier.
type Subject struct {
	ID        string
	Name      string
	BirthDate string
}

// Builder assembles outgoing envelopes for the four event kinds. It performs
// no I/O, generates fresh identities for every entry, and is safe for
// concurrent use.
type Builder struct {
	party  Party
	clock  xclock.Clock
	logger *xlog.Logger
}

// NewBuilder returns a Builder for the given party configuration.
func NewBuilder(party Party) *Builder {
	if party.SubjectIDSystem == "" {
		party.SubjectIDSystem = defaultSubjectIDSystem
	}
	return &Builder{
		party:  party,
		clock:  xclock.Default(),
		logger: xlog.Default(),
	}
}

// WithClock injects a custom clock for envelope and payload timestamps.
func (b *Builder) WithClock(c xclock.Clock) *Builder {
	if c != nil {
		b.clock = c
	}
	return b
}

// WithLogger injects a custom logger.
func (b *Builder) WithLogger(l *xlog.Logger) *Builder {
	if l != nil {
		b.logger = l
	}
	return b
}

// Party returns the builder's party configuration.
func (b *Builder) Party() Party { return b.party }

// BuildDocumentTransfer assembles a "document" envelope carrying a binary
// document for the given subject.
func (b *Builder) BuildDocumentTransfer(subject Subject, title string, content []byte, filename string) *Envelope {
	return b.buildDocument(subject, title, content, filename, "")
}

// BuildDocumentResponse assembles a "document" envelope answering the
// envelope identified by originalEnvelopeID.
func (b *Builder) BuildDocumentResponse(originalEnvelopeID string, subject Subject, title string, content []byte, filename string) *Envelope {
	return b.buildDocument(subject, title, content, filename, originalEnvelopeID)
}

func (b *Builder) buildDocument(subject Subject, title string, content []byte, filename string, correlationID string) *Envelope {
	now := b.clock.Now()
	srcEp := b.endpointEntry(b.party.SourceName, b.party.SourceAddress)
	dstEp := b.endpointEntry(b.party.DestinationName, b.party.DestinationAddress)
	receiver := b.practitionerEntry(b.party.Receiver)
	sender := b.practitionerEntry(b.party.Sender)
	org := b.organizationEntry()
	role := b.roleEntry(sender.Identity, org.Identity)
	patient := b.subjectEntry(subject)

	if filename == "" {
		filename = title + ".pdf"
	}
	doc := newEntry(&DocumentReference{
		Status:      "current",
		Type:        &Coding{System: documentTypeCoding.System, Code: documentTypeCoding.Code, Display: documentTypeCoding.Display},
		Category:    []Coding{documentCategoryCoding},
		SubjectRef:  patient.Ref(),
		Date:        now,
		Description: title,
		AuthorRef:   role.Ref(),
		Content: []PayloadContent{{
			Attachment: EncodeAttachment(content, "application/pdf", filename, b.party.Language, now),
		}},
	})

	hdr := b.headerEntry(EventDocument, srcEp, dstEp, receiver, role.Ref(), correlationID)
	hdr.Resource.(*MessageHeader).Focus = []string{doc.Ref(), patient.Ref()}

	env := b.newEnvelope(now)
	env.Entries = append(env.Entries, hdr, srcEp, dstEp, receiver, patient, doc, org, role, sender)
	b.logger.Debug().
		Str("envelope_id", env.ID).
		Str("event", EventDocument).
		Int("entries", len(env.Entries)).
		Msg("assembled envelope")
	return env
}

// BuildRequest assembles a "request" envelope asking the other party for
// information about the given subject.
func (b *Builder) BuildRequest(subject Subject, description string) *Envelope {
	now := b.clock.Now()
	srcEp := b.endpointEntry(b.party.SourceName, b.party.SourceAddress)
	dstEp := b.endpointEntry(b.party.DestinationName, b.party.DestinationAddress)
	sender := b.practitionerEntry(b.party.Sender)
	receiver := b.practitionerEntry(b.party.Receiver)
	patient := b.subjectEntry(subject)

	req := newEntry(&CommunicationRequest{
		Status:        "active",
		Intent:        "order",
		Priority:      "routine",
		SubjectRef:    patient.Ref(),
		AuthoredOn:    now,
		RequesterRef:  sender.Ref(),
		RecipientRefs: []string{receiver.Ref()},
		Payload: []PayloadContent{{
			Attachment: EncodeAttachment([]byte(description), "text/plain", "Consult Request", b.party.Language, now),
		}},
	})

	hdr := b.headerEntry(EventRequest, srcEp, dstEp, receiver, sender.Ref(), "")
	hdr.Resource.(*MessageHeader).Focus = []string{req.Ref(), patient.Ref()}

	env := b.newEnvelope(now)
	env.Entries = append(env.Entries, hdr, srcEp, dstEp, sender, receiver, patient, req)
	b.logger.Debug().
		Str("envelope_id", env.ID).
		Str("event", EventRequest).
		Int("entries", len(env.Entries)).
		Msg("assembled envelope")
	return env
}

// BuildTextResponse assembles a "status" envelope carrying a free-text
// answer to the envelope identified by originalEnvelopeID.
func (b *Builder) BuildTextResponse(originalEnvelopeID string, subject Subject, text string) *Envelope {
	now := b.clock.Now()
	srcEp := b.endpointEntry(b.party.SourceName, b.party.SourceAddress)
	dstEp := b.endpointEntry(b.party.DestinationName, b.party.DestinationAddress)
	sender := b.practitionerEntry(b.party.Sender)
	receiver := b.practitionerEntry(b.party.Receiver)
	patient := b.subjectEntry(subject)

	com := newEntry(&Communication{
		Status:        "completed",
		SubjectRef:    patient.Ref(),
		SenderRef:     sender.Ref(),
		RecipientRefs: []string{receiver.Ref()},
		Sent:          now,
		Payload: []PayloadContent{{
			Attachment: EncodeAttachment([]byte(text), "text/plain", "Response", b.party.Language, now),
		}},
	})

	hdr := b.headerEntry(EventStatus, srcEp, dstEp, receiver, sender.Ref(), originalEnvelopeID)
	hdr.Resource.(*MessageHeader).Focus = []string{com.Ref(), patient.Ref()}

	env := b.newEnvelope(now)
	env.Entries = append(env.Entries, hdr, srcEp, dstEp, sender, receiver, patient, com)
	b.logger.Debug().
		Str("envelope_id", env.ID).
		Str("event", EventStatus).
		Int("entries", len(env.Entries)).
		Msg("assembled envelope")
	return env
}

func (b *Builder) newEnvelope(now time.Time) *Envelope {
	return &Envelope{
		Kind:      KindMessage,
		ID:        uuid.NewString(),
		Timestamp: now,
	}
}

func newEntry(res Resource) Entry {
	return Entry{Identity: uuid.NewString(), Resource: res}
}

func (b *Builder) endpointEntry(name, address string) Entry {
	return newEntry(&Endpoint{
		Status:         "active",
		ConnectionType: ConnectionTypeChat,
		Name:           name,
		Address:        address,
	})
}

func (b *Builder) practitionerEntry(p Person) Entry {
	pr := &Practitioner{Name: []HumanName{p.humanName()}}
	if p.IdentifierValue != "" {
		pr.Identifiers = []Identifier{{System: p.IdentifierSystem, Value: p.IdentifierValue}}
	}
	return newEntry(pr)
}

func (b *Builder) organizationEntry() Entry {
	o := b.party.Organization
	org := &Organization{Name: o.Name, Identifiers: o.Identifiers}
	if o.Type != nil {
		org.Type = []Coding{*o.Type}
	}
	return newEntry(org)
}

func (b *Builder) roleEntry(practitionerID, organizationID string) Entry {
	return newEntry(&PractitionerRole{
		PractitionerRef: RefTo(practitionerID),
		OrganizationRef: RefTo(organizationID),
	})
}

// subjectEntry builds the patient entry with a fresh identity. A prior
// identity on the subject is preserved as a secondary identifier, never
// reused as the entry identity.
func (b *Builder) subjectEntry(s Subject) Entry {
	p := &Patient{BirthDate: s.BirthDate}
	if s.Name != "" {
		p.Name = []HumanName{splitName(s.Name)}
	}
	if s.ID != "" {
		p.Identifiers = []Identifier{{System: b.party.SubjectIDSystem, Value: s.ID}}
	}
	return newEntry(p)
}

// splitName treats the last space-separated part as the family name and the
// rest as given names.
func splitName(full string) HumanName {
	n := HumanName{Use: "official"}
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
	case 1:
		n.Family = parts[0]
	default:
		n.Family = parts[len(parts)-1]
		n.Given = parts[:len(parts)-1]
	}
	return n
}

func (b *Builder) headerEntry(event string, srcEp, dstEp, receiver Entry, senderRef, correlationID string) Entry {
	h := &MessageHeader{
		Event: Coding{
			System: "https://carebridge.example/fhirmsg/CodeSystem/event-type",
			Code:   event,
		},
		Source: Source{
			EndpointRef: srcEp.Ref(),
			Name:        b.party.SourceName,
			Software:    b.party.Software,
			Version:     b.party.Version,
			Contact:     b.party.Contact,
		},
		Destination: Destination{
			EndpointRef: dstEp.Ref(),
			Name:        b.party.DestinationName,
			ReceiverRef: receiver.Ref(),
		},
		// The author is assumed to send their own messages.
		Sender: senderRef,
		Author: senderRef,
	}
	if correlationID != "" {
		h.Response = &Response{Identifier: correlationID, Code: "ok"}
	}
	return newEntry(h)
}
