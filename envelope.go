package fhirmsg

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KindMessage is the only top-level envelope kind the engine handles.
const KindMessage = "message"

// RefScheme is the recognized reference scheme prefix. References may carry
// it or appear bare; both forms resolve identically.
const RefScheme = "urn:uuid:"

// Event codes carried in the header. Anything else parses as EventUnknown.
const (
	EventDocument = "document"
	EventRequest  = "request"
	EventStatus   = "status"
	EventUnknown  = "unknown"
)

// Resource kind discriminators as they appear on the wire.
const (
	KindHeader               = "MessageHeader"
	KindEndpoint             = "Endpoint"
	KindPractitioner         = "Practitioner"
	KindPatient              = "Patient"
	KindDocumentReference    = "DocumentReference"
	KindCommunication        = "Communication"
	KindCommunicationRequest = "CommunicationRequest"
	KindPractitionerRole     = "PractitionerRole"
	KindOrganization         = "Organization"
)

// Envelope is the self-contained multi-resource container traveling the
// transport, one per clinical communication event. Envelopes are assembled
// once by the Builder and never mutated afterwards.
type Envelope struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Entries   []Entry   `json:"entries"`
}

// Header returns the first header entry, if any. Envelopes with more than
// one header keep the first in entry order; the rest are ignored.
func (e *Envelope) Header() (*MessageHeader, bool) {
	for i := range e.Entries {
		if h, ok := e.Entries[i].Resource.(*MessageHeader); ok {
			return h, true
		}
	}
	return nil, false
}

// Entry pairs one typed resource with its identity. Other entries within the
// same envelope reference it via that identity, optionally prefixed with
// RefScheme.
type Entry struct {
	Identity string
	Resource Resource
}

// Ref returns the entry's identity as a scheme-prefixed reference string.
func (e Entry) Ref() string { return RefTo(e.Identity) }

// Resource is the closed set of typed resources an entry may carry. The
// concrete type is decided once during deserialization; unrecognized kinds
// land in Unknown instead of failing the envelope.
type Resource interface {
	ResourceKind() string
}

func (*MessageHeader) ResourceKind() string        { return KindHeader }
func (*Endpoint) ResourceKind() string             { return KindEndpoint }
func (*Practitioner) ResourceKind() string         { return KindPractitioner }
func (*Patient) ResourceKind() string              { return KindPatient }
func (*DocumentReference) ResourceKind() string    { return KindDocumentReference }
func (*Communication) ResourceKind() string        { return KindCommunication }
func (*CommunicationRequest) ResourceKind() string { return KindCommunicationRequest }
func (*PractitionerRole) ResourceKind() string     { return KindPractitionerRole }
func (*Organization) ResourceKind() string         { return KindOrganization }
func (u *Unknown) ResourceKind() string            { return u.Kind }

// MessageHeader carries the routing and event metadata of an envelope. It
// must be the first entry.
type MessageHeader struct {
	Event       Coding      `json:"event"`
	Source      Source      `json:"source"`
	Destination Destination `json:"destination"`
	Sender      string      `json:"sender,omitempty"`
	Author      string      `json:"author,omitempty"`
	Focus       []string    `json:"focus,omitempty"`
	Response    *Response   `json:"response,omitempty"`
}

// EventCode returns the header's event code, or EventUnknown when absent.
func (h *MessageHeader) EventCode() string {
	if h.Event.Code == "" {
		return EventUnknown
	}
	return h.Event.Code
}

// Source describes the sending system.
type Source struct {
	EndpointRef string `json:"endpointRef,omitempty"`
	Name        string `json:"name,omitempty"`
	Software    string `json:"software,omitempty"`
	Version     string `json:"version,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// Destination describes the receiving system.
type Destination struct {
	EndpointRef string `json:"endpointRef,omitempty"`
	Name        string `json:"name,omitempty"`
	ReceiverRef string `json:"receiverRef,omitempty"`
}

// Response correlates a response envelope back to the request envelope whose
// identity equals Identifier.
type Response struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code,omitempty"`
}

// Coding is a coded value with optional display text.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Label prefers the display text over the raw code.
func (c Coding) Label() string {
	if c.Display != "" {
		return c.Display
	}
	return c.Code
}

// Identifier is a namespaced secondary identifier.
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// HumanName holds the structured parts of a person name.
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Prefix []string `json:"prefix,omitempty"`
	Given  []string `json:"given,omitempty"`
	Family string   `json:"family,omitempty"`
}

// Display joins prefix, given names and family name with single spaces.
func (n HumanName) Display() string {
	parts := make([]string, 0, len(n.Prefix)+len(n.Given)+1)
	parts = append(parts, n.Prefix...)
	parts = append(parts, n.Given...)
	if n.Family != "" {
		parts = append(parts, n.Family)
	}
	return strings.Join(parts, " ")
}

// Endpoint is an addressable communication target of one party.
type Endpoint struct {
	Status         string `json:"status,omitempty"`
	ConnectionType string `json:"connectionType,omitempty"`
	Name           string `json:"name,omitempty"`
	Address        string `json:"address,omitempty"`
}

// Practitioner is an acting party: a human sender, author or receiver.
type Practitioner struct {
	Name        []HumanName  `json:"name,omitempty"`
	Identifiers []Identifier `json:"identifier,omitempty"`
}

// DisplayName renders the first name, or a placeholder when none exists.
func (p *Practitioner) DisplayName() string {
	if len(p.Name) > 0 {
		if d := p.Name[0].Display(); d != "" {
			return d
		}
	}
	return "Unknown Practitioner"
}

// Patient is the subject the communication concerns.
type Patient struct {
	Name        []HumanName  `json:"name,omitempty"`
	BirthDate   string       `json:"birthDate,omitempty"`
	Identifiers []Identifier `json:"identifier,omitempty"`
}

// DisplayName renders given and family name, or a placeholder when none
// exists.
func (p *Patient) DisplayName() string {
	if len(p.Name) > 0 {
		n := p.Name[0]
		n.Prefix = nil
		if d := n.Display(); d != "" {
			return d
		}
	}
	return "Unknown Patient"
}

// Organization is the institution a practitioner acts for.
type Organization struct {
	Name        string       `json:"name,omitempty"`
	Identifiers []Identifier `json:"identifier,omitempty"`
	Type        []Coding     `json:"type,omitempty"`
}

// PractitionerRole links a practitioner to an organization.
type PractitionerRole struct {
	PractitionerRef string   `json:"practitionerRef,omitempty"`
	OrganizationRef string   `json:"organizationRef,omitempty"`
	Code            []Coding `json:"code,omitempty"`
}

// Attachment is payload content plus its transport metadata. Binary content
// rides the wire text-safe via the JSON base64 encoding of Data.
type Attachment struct {
	ContentType string    `json:"contentType,omitempty"`
	Data        []byte    `json:"data,omitempty"`
	Title       string    `json:"title,omitempty"`
	Language    string    `json:"language,omitempty"`
	Creation    time.Time `json:"creation,omitzero"`
}

// PayloadContent is the tagged content variant of a payload carrier: either
// an Attachment or opaque other content, which the engine treats as absent.
type PayloadContent struct {
	Attachment *Attachment     `json:"attachment,omitempty"`
	Other      json.RawMessage `json:"other,omitempty"`
}

// Attached returns the attachment variant, if that is what the content is.
func (c PayloadContent) Attached() (*Attachment, bool) {
	return c.Attachment, c.Attachment != nil
}

// DocumentReference carries a transferred document.
type DocumentReference struct {
	Status      string           `json:"status,omitempty"`
	Type        *Coding          `json:"type,omitempty"`
	Category    []Coding         `json:"category,omitempty"`
	SubjectRef  string           `json:"subjectRef,omitempty"`
	Date        time.Time        `json:"date,omitzero"`
	Description string           `json:"description,omitempty"`
	AuthorRef   string           `json:"authorRef,omitempty"`
	Content     []PayloadContent `json:"content,omitempty"`
}

// Communication carries a free-text status/response message.
type Communication struct {
	Status        string           `json:"status,omitempty"`
	SubjectRef    string           `json:"subjectRef,omitempty"`
	SenderRef     string           `json:"senderRef,omitempty"`
	RecipientRefs []string         `json:"recipientRefs,omitempty"`
	Sent          time.Time        `json:"sent,omitzero"`
	Payload       []PayloadContent `json:"payload,omitempty"`
}

// CommunicationRequest asks the other party for information.
type CommunicationRequest struct {
	Status        string           `json:"status,omitempty"`
	Intent        string           `json:"intent,omitempty"`
	Priority      string           `json:"priority,omitempty"`
	SubjectRef    string           `json:"subjectRef,omitempty"`
	AuthoredOn    time.Time        `json:"authoredOn,omitzero"`
	RequesterRef  string           `json:"requesterRef,omitempty"`
	RecipientRefs []string         `json:"recipientRefs,omitempty"`
	Payload       []PayloadContent `json:"payload,omitempty"`
}

// Unknown preserves entries of a kind this engine does not model. They are
// carried through untouched and never fail a parse.
type Unknown struct {
	Kind string
	Raw  json.RawMessage
}

// entryHead is the discriminator part of a wire entry.
type entryHead struct {
	ResourceKind string `json:"resourceKind"`
	Identity     string `json:"identity"`
}

// MarshalJSON flattens identity, resourceKind and the resource fields into a
// single wire object.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Resource == nil {
		return nil, fmt.Errorf("entry %q has no resource", e.Identity)
	}
	var body []byte
	var err error
	if u, ok := e.Resource.(*Unknown); ok {
		body = u.Raw
		if len(body) == 0 {
			body = []byte("{}")
		}
	} else if body, err = json.Marshal(e.Resource); err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(e.Resource.ResourceKind())
	if err != nil {
		return nil, err
	}
	identity, err := json.Marshal(e.Identity)
	if err != nil {
		return nil, err
	}
	fields["resourceKind"] = kind
	fields["identity"] = identity
	return json.Marshal(fields)
}

// UnmarshalJSON decides the concrete resource type once, from the
// resourceKind discriminator. Unrecognized kinds decode into Unknown.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var head entryHead
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	e.Identity = head.Identity

	var res Resource
	switch head.ResourceKind {
	case KindHeader:
		res = &MessageHeader{}
	case KindEndpoint:
		res = &Endpoint{}
	case KindPractitioner:
		res = &Practitioner{}
	case KindPatient:
		res = &Patient{}
	case KindDocumentReference:
		res = &DocumentReference{}
	case KindCommunication:
		res = &Communication{}
	case KindCommunicationRequest:
		res = &CommunicationRequest{}
	case KindPractitionerRole:
		res = &PractitionerRole{}
	case KindOrganization:
		res = &Organization{}
	default:
		e.Resource = &Unknown{Kind: head.ResourceKind, Raw: append(json.RawMessage(nil), data...)}
		return nil
	}
	if err := json.Unmarshal(data, res); err != nil {
		return err
	}
	e.Resource = res
	return nil
}
