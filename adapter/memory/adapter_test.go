package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/fhirmsg"
)

func TestRoom_FanOutExcludesSender(t *testing.T) {
	ctx := context.Background()
	a := Join(Config{Room: t.Name(), Participant: "a"})
	b := Join(Config{Room: t.Name(), Participant: "b"})
	c := Join(Config{Room: t.Name(), Participant: "c"})
	defer a.Close(ctx)
	defer b.Close(ctx)
	defer c.Close(ctx)

	require.NoError(t, a.Send(ctx, []byte("one")))
	require.NoError(t, a.Send(ctx, []byte("two")))

	// The sender never receives its own envelopes.
	got, err := a.Receive(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, cl := range []*Client{b, c} {
		got, err := cl.Receive(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "one", string(got[0]))
		assert.Equal(t, "two", string(got[1]))
	}

	// Receive drains; a second call is empty until new sends arrive.
	got, err = b.Receive(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRoom_CloseLeavesRoom(t *testing.T) {
	ctx := context.Background()
	a := Join(Config{Room: t.Name(), Participant: "a"})
	b := Join(Config{Room: t.Name(), Participant: "b"})
	defer a.Close(ctx)

	require.NoError(t, b.Close(ctx))
	require.NoError(t, a.Send(ctx, []byte("late")))

	_, err := b.Receive(ctx)
	assert.Error(t, err)
	assert.Error(t, b.Send(ctx, []byte("x")))
	// Close is idempotent.
	assert.NoError(t, b.Close(ctx))
}

func TestRoom_BufferCap(t *testing.T) {
	ctx := context.Background()
	a := Join(Config{Room: t.Name(), Participant: "a"})
	b := Join(Config{Room: t.Name(), Participant: "b", BufferSize: 2})
	defer a.Close(ctx)
	defer b.Close(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(ctx, []byte{byte(i)}))
	}
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestConfigFromMap(t *testing.T) {
	cfg := ConfigFromMap(map[string]any{
		"room":        "ward-7",
		"participant": "his",
		"buffer_size": 16,
	})
	assert.Equal(t, "ward-7", cfg.Room)
	assert.Equal(t, "his", cfg.Participant)
	assert.Equal(t, 16, cfg.BufferSize)

	defaults := ConfigFromMap(nil)
	assert.Equal(t, "default", defaults.Room)
	assert.Empty(t, defaults.Participant)
	assert.Equal(t, 1024, defaults.BufferSize)
}

func TestFactoryRegistration(t *testing.T) {
	tr, err := fhirmsg.NewTransport(TransportName, map[string]any{
		"room":        t.Name(),
		"participant": "x",
	})
	require.NoError(t, err)
	defer tr.Close(context.Background())

	cl, ok := tr.(*Client)
	require.True(t, ok)
	assert.Equal(t, "x", cl.Participant())
}

// TestExchangesOverRoom runs two full exchanges against one room: document
// one way, request and correlated response the other.
func TestExchangesOverRoom(t *testing.T) {
	ctx := context.Background()

	hisParty := fhirmsg.Party{
		SourceName:      "General Hospital HIS",
		DestinationName: "Family Practice",
		Sender:          fhirmsg.Person{Prefix: "Dr.", Given: "Anna", Family: "Schmidt"},
		Receiver:        fhirmsg.Person{Prefix: "Dr.", Given: "Peter", Family: "Weber"},
		Organization:    fhirmsg.OrganizationInfo{Name: "General Hospital"},
	}
	gpParty := fhirmsg.Party{
		SourceName:      "Family Practice",
		DestinationName: "General Hospital HIS",
		Sender:          fhirmsg.Person{Prefix: "Dr.", Given: "Peter", Family: "Weber"},
		Receiver:        fhirmsg.Person{Prefix: "Dr.", Given: "Anna", Family: "Schmidt"},
		Organization:    fhirmsg.OrganizationInfo{Name: "Family Practice Weber"},
	}

	his, err := fhirmsg.NewExchangeBuilder().
		WithParty(hisParty).
		WithAccept(fhirmsg.AcceptRequests()).
		WithTransportInstance(Join(Config{Room: t.Name(), Participant: "his"})).
		Build()
	require.NoError(t, err)
	defer his.Close(ctx)

	gp, err := fhirmsg.NewExchangeBuilder().
		WithParty(gpParty).
		WithAccept(fhirmsg.AcceptEvents(fhirmsg.EventDocument, fhirmsg.EventStatus)).
		WithTransportInstance(Join(Config{Room: t.Name(), Participant: "gp"})).
		Build()
	require.NoError(t, err)
	defer gp.Close(ctx)

	patient := fhirmsg.Subject{Name: "Max Mustermann", BirthDate: "1985-03-15"}

	_, err = his.SendDocument(ctx, patient, "Discharge Letter", []byte("%PDF-1.4"), "discharge.pdf")
	require.NoError(t, err)
	require.Equal(t, 1, gp.PollOnce(ctx))
	docRec := gp.Inbox().Snapshot()[0]
	assert.Equal(t, "Discharge Letter", docRec.DocumentTitle)
	assert.Equal(t, "Max Mustermann", docRec.PatientName)

	reqEnv, err := gp.SendRequest(ctx, patient, "Please send the medication plan.")
	require.NoError(t, err)
	require.Equal(t, 1, his.PollOnce(ctx))
	reqRec := his.Inbox().Snapshot()[0]
	assert.Equal(t, "Please send the medication plan.", reqRec.RequestDescription)

	_, err = his.SendTextResponse(ctx, reqRec.EnvelopeID, patient, "Plan attached.")
	require.NoError(t, err)
	require.Equal(t, 1, gp.PollOnce(ctx))

	var respRec *fhirmsg.Record
	for _, r := range gp.Inbox().Snapshot() {
		if r.ResponseToID != "" {
			respRec = r
		}
	}
	require.NotNil(t, respRec)
	match, ok := gp.Sent().FindByCorrelationID(respRec.ResponseToID)
	require.True(t, ok)
	assert.Equal(t, reqEnv.ID, match.EnvelopeID)
}
