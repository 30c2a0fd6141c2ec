// Package memory provides an in-process chat-room transport for development
// and testing. Participants joining the same named room receive every
// envelope sent by the other participants, in send order.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/carebridge/fhirmsg"
)

const TransportName = "memory"

func init() {
	if err := fhirmsg.RegisterTransport(TransportName, func(cfg map[string]any) (fhirmsg.Transport, error) {
		return Join(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("fhirmsg/memory: failed to register transport: %w", err))
	}
}

// Config controls room membership.
type Config struct {
	// Room is the shared room name (default: "default").
	Room string
	// Participant identifies this client within the room. Defaults to an
	// auto-assigned name.
	Participant string
	// BufferSize caps each participant's pending queue (default: 1024).
	// Sends to a participant whose queue is full drop for that participant
	// only.
	BufferSize int
}

func ConfigFromMap(cfg map[string]any) Config {
	getStr := func(k, d string) string {
		if v, ok := cfg[k].(string); ok && v != "" {
			return v
		}
		return d
	}
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}
	return Config{
		Room:        getStr("room", "default"),
		Participant: getStr("participant", ""),
		BufferSize:  getInt("buffer_size", 1024),
	}
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"room":        c.Room,
		"participant": c.Participant,
		"buffer_size": c.BufferSize,
	}
}

// Process-wide room registry so independently built exchanges can meet in
// the same room by name.
var (
	roomsMu sync.Mutex
	rooms   = map[string]*room{}
)

type room struct {
	mu      sync.RWMutex
	members map[string]*Client
}

func getRoom(name string) *room {
	roomsMu.Lock()
	defer roomsMu.Unlock()
	r, ok := rooms[name]
	if !ok {
		r = &room{members: make(map[string]*Client)}
		rooms[name] = r
	}
	return r
}

// Client is one participant's handle on a room. It implements
// fhirmsg.Transport: Send fans out to every other participant, Receive
// drains what the others sent since the previous call.
type Client struct {
	room        *room
	roomName    string
	participant string
	closed      atomic.Bool

	mu      sync.Mutex
	pending [][]byte
	cap     int
}

var _ fhirmsg.Transport = (*Client)(nil)

var participantSeq uint64

// Join adds a participant to the configured room and returns its client.
func Join(cfg Config) *Client {
	if cfg.Room == "" {
		cfg.Room = "default"
	}
	if cfg.Participant == "" {
		cfg.Participant = fmt.Sprintf("participant-%d", atomic.AddUint64(&participantSeq, 1))
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1024
	}

	c := &Client{
		roomName:    cfg.Room,
		participant: cfg.Participant,
		cap:         cfg.BufferSize,
	}
	r := getRoom(cfg.Room)
	r.mu.Lock()
	r.members[cfg.Participant] = c
	r.mu.Unlock()
	c.room = r
	return c
}

// Participant returns this client's name within the room.
func (c *Client) Participant() string { return c.participant }

// Send delivers raw to every other participant currently in the room.
func (c *Client) Send(ctx context.Context, raw []byte) error {
	if c.closed.Load() {
		return errors.New("memory transport is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy so later mutation by the caller cannot leak into receivers.
	msg := make([]byte, len(raw))
	copy(msg, raw)

	c.room.mu.RLock()
	defer c.room.mu.RUnlock()
	for name, member := range c.room.members {
		if name == c.participant {
			continue
		}
		member.enqueue(msg)
	}
	return nil
}

func (c *Client) enqueue(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) >= c.cap {
		return
	}
	c.pending = append(c.pending, raw)
}

// Receive returns everything delivered since the previous call.
func (c *Client) Receive(ctx context.Context) ([][]byte, error) {
	if c.closed.Load() {
		return nil, errors.New("memory transport is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out, nil
}

// Close leaves the room. Pending envelopes are discarded.
func (c *Client) Close(_ context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	c.room.mu.Lock()
	delete(c.room.members, c.participant)
	c.room.mu.Unlock()
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	return nil
}
