package redisstream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/carebridge/fhirmsg"
)

const TransportName = "redis-streams"

// Stream entry fields.
const (
	fieldSender  = "sender"
	fieldPayload = "payload" // raw envelope bytes, no base64
)

func init() {
	if err := fhirmsg.RegisterTransport(TransportName, func(cfg map[string]any) (fhirmsg.Transport, error) {
		return NewTransport(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("fhirmsg/redisstream: failed to register transport: %w", err))
	}
}

// Transport implements fhirmsg.Transport on one shared Redis stream.
type Transport struct {
	cfg Config
	rdb *redis.Client

	mu     sync.Mutex
	lastID string // exclusive read cursor, empty until first Receive
}

var _ fhirmsg.Transport = (*Transport)(nil)

// NewTransport connects a client to the configured stream.
func NewTransport(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Transport{cfg: cfg, rdb: rdb}, nil
}

// Send appends one serialized envelope to the stream.
func (t *Transport) Send(ctx context.Context, raw []byte) error {
	args := &redis.XAddArgs{
		Stream: t.cfg.Stream,
		Values: map[string]any{
			fieldSender:  t.cfg.Participant,
			fieldPayload: raw,
		},
	}
	if t.cfg.MaxLenApprox > 0 {
		args.MaxLen = t.cfg.MaxLenApprox
		args.Approx = true
	}
	if err := t.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redisstream: xadd: %w", err)
	}
	return nil
}

// Receive returns the envelopes other participants appended since the
// previous call. The first call establishes the cursor at the stream's
// current tail, so history before joining is never replayed.
func (t *Transport) Receive(ctx context.Context) ([][]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastID == "" {
		id, err := t.tailID(ctx)
		if err != nil {
			return nil, err
		}
		t.lastID = id
	}

	// Exclusive range: everything strictly after the cursor.
	msgs, err := t.rdb.XRangeN(ctx, t.cfg.Stream, "("+t.lastID, "+", t.cfg.Count).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstream: xrange: %w", err)
	}

	var out [][]byte
	for _, m := range msgs {
		t.lastID = m.ID
		if s, _ := m.Values[fieldSender].(string); s == t.cfg.Participant {
			continue
		}
		if p, ok := m.Values[fieldPayload].(string); ok {
			out = append(out, []byte(p))
		}
	}
	return out, nil
}

// tailID returns the stream's last generated ID, or "0-0" when the stream
// does not exist yet.
func (t *Transport) tailID(ctx context.Context) (string, error) {
	info, err := t.rdb.XInfoStream(ctx, t.cfg.Stream).Result()
	if err != nil {
		if strings.Contains(err.Error(), "no such key") {
			return "0-0", nil
		}
		return "", fmt.Errorf("redisstream: xinfo: %w", err)
	}
	return info.LastGeneratedID, nil
}

// Close releases the Redis connection.
func (t *Transport) Close(_ context.Context) error {
	return t.rdb.Close()
}
