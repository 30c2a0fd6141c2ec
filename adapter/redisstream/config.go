package redisstream

import (
	"fmt"
	"os"
)

// Config for the Redis Streams transport.
type Config struct {
	// Connection
	Addr     string
	Username string
	Password string
	DB       int

	// Stream is the shared conversation key.
	Stream string
	// Participant identifies this client; its own sends are filtered out on
	// read.
	Participant string
	// Count caps entries fetched per Receive call.
	Count int64
	// MaxLenApprox trims the stream approximately on XADD when > 0.
	MaxLenApprox int64
}

// Defaults returns a Config with safe defaults.
func Defaults() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "fhirmsg"
	}
	return Config{
		Addr:        "127.0.0.1:6379",
		DB:          0,
		Stream:      "fhirmsg",
		Participant: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		Count:       128,
	}
}

// Validate checks Config completeness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.Participant == "" {
		return fmt.Errorf("config: participant required")
	}
	if c.Count < 1 {
		return fmt.Errorf("config: count must be >= 1, got %d", c.Count)
	}
	return nil
}

// toMap converts Config to the generic map expected by the transport
// factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":           c.Addr,
		"username":       c.Username,
		"password":       c.Password,
		"db":             c.DB,
		"stream":         c.Stream,
		"participant":    c.Participant,
		"count":          c.Count,
		"max_len_approx": c.MaxLenApprox,
	}
}

// ConfigFromMap safely converts a generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := m["db"].(int); ok {
		c.DB = v
	}
	if v, ok := m["stream"].(string); ok && v != "" {
		c.Stream = v
	}
	if v, ok := m["participant"].(string); ok && v != "" {
		c.Participant = v
	}
	switch v := m["count"].(type) {
	case int:
		if v > 0 {
			c.Count = int64(v)
		}
	case int64:
		if v > 0 {
			c.Count = v
		}
	}
	switch v := m["max_len_approx"].(type) {
	case int:
		if v > 0 {
			c.MaxLenApprox = int64(v)
		}
	case int64:
		if v > 0 {
			c.MaxLenApprox = v
		}
	}

	return c
}
