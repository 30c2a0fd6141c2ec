// Package redisstream provides a Redis Streams transport for fhirmsg.
//
// Transport name: "redis-streams"
//
// The stream is the shared conversation: every participant XADDs serialized
// envelopes and reads everyone else's. A client starts at the stream's
// current tail, so only envelopes sent after it joined are delivered, and
// its own sends are filtered out on read.
//
// Minimal config keys:
//   - addr: "host:port" (default "127.0.0.1:6379")
//   - stream: stream key (default "fhirmsg")
//   - participant: this client's name (default "<hostname>-<pid>")
//   - count: max entries per read (default 128)
//   - max_len_approx: approximate stream cap on XADD (optional)
//
// Example builder usage:
//
//	x, _ := fhirmsg.NewExchangeBuilder().
//	    WithParty(party).
//	    WithTransport(redisstream.TransportName, map[string]any{
//	        "addr":        "localhost:6379",
//	        "stream":      "ward-7",
//	        "participant": "his",
//	    }).
//	    Build()
package redisstream
