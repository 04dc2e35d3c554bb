// Package eventcounter provides a process-wide, lock-free incrementable
// event bag with pull-based readout.
//
// Grounded on the teacher's errors package, which keyed a fixed set of
// error codes to HTTP status codes in a switch statement
// (internal/errors.getStatusCodeForErrorCode). Here the fixed set of
// EventType codes is keyed to an atomic counter slot instead of a status
// code — same "closed enum, O(1) dispatch" shape, different payload.
//
// There is no package-level singleton: the facade owns one instance and
// passes it explicitly to every component that can raise an event.
package eventcounter

import "sync/atomic"

// knownEvents is the closed set of event types this counter tracks. Adding
// a new jwtguard.EventType requires adding it here too.
var knownEvents = []string{
	"missing-claim",
	"issuer-mismatch",
	"signature-invalid",
	"key-not-found",
	"expired",
	"not-yet-valid",
	"audience-mismatch",
	"azp-mismatch",
	"oversize-token",
	"jwks-parse-failed",
	"unsupported-algorithm",
	"unsupported-critical",
	"alg-key-mismatch",
	"unknown-issuer",
	"issuer-not-healthy",
	"malformed",
	"token-empty",
	"json-parse-failed",
	"oversize-string",
	"oversize-array",
	"depth-exceeded",
	"jwks-uri-resolution-failed",
	"jwks-load-failed",
	"jwks-json-parse-failed",
	"unsupported-jwks-type",
	"token-build-failed",
	"missing-recommended-element",
	"cache-hit",
	"cache-miss",
	"access-token-created",
	"id-token-created",
	"refresh-token-created",
	"internal-cache-error",
}

// Counter is a fixed-size array of atomic counters indexed by event type.
// Safe for concurrent Increment from any number of goroutines; Snapshot
// never blocks a writer.
type Counter struct {
	index  map[string]int
	values []atomic.Int64
}

// New builds a Counter with one atomic slot per known event type.
func New() *Counter {
	c := &Counter{
		index:  make(map[string]int, len(knownEvents)),
		values: make([]atomic.Int64, len(knownEvents)),
	}
	for i, e := range knownEvents {
		c.index[e] = i
	}
	return c
}

// Increment bumps the counter for event by 1. Unknown event names are
// silently ignored rather than panicking — a counter must never be able
// to crash a validation path.
func (c *Counter) Increment(event string) {
	if i, ok := c.index[event]; ok {
		c.values[i].Add(1)
	}
}

// Get returns the current value for event.
func (c *Counter) Get(event string) int64 {
	if i, ok := c.index[event]; ok {
		return c.values[i].Load()
	}
	return 0
}

// Snapshot returns a point-in-time copy of every counter, suitable for a
// pull-based scrape. The copy is not atomic across counters — individual
// values are each read atomically, but concurrent increments between
// reads are expected and harmless for monitoring purposes.
func (c *Counter) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(knownEvents))
	for _, e := range knownEvents {
		out[e] = c.Get(e)
	}
	return out
}
