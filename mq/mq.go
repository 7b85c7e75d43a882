package mq

import "context"

// Payload is one unit of work exchanged with a transport, a generic
// key-value structure carried as UTF-8 JSON on the wire. The transport
// never interprets the contents beyond the outer structure.
type Payload map[string]interface{}

// Transport moves payloads between a dispatcher and a hosted queue, one
// durable queue per task key.
type Transport interface {
	// Retrieve returns at most one decoded payload for key, or nil when no
	// work is available. It never waits for new messages to appear.
	Retrieve(ctx context.Context, key string) (Payload, error)
	// Request enqueues payload for key. Best effort and asynchronous: only
	// failures detected before the hand-off come back to the caller.
	Request(ctx context.Context, key string, payload Payload) error
}
