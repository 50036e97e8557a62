// Package conn keeps a realtime connection alive: it dials through a
// Transport, drains an outbound queue in order, probes liveness and
// reconnects a bounded number of times.
package conn

import "context"

// Transport opens connections. Every Dial authenticates from scratch.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context) (Conn, error)

func (f TransportFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// Conn is one open message connection.
type Conn interface {
	// Send writes one message.
	Send(ctx context.Context, data []byte) error
	// Receive blocks for the next message.
	Receive(ctx context.Context) ([]byte, error)
	// Ping sends a liveness probe and returns once it is acknowledged.
	Ping(ctx context.Context) error
	Close() error
}
