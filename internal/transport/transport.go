package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// Transport is a MAVLink session endpoint.
type Transport interface {
	// Poll returns the next pending frame without blocking, or nil when none is queued.
	Poll() (Frame, error)

	// Send writes one frame to the peer.
	Send(ctx context.Context, frame Frame) error

	// Close releases the endpoint. Further calls fail with ErrClosed.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) { return f(ctx) }
