// Package fake provides an in-memory transport peer for tests.
package fake

import (
	"context"
	"sync"

	"github.com/rov-control/rovd/internal/transport"
)

// Responder produces the frames a peer answers with after receiving frame.
type Responder func(frame transport.Frame) []transport.Frame

// Transport implements transport.Transport against a scripted peer.
type Transport struct {
	mu        sync.Mutex
	inbound   []transport.Frame
	sent      []transport.Frame
	closed    bool
	pollErr   error
	sendErr   error
	responder Responder
}

// New creates an open fake transport with nothing queued.
func New() *Transport {
	return &Transport{}
}

// Push queues frames for Poll in order.
func (t *Transport) Push(frames ...transport.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbound = append(t.inbound, frames...)
}

// SetResponder installs a hook that answers sent frames.
func (t *Transport) SetResponder(r Responder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responder = r
}

// FailNextPoll makes the next Poll return err.
func (t *Transport) FailNextPoll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pollErr = err
}

// FailSends makes every Send return err until cleared with nil.
func (t *Transport) FailSends(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Poll implements transport.Transport.
func (t *Transport) Poll() (transport.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, transport.ErrClosed
	}
	if err := t.pollErr; err != nil {
		t.pollErr = nil
		return nil, err
	}
	if len(t.inbound) == 0 {
		return nil, nil
	}
	frame := t.inbound[0]
	t.inbound = t.inbound[1:]
	return frame, nil
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, frame transport.Frame) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, frame)
	if t.responder != nil {
		t.inbound = append(t.inbound, t.responder(frame)...)
	}
	return nil
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	t.closed = true
	return nil
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Sent returns a copy of every frame sent so far.
func (t *Transport) Sent() []transport.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]transport.Frame, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentOfKind returns the sent frames of one kind.
func (t *Transport) SentOfKind(kind transport.Kind) []transport.Frame {
	var out []transport.Frame
	for _, f := range t.Sent() {
		if f.Kind() == kind {
			out = append(out, f)
		}
	}
	return out
}

// Dialer returns a dialer that always hands out t.
func (t *Transport) Dialer() transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context) (transport.Transport, error) {
		return t, nil
	})
}

// FailingDialer returns a dialer that always fails with err.
func FailingDialer(err error) transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context) (transport.Transport, error) {
		return nil, err
	})
}

// AckWith answers command and set-mode requests with result.
func AckWith(result transport.ResultCode) Responder {
	return func(frame transport.Frame) []transport.Frame {
		switch f := frame.(type) {
		case transport.CommandLong:
			return []transport.Frame{transport.CommandAck{Command: f.Command, Result: result}}
		case transport.SetMode:
			return []transport.Frame{transport.CommandAck{Command: transport.MessageIDSetMode, Result: result}}
		}
		return nil
	}
}
