// Package mavudp implements transport.Transport over MAVLink/UDP using gomavlib.
package mavudp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bluenviron/gomavlib/v2"
	"github.com/bluenviron/gomavlib/v2/pkg/dialects/common"

	"github.com/rov-control/rovd/internal/transport"
)

// Config describes one UDP endpoint.
type Config struct {
	// Address is host:port. In server mode the node listens on it (udpin);
	// in client mode it is the peer to send to (udpout).
	Address string

	// Client selects udpout instead of udpin.
	Client bool

	// SystemID and ComponentID stamp outgoing frames.
	SystemID    uint8
	ComponentID uint8

	Logger *slog.Logger
}

// Transport is a gomavlib node wrapped as a transport.Transport.
type Transport struct {
	node   *gomavlib.Node
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ transport.Transport = (*Transport)(nil)

// Open starts a gomavlib node for cfg. Heartbeats are not emitted automatically;
// the link sends its own keepalive.
func Open(cfg Config) (*Transport, error) {
	var endpoint gomavlib.EndpointConf = gomavlib.EndpointUDPServer{Address: cfg.Address}
	if cfg.Client {
		endpoint = gomavlib.EndpointUDPClient{Address: cfg.Address}
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:        []gomavlib.EndpointConf{endpoint},
		Dialect:          common.Dialect,
		OutVersion:       gomavlib.V2,
		OutSystemID:      cfg.SystemID,
		OutComponentID:   cfg.ComponentID,
		HeartbeatDisable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("mavlink endpoint %s: %w", cfg.Address, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{node: node, logger: logger}, nil
}

// NewDialer returns a transport.Dialer that opens a fresh endpoint per Dial.
func NewDialer(cfg Config) transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context) (transport.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Open(cfg)
	})
}

// Poll implements transport.Transport.
func (t *Transport) Poll() (transport.Frame, error) {
	if t.isClosed() {
		return nil, transport.ErrClosed
	}

	select {
	case evt, ok := <-t.node.Events():
		if !ok {
			return nil, transport.ErrClosed
		}
		switch e := evt.(type) {
		case *gomavlib.EventFrame:
			frame := Decode(e.Message())
			if hb, ok := frame.(transport.Heartbeat); ok {
				hb.SystemID = e.SystemID()
				hb.ComponentID = e.ComponentID()
				return hb, nil
			}
			return frame, nil
		case *gomavlib.EventParseError:
			return nil, fmt.Errorf("mavlink parse: %w", e.Error)
		case *gomavlib.EventChannelOpen:
			t.logger.Debug("mavlink channel open", "channel", e.Channel.String())
		case *gomavlib.EventChannelClose:
			t.logger.Debug("mavlink channel closed", "channel", e.Channel.String())
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, frame transport.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.isClosed() {
		return transport.ErrClosed
	}
	msg := Encode(frame)
	if msg == nil {
		return fmt.Errorf("unsupported frame %s", frame.Kind())
	}
	t.node.WriteMessageAll(msg)
	return nil
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	t.node.Close()
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
