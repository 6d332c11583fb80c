package vehicle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rov-control/rovd/internal/clock"
	"github.com/rov-control/rovd/internal/config"
	"github.com/rov-control/rovd/internal/transport"
)

// Status is the session lifecycle state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// Options tunes link timing.
type Options struct {
	ConnectTimeout    time.Duration
	AckTimeout        time.Duration
	KeepaliveInterval time.Duration
	ReceivePoll       time.Duration
	ErrorBackoff      time.Duration

	Logger *slog.Logger
	Clock  clock.Clock
}

// OptionsFromConfig derives link options from the service configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ConnectTimeout:    cfg.ConnectTimeout,
		AckTimeout:        cfg.CommandAckTimeout,
		KeepaliveInterval: cfg.KeepaliveInterval,
		ReceivePoll:       cfg.ReceivePoll,
		ErrorBackoff:      cfg.LoopErrorBackoff,
	}
}

// Handler observes one inbound frame after the built-in state update.
type Handler func(frame transport.Frame) error

// Link is the session with one autopilot.
type Link struct {
	dialer transport.Dialer
	opts   Options
	logger *slog.Logger
	clock  clock.Clock
	state  *stateStore

	mu              sync.Mutex
	status          Status
	tr              transport.Transport
	loopCtx         context.Context
	cancel          context.CancelFunc
	targetSystem    uint8
	targetComponent uint8
	lastControl     ManualControl
	wg              sync.WaitGroup

	handlersMu sync.RWMutex
	handlers   map[transport.Kind][]Handler

	cmdMu     sync.Mutex
	pendingMu sync.Mutex
	pending   *pendingCommand
}

// NewLink creates a disconnected link that opens sessions through dialer.
func NewLink(dialer transport.Dialer, opts Options) *Link {
	base := config.Baseline()
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = base.ConnectTimeout
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = base.CommandAckTimeout
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = base.KeepaliveInterval
	}
	if opts.ReceivePoll <= 0 {
		opts.ReceivePoll = base.ReceivePoll
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = base.LoopErrorBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Link{
		dialer:      dialer,
		opts:        opts,
		logger:      logger.With("component", "vehicle"),
		clock:       clk,
		state:       newStateStore(),
		handlers:    make(map[transport.Kind][]Handler),
		lastControl: NeutralControl(),
	}
}

// Status returns the lifecycle state.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Connected reports whether a session is live.
func (l *Link) Connected() bool {
	return l.Status() == StatusConnected
}

// Snapshot returns a copy of the current vehicle state.
func (l *Link) Snapshot() State {
	return l.state.snapshot()
}

// OnFrame registers a handler for one frame kind. Handlers run in
// registration order on the receive loop.
func (l *Link) OnFrame(kind transport.Kind, h Handler) {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()
	l.handlers[kind] = append(l.handlers[kind], h)
}

// Connect opens a session and waits for the first vehicle heartbeat.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.status != StatusDisconnected {
		l.mu.Unlock()
		return ErrAlreadyConnected
	}
	l.status = StatusConnecting
	l.mu.Unlock()

	fail := func(err error) error {
		l.mu.Lock()
		l.status = StatusDisconnected
		l.mu.Unlock()
		l.logger.Warn("connect failed", "error", err)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	tr, err := l.dialer.Dial(ctx)
	if err != nil {
		return fail(fmt.Errorf("dial: %w", err))
	}

	hb, err := l.awaitHeartbeat(ctx, tr)
	if err != nil {
		_ = tr.Close()
		return fail(err)
	}
	l.state.apply(hb, l.clock.Now())

	loopCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.tr = tr
	l.loopCtx = loopCtx
	l.cancel = cancel
	l.targetSystem = hb.SystemID
	l.targetComponent = hb.ComponentID
	l.status = StatusConnected
	l.mu.Unlock()

	l.wg.Add(2)
	go l.receiveLoop(loopCtx, tr)
	go l.keepaliveLoop(loopCtx, tr)

	l.logger.Info("vehicle connected",
		"system", hb.SystemID,
		"component", hb.ComponentID,
		"mode", FlightMode(hb.CustomMode).String(),
		"armed", hb.Armed())
	return nil
}

// awaitHeartbeat polls until an autopilot heartbeat arrives or the connect
// timeout elapses. A cancelled parent ctx is reported as such.
func (l *Link) awaitHeartbeat(parent context.Context, tr transport.Transport) (transport.Heartbeat, error) {
	ctx, cancel := context.WithTimeout(parent, l.opts.ConnectTimeout)
	defer cancel()

	for {
		frame, err := tr.Poll()
		if err != nil {
			l.logger.Debug("poll error while connecting", "error", err)
		}
		if hb, ok := frame.(transport.Heartbeat); ok && fromAutopilot(hb) {
			return hb, nil
		}
		if frame != nil {
			continue
		}
		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return transport.Heartbeat{}, fmt.Errorf("waiting for heartbeat: %w", err)
			}
			return transport.Heartbeat{}, fmt.Errorf("no heartbeat within %v", l.opts.ConnectTimeout)
		case <-l.clock.After(l.opts.ReceivePoll):
		}
	}
}

// Disconnect stops both loops, closes the transport and abandons pending acks.
// Disconnecting an idle link is a no-op.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	if l.status != StatusConnected {
		l.mu.Unlock()
		return nil
	}
	tr := l.tr
	cancel := l.cancel
	l.tr = nil
	l.cancel = nil
	l.status = StatusDisconnected
	l.mu.Unlock()

	cancel()
	l.wg.Wait()

	err := tr.Close()
	l.logger.Info("vehicle disconnected")
	if err != nil && !errors.Is(err, transport.ErrClosed) {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// session returns the live transport and loop context.
func (l *Link) session() (transport.Transport, context.Context, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusConnected {
		return nil, nil, false
	}
	return l.tr, l.loopCtx, true
}

func (l *Link) target() (uint8, uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.targetSystem, l.targetComponent
}

func (l *Link) receiveLoop(ctx context.Context, tr transport.Transport) {
	defer l.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := tr.Poll()
		if err != nil {
			l.logger.Warn("receive error", "error", err)
			if !l.sleep(ctx, l.opts.ErrorBackoff) {
				return
			}
			continue
		}
		if frame == nil {
			if !l.sleep(ctx, l.opts.ReceivePoll) {
				return
			}
			continue
		}

		l.dispatch(frame)
	}
}

func (l *Link) keepaliveLoop(ctx context.Context, tr transport.Transport) {
	defer l.wg.Done()

	keepalive := transport.Heartbeat{
		Type:         transport.VehicleTypeGCS,
		Autopilot:    transport.AutopilotInvalid,
		SystemStatus: transport.SystemStateActive,
	}

	for {
		wait := l.opts.KeepaliveInterval
		if err := tr.Send(ctx, keepalive); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("keepalive send failed", "error", err)
			wait = l.opts.ErrorBackoff
		}
		if !l.sleep(ctx, wait) {
			return
		}
	}
}

// dispatch applies the built-in update, then every handler for the frame kind.
func (l *Link) dispatch(frame transport.Frame) {
	if ack, ok := frame.(transport.CommandAck); ok {
		l.deliverAck(ack)
	} else {
		l.state.apply(frame, l.clock.Now())
	}

	l.handlersMu.RLock()
	handlers := append([]Handler(nil), l.handlers[frame.Kind()]...)
	l.handlersMu.RUnlock()

	for i, h := range handlers {
		l.runHandler(i, h, frame)
	}
}

func (l *Link) runHandler(index int, h Handler, frame transport.Frame) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("frame handler panicked", "kind", frame.Kind().String(), "handler", index, "panic", r)
		}
	}()
	if err := h(frame); err != nil {
		l.logger.Warn("frame handler failed", "kind", frame.Kind().String(), "handler", index, "error", err)
	}
}

// sleep waits for d or cancellation. It reports false when ctx is done.
func (l *Link) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-l.clock.After(d):
		return true
	}
}
