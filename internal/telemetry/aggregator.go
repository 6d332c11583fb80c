package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rov-control/rovd/internal/clock"
	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/config"
	"github.com/rov-control/rovd/internal/vehicle"
	"github.com/rov-control/rovd/internal/video"
)

// ErrAlreadyRunning is returned by Start on a running aggregator.
var ErrAlreadyRunning = errors.New("telemetry aggregator already running")

// VehicleSource is the link surface the aggregator reads.
type VehicleSource interface {
	Connected() bool
	Snapshot() vehicle.State
}

// MetricsSource is the companion surface the aggregator polls.
type MetricsSource interface {
	CPUInfo(ctx context.Context) (any, error)
	MemoryInfo(ctx context.Context) (any, error)
	DiskInfo(ctx context.Context) (any, error)
	Attitude(ctx context.Context) (companion.Document, error)
	Depth(ctx context.Context) (companion.Document, error)
	BatteryStatus(ctx context.Context) (companion.Document, error)
	PingDevices(ctx context.Context) ([]companion.Document, error)
	PingDistance(ctx context.Context, deviceID int) (companion.Document, error)
	Cameras(ctx context.Context) ([]companion.Document, error)
}

// StreamLister supplies stream descriptors for packets.
type StreamLister interface {
	Descriptors() []video.Descriptor
}

// Subscriber receives serialized packets.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, payload []byte) error
}

// Options tunes the aggregator loops.
type Options struct {
	CollectInterval   time.Duration
	CollectTimeout    time.Duration
	BroadcastInterval time.Duration
	SendTimeout       time.Duration
	SubscriberBuffer  int

	Streams StreamLister
	Logger  *slog.Logger
	Clock   clock.Clock
}

// OptionsFromConfig derives aggregator options from the service configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CollectInterval:   cfg.CollectInterval,
		CollectTimeout:    cfg.CollectTimeout,
		BroadcastInterval: cfg.BroadcastInterval,
		SendTimeout:       cfg.SendTimeout,
		SubscriberBuffer:  cfg.SubscriberBuffer,
	}
}

// Aggregator builds telemetry packets and broadcasts them.
type Aggregator struct {
	opts   Options
	logger *slog.Logger
	clock  clock.Clock

	latest atomic.Pointer[Packet]

	mu          sync.RWMutex
	subscribers map[string]Subscriber

	runMu   sync.Mutex
	running bool
	loopCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped aggregator.
func New(opts Options) *Aggregator {
	base := config.Baseline()
	if opts.CollectInterval <= 0 {
		opts.CollectInterval = base.CollectInterval
	}
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = base.CollectTimeout
	}
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = base.BroadcastInterval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = base.SendTimeout
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = base.SubscriberBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Aggregator{
		opts:        opts,
		logger:      logger.With("component", "telemetry"),
		clock:       clk,
		subscribers: make(map[string]Subscriber),
	}
}

// Start launches the collection and broadcast loops. link may be nil, in
// which case vehicle data comes from the companion.
func (a *Aggregator) Start(ctx context.Context, link VehicleSource, metrics MetricsSource) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		if a.loopCtx.Err() == nil {
			return ErrAlreadyRunning
		}
		// The parent context ended; the loops are exiting on their own.
		a.cancel()
		a.wg.Wait()
	}

	ctx, cancel := context.WithCancel(ctx)
	a.loopCtx = ctx
	a.cancel = cancel
	a.running = true

	a.wg.Add(2)
	go a.collectLoop(ctx, link, metrics)
	go a.broadcastLoop(ctx)

	a.logger.Info("telemetry started",
		"collect_interval", a.opts.CollectInterval,
		"broadcast_interval", a.opts.BroadcastInterval)
	return nil
}

// Stop cancels both loops and waits for them to exit.
func (a *Aggregator) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return
	}
	a.cancel()
	a.wg.Wait()
	a.running = false
	a.logger.Info("telemetry stopped")
}

// Running reports whether the loops are active. Cancelling the context given
// to Start stops them as well as Stop does.
func (a *Aggregator) Running() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.running && a.loopCtx.Err() == nil
}

// Snapshot returns the latest packet. ok is false before the first collection.
func (a *Aggregator) Snapshot() (packet Packet, ok bool) {
	p := a.latest.Load()
	if p == nil {
		return Packet{}, false
	}
	return *p, true
}

// Register adds a subscriber. A subscriber with the same id is replaced.
func (a *Aggregator) Register(sub Subscriber) {
	a.mu.Lock()
	a.subscribers[sub.ID()] = sub
	n := len(a.subscribers)
	a.mu.Unlock()
	a.logger.Debug("subscriber added", "id", sub.ID(), "total", n)
}

// Unregister removes a subscriber. Unknown ids are ignored.
func (a *Aggregator) Unregister(id string) {
	a.mu.Lock()
	delete(a.subscribers, id)
	n := len(a.subscribers)
	a.mu.Unlock()
	a.logger.Debug("subscriber removed", "id", id, "total", n)
}

// SubscriberCount returns the number of registered subscribers.
func (a *Aggregator) SubscriberCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subscribers)
}

func (a *Aggregator) collectLoop(ctx context.Context, link VehicleSource, metrics MetricsSource) {
	defer a.wg.Done()
	for {
		packet := a.collect(ctx, link, metrics)
		if ctx.Err() != nil {
			return
		}
		a.latest.Store(packet)

		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(a.opts.CollectInterval):
		}
	}
}

func (a *Aggregator) broadcastLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(a.opts.BroadcastInterval):
		}
		a.broadcast(ctx)
	}
}

// broadcast sends the latest packet, serialized once, to every subscriber
// present at the start of the round. Failed subscribers are removed afterwards.
func (a *Aggregator) broadcast(ctx context.Context) {
	packet := a.latest.Load()
	if packet == nil {
		return
	}

	a.mu.RLock()
	subs := make([]Subscriber, 0, len(a.subscribers))
	for _, s := range a.subscribers {
		subs = append(subs, s)
	}
	a.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(packet)
	if err != nil {
		a.logger.Error("failed to encode telemetry packet", "error", err)
		return
	}

	var failed []Subscriber
	for _, s := range subs {
		sendCtx, cancel := context.WithTimeout(ctx, a.opts.SendTimeout)
		err := s.Send(sendCtx, payload)
		cancel()
		if err != nil {
			a.logger.Debug("subscriber send failed", "id", s.ID(), "error", err)
			failed = append(failed, s)
		}
	}
	if len(failed) == 0 {
		return
	}

	a.mu.Lock()
	for _, s := range failed {
		if a.subscribers[s.ID()] == s {
			delete(a.subscribers, s.ID())
		}
	}
	a.mu.Unlock()

	for _, s := range failed {
		if c, ok := s.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
	a.logger.Info("removed failed subscribers", "count", len(failed))
}
