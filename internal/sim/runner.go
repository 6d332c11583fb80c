package sim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rov-control/rovd/internal/transport"
)

// RunOptions sets the pacing of Run.
type RunOptions struct {
	// TelemetryInterval is the period between telemetry bursts.
	TelemetryInterval time.Duration

	// PollInterval is how often inbound frames are drained.
	PollInterval time.Duration

	Logger *slog.Logger
}

func (o RunOptions) withDefaults() RunOptions {
	if o.TelemetryInterval <= 0 {
		o.TelemetryInterval = 200 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Run serves v over tr until ctx ends or the transport closes.
func Run(ctx context.Context, v *Vehicle, tr transport.Transport, opts RunOptions) error {
	opts = opts.withDefaults()
	logger := opts.Logger.With("component", "sim")

	poll := time.NewTicker(opts.PollInterval)
	defer poll.Stop()
	telemetry := time.NewTicker(opts.TelemetryInterval)
	defer telemetry.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-poll.C:
			if err := drain(ctx, v, tr, now, logger); err != nil {
				return err
			}
		case now := <-telemetry.C:
			v.Step(now.Sub(last))
			last = now
			for _, f := range v.Telemetry() {
				if err := tr.Send(ctx, f); err != nil {
					if errors.Is(err, transport.ErrClosed) {
						return err
					}
					logger.Warn("send telemetry", "kind", f.Kind().String(), "error", err)
				}
			}
		}
	}
}

// drain handles every queued inbound frame. Only a closed transport is fatal;
// other poll errors end the round and the next tick retries.
func drain(ctx context.Context, v *Vehicle, tr transport.Transport, now time.Time, logger *slog.Logger) error {
	for {
		frame, err := tr.Poll()
		if errors.Is(err, transport.ErrClosed) {
			return err
		}
		if err != nil {
			logger.Warn("poll", "error", err)
			return nil
		}
		if frame == nil {
			return nil
		}
		for _, reply := range v.Handle(frame, now) {
			if ack, ok := reply.(transport.CommandAck); ok {
				logger.Info("command handled", "command", ack.Command, "result", ack.Result.String())
			}
			if err := tr.Send(ctx, reply); err != nil {
				logger.Warn("send reply", "kind", reply.Kind().String(), "error", err)
			}
		}
	}
}
