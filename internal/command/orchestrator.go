package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rov-control/rovd/internal/audit"
	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/config"
	"github.com/rov-control/rovd/internal/transport"
	"github.com/rov-control/rovd/internal/vehicle"
)

// Audit outcome codes.
const (
	OutcomeSuccess     = "SUCCESS"
	OutcomeBadRequest  = "BAD_REQUEST"
	OutcomeRange       = "INVALID_RANGE"
	OutcomeRejected    = "REJECTED"
	OutcomeTimeout     = "TIMEOUT"
	OutcomeUnavailable = "UNAVAILABLE"
	OutcomeConflict    = "CONFLICT"
	OutcomeError       = "ERROR"
)

// Options configures an Orchestrator.
type Options struct {
	VehicleID      string
	CommandTimeout time.Duration
	LightsControl  string
	Logger         *slog.Logger
}

// OptionsFromConfig maps the command section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		VehicleID:      "rov",
		CommandTimeout: cfg.CommandTimeout,
		LightsControl:  cfg.LightsControl,
	}
}

// Orchestrator routes validated intents to the vehicle link.
type Orchestrator struct {
	vehicle     Vehicle
	params      ParameterSetter
	auditLogger AuditLogger
	opts        Options
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator. params may be nil when lights
// are driven through RC override.
func NewOrchestrator(v Vehicle, params ParameterSetter, opts Options) *Orchestrator {
	if opts.VehicleID == "" {
		opts.VehicleID = "rov"
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	if opts.LightsControl == "" {
		opts.LightsControl = config.LightsViaOverride
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		vehicle: v,
		params:  params,
		opts:    opts,
		logger:  logger.With("component", "orchestrator"),
	}
}

// SetAuditLogger sets the audit logger.
func (o *Orchestrator) SetAuditLogger(logger AuditLogger) {
	o.auditLogger = logger
}

// State returns the vehicle snapshot and whether the link is up.
func (o *Orchestrator) State() (vehicle.State, bool) {
	return o.vehicle.Snapshot(), o.vehicle.Connected()
}

// Connect opens the vehicle session. It is bounded by the link's connect
// timeout rather than the command timeout.
func (o *Orchestrator) Connect(ctx context.Context) error {
	return o.runWithin(ctx, "connect", nil, 0, func(ctx context.Context) error {
		return o.vehicle.Connect(ctx)
	})
}

// Disconnect closes the vehicle session.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	return o.run(ctx, "disconnect", nil, func(context.Context) error {
		return o.vehicle.Disconnect()
	})
}

// Arm arms the vehicle. A nil error means the autopilot accepted.
func (o *Orchestrator) Arm(ctx context.Context) error {
	return o.armDisarm(ctx, "arm", true)
}

// Disarm disarms the vehicle.
func (o *Orchestrator) Disarm(ctx context.Context) error {
	return o.armDisarm(ctx, "disarm", false)
}

func (o *Orchestrator) armDisarm(ctx context.Context, action string, arm bool) error {
	return o.run(ctx, action, nil, func(ctx context.Context) error {
		res, err := o.vehicle.ArmDisarm(ctx, arm)
		if err != nil {
			return err
		}
		return res.Err()
	})
}

// SetMode changes the flight mode by name.
func (o *Orchestrator) SetMode(ctx context.Context, name string) error {
	params := map[string]any{"mode": name}
	mode, err := vehicle.ParseFlightMode(name)
	if err != nil {
		o.logAudit(ctx, "setMode", params, OutcomeBadRequest, 0)
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return o.run(ctx, "setMode", params, func(ctx context.Context) error {
		res, err := o.vehicle.ChangeMode(ctx, mode)
		if err != nil {
			return err
		}
		return res.Err()
	})
}

// SetLights sets both lights to level (0-100) through the configured path.
func (o *Orchestrator) SetLights(ctx context.Context, level int) error {
	params := map[string]any{"level": level, "path": o.opts.LightsControl}
	if level < 0 || level > 100 {
		o.logAudit(ctx, "setLights", params, OutcomeRange, 0)
		return fmt.Errorf("%w: light level %d outside 0-100", ErrInvalidRange, level)
	}
	return o.run(ctx, "setLights", params, func(ctx context.Context) error {
		if o.opts.LightsControl == config.LightsViaParameter {
			if o.params == nil {
				return ErrUnavailable
			}
			if _, err := o.params.SetLights(ctx, level); err != nil {
				return err
			}
			o.vehicle.RecordLightsLevel(level)
			return nil
		}
		return o.vehicle.SetLights(ctx, level)
	})
}

// ManualControl sends one RC override.
func (o *Orchestrator) ManualControl(ctx context.Context, c vehicle.ManualControl) error {
	if err := c.Validate(); err != nil {
		o.logAudit(ctx, "manualControl", nil, OutcomeRange, 0)
		return fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	return o.run(ctx, "manualControl", nil, func(ctx context.Context) error {
		return o.vehicle.SendManualControl(ctx, c)
	})
}

// run executes fn under the command timeout, normalizes its error and
// records the outcome.
func (o *Orchestrator) run(ctx context.Context, action string, params map[string]any, fn func(context.Context) error) error {
	return o.runWithin(ctx, action, params, o.opts.CommandTimeout, fn)
}

// runWithin is run with an explicit bound. Zero leaves ctx unbounded.
func (o *Orchestrator) runWithin(ctx context.Context, action string, params map[string]any, timeout time.Duration, fn func(context.Context) error) error {
	start := time.Now()

	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, err := normalize(fn(cctx))
	latency := time.Since(start)
	o.logAudit(ctx, action, params, outcome, latency)

	if err != nil {
		o.logger.Warn("command failed", "action", action, "outcome", outcome, "error", err, "latency", latency)
	} else {
		o.logger.Info("command succeeded", "action", action, "latency", latency)
	}
	return err
}

// normalize maps link, autopilot and companion errors onto the command
// error set. The original error stays in the chain.
func normalize(err error) (string, error) {
	var resultErr *transport.ResultError
	var statusErr *companion.StatusError

	switch {
	case err == nil:
		return OutcomeSuccess, nil
	case errors.Is(err, ErrUnavailable):
		return OutcomeUnavailable, err
	case errors.Is(err, vehicle.ErrAlreadyConnected):
		return OutcomeConflict, fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, vehicle.ErrNotConnected),
		errors.Is(err, vehicle.ErrConnection),
		errors.Is(err, companion.ErrUnreachable):
		return OutcomeUnavailable, fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, vehicle.ErrAckTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout, fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.As(err, &resultErr), errors.As(err, &statusErr):
		return OutcomeRejected, fmt.Errorf("%w: %w", ErrRejected, err)
	case errors.Is(err, vehicle.ErrInvalidPWM), errors.Is(err, vehicle.ErrInvalidLevel):
		return OutcomeRange, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	default:
		return OutcomeError, err
	}
}

func (o *Orchestrator) logAudit(ctx context.Context, action string, params map[string]any, outcome string, latency time.Duration) {
	if o.auditLogger == nil {
		return
	}
	if params != nil {
		ctx = audit.WithParams(ctx, params)
	}
	o.auditLogger.LogAction(ctx, action, o.opts.VehicleID, outcome, latency)
}
