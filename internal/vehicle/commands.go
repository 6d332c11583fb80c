package vehicle

import (
	"context"
	"fmt"
	"slices"

	"github.com/rov-control/rovd/internal/transport"
)

// CommandResult is the outcome of one acknowledged command.
type CommandResult struct {
	Command  uint16
	Result   transport.ResultCode
	Accepted bool
	TimedOut bool
}

// Err returns nil for an accepted command, ErrAckTimeout when no ack arrived,
// and the normalized rejection otherwise.
func (r CommandResult) Err() error {
	if r.Accepted {
		return nil
	}
	if r.TimedOut {
		return ErrAckTimeout
	}
	return transport.NormalizeResult(r.Command, r.Result)
}

type pendingCommand struct {
	accepts []uint16
	ch      chan transport.CommandAck
}

// Arm requests arming and reports whether the autopilot accepted.
func (l *Link) Arm(ctx context.Context) (bool, error) {
	res, err := l.ArmDisarm(ctx, true)
	return res.Accepted, err
}

// Disarm requests disarming and reports whether the autopilot accepted.
func (l *Link) Disarm(ctx context.Context) (bool, error) {
	res, err := l.ArmDisarm(ctx, false)
	return res.Accepted, err
}

// SetMode requests a flight mode and reports whether the autopilot accepted.
func (l *Link) SetMode(ctx context.Context, mode FlightMode) (bool, error) {
	res, err := l.ChangeMode(ctx, mode)
	return res.Accepted, err
}

// ArmDisarm sends COMPONENT_ARM_DISARM and waits for its acknowledgement.
func (l *Link) ArmDisarm(ctx context.Context, arm bool) (CommandResult, error) {
	param := transport.ArmParamDisarm
	if arm {
		param = transport.ArmParamArm
	}
	sys, comp := l.target()
	frame := transport.CommandLong{
		TargetSystem:    sys,
		TargetComponent: comp,
		Command:         transport.CommandArmDisarm,
		Params:          [7]float32{param},
	}
	return l.execute(ctx, frame, transport.CommandArmDisarm, transport.CommandArmDisarm)
}

// ChangeMode sends SET_MODE with the custom-mode flag and waits for its acknowledgement.
// ArduSub acknowledges with either the SET_MODE message id or DO_SET_MODE.
func (l *Link) ChangeMode(ctx context.Context, mode FlightMode) (CommandResult, error) {
	sys, _ := l.target()
	frame := transport.SetMode{
		TargetSystem: sys,
		BaseMode:     transport.ModeFlagCustomModeEnabled,
		CustomMode:   uint32(mode),
	}
	return l.execute(ctx, frame, transport.CommandDoSetMode, transport.MessageIDSetMode, transport.CommandDoSetMode)
}

// execute sends frame and waits for an ack whose command id is in accepts.
// Only one command is in flight per link.
func (l *Link) execute(ctx context.Context, frame transport.Frame, command uint16, accepts ...uint16) (CommandResult, error) {
	tr, session, ok := l.session()
	if !ok {
		return CommandResult{Command: command}, ErrNotConnected
	}

	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	p := &pendingCommand{accepts: accepts, ch: make(chan transport.CommandAck, 1)}
	l.pendingMu.Lock()
	l.pending = p
	l.pendingMu.Unlock()
	defer func() {
		l.pendingMu.Lock()
		if l.pending == p {
			l.pending = nil
		}
		l.pendingMu.Unlock()
	}()

	if err := tr.Send(ctx, frame); err != nil {
		return CommandResult{Command: command}, fmt.Errorf("send %s: %w", frame.Kind(), err)
	}

	select {
	case ack := <-p.ch:
		res := CommandResult{
			Command:  command,
			Result:   ack.Result,
			Accepted: ack.Result == transport.ResultAccepted,
		}
		l.logger.Info("command acknowledged", "command", command, "result", ack.Result.String())
		return res, nil
	case <-l.clock.After(l.opts.AckTimeout):
		l.logger.Warn("command ack timeout", "command", command, "timeout", l.opts.AckTimeout)
		return CommandResult{Command: command, TimedOut: true}, nil
	case <-session.Done():
		return CommandResult{Command: command}, ErrNotConnected
	case <-ctx.Done():
		return CommandResult{Command: command, TimedOut: true}, ctx.Err()
	}
}

// deliverAck hands an ack to the waiting command when the command ids match.
func (l *Link) deliverAck(ack transport.CommandAck) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()

	if l.pending == nil || !slices.Contains(l.pending.accepts, ack.Command) {
		l.logger.Debug("unsolicited command ack", "command", ack.Command, "result", ack.Result.String())
		return
	}
	select {
	case l.pending.ch <- ack:
	default:
	}
}
