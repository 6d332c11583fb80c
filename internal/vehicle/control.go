package vehicle

import (
	"context"
	"fmt"

	"github.com/rov-control/rovd/internal/transport"
)

// RC override PWM bounds in microseconds.
const (
	PWMMin     uint16 = 1100
	PWMNeutral uint16 = 1500
	PWMMax     uint16 = 1900
)

// ManualControl is one RC override: six motion axes and two light channels.
type ManualControl struct {
	Pitch    uint16 `json:"pitch"`
	Roll     uint16 `json:"roll"`
	Throttle uint16 `json:"throttle"`
	Yaw      uint16 `json:"yaw"`
	Forward  uint16 `json:"forward"`
	Lateral  uint16 `json:"lateral"`
	Lights1  uint16 `json:"lights1"`
	Lights2  uint16 `json:"lights2"`
}

// NeutralControl centres every motion axis and turns the lights off.
func NeutralControl() ManualControl {
	return ManualControl{
		Pitch: PWMNeutral, Roll: PWMNeutral, Throttle: PWMNeutral,
		Yaw: PWMNeutral, Forward: PWMNeutral, Lateral: PWMNeutral,
		Lights1: PWMMin, Lights2: PWMMin,
	}
}

// Channels returns the eight override channels in MAVLink order.
func (c ManualControl) Channels() [8]uint16 {
	return [8]uint16{c.Pitch, c.Roll, c.Throttle, c.Yaw, c.Forward, c.Lateral, c.Lights1, c.Lights2}
}

// Validate checks every channel lies within PWMMin..PWMMax.
func (c ManualControl) Validate() error {
	for i, v := range c.Channels() {
		if v < PWMMin || v > PWMMax {
			return fmt.Errorf("%w: channel %d = %d", ErrInvalidPWM, i+1, v)
		}
	}
	return nil
}

// LightsPWM maps a 0-100 light level onto the override range 1100-1900.
func LightsPWM(level int) (uint16, error) {
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return PWMMin + uint16(level*8), nil
}

// SendManualControl sends one RC override frame. There is no acknowledgement.
func (l *Link) SendManualControl(ctx context.Context, c ManualControl) error {
	if err := c.Validate(); err != nil {
		return err
	}
	tr, _, ok := l.session()
	if !ok {
		return ErrNotConnected
	}

	sys, comp := l.target()
	frame := transport.RCOverride{TargetSystem: sys, TargetComponent: comp, Channels: c.Channels()}
	if err := tr.Send(ctx, frame); err != nil {
		return fmt.Errorf("send %s: %w", frame.Kind(), err)
	}

	l.mu.Lock()
	l.lastControl = c
	l.mu.Unlock()
	return nil
}

// SetLights drives both light channels to level, keeping the last motion input.
func (l *Link) SetLights(ctx context.Context, level int) error {
	pwm, err := LightsPWM(level)
	if err != nil {
		return err
	}

	l.mu.Lock()
	c := l.lastControl
	l.mu.Unlock()
	c.Lights1 = pwm
	c.Lights2 = pwm

	if err := l.SendManualControl(ctx, c); err != nil {
		return err
	}
	l.state.setLights(level)
	return nil
}

// RecordLightsLevel stores a level applied outside the override channels,
// such as through the LIGHTS1_LEVEL parameter.
func (l *Link) RecordLightsLevel(level int) {
	l.state.setLights(level)
}
