package command

import (
	"context"
	"errors"
	"time"

	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/vehicle"
)

// Vehicle is what the orchestrator needs from the MAVLink link.
type Vehicle interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Snapshot() vehicle.State
	ArmDisarm(ctx context.Context, arm bool) (vehicle.CommandResult, error)
	ChangeMode(ctx context.Context, mode vehicle.FlightMode) (vehicle.CommandResult, error)
	SendManualControl(ctx context.Context, c vehicle.ManualControl) error
	SetLights(ctx context.Context, level int) error
	RecordLightsLevel(level int)
}

// ParameterSetter drives lights through the companion parameter API.
type ParameterSetter interface {
	SetLights(ctx context.Context, level int) (companion.Document, error)
}

// AuditLogger writes audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action, vehicleID, outcome string, latency time.Duration)
}

var (
	_ Vehicle         = (*vehicle.Link)(nil)
	_ ParameterSetter = (*companion.Client)(nil)
)

var (
	// ErrInvalidParameter indicates a missing or malformed argument.
	ErrInvalidParameter = errors.New("BAD_REQUEST")

	// ErrInvalidRange indicates an argument outside its allowed range.
	ErrInvalidRange = errors.New("INVALID_RANGE")

	// ErrRejected indicates the autopilot or companion refused the command.
	ErrRejected = errors.New("REJECTED")

	// ErrTimeout indicates no acknowledgement arrived in time.
	ErrTimeout = errors.New("TIMEOUT")

	// ErrUnavailable indicates the vehicle or companion cannot be reached.
	ErrUnavailable = errors.New("UNAVAILABLE")

	// ErrConflict indicates the request clashes with the current link state.
	ErrConflict = errors.New("CONFLICT")
)
