package sim

import (
	"math"
	"sync"
	"time"

	"github.com/rov-control/rovd/internal/transport"
	"github.com/rov-control/rovd/internal/vehicle"
)

// Kinematic limits at full stick deflection.
const (
	maxVerticalSpeed = 0.5  // m/s
	maxYawRate       = 0.8  // rad/s
	surfaceDepth     = 0.0  // m
	waterTempCdeg    = 1250 // 12.5 °C
)

// Options tunes the simulated vehicle.
type Options struct {
	// CellCount and FullCellMillivolts describe the battery pack.
	CellCount          int
	FullCellMillivolts uint16

	// DrainPerSecond is the fraction of charge lost per second while armed.
	DrainPerSecond float64

	// MinArmPct is the charge below which arming is denied.
	MinArmPct int
}

// DefaultOptions is a 4S pack that drains in roughly half an hour armed.
func DefaultOptions() Options {
	return Options{
		CellCount:          4,
		FullCellMillivolts: 4200,
		DrainPerSecond:     1.0 / 1800,
		MinArmPct:          10,
	}
}

// Vehicle is the simulated autopilot state.
type Vehicle struct {
	opts Options

	mu       sync.Mutex
	armed    bool
	mode     vehicle.FlightMode
	depth    float64
	roll     float64
	pitch    float64
	yaw      float64
	charge   float64
	controls [8]uint16
	gcsSeen  time.Time
}

// NewVehicle returns a disarmed vehicle at the surface in MANUAL with a full battery.
func NewVehicle(opts Options) *Vehicle {
	if opts.CellCount <= 0 {
		opts.CellCount = DefaultOptions().CellCount
	}
	if opts.FullCellMillivolts == 0 {
		opts.FullCellMillivolts = DefaultOptions().FullCellMillivolts
	}
	return &Vehicle{
		opts:     opts,
		mode:     vehicle.ModeManual,
		charge:   1,
		controls: vehicle.NeutralControl().Channels(),
	}
}

// Handle applies one inbound frame and returns the replies.
func (v *Vehicle) Handle(frame transport.Frame, now time.Time) []transport.Frame {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch f := frame.(type) {
	case transport.Heartbeat:
		if f.Type == transport.VehicleTypeGCS {
			v.gcsSeen = now
		}
	case transport.CommandLong:
		return []transport.Frame{v.handleCommand(f)}
	case transport.SetMode:
		result := transport.ResultAccepted
		if f.BaseMode&transport.ModeFlagCustomModeEnabled == 0 || !vehicle.FlightMode(f.CustomMode).Known() {
			result = transport.ResultDenied
		} else {
			v.mode = vehicle.FlightMode(f.CustomMode)
		}
		return []transport.Frame{transport.CommandAck{Command: transport.MessageIDSetMode, Result: result}}
	case transport.RCOverride:
		for i, pwm := range f.Channels {
			if pwm != 0 {
				v.controls[i] = pwm
			}
		}
	}
	return nil
}

func (v *Vehicle) handleCommand(f transport.CommandLong) transport.CommandAck {
	ack := transport.CommandAck{Command: f.Command}
	if f.Command != transport.CommandArmDisarm {
		ack.Result = transport.ResultUnsupported
		return ack
	}

	arm := f.Params[0] == transport.ArmParamArm
	if arm && v.remainingPct() < v.opts.MinArmPct {
		ack.Result = transport.ResultDenied
		return ack
	}
	v.armed = arm
	ack.Result = transport.ResultAccepted
	return ack
}

// Step advances the model by dt using the latest RC input.
func (v *Vehicle) Step(dt time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	sec := dt.Seconds()
	if !v.armed {
		// Positive buoyancy brings a disarmed vehicle back up.
		v.depth = math.Max(surfaceDepth, v.depth-maxVerticalSpeed/2*sec)
		return
	}

	// Channel 3 is throttle: above neutral climbs, below neutral dives.
	v.depth = math.Max(surfaceDepth, v.depth-stick(v.controls[2])*maxVerticalSpeed*sec)
	v.yaw = wrapAngle(v.yaw + stick(v.controls[3])*maxYawRate*sec)
	v.pitch = stick(v.controls[0]) * 0.2
	v.roll = stick(v.controls[1]) * 0.2
	v.charge = math.Max(0, v.charge-v.opts.DrainPerSecond*sec)
}

// Telemetry returns the periodic frames describing the current state.
func (v *Vehicle) Telemetry() []transport.Frame {
	v.mu.Lock()
	defer v.mu.Unlock()

	base := transport.ModeFlagCustomModeEnabled
	status := transport.SystemStateStandby
	if v.armed {
		base |= transport.ModeFlagSafetyArmed
		status = transport.SystemStateActive
	}

	// The pack voltage goes in the first slot; the rest are absent.
	cells := []uint16{uint16(float64(v.opts.CellCount) * v.cellMillivolts())}

	heading := v.yaw * 180 / math.Pi
	if heading < 0 {
		heading += 360
	}

	return []transport.Frame{
		transport.Heartbeat{
			Type:         transport.VehicleTypeSubmarine,
			Autopilot:    transport.AutopilotArduPilot,
			BaseMode:     base,
			CustomMode:   uint32(v.mode),
			SystemStatus: status,
		},
		transport.Attitude{Roll: v.roll, Pitch: v.pitch, Yaw: v.yaw},
		transport.Heading{Degrees: heading},
		transport.Pressure{AbsoluteMillibar: pressureAt(v.depth), TemperatureCdeg: waterTempCdeg},
		transport.Battery{CellMillivolts: cells, RemainingPct: v.remainingPct()},
	}
}

// Status is a point-in-time view of the simulated vehicle.
type Status struct {
	Armed        bool
	Mode         vehicle.FlightMode
	Depth        float64
	Yaw          float64
	RemainingPct int
	Lights       [2]uint16
	GCSSeen      time.Time
}

// Status returns the current simulated state.
func (v *Vehicle) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Status{
		Armed:        v.armed,
		Mode:         v.mode,
		Depth:        v.depth,
		Yaw:          v.yaw,
		RemainingPct: v.remainingPct(),
		Lights:       [2]uint16{v.controls[6], v.controls[7]},
		GCSSeen:      v.gcsSeen,
	}
}

// SetCharge overrides the battery state of charge, 0-1.
func (v *Vehicle) SetCharge(charge float64) {
	v.mu.Lock()
	v.charge = math.Min(1, math.Max(0, charge))
	v.mu.Unlock()
}

func (v *Vehicle) remainingPct() int {
	return int(math.Round(v.charge * 100))
}

// cellMillivolts maps charge linearly between 3.3 V and a full cell.
func (v *Vehicle) cellMillivolts() float64 {
	const empty = 3300.0
	return empty + (float64(v.opts.FullCellMillivolts)-empty)*v.charge
}

// stick maps a PWM value onto -1..1 around neutral.
func stick(pwm uint16) float64 {
	return math.Max(-1, math.Min(1, (float64(pwm)-1500)/400))
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// pressureAt is the inverse of vehicle.DepthFromPressure.
func pressureAt(depth float64) float64 {
	return (depth*vehicle.PascalPerMetre + vehicle.SurfacePressurePa) / 100
}
