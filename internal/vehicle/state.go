package vehicle

import (
	"sync"
	"time"

	"github.com/rov-control/rovd/internal/transport"
)

// Sea-level reference for depth: standard atmosphere in Pa and
// fresh water density times standard gravity in Pa per metre.
const (
	SurfacePressurePa = 101325.0
	PascalPerMetre    = 9806.65
)

// Attitude is vehicle orientation in radians.
type Attitude struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Battery is the main battery reading.
type Battery struct {
	Voltage      float64 `json:"voltage"`
	RemainingPct int     `json:"remaining"`
}

// State is a point-in-time copy of the vehicle status.
type State struct {
	Armed         bool       `json:"armed"`
	Mode          FlightMode `json:"mode"`
	Attitude      Attitude   `json:"attitude"`
	Heading       float64    `json:"heading"`
	Depth         float64    `json:"depth"`
	Battery       Battery    `json:"battery"`
	LightsLevel   int        `json:"lights_level"`
	LastHeartbeat time.Time  `json:"last_heartbeat"`
}

// DepthFromPressure converts absolute pressure in millibar to metres below the surface.
func DepthFromPressure(millibar float64) float64 {
	return (millibar*100 - SurfacePressurePa) / PascalPerMetre
}

// stateStore guards State. The receive loop is the only writer of telemetry
// fields; lights level is written by the lights command.
type stateStore struct {
	mu    sync.RWMutex
	state State
}

func newStateStore() *stateStore {
	return &stateStore{state: State{Mode: ModeManual}}
}

func (s *stateStore) snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// apply folds one inbound frame into the state. It reports whether the frame
// changed anything.
func (s *stateStore) apply(frame transport.Frame, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch f := frame.(type) {
	case transport.Heartbeat:
		if !fromAutopilot(f) {
			return false
		}
		s.state.Armed = f.Armed()
		s.state.Mode = FlightMode(f.CustomMode)
		s.state.LastHeartbeat = now
	case transport.Attitude:
		s.state.Attitude = Attitude{Roll: f.Roll, Pitch: f.Pitch, Yaw: f.Yaw}
	case transport.Heading:
		s.state.Heading = f.Degrees
	case transport.Pressure:
		s.state.Depth = DepthFromPressure(f.AbsoluteMillibar)
	case transport.Battery:
		if len(f.CellMillivolts) > 0 && f.CellMillivolts[0] != transport.BatteryVoltageAbsent {
			s.state.Battery.Voltage = float64(f.CellMillivolts[0]) / 1000
		}
		s.state.Battery.RemainingPct = f.RemainingPct
	default:
		return false
	}
	return true
}

// fromAutopilot reports whether hb describes the vehicle. Ground stations and
// companion components such as the camera manager send heartbeats too.
func fromAutopilot(hb transport.Heartbeat) bool {
	return hb.Type != transport.VehicleTypeGCS && hb.Autopilot != transport.AutopilotInvalid
}

func (s *stateStore) setLights(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LightsLevel = level
}
