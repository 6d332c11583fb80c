package telemetry

import (
	"math"

	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/vehicle"
	"github.com/rov-control/rovd/internal/video"
)

// VehicleView is the vehicle group of a packet, rounded for display.
type VehicleView struct {
	Armed    bool             `json:"armed"`
	Mode     string           `json:"mode"`
	Heading  float64          `json:"heading"`
	Depth    float64          `json:"depth"`
	Attitude vehicle.Attitude `json:"attitude"`
	Battery  vehicle.Battery  `json:"battery"`
}

// SystemView is the companion metrics group. A metric the companion failed
// to report is omitted.
type SystemView struct {
	CPU    any `json:"cpu,omitempty"`
	Memory any `json:"memory,omitempty"`
	Disk   any `json:"disk,omitempty"`
}

// PingSonar is the latest ping sonar reading.
type PingSonar struct {
	DistanceMM float64 `json:"distance_mm"`
	Confidence float64 `json:"confidence"`
}

// Sensors holds optional sensor readings.
type Sensors struct {
	PingSonar *PingSonar `json:"ping_sonar,omitempty"`
}

// Packet is one immutable telemetry snapshot.
type Packet struct {
	Timestamp string               `json:"timestamp"`
	Vehicle   *VehicleView         `json:"vehicle,omitempty"`
	System    *SystemView          `json:"system,omitempty"`
	Sensors   *Sensors             `json:"sensors,omitempty"`
	Cameras   []companion.Document `json:"cameras"`
	Streams   []video.Descriptor   `json:"streams,omitempty"`
}

// vehicleFromState renders link state: heading 1dp, depth 2dp,
// attitude 3dp, voltage 2dp.
func vehicleFromState(s vehicle.State) *VehicleView {
	return &VehicleView{
		Armed:   s.Armed,
		Mode:    s.Mode.String(),
		Heading: round(s.Heading, 1),
		Depth:   round(s.Depth, 2),
		Attitude: vehicle.Attitude{
			Roll:  round(s.Attitude.Roll, 3),
			Pitch: round(s.Attitude.Pitch, 3),
			Yaw:   round(s.Attitude.Yaw, 3),
		},
		Battery: vehicle.Battery{
			Voltage:      round(s.Battery.Voltage, 2),
			RemainingPct: s.Battery.RemainingPct,
		},
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
