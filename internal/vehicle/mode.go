package vehicle

import (
	"fmt"
	"strings"
)

// FlightMode is an ArduSub custom mode number.
type FlightMode uint32

const (
	ModeStabilize FlightMode = 0
	ModeAcro      FlightMode = 1
	ModeAltHold   FlightMode = 2
	ModeAuto      FlightMode = 3
	ModeGuided    FlightMode = 4
	ModeCircle    FlightMode = 7
	ModeSurface   FlightMode = 9
	ModePosHold   FlightMode = 16
	ModeManual    FlightMode = 19
)

// ModeUnknownName labels mode numbers outside the ArduSub table.
const ModeUnknownName = "UNKNOWN"

var modeNames = map[FlightMode]string{
	ModeStabilize: "STABILIZE",
	ModeAcro:      "ACRO",
	ModeAltHold:   "ALT_HOLD",
	ModeAuto:      "AUTO",
	ModeGuided:    "GUIDED",
	ModeCircle:    "CIRCLE",
	ModeSurface:   "SURFACE",
	ModePosHold:   "POSHOLD",
	ModeManual:    "MANUAL",
}

// String returns the ArduSub mode name, or UNKNOWN for unmapped numbers.
func (m FlightMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return ModeUnknownName
}

// Known reports whether m is in the ArduSub mode table.
func (m FlightMode) Known() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseFlightMode accepts a mode name, case-insensitively.
func ParseFlightMode(name string) (FlightMode, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for mode, modeName := range modeNames {
		if modeName == upper {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// FlightModes lists the ArduSub modes in ascending order.
func FlightModes() []FlightMode {
	return []FlightMode{
		ModeStabilize, ModeAcro, ModeAltHold, ModeAuto, ModeGuided,
		ModeCircle, ModeSurface, ModePosHold, ModeManual,
	}
}

// MarshalText renders the mode by name.
func (m FlightMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *FlightMode) UnmarshalText(text []byte) error {
	mode, err := ParseFlightMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
