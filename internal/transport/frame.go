package transport

// Kind tags a frame type.
type Kind int

const (
	KindHeartbeat Kind = iota + 1
	KindAttitude
	KindHeading
	KindPressure
	KindBattery
	KindCommandAck
	KindCommandLong
	KindSetMode
	KindRCOverride
)

var kindNames = map[Kind]string{
	KindHeartbeat:   "HEARTBEAT",
	KindAttitude:    "ATTITUDE",
	KindHeading:     "VFR_HUD",
	KindPressure:    "SCALED_PRESSURE2",
	KindBattery:     "BATTERY_STATUS",
	KindCommandAck:  "COMMAND_ACK",
	KindCommandLong: "COMMAND_LONG",
	KindSetMode:     "SET_MODE",
	KindRCOverride:  "RC_CHANNELS_OVERRIDE",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Frame is one decoded MAVLink message.
type Frame interface {
	Kind() Kind
}

// Heartbeat base-mode bits.
const (
	ModeFlagCustomModeEnabled uint8 = 1
	ModeFlagSafetyArmed       uint8 = 128
)

// Vehicle and autopilot types carried in heartbeats.
const (
	VehicleTypeGCS       uint8 = 6
	VehicleTypeSubmarine uint8 = 12

	AutopilotArduPilot uint8 = 3
	AutopilotInvalid   uint8 = 8

	SystemStateStandby uint8 = 3
	SystemStateActive  uint8 = 4
)

// BatteryVoltageAbsent marks a battery cell that is not reported.
const BatteryVoltageAbsent uint16 = 65535

// MAVLink command ids used by the service.
const (
	MessageIDSetMode uint16 = 11
	CommandDoSetMode uint16 = 176
	CommandArmDisarm uint16 = 400
)

// COMPONENT_ARM_DISARM param1 values.
const (
	ArmParamDisarm float32 = 0
	ArmParamArm    float32 = 1
)

// Heartbeat is the liveness frame. The vehicle reports its armed bit and
// custom mode; the service sends GCS heartbeats as keepalive.
type Heartbeat struct {
	Type         uint8
	Autopilot    uint8
	BaseMode     uint8
	CustomMode   uint32
	SystemStatus uint8
	SystemID     uint8
	ComponentID  uint8
}

func (Heartbeat) Kind() Kind { return KindHeartbeat }

// Armed reports the safety-armed bit.
func (h Heartbeat) Armed() bool { return h.BaseMode&ModeFlagSafetyArmed != 0 }

// Attitude carries orientation in radians.
type Attitude struct {
	Roll, Pitch, Yaw float64
}

func (Attitude) Kind() Kind { return KindAttitude }

// Heading carries compass heading in degrees.
type Heading struct {
	Degrees float64
}

func (Heading) Kind() Kind { return KindHeading }

// Pressure carries absolute pressure from the external depth sensor.
type Pressure struct {
	AbsoluteMillibar float64
	TemperatureCdeg  int16
}

func (Pressure) Kind() Kind { return KindPressure }

// Battery carries per-cell voltages in millivolts and remaining charge.
// A cell value of BatteryVoltageAbsent means not reported.
type Battery struct {
	CellMillivolts []uint16
	RemainingPct   int
}

func (Battery) Kind() Kind { return KindBattery }

// CommandAck answers a command request.
type CommandAck struct {
	Command uint16
	Result  ResultCode
}

func (CommandAck) Kind() Kind { return KindCommandAck }

// CommandLong requests a MAVLink command.
type CommandLong struct {
	TargetSystem    uint8
	TargetComponent uint8
	Command         uint16
	Params          [7]float32
}

func (CommandLong) Kind() Kind { return KindCommandLong }

// SetMode requests a flight mode change.
type SetMode struct {
	TargetSystem uint8
	BaseMode     uint8
	CustomMode   uint32
}

func (SetMode) Kind() Kind { return KindSetMode }

// RCOverride carries eight PWM channel values. Zero releases a channel.
type RCOverride struct {
	TargetSystem    uint8
	TargetComponent uint8
	Channels        [8]uint16
}

func (RCOverride) Kind() Kind { return KindRCOverride }
