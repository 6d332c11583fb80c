package mavudp

import (
	"github.com/bluenviron/gomavlib/v2/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v2/pkg/message"

	"github.com/rov-control/rovd/internal/transport"
)

// Decode converts a gomavlib message into a transport frame. Messages the
// service does not consume decode to nil.
func Decode(m message.Message) transport.Frame {
	switch msg := m.(type) {
	case *common.MessageHeartbeat:
		return transport.Heartbeat{
			Type:         uint8(msg.Type),
			Autopilot:    uint8(msg.Autopilot),
			BaseMode:     uint8(msg.BaseMode),
			CustomMode:   msg.CustomMode,
			SystemStatus: uint8(msg.SystemStatus),
		}
	case *common.MessageAttitude:
		return transport.Attitude{
			Roll:  float64(msg.Roll),
			Pitch: float64(msg.Pitch),
			Yaw:   float64(msg.Yaw),
		}
	case *common.MessageVfrHud:
		return transport.Heading{Degrees: float64(msg.Heading)}
	case *common.MessageScaledPressure2:
		return transport.Pressure{
			AbsoluteMillibar: float64(msg.PressAbs),
			TemperatureCdeg:  msg.Temperature,
		}
	case *common.MessageBatteryStatus:
		cells := make([]uint16, len(msg.Voltages))
		copy(cells, msg.Voltages[:])
		return transport.Battery{
			CellMillivolts: cells,
			RemainingPct:   int(msg.BatteryRemaining),
		}
	case *common.MessageCommandAck:
		return transport.CommandAck{
			Command: uint16(msg.Command),
			Result:  transport.ResultCode(msg.Result),
		}
	case *common.MessageCommandLong:
		return transport.CommandLong{
			TargetSystem:    msg.TargetSystem,
			TargetComponent: msg.TargetComponent,
			Command:         uint16(msg.Command),
			Params:          [7]float32{msg.Param1, msg.Param2, msg.Param3, msg.Param4, msg.Param5, msg.Param6, msg.Param7},
		}
	case *common.MessageSetMode:
		return transport.SetMode{
			TargetSystem: msg.TargetSystem,
			BaseMode:     uint8(msg.BaseMode),
			CustomMode:   msg.CustomMode,
		}
	case *common.MessageRcChannelsOverride:
		return transport.RCOverride{
			TargetSystem:    msg.TargetSystem,
			TargetComponent: msg.TargetComponent,
			Channels: [8]uint16{
				msg.Chan1Raw, msg.Chan2Raw, msg.Chan3Raw, msg.Chan4Raw,
				msg.Chan5Raw, msg.Chan6Raw, msg.Chan7Raw, msg.Chan8Raw,
			},
		}
	}
	return nil
}

// Encode converts a transport frame into a gomavlib message.
func Encode(frame transport.Frame) message.Message {
	switch f := frame.(type) {
	case transport.Heartbeat:
		return &common.MessageHeartbeat{
			Type:           common.MAV_TYPE(f.Type),
			Autopilot:      common.MAV_AUTOPILOT(f.Autopilot),
			BaseMode:       common.MAV_MODE_FLAG(f.BaseMode),
			CustomMode:     f.CustomMode,
			SystemStatus:   common.MAV_STATE(f.SystemStatus),
			MavlinkVersion: 3,
		}
	case transport.Attitude:
		return &common.MessageAttitude{
			Roll:  float32(f.Roll),
			Pitch: float32(f.Pitch),
			Yaw:   float32(f.Yaw),
		}
	case transport.Heading:
		return &common.MessageVfrHud{Heading: int16(f.Degrees)}
	case transport.Pressure:
		return &common.MessageScaledPressure2{
			PressAbs:    float32(f.AbsoluteMillibar),
			Temperature: f.TemperatureCdeg,
		}
	case transport.Battery:
		msg := &common.MessageBatteryStatus{BatteryRemaining: int8(f.RemainingPct)}
		for i := range msg.Voltages {
			msg.Voltages[i] = transport.BatteryVoltageAbsent
		}
		copy(msg.Voltages[:], f.CellMillivolts)
		return msg
	case transport.CommandAck:
		return &common.MessageCommandAck{
			Command: common.MAV_CMD(f.Command),
			Result:  common.MAV_RESULT(f.Result),
		}
	case transport.CommandLong:
		return &common.MessageCommandLong{
			TargetSystem:    f.TargetSystem,
			TargetComponent: f.TargetComponent,
			Command:         common.MAV_CMD(f.Command),
			Param1:          f.Params[0],
			Param2:          f.Params[1],
			Param3:          f.Params[2],
			Param4:          f.Params[3],
			Param5:          f.Params[4],
			Param6:          f.Params[5],
			Param7:          f.Params[6],
		}
	case transport.SetMode:
		return &common.MessageSetMode{
			TargetSystem: f.TargetSystem,
			BaseMode:     common.MAV_MODE(f.BaseMode),
			CustomMode:   f.CustomMode,
		}
	case transport.RCOverride:
		return &common.MessageRcChannelsOverride{
			TargetSystem:    f.TargetSystem,
			TargetComponent: f.TargetComponent,
			Chan1Raw:        f.Channels[0],
			Chan2Raw:        f.Channels[1],
			Chan3Raw:        f.Channels[2],
			Chan4Raw:        f.Channels[3],
			Chan5Raw:        f.Channels[4],
			Chan6Raw:        f.Channels[5],
			Chan7Raw:        f.Channels[6],
			Chan8Raw:        f.Channels[7],
		}
	}
	return nil
}
