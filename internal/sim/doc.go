// Package sim is a simulated ArduSub vehicle for bench testing without
// hardware.
//
// The vehicle answers arm, disarm and mode requests with acknowledgements,
// follows RC override input with a crude kinematic model and streams
// heartbeat, attitude, heading, pressure and battery frames over any
// transport.Transport.
package sim
