// Package vehicle maintains the MAVLink session with the ArduSub autopilot.
//
// A Link owns one transport session. While connected it runs two loops: a
// receive loop that demultiplexes inbound frames into VehicleState and
// registered handlers, and a keepalive loop that sends a GCS heartbeat every
// second. Commands are serialized per link and wait for a matching
// COMMAND_ACK with a bounded timeout.
package vehicle
