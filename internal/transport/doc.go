// Package transport defines the MAVLink frames the service exchanges with the
// autopilot and the southbound Transport contract that carries them.
//
// Frames form a closed set: every type implements Frame and reports a Kind, so
// consumers dispatch with a switch instead of inspecting message names. The
// mavudp subpackage backs the contract with a UDP MAVLink endpoint; the fake
// subpackage provides a scripted peer for tests.
package transport
