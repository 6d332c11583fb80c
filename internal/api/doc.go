// Package api implements the operator HTTP API.
//
// Read endpoints expose vehicle state, the latest telemetry packet, companion
// metrics and the video stream set. Control endpoints forward to the command
// orchestrator. Telemetry is also pushed over server-sent events and
// WebSocket. Every JSON response uses one envelope with a correlation id.
package api
