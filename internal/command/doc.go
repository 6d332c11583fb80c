// Package command routes validated operator intents to the vehicle.
//
// The orchestrator validates input, bounds each call with a timeout, maps
// link and autopilot failures onto a small set of normalized errors and
// writes one audit record per call.
package command
