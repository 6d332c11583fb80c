// Package auth verifies bearer tokens and enforces roles and scopes on the
// operator API.
//
// Viewers may read state and subscribe to telemetry. Pilots additionally hold
// the control scope needed to arm, change mode, drive and light the vehicle.
// A middleware built without a verifier admits every request as an anonymous
// pilot, which is how a bench setup without key material runs.
package auth
