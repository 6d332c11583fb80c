// Package video keeps the registry of camera streams published by the
// companion's camera manager and derives their playback URLs.
//
// Discovery never leaves the registry empty: when the camera manager fails
// or reports nothing usable, a synthetic "main" stream pointing at the
// companion's raw UDP video port is installed.
package video
