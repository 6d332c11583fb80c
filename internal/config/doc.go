// Package config implements the configuration store for the ROV service.
//
// Configuration is assembled in layers: Baseline() defaults, an optional YAML
// file, then ROV_* environment overrides. The result is validated before use.
package config
