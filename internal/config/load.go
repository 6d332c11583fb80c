package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when Load is given an empty path and the file exists.
const DefaultFile = "rovd.yaml"

// Load merges Baseline() + optional YAML file + ROV_* env overrides.
// An explicit path that cannot be read is an error; a missing default file is not.
func Load(path string) (*Config, error) {
	config := Baseline()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := loadFromFile(path, config); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile decodes YAML over config; keys absent from the file keep their current value.
func loadFromFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides applies ROV_* environment variables. Malformed values are ignored.
func applyEnvOverrides(config *Config) {
	config.CompanionHost = GetEnvVar("ROV_COMPANION_HOST", config.CompanionHost)
	config.CompanionPort = GetEnvInt("ROV_COMPANION_PORT", config.CompanionPort)
	config.CompanionTimeout = GetEnvDuration("ROV_COMPANION_TIMEOUT", config.CompanionTimeout)
	config.VideoPort = GetEnvInt("ROV_VIDEO_PORT", config.VideoPort)

	config.LinkHost = GetEnvVar("ROV_LINK_HOST", config.LinkHost)
	config.LinkPort = GetEnvInt("ROV_LINK_PORT", config.LinkPort)
	config.ConnectTimeout = GetEnvDuration("ROV_LINK_CONNECT_TIMEOUT", config.ConnectTimeout)
	config.CommandAckTimeout = GetEnvDuration("ROV_LINK_ACK_TIMEOUT", config.CommandAckTimeout)
	config.KeepaliveInterval = GetEnvDuration("ROV_LINK_KEEPALIVE", config.KeepaliveInterval)

	config.CollectInterval = GetEnvDuration("ROV_TELEMETRY_COLLECT_INTERVAL", config.CollectInterval)
	config.BroadcastInterval = GetEnvDuration("ROV_TELEMETRY_BROADCAST_INTERVAL", config.BroadcastInterval)

	config.LightsControl = GetEnvVar("ROV_LIGHTS_CONTROL", config.LightsControl)
	config.ListenAddr = GetEnvVar("ROV_ADDR", config.ListenAddr)
	config.AuditDir = GetEnvVar("ROV_AUDIT_DIR", config.AuditDir)
	config.AuthAlgorithm = GetEnvVar("ROV_AUTH_ALGORITHM", config.AuthAlgorithm)
	config.AuthSecret = GetEnvVar("ROV_AUTH_SECRET", config.AuthSecret)
	config.AuthPublicKey = GetEnvVar("ROV_AUTH_PUBLIC_KEY", config.AuthPublicKey)
	config.LogLevel = GetEnvVar("ROV_LOG_LEVEL", config.LogLevel)
}

// GetEnvVar gets an environment variable with a default value.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration gets a duration from environment variable with a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvInt gets an int from environment variable with a default value.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
