package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate rejects configurations the service cannot run with.
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateCompanion(config); err != nil {
		return fmt.Errorf("companion validation failed: %w", err)
	}
	if err := validateLink(config); err != nil {
		return fmt.Errorf("link validation failed: %w", err)
	}
	if err := validateTelemetry(config); err != nil {
		return fmt.Errorf("telemetry validation failed: %w", err)
	}

	switch config.LightsControl {
	case LightsViaOverride, LightsViaParameter:
	default:
		return fmt.Errorf("lights control must be %q or %q, got %q", LightsViaOverride, LightsViaParameter, config.LightsControl)
	}

	if config.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %v", config.CommandTimeout)
	}
	if err := validateAuth(config); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}
	if config.AuditDir == "" {
		return fmt.Errorf("audit directory must be set")
	}
	if config.AuditMaxSizeMB < 1 {
		return fmt.Errorf("audit max size must be at least 1 MB, got %d", config.AuditMaxSizeMB)
	}
	if _, err := ParseLogLevel(config.LogLevel); err != nil {
		return err
	}
	return nil
}

func validateAuth(config *Config) error {
	switch config.AuthAlgorithm {
	case "":
		return nil
	case "HS256":
		if config.AuthSecret == "" {
			return fmt.Errorf("HS256 requires authSecret")
		}
	case "RS256":
		if config.AuthPublicKey == "" {
			return fmt.Errorf("RS256 requires authPublicKey")
		}
	default:
		return fmt.Errorf("unsupported auth algorithm %q", config.AuthAlgorithm)
	}
	return nil
}

func validateCompanion(config *Config) error {
	if config.CompanionHost == "" {
		return fmt.Errorf("companion host must be set")
	}
	if err := validatePort("companion port", config.CompanionPort); err != nil {
		return err
	}
	if err := validatePort("video port", config.VideoPort); err != nil {
		return err
	}
	if config.CompanionTimeout <= 0 {
		return fmt.Errorf("companion timeout must be positive, got %v", config.CompanionTimeout)
	}
	return nil
}

func validateLink(config *Config) error {
	if err := validatePort("link port", config.LinkPort); err != nil {
		return err
	}
	if config.SystemID < 1 || config.SystemID > 255 {
		return fmt.Errorf("system id %d outside 1-255", config.SystemID)
	}
	if config.ComponentID < 0 || config.ComponentID > 255 {
		return fmt.Errorf("component id %d outside 0-255", config.ComponentID)
	}
	if config.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %v", config.ConnectTimeout)
	}
	if config.CommandAckTimeout <= 0 {
		return fmt.Errorf("command ack timeout must be positive, got %v", config.CommandAckTimeout)
	}
	if config.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive interval must be positive, got %v", config.KeepaliveInterval)
	}
	if config.ReceivePoll <= 0 || config.LoopErrorBackoff <= 0 {
		return fmt.Errorf("receive poll and loop backoff must be positive")
	}
	return nil
}

func validateTelemetry(config *Config) error {
	if config.CollectInterval <= 0 {
		return fmt.Errorf("collect interval must be positive, got %v", config.CollectInterval)
	}
	if config.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast interval must be positive, got %v", config.BroadcastInterval)
	}
	if config.CollectTimeout <= 0 || config.SendTimeout <= 0 {
		return fmt.Errorf("collect and send timeouts must be positive")
	}
	if config.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber buffer must be at least 1, got %d", config.SubscriberBuffer)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d outside 1-65535", name, port)
	}
	return nil
}

// ParseLogLevel maps a level name onto slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
