package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	config, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if config.CompanionHost != "192.168.2.2" {
		t.Errorf("CompanionHost = %q, want 192.168.2.2", config.CompanionHost)
	}
	if config.LinkPort != 14550 {
		t.Errorf("LinkPort = %d, want 14550", config.LinkPort)
	}
	if config.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", config.ConnectTimeout)
	}
	if config.CommandAckTimeout != 3*time.Second {
		t.Errorf("CommandAckTimeout = %v, want 3s", config.CommandAckTimeout)
	}
	if config.CollectInterval != 100*time.Millisecond {
		t.Errorf("CollectInterval = %v, want 100ms", config.CollectInterval)
	}
	if config.BroadcastInterval != 200*time.Millisecond {
		t.Errorf("BroadcastInterval = %v, want 200ms", config.BroadcastInterval)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rovd.yaml")
	content := `
companionHost: 10.0.0.5
linkPort: 14551
commandAckTimeout: 500ms
lightsControl: parameter
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if config.CompanionHost != "10.0.0.5" {
		t.Errorf("CompanionHost = %q, want 10.0.0.5", config.CompanionHost)
	}
	if config.LinkPort != 14551 {
		t.Errorf("LinkPort = %d, want 14551", config.LinkPort)
	}
	if config.CommandAckTimeout != 500*time.Millisecond {
		t.Errorf("CommandAckTimeout = %v, want 500ms", config.CommandAckTimeout)
	}
	if config.LightsControl != LightsViaParameter {
		t.Errorf("LightsControl = %q, want parameter", config.LightsControl)
	}
	// Keys absent from the file keep their baseline value.
	if config.VideoPort != 5600 {
		t.Errorf("VideoPort = %d, want 5600", config.VideoPort)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rovd.yaml")
	if err := os.WriteFile(path, []byte("companionHost: 10.0.0.5\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ROV_COMPANION_HOST", "blueos.local")
	t.Setenv("ROV_LINK_KEEPALIVE", "2s")
	t.Setenv("ROV_LINK_PORT", "not-a-number")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if config.CompanionHost != "blueos.local" {
		t.Errorf("CompanionHost = %q, want blueos.local", config.CompanionHost)
	}
	if config.KeepaliveInterval != 2*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 2s", config.KeepaliveInterval)
	}
	if config.LinkPort != 14550 {
		t.Errorf("malformed env value should be ignored, LinkPort = %d", config.LinkPort)
	}
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "companionPort: [1, 2", "invalid YAML"},
		{"invalid value", "companionPort: 70000", "companion port"},
		{"unknown lights path", "lightsControl: pwm", "lights control"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := Load(filepath.Join(dir, "absent.yaml")); err == nil {
			t.Error("expected error for missing explicit file")
		}
	})
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("ROV_TEST_DURATION", "250ms")
	t.Setenv("ROV_TEST_INT", "42")
	t.Setenv("ROV_TEST_BAD_INT", "x")

	if got := GetEnvDuration("ROV_TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("GetEnvDuration = %v, want 250ms", got)
	}
	if got := GetEnvDuration("ROV_TEST_UNSET", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration default = %v, want 1s", got)
	}
	if got := GetEnvInt("ROV_TEST_INT", 0); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	if got := GetEnvInt("ROV_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvInt malformed = %d, want 7", got)
	}
	if got := GetEnvVar("ROV_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnvVar = %q, want fallback", got)
	}
}
