package config

import "time"

// Lights control paths.
const (
	LightsViaOverride  = "override"
	LightsViaParameter = "parameter"
)

// Config holds every tunable of the service.
type Config struct {
	// Companion computer (BlueOS)
	CompanionHost    string        `yaml:"companionHost"`
	CompanionPort    int           `yaml:"companionPort"`
	CompanionTimeout time.Duration `yaml:"companionTimeout"`
	VideoPort        int           `yaml:"videoPort"`

	// Vehicle link
	LinkHost          string        `yaml:"linkHost"`
	LinkPort          int           `yaml:"linkPort"`
	SystemID          int           `yaml:"systemId"`
	ComponentID       int           `yaml:"componentId"`
	ConnectTimeout    time.Duration `yaml:"connectTimeout"`
	CommandAckTimeout time.Duration `yaml:"commandAckTimeout"`
	KeepaliveInterval time.Duration `yaml:"keepaliveInterval"`
	ReceivePoll       time.Duration `yaml:"receivePoll"`
	LoopErrorBackoff  time.Duration `yaml:"loopErrorBackoff"`

	// Telemetry
	CollectInterval   time.Duration `yaml:"collectInterval"`
	CollectTimeout    time.Duration `yaml:"collectTimeout"`
	BroadcastInterval time.Duration `yaml:"broadcastInterval"`
	SendTimeout       time.Duration `yaml:"sendTimeout"`
	SubscriberBuffer  int           `yaml:"subscriberBuffer"`

	// Commands
	CommandTimeout time.Duration `yaml:"commandTimeout"`
	LightsControl  string        `yaml:"lightsControl"`

	// HTTP API
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Audit trail
	AuditDir        string `yaml:"auditDir"`
	AuditMaxSizeMB  int    `yaml:"auditMaxSizeMB"`
	AuditMaxBackups int    `yaml:"auditMaxBackups"`
	AuditMaxAgeDays int    `yaml:"auditMaxAgeDays"`

	// Auth. An empty algorithm disables token checks.
	AuthAlgorithm string `yaml:"authAlgorithm"`
	AuthSecret    string `yaml:"authSecret"`
	AuthPublicKey string `yaml:"authPublicKey"`

	LogLevel string `yaml:"logLevel"`
}

// Baseline returns the default configuration for a BlueOS-equipped BlueROV2.
func Baseline() *Config {
	return &Config{
		CompanionHost:    "192.168.2.2",
		CompanionPort:    80,
		CompanionTimeout: 10 * time.Second,
		VideoPort:        5600,

		LinkHost:          "0.0.0.0",
		LinkPort:          14550,
		SystemID:          255,
		ComponentID:       0,
		ConnectTimeout:    10 * time.Second,
		CommandAckTimeout: 3 * time.Second,
		KeepaliveInterval: time.Second,
		ReceivePoll:       10 * time.Millisecond,
		LoopErrorBackoff:  100 * time.Millisecond,

		CollectInterval:   100 * time.Millisecond, // 10 Hz
		CollectTimeout:    2 * time.Second,
		BroadcastInterval: 200 * time.Millisecond, // 5 Hz
		SendTimeout:       time.Second,
		SubscriberBuffer:  16,

		CommandTimeout: 5 * time.Second,
		LightsControl:  LightsViaOverride,

		ListenAddr:      ":8000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    0, // streaming responses stay open
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,

		AuditDir:        "logs",
		AuditMaxSizeMB:  10,
		AuditMaxBackups: 5,
		AuditMaxAgeDays: 30,

		LogLevel: "info",
	}
}
