package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rov-control/rovd/internal/command"
	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/telemetry"
	"github.com/rov-control/rovd/internal/vehicle"
	"github.com/rov-control/rovd/internal/video"
)

// OrchestratorPort defines what the API needs from the command orchestrator.
type OrchestratorPort interface {
	State() (vehicle.State, bool)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	SetMode(ctx context.Context, name string) error
	SetLights(ctx context.Context, level int) error
	ManualControl(ctx context.Context, c vehicle.ManualControl) error
}

// TelemetryPort defines what the API needs from the aggregator.
type TelemetryPort interface {
	Running() bool
	Snapshot() (telemetry.Packet, bool)
	SubscriberCount() int
	ServeSSE(w http.ResponseWriter, r *http.Request) error
	ServeWebSocket(w http.ResponseWriter, r *http.Request) error
}

// CompanionPort defines the companion computer calls the API proxies.
type CompanionPort interface {
	HealthCheck(ctx context.Context) bool
	SystemInfo(ctx context.Context) (any, error)
	CPUInfo(ctx context.Context) (any, error)
	MemoryInfo(ctx context.Context) (any, error)
	DiskInfo(ctx context.Context) (any, error)
	NetworkInfo(ctx context.Context) ([]companion.Document, error)
	VehicleHeartbeat(ctx context.Context) (companion.Document, error)
	MavlinkEndpoints(ctx context.Context) ([]companion.Document, error)
	Parameters(ctx context.Context) (companion.Document, error)
	SetParameter(ctx context.Context, name string, value float64) (companion.Document, error)
	Cameras(ctx context.Context) ([]companion.Document, error)
	PingDevices(ctx context.Context) ([]companion.Document, error)
	PingDistance(ctx context.Context, deviceID int) (companion.Document, error)
	Extensions(ctx context.Context) ([]companion.Document, error)
	InstallExtension(ctx context.Context, identifier, tag string) (companion.Document, error)
}

// StreamPort defines the video registry operations the API exposes.
type StreamPort interface {
	Descriptors() []video.Descriptor
	Get(name string) (video.Stream, error)
	StartRecording(name, filename string, now time.Time) error
	StopRecording(name string) (string, error)
}

var (
	_ OrchestratorPort = (*command.Orchestrator)(nil)
	_ TelemetryPort    = (*telemetry.Aggregator)(nil)
	_ CompanionPort    = (*companion.Client)(nil)
	_ StreamPort       = (*video.Registry)(nil)
)
