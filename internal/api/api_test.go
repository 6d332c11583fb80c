package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rov-control/rovd/internal/auth"
	"github.com/rov-control/rovd/internal/command"
	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/telemetry"
	"github.com/rov-control/rovd/internal/transport"
	"github.com/rov-control/rovd/internal/vehicle"
	"github.com/rov-control/rovd/internal/video"
)

// mockOrchestrator records calls and returns scripted errors.
type mockOrchestrator struct {
	mu        sync.Mutex
	calls     []string
	mode      string
	lights    int
	control   vehicle.ManualControl
	connected bool
	err       error
}

func (m *mockOrchestrator) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockOrchestrator) State() (vehicle.State, bool) {
	return vehicle.State{Armed: true, Mode: vehicle.ModeAltHold, Depth: 3.2}, m.connected
}

func (m *mockOrchestrator) Connect(context.Context) error    { return m.record("connect") }
func (m *mockOrchestrator) Disconnect(context.Context) error { return m.record("disconnect") }
func (m *mockOrchestrator) Arm(context.Context) error        { return m.record("arm") }
func (m *mockOrchestrator) Disarm(context.Context) error     { return m.record("disarm") }

func (m *mockOrchestrator) SetMode(_ context.Context, name string) error {
	m.mode = name
	return m.record("setMode")
}

func (m *mockOrchestrator) SetLights(_ context.Context, level int) error {
	m.lights = level
	return m.record("setLights")
}

func (m *mockOrchestrator) ManualControl(_ context.Context, c vehicle.ManualControl) error {
	m.control = c
	return m.record("manualControl")
}

// mockTelemetry serves a fixed packet.
type mockTelemetry struct {
	running bool
	packet  *telemetry.Packet
}

func (m *mockTelemetry) Running() bool        { return m.running }
func (m *mockTelemetry) SubscriberCount() int { return 0 }

func (m *mockTelemetry) Snapshot() (telemetry.Packet, bool) {
	if m.packet == nil {
		return telemetry.Packet{}, false
	}
	return *m.packet, true
}

func (m *mockTelemetry) ServeSSE(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream")
	_, err := w.Write([]byte("event: ready\ndata: {}\n\n"))
	return err
}

func (m *mockTelemetry) ServeWebSocket(w http.ResponseWriter, r *http.Request) error {
	return errors.New("not a websocket request")
}

// mockCompanion answers every call with canned documents.
type mockCompanion struct {
	healthy bool
	err     error
	params  map[string]float64
}

func (m *mockCompanion) HealthCheck(context.Context) bool { return m.healthy }
func (m *mockCompanion) SystemInfo(context.Context) (any, error) {
	return map[string]any{"hostname": "blueos"}, m.err
}
func (m *mockCompanion) CPUInfo(context.Context) (any, error) {
	return []any{map[string]any{"usage": 12.5}}, m.err
}
func (m *mockCompanion) MemoryInfo(context.Context) (any, error) {
	return map[string]any{"used_kB": 1024}, m.err
}
func (m *mockCompanion) DiskInfo(context.Context) (any, error) { return []any{}, m.err }
func (m *mockCompanion) NetworkInfo(context.Context) ([]companion.Document, error) {
	return []companion.Document{{"name": "eth0"}}, m.err
}
func (m *mockCompanion) VehicleHeartbeat(context.Context) (companion.Document, error) {
	return companion.Document{"message": map[string]any{"type": "HEARTBEAT", "custom_mode": 19}}, m.err
}
func (m *mockCompanion) MavlinkEndpoints(context.Context) ([]companion.Document, error) {
	return []companion.Document{{"name": "inspector"}}, m.err
}
func (m *mockCompanion) Parameters(context.Context) (companion.Document, error) {
	return companion.Document{"LIGHTS1_LEVEL": 1000.0}, m.err
}

func (m *mockCompanion) SetParameter(_ context.Context, name string, value float64) (companion.Document, error) {
	if m.params == nil {
		m.params = map[string]float64{}
	}
	m.params[name] = value
	return companion.Document{"status": "ok"}, m.err
}

func (m *mockCompanion) Cameras(context.Context) ([]companion.Document, error) {
	return []companion.Document{{"name": "Pi Camera"}}, m.err
}
func (m *mockCompanion) PingDevices(context.Context) ([]companion.Document, error) {
	return []companion.Document{{"id": 0}}, m.err
}
func (m *mockCompanion) PingDistance(_ context.Context, id int) (companion.Document, error) {
	return companion.Document{"distance": 1520, "device": id}, m.err
}
func (m *mockCompanion) Extensions(context.Context) ([]companion.Document, error) {
	return []companion.Document{}, m.err
}
func (m *mockCompanion) InstallExtension(_ context.Context, identifier, tag string) (companion.Document, error) {
	return companion.Document{"identifier": identifier, "tag": tag}, m.err
}

// failingSource makes discovery fall back to the default stream.
type failingSource struct{}

func (failingSource) Cameras(context.Context) ([]companion.Document, error) {
	return nil, companion.ErrUnreachable
}
func (failingSource) VideoStreams(context.Context) ([]companion.Document, error) {
	return nil, companion.ErrUnreachable
}

type testEnv struct {
	server       *Server
	handler      http.Handler
	orchestrator *mockOrchestrator
	telemetry    *mockTelemetry
	companion    *mockCompanion
	registry     *video.Registry
}

func setupTestServer(t *testing.T, middleware *auth.Middleware) *testEnv {
	t.Helper()
	registry := video.NewRegistry("192.168.2.2", 80, 5600, nil)
	_ = registry.Discover(context.Background(), failingSource{})

	env := &testEnv{
		orchestrator: &mockOrchestrator{connected: true},
		telemetry:    &mockTelemetry{running: true},
		companion:    &mockCompanion{healthy: true},
		registry:     registry,
	}
	env.server = NewServer(Deps{
		Orchestrator: env.orchestrator,
		Telemetry:    env.telemetry,
		Companion:    env.companion,
		Streams:      registry,
		Auth:         middleware,
	}, Timeouts{})
	env.handler = env.server.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body == "" {
		req.ContentLength = 0
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
		}
		if resp.CorrelationID == "" {
			t.Errorf("%s %s: missing correlationId", method, path)
		}
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t, nil)

	w, resp := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK || resp.Result != "ok" {
		t.Fatalf("status = %d, resp = %+v", w.Code, resp)
	}
	data := resp.Data.(map[string]interface{})
	subsystems := data["subsystems"].(map[string]interface{})
	if subsystems["vehicle"] != true || subsystems["companion"] != true || subsystems["auth"] != false {
		t.Errorf("subsystems = %v", subsystems)
	}

	env.telemetry.running = false
	w, resp = env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable || resp.Code != "SERVICE_DEGRADED" {
		t.Errorf("degraded status = %d, code = %q", w.Code, resp.Code)
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", w.Code)
	}
}

func TestStatus(t *testing.T) {
	env := setupTestServer(t, nil)

	w, resp := env.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := resp.Data.(map[string]interface{})
	v := data["vehicle"].(map[string]interface{})
	if data["connected"] != true || v["mode"] != "ALT_HOLD" || v["armed"] != true {
		t.Errorf("data = %v", data)
	}
}

func TestTelemetrySnapshot(t *testing.T) {
	env := setupTestServer(t, nil)

	w, resp := env.do(t, http.MethodGet, "/api/v1/telemetry", "")
	if w.Code != http.StatusServiceUnavailable || resp.Code != "UNAVAILABLE" {
		t.Errorf("empty snapshot = %d %q", w.Code, resp.Code)
	}

	env.telemetry.packet = &telemetry.Packet{
		Timestamp: "2024-03-01T10:00:00Z",
		Cameras:   []companion.Document{},
	}
	w, resp = env.do(t, http.MethodGet, "/api/v1/telemetry", "")
	if w.Code != http.StatusOK || resp.Result != "ok" {
		t.Errorf("snapshot = %d %+v", w.Code, resp)
	}
	data, _ := resp.Data.(map[string]any)
	if data["timestamp"] != "2024-03-01T10:00:00Z" {
		t.Errorf("timestamp = %v", data["timestamp"])
	}
}

func TestTelemetryStream(t *testing.T) {
	env := setupTestServer(t, nil)

	w, _ := env.do(t, http.MethodGet, "/api/v1/telemetry/stream", "")
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "event: ready") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestVehicleCommands(t *testing.T) {
	env := setupTestServer(t, nil)

	for _, path := range []string{"connect", "arm", "disarm", "disconnect"} {
		w, resp := env.do(t, http.MethodPost, "/api/v1/vehicle/"+path, "")
		if w.Code != http.StatusOK || resp.Result != "ok" {
			t.Errorf("POST %s = %d %+v", path, w.Code, resp)
		}
	}
	want := []string{"connect", "arm", "disarm", "disconnect"}
	if strings.Join(env.orchestrator.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v", env.orchestrator.calls)
	}

	w, _ := env.do(t, http.MethodGet, "/api/v1/vehicle/arm", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET arm = %d, want 405", w.Code)
	}
}

func TestVehicleCommandErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"denied", &transport.ResultError{Code: transport.ErrDenied, Result: transport.ResultDenied}, http.StatusConflict, "DENIED"},
		{"busy", &transport.ResultError{Code: transport.ErrBusy, Result: transport.ResultTemporarilyRejected}, http.StatusServiceUnavailable, "BUSY"},
		{"timeout", command.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
		{"unavailable", command.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"conflict", command.ErrConflict, http.StatusConflict, "CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, nil)
			env.orchestrator.err = tt.err

			w, resp := env.do(t, http.MethodPost, "/api/v1/vehicle/arm", "")
			if w.Code != tt.wantStatus || resp.Code != tt.wantCode {
				t.Errorf("got %d %q, want %d %q", w.Code, resp.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestModeAndLights(t *testing.T) {
	env := setupTestServer(t, nil)

	w, _ := env.do(t, http.MethodPost, "/api/v1/vehicle/mode", `{"mode":"POSHOLD"}`)
	if w.Code != http.StatusOK || env.orchestrator.mode != "POSHOLD" {
		t.Errorf("mode: %d, %q", w.Code, env.orchestrator.mode)
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/vehicle/lights", `{"level":40}`)
	if w.Code != http.StatusOK || env.orchestrator.lights != 40 {
		t.Errorf("lights: %d, %d", w.Code, env.orchestrator.lights)
	}

	w, resp := env.do(t, http.MethodPost, "/api/v1/vehicle/lights", `{}`)
	if w.Code != http.StatusBadRequest || resp.Code != "BAD_REQUEST" {
		t.Errorf("missing level: %d %q", w.Code, resp.Code)
	}

	w, resp = env.do(t, http.MethodPost, "/api/v1/vehicle/mode", `{"mode":"MANUAL","extra":1}`)
	if w.Code != http.StatusBadRequest || resp.Code != "BAD_REQUEST" {
		t.Errorf("unknown field: %d %q", w.Code, resp.Code)
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/vehicle/mode", `{"mode":"MANUAL"}{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("trailing data: %d", w.Code)
	}
}

func TestManualControlDefaultsNeutral(t *testing.T) {
	env := setupTestServer(t, nil)

	w, _ := env.do(t, http.MethodPost, "/api/v1/vehicle/manual", `{"forward":1700}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := vehicle.NeutralControl()
	want.Forward = 1700
	if env.orchestrator.control != want {
		t.Errorf("control = %+v, want %+v", env.orchestrator.control, want)
	}
}

func TestCompanionProxies(t *testing.T) {
	env := setupTestServer(t, nil)

	for _, path := range []string{
		"system", "system/cpu", "system/memory", "system/disk", "system/network",
		"mavlink/heartbeat", "mavlink/endpoints",
		"parameters", "cameras", "ping", "ping/0/distance", "extensions",
	} {
		w, resp := env.do(t, http.MethodGet, "/api/v1/"+path, "")
		if w.Code != http.StatusOK || resp.Result != "ok" {
			t.Errorf("GET %s = %d %+v", path, w.Code, resp)
		}
	}

	_, network := env.do(t, http.MethodGet, "/api/v1/system/network", "")
	if ifaces, _ := network.Data.([]any); len(ifaces) != 1 {
		t.Errorf("network = %+v", network.Data)
	}

	w, _ := env.do(t, http.MethodGet, "/api/v1/ping/abc/distance", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad ping id = %d", w.Code)
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/parameters", `{"id":"LIGHTS1_LEVEL","value":1500}`)
	if w.Code != http.StatusOK || env.companion.params["LIGHTS1_LEVEL"] != 1500 {
		t.Errorf("set parameter = %d, params = %v", w.Code, env.companion.params)
	}

	w, resp := env.do(t, http.MethodPost, "/api/v1/extensions", `{"identifier":"bluerobotics/cockpit"}`)
	if w.Code != http.StatusOK || resp.Data.(map[string]interface{})["tag"] != "latest" {
		t.Errorf("install = %d %+v", w.Code, resp)
	}

	env.companion.err = companion.ErrUnreachable
	w, resp = env.do(t, http.MethodGet, "/api/v1/system/cpu", "")
	if w.Code != http.StatusServiceUnavailable || resp.Code != "UNAVAILABLE" {
		t.Errorf("unreachable = %d %q", w.Code, resp.Code)
	}

	env.companion.err = &companion.StatusError{Method: "GET", Path: "/ping/devices", Code: 404}
	w, resp = env.do(t, http.MethodGet, "/api/v1/ping", "")
	if w.Code != http.StatusBadGateway || resp.Code != "UPSTREAM_ERROR" {
		t.Errorf("upstream = %d %q", w.Code, resp.Code)
	}
}

func TestStreamsAndRecording(t *testing.T) {
	env := setupTestServer(t, nil)

	w, resp := env.do(t, http.MethodGet, "/api/v1/streams", "")
	if w.Code != http.StatusOK {
		t.Fatalf("streams = %d", w.Code)
	}
	streams := resp.Data.([]interface{})
	if len(streams) != 1 || streams[0].(map[string]interface{})["id"] != video.FallbackStream {
		t.Errorf("streams = %v", streams)
	}

	w, resp = env.do(t, http.MethodPost, "/api/v1/streams/main/recording", `{"filename":"dive.mp4"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start recording = %d %+v", w.Code, resp)
	}
	stream, err := env.registry.Get(video.FallbackStream)
	if err != nil || !stream.Recording || stream.Filename != "dive.mp4" {
		t.Errorf("stream = %+v, %v", stream, err)
	}

	w, resp = env.do(t, http.MethodDelete, "/api/v1/streams/main/recording", "")
	if w.Code != http.StatusOK || resp.Data.(map[string]interface{})["filename"] != "dive.mp4" {
		t.Errorf("stop recording = %d %+v", w.Code, resp)
	}

	w, resp = env.do(t, http.MethodPost, "/api/v1/streams/aux/recording", "")
	if w.Code != http.StatusNotFound || resp.Code != "NOT_FOUND" {
		t.Errorf("unknown stream = %d %q", w.Code, resp.Code)
	}
}

func TestScopeEnforcement(t *testing.T) {
	const secret = "api-test-secret"
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Algorithm: auth.AlgorithmHS256, SecretKey: secret})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}
	env := setupTestServer(t, auth.NewMiddleware(verifier))

	sign := func(role string, scopes ...string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":    role + "-1",
			"roles":  []string{role},
			"scopes": scopes,
			"exp":    time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return "Bearer " + token
	}
	viewer := sign(auth.RoleViewer, auth.ScopeRead, auth.ScopeTelemetry)
	pilot := sign(auth.RolePilot, auth.ScopeRead, auth.ScopeControl, auth.ScopeTelemetry)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health without token", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"status without token", http.MethodGet, "/api/v1/status", "", http.StatusUnauthorized},
		{"viewer reads status", http.MethodGet, "/api/v1/status", viewer, http.StatusOK},
		{"viewer cannot arm", http.MethodPost, "/api/v1/vehicle/arm", viewer, http.StatusForbidden},
		{"pilot arms", http.MethodPost, "/api/v1/vehicle/arm", pilot, http.StatusOK},
		{"viewer reads parameters", http.MethodGet, "/api/v1/parameters", viewer, http.StatusOK},
		{"viewer cannot set parameters", http.MethodPost, "/api/v1/parameters", viewer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var header []string
			if tt.token != "" {
				header = []string{"Authorization", tt.token}
			}
			w, _ := env.do(t, tt.method, tt.path, "", header...)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMissingDependencies(t *testing.T) {
	server := NewServer(Deps{}, Timeouts{})
	handler := server.Handler()

	for _, path := range []string{"/api/v1/status", "/api/v1/telemetry", "/api/v1/cameras", "/api/v1/streams"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, w.Code)
		}
	}
}
