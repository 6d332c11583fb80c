package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rov-control/rovd/internal/auth"
	"github.com/rov-control/rovd/internal/telemetry"
	"github.com/rov-control/rovd/internal/vehicle"
)

const apiV1 = "/api/v1"

// healthProbeTimeout bounds the companion check inside /health.
const healthProbeTimeout = 2 * time.Second

// RegisterRoutes registers every v1 endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	read := s.protect(auth.ScopeRead)
	control := s.protect(auth.ScopeControl)
	stream := s.protect(auth.ScopeTelemetry)

	mux.HandleFunc(apiV1+"/status", read(s.handleStatus))
	mux.HandleFunc(apiV1+"/modes", read(s.handleModes))

	mux.HandleFunc(apiV1+"/telemetry", stream(s.handleTelemetrySnapshot))
	mux.HandleFunc(apiV1+"/telemetry/stream", stream(s.handleTelemetryStream))
	mux.HandleFunc(apiV1+"/telemetry/ws", stream(s.handleTelemetryWebSocket))

	mux.HandleFunc(apiV1+"/vehicle/connect", control(s.handleConnect))
	mux.HandleFunc(apiV1+"/vehicle/disconnect", control(s.handleDisconnect))
	mux.HandleFunc(apiV1+"/vehicle/arm", control(s.handleArm))
	mux.HandleFunc(apiV1+"/vehicle/disarm", control(s.handleDisarm))
	mux.HandleFunc(apiV1+"/vehicle/mode", control(s.handleMode))
	mux.HandleFunc(apiV1+"/vehicle/lights", control(s.handleLights))
	mux.HandleFunc(apiV1+"/vehicle/manual", control(s.handleManual))

	mux.HandleFunc(apiV1+"/system", read(s.handleSystem(CompanionPort.SystemInfo)))
	mux.HandleFunc(apiV1+"/system/cpu", read(s.handleSystem(CompanionPort.CPUInfo)))
	mux.HandleFunc(apiV1+"/system/memory", read(s.handleSystem(CompanionPort.MemoryInfo)))
	mux.HandleFunc(apiV1+"/system/disk", read(s.handleSystem(CompanionPort.DiskInfo)))
	mux.HandleFunc(apiV1+"/system/network", read(s.handleSystem(asAny(CompanionPort.NetworkInfo))))

	mux.HandleFunc(apiV1+"/mavlink/heartbeat", read(s.handleSystem(asAny(CompanionPort.VehicleHeartbeat))))
	mux.HandleFunc(apiV1+"/mavlink/endpoints", read(s.handleSystem(asAny(CompanionPort.MavlinkEndpoints))))

	mux.HandleFunc(apiV1+"/parameters", s.byMethod(read(s.handleGetParameters), control(s.handleSetParameter)))
	mux.HandleFunc(apiV1+"/cameras", read(s.handleCameras))
	mux.HandleFunc(apiV1+"/streams", read(s.handleStreams))
	mux.HandleFunc(apiV1+"/streams/{name}/recording", control(s.handleRecording))
	mux.HandleFunc(apiV1+"/ping", read(s.handlePingDevices))
	mux.HandleFunc(apiV1+"/ping/{id}/distance", read(s.handlePingDistance))
	mux.HandleFunc(apiV1+"/extensions", s.byMethod(read(s.handleExtensions), control(s.handleInstallExtension)))
}

// protect wraps a handler with authentication and one required scope.
func (s *Server) protect(scope string) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(scope)(h))
	}
}

// byMethod dispatches GET to get and POST to post.
func (s *Server) byMethod(get, post http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			get(w, r)
		case http.MethodPost:
			post(w, r)
		default:
			writeMethodNotAllowed(w, "GET, POST")
		}
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	writeMethodNotAllowed(w, method)
	return false
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		"Only "+allowed+" allowed", nil)
}

// decodeJSON strictly decodes one JSON object from the body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewAPIError("BAD_REQUEST", "Malformed JSON or unknown fields", http.StatusBadRequest, nil)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return NewAPIError("BAD_REQUEST", "Trailing data after JSON object", http.StatusBadRequest, nil)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	subsystems := map[string]bool{
		"telemetry": s.telemetry != nil && s.telemetry.Running(),
		"vehicle":   false,
		"companion": false,
		"auth":      s.authMiddleware.Enabled(),
	}
	if s.orchestrator != nil {
		_, subsystems["vehicle"] = s.orchestrator.State()
	}
	if s.companion != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		subsystems["companion"] = s.companion.HealthCheck(ctx)
		cancel()
	}

	status := "ok"
	if !subsystems["telemetry"] {
		status = "degraded"
	}
	health := map[string]interface{}{
		"status":     status,
		"uptimeSec":  time.Since(s.startTime).Seconds(),
		"version":    Version,
		"subsystems": subsystems,
	}
	if s.telemetry != nil {
		health["subscribers"] = s.telemetry.SubscriberCount()
	}

	if status == "ok" {
		WriteSuccess(w, health)
		return
	}
	WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
		"Telemetry aggregator is not running", health)
}

type statusView struct {
	Connected bool          `json:"connected"`
	Vehicle   vehicle.State `json:"vehicle"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireOrchestrator(w) {
		return
	}
	state, connected := s.orchestrator.State()
	WriteSuccess(w, statusView{Connected: connected, Vehicle: state})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, vehicle.FlightModes())
}

func (s *Server) handleTelemetrySnapshot(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireTelemetry(w) {
		return
	}
	packet, ok := s.telemetry.Snapshot()
	if !ok {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "No telemetry collected yet", nil)
		return
	}
	WriteSuccess(w, packet)
}

func (s *Server) handleTelemetryStream(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireTelemetry(w) {
		return
	}
	if err := s.telemetry.ServeSSE(w, r); err != nil {
		s.logger.Warn("telemetry stream ended", "error", err)
		if errors.Is(err, telemetry.ErrStreamingUnsupported) {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "Streaming unsupported", nil)
		}
	}
}

func (s *Server) handleTelemetryWebSocket(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireTelemetry(w) {
		return
	}
	if err := s.telemetry.ServeWebSocket(w, r); err != nil {
		s.logger.Warn("telemetry websocket ended", "error", err)
	}
}

// command runs a body-less vehicle action and answers with the new state.
func (s *Server) command(w http.ResponseWriter, r *http.Request, action func(context.Context) error) {
	if !allowMethod(w, r, http.MethodPost) || !s.requireOrchestrator(w) {
		return
	}
	if err := action(r.Context()); err != nil {
		WriteAPIError(w, err)
		return
	}
	state, connected := s.orchestrator.State()
	WriteSuccess(w, statusView{Connected: connected, Vehicle: state})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(ctx context.Context) error { return s.orchestrator.Connect(ctx) })
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(ctx context.Context) error { return s.orchestrator.Disconnect(ctx) })
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(ctx context.Context) error { return s.orchestrator.Arm(ctx) })
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(ctx context.Context) error { return s.orchestrator.Disarm(ctx) })
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			WriteAPIError(w, err)
			return
		}
	}
	s.command(w, r, func(ctx context.Context) error { return s.orchestrator.SetMode(ctx, req.Mode) })
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *int `json:"level"`
	}
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			WriteAPIError(w, err)
			return
		}
		if req.Level == nil {
			WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "level is required", nil)
			return
		}
	}
	s.command(w, r, func(ctx context.Context) error { return s.orchestrator.SetLights(ctx, *req.Level) })
}

// handleManual decodes an RC override. Omitted axes stay neutral and omitted
// lights stay off.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	c := vehicle.NeutralControl()
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &c); err != nil {
			WriteAPIError(w, err)
			return
		}
	}
	s.command(w, r, func(ctx context.Context) error { return s.orchestrator.ManualControl(ctx, c) })
}

// asAny adapts a typed companion read to handleSystem.
func asAny[T any](fetch func(CompanionPort, context.Context) (T, error)) func(CompanionPort, context.Context) (any, error) {
	return func(c CompanionPort, ctx context.Context) (any, error) {
		return fetch(c, ctx)
	}
}

// handleSystem proxies one companion read as a GET endpoint.
func (s *Server) handleSystem(fetch func(CompanionPort, context.Context) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) || !s.requireCompanion(w) {
			return
		}
		data, err := fetch(s.companion, r.Context())
		if err != nil {
			WriteAPIError(w, err)
			return
		}
		WriteSuccess(w, data)
	}
}

func (s *Server) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	if !s.requireCompanion(w) {
		return
	}
	params, err := s.companion.Parameters(r.Context())
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, params)
}

func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	if !s.requireCompanion(w) {
		return
	}
	var req struct {
		ID    string   `json:"id"`
		Value *float64 `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteAPIError(w, err)
		return
	}
	if req.ID == "" || req.Value == nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "id and value are required", nil)
		return
	}
	resp, err := s.companion.SetParameter(r.Context(), req.ID, *req.Value)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, resp)
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireCompanion(w) {
		return
	}
	cameras, err := s.companion.Cameras(r.Context())
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, cameras)
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireStreams(w) {
		return
	}
	WriteSuccess(w, s.streams.Descriptors())
}

// handleRecording starts recording on POST and stops it on DELETE.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireStreams(w) {
		return
	}
	name := r.PathValue("name")

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Filename string `json:"filename"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				WriteAPIError(w, err)
				return
			}
		}
		if err := s.streams.StartRecording(name, req.Filename, time.Now()); err != nil {
			WriteAPIError(w, err)
			return
		}
		stream, err := s.streams.Get(name)
		if err != nil {
			WriteAPIError(w, err)
			return
		}
		WriteSuccess(w, stream)
	case http.MethodDelete:
		filename, err := s.streams.StopRecording(name)
		if err != nil {
			WriteAPIError(w, err)
			return
		}
		WriteSuccess(w, map[string]string{"stream": name, "filename": filename})
	default:
		writeMethodNotAllowed(w, "POST, DELETE")
	}
}

func (s *Server) handlePingDevices(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireCompanion(w) {
		return
	}
	devices, err := s.companion.PingDevices(r.Context())
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, devices)
}

func (s *Server) handlePingDistance(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireCompanion(w) {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "device id must be a non-negative integer", nil)
		return
	}
	distance, err := s.companion.PingDistance(r.Context(), id)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, distance)
}

func (s *Server) handleExtensions(w http.ResponseWriter, r *http.Request) {
	if !s.requireCompanion(w) {
		return
	}
	extensions, err := s.companion.Extensions(r.Context())
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, extensions)
}

func (s *Server) handleInstallExtension(w http.ResponseWriter, r *http.Request) {
	if !s.requireCompanion(w) {
		return
	}
	var req struct {
		Identifier string `json:"identifier"`
		Tag        string `json:"tag"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteAPIError(w, err)
		return
	}
	if req.Identifier == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "identifier is required", nil)
		return
	}
	if req.Tag == "" {
		req.Tag = "latest"
	}
	resp, err := s.companion.InstallExtension(r.Context(), req.Identifier, req.Tag)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, resp)
}

func (s *Server) requireOrchestrator(w http.ResponseWriter) bool {
	return s.require(w, s.orchestrator != nil, "Command orchestrator not available")
}

func (s *Server) requireTelemetry(w http.ResponseWriter) bool {
	return s.require(w, s.telemetry != nil, "Telemetry aggregator not available")
}

func (s *Server) requireCompanion(w http.ResponseWriter) bool {
	return s.require(w, s.companion != nil, "Companion client not available")
}

func (s *Server) requireStreams(w http.ResponseWriter) bool {
	return s.require(w, s.streams != nil, "Stream registry not available")
}

func (s *Server) require(w http.ResponseWriter, ok bool, message string) bool {
	if !ok {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", message, nil)
	}
	return ok
}
