package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	verifier, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256, SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}
	return NewMiddleware(verifier)
}

func viewerToken(t *testing.T) string {
	return signHS256(t, jwt.MapClaims{
		"sub":    "viewer-1",
		"roles":  []string{RoleViewer},
		"scopes": []string{ScopeRead, ScopeTelemetry},
		"exp":    time.Now().Add(time.Hour).Unix(),
	}, testSecret)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantToken  string
		wantErr    bool
	}{
		{"valid bearer token", "Bearer abc", "abc", false},
		{"missing header", "", "", true},
		{"basic scheme", "Basic abc", "", true},
		{"no space", "Bearerabc", "", true},
		{"empty token", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			token, err := extractBearerToken(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	m := newTestMiddleware(t)

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
	}{
		{"valid pilot token", "/api/v1/status", "Bearer " + signHS256(t, pilotClaims(), testSecret), http.StatusOK},
		{"valid viewer token", "/api/v1/status", "Bearer " + viewerToken(t), http.StatusOK},
		{"missing header", "/api/v1/status", "", http.StatusUnauthorized},
		{"forged token", "/api/v1/status", "Bearer " + signHS256(t, pilotClaims(), "forged"), http.StatusUnauthorized},
		{"health skips auth", HealthPath, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			m.RequireAuth(okHandler)(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireAuthStoresClaims(t *testing.T) {
	m := newTestMiddleware(t)

	var got *Claims
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken(t))
	handler(httptest.NewRecorder(), req)

	if got == nil || got.Subject != "viewer-1" {
		t.Fatalf("claims = %+v", got)
	}
	if CanControl(got) {
		t.Error("viewer should not be able to control")
	}
}

func TestUnauthorizedEnvelope(t *testing.T) {
	m := newTestMiddleware(t)
	w := httptest.NewRecorder()
	m.RequireAuth(okHandler)(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["result"] != "error" || body["code"] != "UNAUTHORIZED" || body["correlationId"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestRequireScope(t *testing.T) {
	m := newTestMiddleware(t)
	handler := m.RequireAuth(m.RequireScope(ScopeControl)(okHandler))

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"pilot has control", signHS256(t, pilotClaims(), testSecret), http.StatusOK},
		{"viewer lacks control", viewerToken(t), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicle/arm", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			handler(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	m := newTestMiddleware(t)
	handler := m.RequireAuth(m.RequireRole(RolePilot)(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicle/arm", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken(t))
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}

	// Without RequireAuth there are no claims at all.
	w = httptest.NewRecorder()
	m.RequireRole(RolePilot)(okHandler)(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestDisabledMiddlewareAdmitsAnonymousPilot(t *testing.T) {
	m := NewMiddleware(nil)
	if m.Enabled() {
		t.Fatal("Enabled() = true for nil verifier")
	}

	var got *Claims
	handler := m.RequireAuth(m.RequireScope(ScopeControl)(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	}))
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/api/v1/vehicle/arm", nil))

	if w.Code != http.StatusOK || got == nil || got.Subject != "anonymous" {
		t.Errorf("status = %d, claims = %+v", w.Code, got)
	}
}

func TestClaimsFromContextEmpty(t *testing.T) {
	if ClaimsFromContext(context.Background()) != nil {
		t.Error("expected nil claims")
	}
}
