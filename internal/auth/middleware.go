package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/rov-control/rovd/internal/audit"
)

// Claims represents the verified token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

type contextKey struct{}

var claimsKey contextKey

const (
	RoleViewer = "viewer"
	RolePilot  = "pilot"
)

const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// HealthPath bypasses authentication.
const HealthPath = "/api/v1/health"

// anonymous is granted when no verifier is configured.
var anonymous = Claims{
	Subject: "anonymous",
	Roles:   []string{RolePilot},
	Scopes:  []string{ScopeRead, ScopeControl, ScopeTelemetry},
}

// Middleware handles authentication and authorization.
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware returns a middleware. A nil verifier disables token checks.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// Enabled reports whether tokens are verified.
func (m *Middleware) Enabled() bool {
	return m.verifier != nil
}

// RequireAuth verifies the bearer token and stores the claims and audit
// actor in the request context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			next(w, r)
			return
		}

		claims, err := m.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = audit.WithActor(ctx, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope rejects requests whose claims lack any of the scopes.
func (m *Middleware) RequireScope(requiredScopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return m.require(func(c *Claims) bool { return hasAll(c.Scopes, requiredScopes) })
}

// RequireRole rejects requests whose claims hold none of the roles.
func (m *Middleware) RequireRole(requiredRoles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return m.require(func(c *Claims) bool { return hasAny(c.Roles, requiredRoles) })
}

func (m *Middleware) require(allowed func(*Claims) bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !allowed(claims) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

func (m *Middleware) authenticate(r *http.Request) (*Claims, error) {
	if m.verifier == nil {
		claims := anonymous
		return &claims, nil
	}
	token, err := extractBearerToken(r)
	if err != nil {
		return nil, err
	}
	return m.verifier.VerifyToken(token)
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}

func hasAll(have, required []string) bool {
	for _, r := range required {
		if !slices.Contains(have, r) {
			return false
		}
	}
	return true
}

func hasAny(have, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if slices.Contains(have, r) {
			return true
		}
	}
	return false
}

// ClaimsFromContext returns the claims stored by RequireAuth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// CanControl reports whether claims permit vehicle commands.
func CanControl(claims *Claims) bool {
	return claims != nil && hasAll(claims.Scopes, []string{ScopeControl})
}

// writeError writes an error in the API envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": uuid.NewString(),
	})
}
