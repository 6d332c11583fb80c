package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func generateRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func pilotClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "pilot-1",
		"roles":  []string{RolePilot},
		"scopes": []string{ScopeRead, ScopeControl, ScopeTelemetry},
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func signHS256(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestNewVerifier(t *testing.T) {
	_, publicPEM := generateRSAKey(t)

	tests := []struct {
		name    string
		config  VerifierConfig
		wantErr bool
	}{
		{"HS256 with secret", VerifierConfig{Algorithm: AlgorithmHS256, SecretKey: testSecret}, false},
		{"HS256 without secret", VerifierConfig{Algorithm: AlgorithmHS256}, true},
		{"RS256 with PEM", VerifierConfig{Algorithm: AlgorithmRS256, PublicKeyPEM: publicPEM}, false},
		{"RS256 with garbage PEM", VerifierConfig{Algorithm: AlgorithmRS256, PublicKeyPEM: "nope"}, true},
		{"unsupported algorithm", VerifierConfig{Algorithm: "ES256"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier, err := NewVerifier(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVerifier() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && verifier == nil {
				t.Error("NewVerifier() returned nil verifier")
			}
		})
	}
}

func TestVerifyHS256Token(t *testing.T) {
	verifier, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256, SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}

	claims, err := verifier.VerifyToken(signHS256(t, pilotClaims(), testSecret))
	if err != nil {
		t.Fatalf("VerifyToken() failed: %v", err)
	}
	if claims.Subject != "pilot-1" || !CanControl(claims) {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRS256Token(t *testing.T) {
	key, publicPEM := generateRSAKey(t)
	verifier, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmRS256, PublicKeyPEM: publicPEM})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, pilotClaims()).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	claims, err := verifier.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() failed: %v", err)
	}
	if claims.Subject != "pilot-1" {
		t.Errorf("Subject = %q", claims.Subject)
	}

	// An HS256 token must not pass an RS256 verifier.
	if _, err := verifier.VerifyToken(signHS256(t, pilotClaims(), testSecret)); err == nil {
		t.Error("expected algorithm mismatch to fail")
	}
}

func TestVerifyTokenErrors(t *testing.T) {
	verifier, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256, SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}

	expired := pilotClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noSubject := pilotClaims()
	delete(noSubject, "sub")

	badRole := pilotClaims()
	badRole["roles"] = []string{"admiral"}

	noScopes := pilotClaims()
	noScopes["scopes"] = []string{}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"malformed", "not.a.token"},
		{"wrong secret", signHS256(t, pilotClaims(), "other-secret")},
		{"expired", signHS256(t, expired, testSecret)},
		{"missing subject", signHS256(t, noSubject, testSecret)},
		{"unknown role", signHS256(t, badRole, testSecret)},
		{"empty scopes", signHS256(t, noScopes, testSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.VerifyToken(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("VerifyToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestAllKnown(t *testing.T) {
	if allKnown(nil, knownRoles) {
		t.Error("empty list should not be accepted")
	}
	if !allKnown([]string{RoleViewer, RolePilot}, knownRoles) {
		t.Error("known roles rejected")
	}
	if allKnown([]string{ScopeRead, "write"}, knownScopes) {
		t.Error("unknown scope accepted")
	}
}
