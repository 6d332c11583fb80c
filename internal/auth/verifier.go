package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// VerifierConfig holds the key material for one algorithm.
type VerifierConfig struct {
	Algorithm    string
	SecretKey    string
	PublicKeyPEM string
}

// Verifier checks token signatures and extracts claims.
type Verifier struct {
	algorithm string
	secret    []byte
	publicKey *rsa.PublicKey
}

// NewVerifier validates the configuration and loads keys.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{algorithm: config.Algorithm}

	switch config.Algorithm {
	case AlgorithmHS256:
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
		v.secret = []byte(config.SecretKey)
	case AlgorithmRS256:
		key, err := parsePublicKey(config.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
		}
		v.publicKey = key
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", config.Algorithm)
	}

	return v, nil
}

// VerifyToken parses tokenString, checks its signature and expiry, and
// returns the validated claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{v.algorithm}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return extractClaims(claims)
}

func (v *Verifier) keyFunc(*jwt.Token) (interface{}, error) {
	if v.algorithm == AlgorithmRS256 {
		return v.publicKey, nil
	}
	return v.secret, nil
}

func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing or invalid 'sub' claim", ErrInvalidToken)
	}

	roles, err := stringSlice(claims, "roles")
	if err != nil {
		return nil, err
	}
	scopes, err := stringSlice(claims, "scopes")
	if err != nil {
		return nil, err
	}

	if !allKnown(roles, knownRoles) {
		return nil, fmt.Errorf("%w: invalid roles %v", ErrInvalidToken, roles)
	}
	if !allKnown(scopes, knownScopes) {
		return nil, fmt.Errorf("%w: invalid scopes %v", ErrInvalidToken, scopes)
	}

	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func stringSlice(claims jwt.MapClaims, key string) ([]string, error) {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid '%s' claim", ErrInvalidToken, key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: '%s' claim holds a non-string", ErrInvalidToken, key)
		}
		out = append(out, s)
	}
	return out, nil
}

var (
	knownRoles  = []string{RoleViewer, RolePilot}
	knownScopes = []string{ScopeRead, ScopeControl, ScopeTelemetry}
)

// allKnown reports whether values is non-empty and every entry is in known.
func allKnown(values, known []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if !slices.Contains(known, v) {
			return false
		}
	}
	return true
}

func parsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaPub, nil
}
