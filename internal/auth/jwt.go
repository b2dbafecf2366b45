package auth

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig holds configuration for JWT authentication.
type JWTConfig struct {
	SigningKey   string // HMAC secret, or path to an RSA/ECDSA PEM public key
	Issuer       string // expected "iss" (empty = not checked)
	Audience     string // expected "aud" (empty = not checked)
	SubjectClaim string // default "sub"
}

// JWTAuthenticator validates bearer JWTs issued to automation that may
// trigger runs.
type JWTAuthenticator struct {
	key          any
	subjectClaim string
	parser       *jwt.Parser
}

// NewJWTAuthenticator loads the verification key and prepares the parser.
func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("jwt signing key is required")
	}
	if cfg.SubjectClaim == "" {
		cfg.SubjectClaim = "sub"
	}

	key, algs, err := loadVerificationKey(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("load jwt key: %w", err)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(algs), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTAuthenticator{
		key:          key,
		subjectClaim: cfg.SubjectClaim,
		parser:       jwt.NewParser(opts...),
	}, nil
}

// loadVerificationKey treats an existing file as a PEM public key and
// anything else as an HMAC secret.
func loadVerificationKey(s string) (any, []string, error) {
	if info, err := os.Stat(s); err != nil || info.IsDir() {
		return []byte(s), []string{"HS256", "HS384", "HS512"}, nil
	}

	data, err := os.ReadFile(s)
	if err != nil {
		return nil, nil, err
	}
	if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM(data); err == nil {
		return rsaKey, []string{"RS256", "RS384", "RS512"}, nil
	}
	if ecKey, err := jwt.ParseECPublicKeyFromPEM(data); err == nil {
		return ecKey, []string{"ES256", "ES384", "ES512"}, nil
	}
	return nil, nil, fmt.Errorf("%s: no RSA or ECDSA public key found", s)
}

// Validate implements Validator.
func (a *JWTAuthenticator) Validate(raw string) (*Identity, error) {
	claims := jwt.MapClaims{}
	// WithValidMethods already restricts the algorithm family to the key type.
	if _, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return a.key, nil }); err != nil {
		return nil, fmt.Errorf("invalid JWT: %w", err)
	}

	subject, _ := claims[a.subjectClaim].(string)
	if subject == "" {
		return nil, fmt.Errorf("JWT claim %q missing or not a non-empty string", a.subjectClaim)
	}
	return &Identity{Subject: subject, Method: "jwt"}, nil
}
