package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrInvalidToken is returned when a bearer credential does not match.
var ErrInvalidToken = errors.New("invalid token")

// StaticToken validates a single shared API token. Only its SHA-256 digest is
// kept in memory.
type StaticToken struct {
	hash [sha256.Size]byte
}

// NewStaticToken creates a validator for token.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{hash: sha256.Sum256([]byte(token))}
}

// Validate implements Validator.
func (s *StaticToken) Validate(token string) (*Identity, error) {
	got := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(got[:], s.hash[:]) != 1 {
		return nil, ErrInvalidToken
	}
	return &Identity{Subject: "token", Method: "token"}, nil
}
