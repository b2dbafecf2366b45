package auth

import "context"

// Identity is the authenticated caller of a management endpoint.
type Identity struct {
	Subject string // JWT subject, or "token" for the static API token
	Method  string // "token" or "jwt"
}

// Validator checks a bearer credential and returns the caller behind it.
type Validator interface {
	Validate(token string) (*Identity, error)
}

type contextKey struct{}

// WithIdentity stores an Identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext retrieves the Identity from the context.
// Returns nil if no identity is set.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}
