// Package api serves the daemon-mode management endpoints: health, metrics,
// configured tiers, recorded runs and a manual run trigger.
package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/hatemosphere/pgrotate/internal/auth"
	"github.com/hatemosphere/pgrotate/internal/history"
	"github.com/hatemosphere/pgrotate/internal/metrics"
	"github.com/hatemosphere/pgrotate/internal/rotation"
)

// RunHistory is the read side of the run ledger.
type RunHistory interface {
	Recent(ctx context.Context, tier string, limit int) ([]history.Entry, error)
}

// Server is the management HTTP API.
type Server struct {
	tiers   []rotation.Tier
	trigger func()
	history RunHistory     // nil = run history disabled
	authn   auth.Validator // nil = mutating endpoints are unauthenticated
}

// NewServer creates a management server. trigger requests an out-of-schedule run.
func NewServer(tiers []rotation.Tier, trigger func(), opts ...ServerOption) *Server {
	s := &Server{tiers: tiers, trigger: trigger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures the management server.
type ServerOption func(*Server)

// WithHistory exposes recorded runs through the API.
func WithHistory(h RunHistory) ServerOption {
	return func(s *Server) { s.history = h }
}

// WithAuth requires "Authorization: Bearer <credential>" on mutating
// endpoints, checked by v.
func WithAuth(v auth.Validator) ServerOption {
	return func(s *Server) { s.authn = v }
}

func humaConfig() huma.Config {
	cfg := huma.DefaultConfig("pgrotate management API", "1.0.0")
	// Both huma APIs share one mux, so neither serves docs or schemas.
	cfg.OpenAPIPath = ""
	cfg.DocsPath = ""
	cfg.SchemasPath = ""
	cfg.CreateHooks = nil
	return cfg
}

// Router returns the HTTP handler serving every management endpoint.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())

	open := humago.New(mux, humaConfig())
	open.UseMiddleware(observe)
	s.registerHealth(open)
	s.registerTiers(open)

	guarded := humago.New(mux, humaConfig())
	guarded.UseMiddleware(observe)
	guarded.UseMiddleware(s.requireAuth(guarded))
	guarded.UseMiddleware(auditMutations)
	s.registerRuns(guarded)

	return recoverPanics(mux)
}

func (s *Server) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
		out := &HealthCheckOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}
