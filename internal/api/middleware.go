package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hatemosphere/pgrotate/internal/audit"
	"github.com/hatemosphere/pgrotate/internal/auth"
)

// requireAuth validates the bearer credential and puts the caller Identity on
// the request context. A server without a validator lets every request through.
func (s *Server) requireAuth(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.authn == nil {
			next(ctx)
			return
		}
		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !ok || token == "" {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing bearer token")
			return
		}
		identity, err := s.authn.Validate(token)
		if err != nil {
			slog.Warn("management API authentication failed", "error", err)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid credentials")
			return
		}
		next(huma.WithContext(ctx, auth.WithIdentity(ctx.Context(), identity)))
	}
}

// observe records request metrics per operation path and logs the request at
// debug level.
func observe(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)
	elapsed := time.Since(start)

	status := responseStatus(ctx)
	route := ctx.Operation().Path
	httpRequestsTotal.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(ctx.Method(), route).Observe(elapsed.Seconds())
	slog.Debug("request", "method", ctx.Method(), "route", route, "status", status, "latency", elapsed)
}

// auditMutations writes an audit entry for every request that changes state.
func auditMutations(ctx huma.Context, next func(huma.Context)) {
	next(ctx)

	switch ctx.Method() {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return
	}

	actor := "anonymous"
	if id := auth.IdentityFromContext(ctx.Context()); id != nil {
		actor = id.Subject
	}
	status := responseStatus(ctx)
	e := audit.Event{
		Action: ctx.Operation().OperationID,
		Status: "succeeded",
		Extra:  []any{slog.String("actor", actor), slog.Int("http_status", status), slog.String("ip", ctx.RemoteAddr())},
	}
	if status >= http.StatusBadRequest {
		e.Status = "failed"
		e.Warn("management API request")
		return
	}
	e.Info("management API request")
}

func responseStatus(ctx huma.Context) int {
	if s := ctx.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// recoverPanics turns a handler panic into a bare 500.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("management API handler panicked", "panic", p, "path", r.URL.Path)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
