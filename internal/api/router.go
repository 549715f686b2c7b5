package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const accountIDKey ctxKey = 0

// accountIDFrom returns the authenticated account ID attached by requireAuth.
func accountIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey).(string)
	return id
}

// NewRouter creates and returns a configured Chi router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.middleware)

	// ── Public routes ─────────────────────────────────────────────────────────
	r.Get("/health", h.Health)
	r.Handle("/metrics", h.metrics.handler())

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	// ── Authenticated routes ──────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/bets/place", h.PlaceBet)
		r.Get("/bets/history", h.BetHistory)
		r.Get("/users/account-status", h.AccountStatus)
	})

	// Anything else — wrong path or wrong method — is an unknown route.
	notFound := func(w http.ResponseWriter, r *http.Request) {
		routeNotFound(w, fmt.Sprintf("route %s %s is not defined", r.Method, r.URL.Path))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	return r
}

// requireAuth resolves the bearer token and attaches the account identity to
// the request context. The exact error strings are part of the wire contract.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			errJSON(w, http.StatusUnauthorized, "Unauthorized: Missing token")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		accountID, ok := h.store.ResolveSession(token)
		if !ok {
			errJSON(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger is a minimal structured-logging middleware.
// It replaces chi's default Logger to emit slog records.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
