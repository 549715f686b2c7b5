package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"wagerly/betting-mock/internal/betting"
	"wagerly/betting-mock/internal/domain"
	"wagerly/betting-mock/internal/store"
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	store   *store.Store
	betting *betting.Service
	metrics *metrics

	version string
	env     string
	started time.Time
}

// NewHandler creates a Handler wired to the given dependencies, with its own
// metrics registry.
func NewHandler(s *store.Store, b *betting.Service, version, env string) *Handler {
	return &Handler{
		store:   s,
		betting: b,
		metrics: newMetrics(),
		version: version,
		env:     env,
		started: time.Now().UTC(),
	}
}

// ─── POST /auth/register ──────────────────────────────────────────────────────

// Register creates an active account, mints a session token, and returns the
// public account view. The password is never echoed back.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errJSON(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		errJSON(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	acct, err := h.store.CreateAccount(req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			errJSON(w, http.StatusConflict, "username already exists")
		case errors.Is(err, store.ErrDuplicateEmail):
			errJSON(w, http.StatusConflict, "email already exists")
		default:
			errJSON(w, http.StatusInternalServerError, "an unexpected error occurred")
		}
		return
	}

	sess := h.store.CreateSession(acct.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"token":   sess.Token,
		"user":    acct.View(),
	})
}

// ─── POST /auth/login ─────────────────────────────────────────────────────────

// Login authenticates by username + password equality. Blocked accounts are
// refused with 403 even when the credentials are correct.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errJSON(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	acct, ok := h.store.FindByCredentials(req.Username, req.Password)
	if !ok {
		errJSON(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if acct.Status == domain.AccountBlocked {
		errJSON(w, http.StatusForbidden, "account blocked due to fraudulent activity")
		return
	}

	sess := h.store.CreateSession(acct.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   sess.Token,
		"user":    acct.View(),
	})
}

// ─── POST /bets/place ─────────────────────────────────────────────────────────

// PlaceBet parses the raw payload (field presence matters to the fraud rules)
// and runs the placement flow.
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		errJSON(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	req, err := domain.ParseBetRequest(body)
	if err != nil {
		errJSON(w, http.StatusBadRequest, "request body must be a valid JSON object")
		return
	}

	bet, err := h.betting.PlaceBet(accountIDFrom(r.Context()), req)
	if err != nil {
		var vErr *betting.ValidationError
		var fErr *betting.FraudRejection
		switch {
		case errors.As(err, &vErr):
			errJSON(w, http.StatusBadRequest, vErr.Error())
		case errors.As(err, &fErr):
			h.metrics.fraudRejectionsTotal.WithLabelValues(fErr.Category).Inc()
			fraudJSON(w, fErr.Category, fErr.Reason)
		case errors.Is(err, betting.ErrAccountBlocked):
			errJSON(w, http.StatusForbidden, "account blocked due to fraudulent activity")
		case errors.Is(err, store.ErrAccountNotFound):
			errJSON(w, http.StatusNotFound, "account not found")
		default:
			errJSON(w, http.StatusInternalServerError, "an unexpected error occurred")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Bet placed successfully",
		"betId":   bet.ID,
		"bet":     bet,
	})
}

// ─── GET /bets/history ────────────────────────────────────────────────────────

// BetHistory returns the account's bets newest-first as a bare array.
func (h *Handler) BetHistory(w http.ResponseWriter, r *http.Request) {
	bets, err := h.betting.History(accountIDFrom(r.Context()))
	if err != nil {
		errJSON(w, http.StatusNotFound, "account not found")
		return
	}
	if bets == nil {
		bets = []*domain.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// ─── GET /users/account-status ───────────────────────────────────────────────

// AccountStatus returns the derived status report for the caller's account.
func (h *Handler) AccountStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.betting.AccountStatus(accountIDFrom(r.Context()))
	if err != nil {
		errJSON(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ─── GET /health ──────────────────────────────────────────────────────────────

// Health reports liveness plus build/runtime metadata.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(h.started).Seconds(),
		"version":     h.version,
		"environment": h.env,
	})
}
