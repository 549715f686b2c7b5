// Package api contains the HTTP layer: routing, request binding, and response
// formatting. Response bodies follow the flat wire contract the existing test
// clients depend on — no envelope.
package api

import (
	"encoding/json"
	"net/http"
)

// ─── Response helpers ─────────────────────────────────────────────────────────

// writeJSON serialises v into the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already sent; nothing useful can be done with an encode error.
	_ = json.NewEncoder(w).Encode(v)
}

// errJSON writes an error response of the shape {"error": message}.
func errJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// fraudJSON writes the fraud rejection body:
// {"error": ..., "fraudType": ..., "details": ...}.
func fraudJSON(w http.ResponseWriter, category, reason string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":     "Fraudulent bet detected",
		"fraudType": category,
		"details":   reason,
	})
}

// routeNotFound writes the 404 body for unknown routes: {"error", "message"}.
func routeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":   "Not Found",
		"message": message,
	})
}
