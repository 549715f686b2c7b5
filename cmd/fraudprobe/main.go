// Command fraudprobe exercises a running betting backend with deliberately
// fraudulent bet requests and reports whether each one was detected.
//
// Usage:
//
//	go run ./cmd/fraudprobe [flags]
//
// Flags:
//
//	-base-url  Backend base URL (default: http://localhost:8080)
//	-attempts  Max attempts per request before giving up (default: 4)
//
// The probe registers a throwaway account, places one clean bet to prove the
// happy path, then submits one mutated clone of that payload per fraud
// category, each under its own fresh account so the flag threshold never
// interferes. Exit code is non-zero if any mutation goes undetected.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"wagerly/betting-mock/internal/probe"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "backend base URL")
	attempts := flag.Int("attempts", 4, "max attempts per request")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	client := probe.New(strings.TrimRight(*baseURL, "/"))
	client.MaxAttempts = *attempts

	// Throwaway identity per run so repeated probes never collide on the
	// backend's uniqueness checks.
	suffix := uuid.NewString()[:8]
	token, err := client.Register(
		"probe_"+suffix,
		fmt.Sprintf("probe_%s@example.com", suffix),
		"probe-password",
	)
	if err != nil {
		slog.Error("registration failed", "error", err)
		os.Exit(1)
	}

	base := map[string]any{
		"matchId":   "M1",
		"amount":    50.0,
		"odds":      2.5,
		"selection": "home",
	}

	// Clean bet first: the mutations only mean something if the base payload
	// is accepted.
	status, body, err := client.PlaceBet(token, base)
	if err != nil {
		slog.Error("clean bet failed", "error", err)
		os.Exit(1)
	}
	if status != http.StatusCreated {
		slog.Error("clean bet rejected", "status", status, "body", string(body))
		os.Exit(1)
	}
	slog.Info("clean bet accepted", "status", status)

	results, err := client.RunAll(base)
	if err != nil {
		slog.Error("probe run failed", "error", err)
		os.Exit(1)
	}

	undetected := 0
	for _, r := range results {
		if r.FraudDetected {
			slog.Info("fraud detected",
				"category", r.Category,
				"status", r.StatusCode,
				"fraud_type", r.FraudType,
				"details", r.Details,
			)
		} else {
			undetected++
			slog.Error("fraud NOT detected", "category", r.Category, "status", r.StatusCode)
		}
	}

	fmt.Printf("probe complete: %d/%d mutations detected\n", len(results)-undetected, len(results))
	if undetected > 0 {
		os.Exit(1)
	}
}
