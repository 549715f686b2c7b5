// Package probe implements the API fraud-probe client: it clones a legitimate
// bet payload, applies exactly one mutation per fraud category, submits the
// result, and classifies the backend's answer.
//
// A probe run reports fraudDetected=true for a mutation iff the response is a
// non-2xx status with a fraud-shaped error body. Retry policy lives here, on
// the client side — the backend never retries anything internally.
package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wagerly/betting-mock/internal/domain"
	"wagerly/betting-mock/internal/fraud"
)

// BackdateInterval is how far each timestamp mutation moves the bet into the
// past. Comfortably beyond the engine's one-hour staleness window.
const BackdateInterval = 2 * time.Hour

// OddsMultiplier pushes any plausible odds value over the engine's ceiling.
const OddsMultiplier = 20

// Client issues probe requests against a backend implementing the betting
// wire contract.
type Client struct {
	BaseURL string

	// Retry policy: transport errors and 5xx responses are retried with
	// exponential backoff plus jitter; 4xx is a definitive answer.
	MaxAttempts int
	BaseDelay   time.Duration

	http *http.Client
}

// New creates a probe client with bounded retries and a request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:     baseURL,
		MaxAttempts: 4,
		BaseDelay:   250 * time.Millisecond,
		http:        &http.Client{Timeout: 5 * time.Second},
	}
}

// ─── Mutations ────────────────────────────────────────────────────────────────

// Mutation is a single payload corruption targeting one fraud category.
type Mutation struct {
	Category string
	Apply    func(payload map[string]any)
}

// Mutations returns one mutation per fraud category, in the engine's rule order.
func Mutations() []Mutation {
	return []Mutation{
		{
			Category: domain.FraudNegativeAmount,
			Apply: func(p map[string]any) {
				if v, ok := p["amount"].(float64); ok {
					p["amount"] = -v
				} else {
					p["amount"] = -50.0
				}
			},
		},
		{
			Category: domain.FraudOddsManipulation,
			Apply: func(p map[string]any) {
				if v, ok := p["odds"].(float64); ok {
					p["odds"] = v * OddsMultiplier
				} else {
					p["odds"] = float64(fraud.MaxOdds * OddsMultiplier)
				}
			},
		},
		{
			Category: domain.FraudMatchAlteration,
			Apply: func(p map[string]any) {
				p["matchId"] = fmt.Sprintf("%v%s", p["matchId"], fraud.TamperSentinel)
			},
		},
		{
			Category: domain.FraudTimestampTamper,
			Apply: func(p map[string]any) {
				p["timestamp"] = time.Now().UTC().Add(-BackdateInterval).Format(time.RFC3339)
			},
		},
		{
			Category: domain.FraudRequestTamper,
			Apply: func(p map[string]any) {
				p[fraud.FieldBypassValidation] = true
				p[fraud.FieldAdminApproved] = true
			},
		},
	}
}

// ─── Results ──────────────────────────────────────────────────────────────────

// Result is the classified outcome of one probe submission.
type Result struct {
	Category      string `json:"category"`
	StatusCode    int    `json:"statusCode"`
	FraudDetected bool   `json:"fraudDetected"`
	FraudType     string `json:"fraudType,omitempty"`
	Details       string `json:"details,omitempty"`
}

// Classify derives a Result from a response status and body.
// fraudDetected is true iff the status is outside 2xx and the body carries a
// non-empty fraudType.
func Classify(category string, status int, body []byte) Result {
	res := Result{Category: category, StatusCode: status}

	var shaped struct {
		FraudType string `json:"fraudType"`
		Details   string `json:"details"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		res.FraudType = shaped.FraudType
		res.Details = shaped.Details
	}
	res.FraudDetected = (status < 200 || status > 299) && res.FraudType != ""
	return res
}

// ─── Probe run ────────────────────────────────────────────────────────────────

// Register creates a fresh account on the backend and returns its session token.
func (c *Client) Register(username, email, password string) (string, error) {
	status, body, err := c.postJSON("/auth/register", map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("register failed: status %d: %s", status, body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("register: decode response: %w", err)
	}
	return resp.Token, nil
}

// PlaceBet submits a bet payload and returns the raw status and body.
func (c *Client) PlaceBet(token string, payload map[string]any) (int, []byte, error) {
	return c.postJSON("/bets/place", payload, token)
}

// RunAll submits one mutated clone of the base payload per fraud category and
// classifies each outcome. The base payload itself is never modified.
//
// Each mutation runs under a freshly registered throwaway account. Sharing one
// account would cross the flag threshold mid-run and turn the later mutations
// into blocked-account 403s instead of fraud rejections.
func (c *Client) RunAll(base map[string]any) ([]Result, error) {
	results := make([]Result, 0, len(Mutations()))
	for _, m := range Mutations() {
		suffix := uuid.NewString()[:8]
		token, err := c.Register(
			"probe_"+suffix,
			fmt.Sprintf("probe_%s@example.com", suffix),
			"probe-password",
		)
		if err != nil {
			return results, fmt.Errorf("probe %s: %w", m.Category, err)
		}

		payload := clone(base)
		m.Apply(payload)

		status, body, err := c.PlaceBet(token, payload)
		if err != nil {
			return results, fmt.Errorf("probe %s: %w", m.Category, err)
		}
		results = append(results, Classify(m.Category, status, body))
	}
	return results, nil
}

// ─── HTTP plumbing ────────────────────────────────────────────────────────────

// postJSON submits a payload with bounded retries. Transport errors and 5xx
// responses back off exponentially with jitter; any other status is returned
// as-is.
func (c *Client) postJSON(path string, payload map[string]any, token string) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(c.BaseDelay, attempt))
		}

		req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}
		return resp.StatusCode, respBody, nil
	}
	return 0, nil, fmt.Errorf("%s: giving up after %d attempts: %w", path, c.MaxAttempts, lastErr)
}

// backoff returns baseDelay * 2^(attempt-1) plus up to 50% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
