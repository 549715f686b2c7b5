// Package domain contains all core types used across the application.
// Keeping domain types in one place makes the fraud rules and the account
// state machine easy to reason about.
package domain

import (
	"encoding/json"
	"time"
)

// ─── Constants ───────────────────────────────────────────────────────────────

// Account lifecycle statuses.
const (
	AccountActive  = "active"
	AccountBlocked = "blocked"
)

// Bet statuses. Settlement is out of scope, so every accepted bet stays pending.
const (
	BetPending = "pending"
)

// Fraud categories reported by the rule engine, one per rule.
const (
	FraudNegativeAmount   = "negative-amount"
	FraudOddsManipulation = "odds-manipulation"
	FraudMatchAlteration  = "match-alteration"
	FraudTimestampTamper  = "timestamp-manipulation"
	FraudRequestTamper    = "request-tampering"
)

// Restrictions applied to an account once it has at least one fraud flag.
const (
	RestrictionBetting    = "betting_restricted"
	RestrictionWithdrawal = "withdrawal_restricted"
)

// Verification statuses derived from the account status.
const (
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// BlockThreshold is the number of fraud flags at which an account is blocked.
const BlockThreshold = 3

// ─── Core domain types ────────────────────────────────────────────────────────

// Account is a registered user of the mock betting backend.
// Credentials are stored as opaque plaintext: this is a test double, not a
// production identity system.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// AccountView is the public projection of an Account returned by the API.
// The password never appears in any response.
type AccountView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Status   string `json:"status"`
}

// View returns the public projection of the account.
func (a *Account) View() AccountView {
	return AccountView{ID: a.ID, Username: a.Username, Email: a.Email, Status: a.Status}
}

// Session maps an opaque bearer token to an authenticated account.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"accountId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Bet is an accepted wager. A Bet record exists only for requests the rule
// engine judged legitimate; it is immutable after creation.
type Bet struct {
	ID        string    `json:"id"`
	AccountID string    `json:"-"`
	MatchID   string    `json:"matchId"`
	Selection string    `json:"selection"`
	Odds      float64   `json:"odds"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// FraudFlag is an append-only audit record attached to an account when a bet
// request is judged fraudulent. The offending payload is kept verbatim.
type FraudFlag struct {
	ID        string          `json:"id"`
	AccountID string          `json:"-"`
	Category  string          `json:"category"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
	Request   json.RawMessage `json:"request"`
}

// Verdict is the rule engine's output: legitimate, or fraudulent with the
// category and reason of the rule that determined it.
type Verdict struct {
	Fraudulent bool   `json:"fraudulent"`
	Category   string `json:"category,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AccountStatus is the status-report view derived from an account and its
// accumulated fraud flags.
type AccountStatus struct {
	AccountID          string      `json:"accountId"`
	Status             string      `json:"status"`
	Flags              []FraudFlag `json:"flags"`
	Restrictions       []string    `json:"restrictions"`
	VerificationStatus string      `json:"verificationStatus"`
	FraudWarnings      int         `json:"fraudWarnings"`
	LastUpdated        time.Time   `json:"lastUpdated"`
}

// ─── Bet request ─────────────────────────────────────────────────────────────

// BetRequest is a parsed bet placement payload. It keeps the raw body and the
// set of fields that were actually present, because the fraud rules care about
// field presence (unauthorized fields, optional timestamp) and the audit trail
// keeps the payload verbatim.
type BetRequest struct {
	MatchID   string
	Amount    float64
	Odds      float64
	Selection string
	Timestamp string

	raw    json.RawMessage
	fields map[string]struct{}
}

// ParseBetRequest decodes a JSON bet payload. Unknown fields are retained in
// the presence set rather than rejected; the rule engine decides what they mean.
func ParseBetRequest(data []byte) (*BetRequest, error) {
	var payload struct {
		MatchID   *string  `json:"matchId"`
		Amount    *float64 `json:"amount"`
		Odds      *float64 `json:"odds"`
		Selection *string  `json:"selection"`
		Timestamp *string  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	req := &BetRequest{
		raw:    append(json.RawMessage(nil), data...),
		fields: make(map[string]struct{}, len(all)),
	}
	for k := range all {
		req.fields[k] = struct{}{}
	}

	if payload.MatchID != nil {
		req.MatchID = *payload.MatchID
	}
	if payload.Amount != nil {
		req.Amount = *payload.Amount
	}
	if payload.Odds != nil {
		req.Odds = *payload.Odds
	}
	if payload.Selection != nil {
		req.Selection = *payload.Selection
	}
	if payload.Timestamp != nil {
		req.Timestamp = *payload.Timestamp
	}
	return req, nil
}

// Has reports whether the named field was present in the payload, regardless
// of its value.
func (r *BetRequest) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Raw returns the original payload bytes for audit records.
func (r *BetRequest) Raw() json.RawMessage {
	return r.raw
}

// MissingFields returns the required fields absent from the payload,
// in a stable order.
func (r *BetRequest) MissingFields() []string {
	var missing []string
	for _, f := range []string{"matchId", "amount", "odds", "selection"} {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// ParsedTimestamp returns the request timestamp as a time.Time.
// It reports false when the field is absent or not valid RFC 3339; an
// unparseable timestamp is treated as no timestamp at all.
func (r *BetRequest) ParsedTimestamp() (time.Time, bool) {
	if !r.Has("timestamp") || r.Timestamp == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
