// Package betting implements bet placement and account status reporting.
//
// Placement orchestrates validation → fraud verdict → either reject-and-flag
// or accept-and-persist. The two side effects are mutually exclusive per call:
// a fraudulent request only ever appends a flag (and possibly blocks the
// account), a legitimate one only ever creates a bet.
package betting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wagerly/betting-mock/internal/domain"
	"wagerly/betting-mock/internal/fraud"
	"wagerly/betting-mock/internal/store"
)

// ErrAccountBlocked is returned when a blocked account attempts any bet,
// fraudulent or not. Blocked accounts acquire no further state.
var ErrAccountBlocked = errors.New("account is blocked")

// ValidationError reports required bet fields missing from the payload.
// It causes no state change and no flag.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// FraudRejection is the expected business outcome for a fraudulent request:
// the bet is refused and a flag has been recorded on the account.
type FraudRejection struct {
	Category string
	Reason   string
	Blocked  bool // account crossed the block threshold on this attempt
}

func (e *FraudRejection) Error() string {
	return fmt.Sprintf("fraudulent bet rejected: %s (%s)", e.Category, e.Reason)
}

// Service owns the bet placement flow and the status reporter.
type Service struct {
	store *store.Store
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for bet creation, flag timestamps,
// and fraud evaluation. Tests use it to pin times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over the given store.
func NewService(s *store.Store, opts ...Option) *Service {
	svc := &Service{store: s, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// PlaceBet runs the placement flow for an authenticated account.
// Returned errors: *ValidationError, ErrAccountBlocked, store.ErrAccountNotFound,
// or *FraudRejection; on success the created pending bet is returned.
func (s *Service) PlaceBet(accountID string, req *domain.BetRequest) (*domain.Bet, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	acct, ok := s.store.GetAccount(accountID)
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if acct.Status == domain.AccountBlocked {
		return nil, ErrAccountBlocked
	}

	now := s.now()
	verdict := fraud.Evaluate(req, now)

	if verdict.Fraudulent {
		_, blocked := s.store.AppendFraudFlag(&domain.FraudFlag{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Category:  verdict.Category,
			Reason:    verdict.Reason,
			Timestamp: now,
			Request:   req.Raw(),
		})
		return nil, &FraudRejection{Category: verdict.Category, Reason: verdict.Reason, Blocked: blocked}
	}

	bet := &domain.Bet{
		ID:        betID(now, accountID),
		AccountID: accountID,
		MatchID:   req.MatchID,
		Selection: req.Selection,
		Odds:      req.Odds,
		Amount:    req.Amount,
		Status:    domain.BetPending,
		CreatedAt: now,
	}
	s.store.SaveBet(bet)
	return bet, nil
}

// History returns the account's bets newest-first.
func (s *Service) History(accountID string) ([]*domain.Bet, error) {
	if _, ok := s.store.GetAccount(accountID); !ok {
		return nil, store.ErrAccountNotFound
	}
	return s.store.BetsByAccount(accountID), nil
}

// AccountStatus derives the status report for an account from its record and
// accumulated flags. Read-only.
func (s *Service) AccountStatus(accountID string) (*domain.AccountStatus, error) {
	acct, ok := s.store.GetAccount(accountID)
	if !ok {
		return nil, store.ErrAccountNotFound
	}

	flagPtrs := s.store.FlagsByAccount(accountID)
	flags := make([]domain.FraudFlag, len(flagPtrs))
	for i, f := range flagPtrs {
		flags[i] = *f
	}

	restrictions := []string{}
	if len(flags) > 0 {
		restrictions = []string{domain.RestrictionBetting, domain.RestrictionWithdrawal}
	}

	verification := domain.VerificationVerified
	if acct.Status == domain.AccountBlocked {
		verification = domain.VerificationRejected
	}

	lastUpdated := acct.CreatedAt
	if n := len(flags); n > 0 {
		lastUpdated = flags[n-1].Timestamp
	}

	return &domain.AccountStatus{
		AccountID:          acct.ID,
		Status:             acct.Status,
		Flags:              flags,
		Restrictions:       restrictions,
		VerificationStatus: verification,
		FraudWarnings:      len(flags),
		LastUpdated:        lastUpdated,
	}, nil
}

// betID derives a bet identity from creation time and the owning account.
func betID(at time.Time, accountID string) string {
	short := accountID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("bet_%d_%s", at.UnixNano(), short)
}
