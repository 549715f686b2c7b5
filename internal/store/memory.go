// Package store provides thread-safe, in-memory storage for the mock betting
// backend.
//
// Design rationale: the backend is a test double whose state lives for the
// process lifetime and is reset between test runs by constructing a fresh
// Store — there is deliberately no persistence. A single RWMutex guards all
// maps; in particular the append-flag / count / block sequence runs under one
// write lock so two concurrent fraud attempts can never both observe a
// pre-threshold count.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"wagerly/betting-mock/internal/domain"
)

// Sentinel errors surfaced to the service and API layers.
var (
	ErrDuplicateUsername = errors.New("username already registered")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrAccountNotFound   = errors.New("account not found")
)

// Store is a thread-safe in-memory data store for accounts, sessions, bets,
// and fraud flags.
type Store struct {
	mu sync.RWMutex

	sessionTTL time.Duration // 0 = sessions never expire

	accounts       map[string]*domain.Account
	usernameIndex  map[string]string // username → account ID
	emailIndex     map[string]string // email → account ID
	sessions       map[string]*domain.Session
	betsByAccount  map[string][]*domain.Bet // creation order
	flagsByAccount map[string][]*domain.FraudFlag
}

// New creates an empty, ready-to-use Store with non-expiring sessions.
func New() *Store {
	return &Store{
		accounts:       make(map[string]*domain.Account),
		usernameIndex:  make(map[string]string),
		emailIndex:     make(map[string]string),
		sessions:       make(map[string]*domain.Session),
		betsByAccount:  make(map[string][]*domain.Bet),
		flagsByAccount: make(map[string][]*domain.FraudFlag),
	}
}

// SetSessionTTL sets the session lifetime. Zero disables expiry.
// Call before serving requests.
func (s *Store) SetSessionTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionTTL = ttl
}

// ─── Accounts ─────────────────────────────────────────────────────────────────

// CreateAccount registers a new active account. Username and email uniqueness
// is checked and the account inserted under a single lock.
func (s *Store) CreateAccount(username, email, password string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usernameIndex[username]; exists {
		return nil, ErrDuplicateUsername
	}
	if _, exists := s.emailIndex[email]; exists {
		return nil, ErrDuplicateEmail
	}

	acct := &domain.Account{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Password:  password,
		Status:    domain.AccountActive,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[acct.ID] = acct
	s.usernameIndex[username] = acct.ID
	s.emailIndex[email] = acct.ID

	c := *acct
	return &c, nil
}

// GetAccount retrieves an account by ID. The returned record is a copy:
// AppendFraudFlag mutates account status under the write lock, and handing
// out the live record would let callers read it unsynchronized.
func (s *Store) GetAccount(id string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	c := *acct
	return &c, true
}

// FindByCredentials looks up an account by username and password equality.
// Plaintext comparison: acceptable only because this is a test double.
// Like GetAccount, it returns a copy.
func (s *Store) FindByCredentials(username, password string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, false
	}
	acct := s.accounts[id]
	if acct.Password != password {
		return nil, false
	}
	c := *acct
	return &c, true
}

// ─── Sessions ─────────────────────────────────────────────────────────────────

// CreateSession mints a new opaque token for the account. Many tokens may
// exist per account; none is invalidated by minting another.
func (s *Store) CreateSession(accountID string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &domain.Session{
		Token:     uuid.NewString(),
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[sess.Token] = sess
	return sess
}

// ResolveSession maps a token to its account ID. Expired tokens (when a TTL
// is configured) resolve as unknown.
func (s *Store) ResolveSession(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	if s.sessionTTL > 0 && time.Since(sess.CreatedAt) > s.sessionTTL {
		return "", false
	}
	return sess.AccountID, true
}

// ─── Bets ─────────────────────────────────────────────────────────────────────

// SaveBet appends an accepted bet to the owner's history.
func (s *Store) SaveBet(bet *domain.Bet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.betsByAccount[bet.AccountID] = append(s.betsByAccount[bet.AccountID], bet)
}

// BetsByAccount returns the account's bets newest-first by creation order.
func (s *Store) BetsByAccount(accountID string) []*domain.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bets := s.betsByAccount[accountID]
	result := make([]*domain.Bet, len(bets))
	for i, b := range bets {
		result[len(bets)-1-i] = b
	}
	return result
}

// ─── Fraud flags ──────────────────────────────────────────────────────────────

// AppendFraudFlag records a flag and, when the account's flag count reaches
// the block threshold, transitions the account to blocked. The whole
// read-modify-write sequence holds the write lock, so the threshold check is
// atomic per account and blocking is idempotent.
func (s *Store) AppendFraudFlag(flag *domain.FraudFlag) (count int, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flagsByAccount[flag.AccountID] = append(s.flagsByAccount[flag.AccountID], flag)
	count = len(s.flagsByAccount[flag.AccountID])

	acct, ok := s.accounts[flag.AccountID]
	if !ok {
		return count, false
	}
	if count >= domain.BlockThreshold {
		acct.Status = domain.AccountBlocked
	}
	return count, acct.Status == domain.AccountBlocked
}

// FlagsByAccount returns the account's fraud flags in append order.
func (s *Store) FlagsByAccount(accountID string) []*domain.FraudFlag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flags := s.flagsByAccount[accountID]
	result := make([]*domain.FraudFlag, len(flags))
	copy(result, flags)
	return result
}
