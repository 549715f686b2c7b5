// Package fraud implements the deterministic fraud rule engine for bet requests.
//
// Architecture:
//   Evaluation is a pure function over the parsed request and an evaluation
//   time. The engine never touches storage; flag persistence and account
//   blocking happen in the betting service after the verdict comes back.
//
// Evaluation semantics:
//   Rules run in a fixed order and every rule is evaluated — there is no
//   short circuit. Each triggered rule overwrites the verdict, so when several
//   rules match, the LAST triggered rule's category and reason are the ones
//   reported. This accumulate-then-overwrite behavior is what the existing
//   test clients assert against and must not be changed to first-match-wins.
//
// Rules, in evaluation order:
//   1. Non-positive stake amount
//   2. Odds above the plausible ceiling
//   3. Match ID carrying the tamper sentinel
//   4. Timestamp backdated beyond the staleness window
//   5. Unauthorized control fields in the payload
package fraud

import (
	"strings"
	"time"

	"wagerly/betting-mock/internal/domain"
)

// TamperSentinel is the substring that marks a manipulated match ID.
const TamperSentinel = "-altered"

// MaxOdds is the highest odds value accepted as plausible.
const MaxOdds = 20

// StaleWindow is how far in the past a bet timestamp may lie before it is
// considered manipulated.
const StaleWindow = time.Hour

// Unauthorized payload fields. Neither may ever be set by a client.
const (
	FieldBypassValidation = "bypassValidation"
	FieldAdminApproved    = "adminApproved"
)

type rule func(req *domain.BetRequest, at time.Time) (domain.Verdict, bool)

// rules in fixed evaluation order. Later matches overwrite earlier ones.
var rules = []rule{
	ruleAmount,
	ruleOdds,
	ruleMatchTampering,
	ruleTimestamp,
	ruleUnauthorizedFields,
}

// Evaluate runs every rule against the request and returns the verdict.
// It is pure: no I/O, no side effects, deterministic for a fixed `at`.
func Evaluate(req *domain.BetRequest, at time.Time) domain.Verdict {
	var verdict domain.Verdict
	for _, r := range rules {
		if v, ok := r(req, at); ok {
			verdict = v
		}
	}
	return verdict
}

func fraudulent(category, reason string) (domain.Verdict, bool) {
	return domain.Verdict{Fraudulent: true, Category: category, Reason: reason}, true
}

// ─── Rule 1: stake amount ─────────────────────────────────────────────────────

func ruleAmount(req *domain.BetRequest, _ time.Time) (domain.Verdict, bool) {
	if req.Amount <= 0 {
		return fraudulent(domain.FraudNegativeAmount, "invalid bet amount")
	}
	return domain.Verdict{}, false
}

// ─── Rule 2: odds ceiling ─────────────────────────────────────────────────────

func ruleOdds(req *domain.BetRequest, _ time.Time) (domain.Verdict, bool) {
	if req.Odds > MaxOdds {
		return fraudulent(domain.FraudOddsManipulation, "suspicious odds manipulation")
	}
	return domain.Verdict{}, false
}

// ─── Rule 3: match ID tampering ──────────────────────────────────────────────

func ruleMatchTampering(req *domain.BetRequest, _ time.Time) (domain.Verdict, bool) {
	if strings.Contains(req.MatchID, TamperSentinel) {
		return fraudulent(domain.FraudMatchAlteration, "match ID tampering detected")
	}
	return domain.Verdict{}, false
}

// ─── Rule 4: backdated timestamp ─────────────────────────────────────────────

func ruleTimestamp(req *domain.BetRequest, at time.Time) (domain.Verdict, bool) {
	// Absent or unparseable timestamps never match; the field is optional.
	ts, ok := req.ParsedTimestamp()
	if ok && at.Sub(ts) > StaleWindow {
		return fraudulent(domain.FraudTimestampTamper, "timestamp manipulation detected")
	}
	return domain.Verdict{}, false
}

// ─── Rule 5: unauthorized fields ─────────────────────────────────────────────

func ruleUnauthorizedFields(req *domain.BetRequest, _ time.Time) (domain.Verdict, bool) {
	if req.Has(FieldBypassValidation) || req.Has(FieldAdminApproved) {
		return fraudulent(domain.FraudRequestTamper, "unauthorized request fields")
	}
	return domain.Verdict{}, false
}
