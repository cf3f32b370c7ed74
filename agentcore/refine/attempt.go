package refine

import (
	"fmt"
	"strings"
)

// =============================================================================
// ATTEMPT
// =============================================================================

// Attempt records one generation cycle. Attempts are append-only and
// run-local; each attempt's feedback becomes part of the input context for
// the next attempt's generation call.
type Attempt struct {
	// Index is the 1-based ordinal of this attempt within the run.
	Index int `json:"index"`

	// Statement is the candidate SQL text. Empty when generation itself
	// failed before producing a candidate.
	Statement string `json:"statement,omitempty"`

	// Lexical is the text-level verdict, nil if generation failed.
	Lexical *Verdict `json:"lexical,omitempty"`

	// Semantic is the intent-level verdict. Only populated when the lexical
	// check passed; the judge is never consulted for a lexically rejected
	// candidate.
	Semantic *Verdict `json:"semantic,omitempty"`

	// Feedback is the rejection reason carried into the next attempt.
	// Empty iff the attempt was approved.
	Feedback string `json:"feedback,omitempty"`
}

// Approved reports whether both validation layers accepted the candidate.
func (a *Attempt) Approved() bool {
	return a.Lexical != nil && a.Lexical.Approved() &&
		a.Semantic != nil && a.Semantic.Approved()
}

// =============================================================================
// RUN OUTCOME
// =============================================================================

// OutcomeKind represents the terminal result of a refinement run.
type OutcomeKind string

const (
	// OutcomeSafeQuery indicates a statement passed both validators.
	OutcomeSafeQuery OutcomeKind = "safe_query"
	// OutcomeIterationsExhausted indicates the retry budget ran out without
	// an approved statement. This is a business outcome, not a defect.
	OutcomeIterationsExhausted OutcomeKind = "iterations_exhausted"
)

// OutcomeKindFromString parses an outcome kind string.
func OutcomeKindFromString(value string) (OutcomeKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "safe_query":
		return OutcomeSafeQuery, nil
	case "iterations_exhausted":
		return OutcomeIterationsExhausted, nil
	default:
		return "", fmt.Errorf("invalid outcome kind '%s'. Must be one of: safe_query, iterations_exhausted", value)
	}
}

// RunOutcome is the terminal value of one refinement run.
//
// Invariant: exactly one Attempt is approved iff Kind is OutcomeSafeQuery,
// and Statement equals that attempt's candidate text verbatim.
type RunOutcome struct {
	// RunID uniquely identifies the run for logging and tracing.
	RunID string `json:"run_id"`

	// Kind is the terminal result.
	Kind OutcomeKind `json:"kind"`

	// Statement is the approved SQL, set iff Kind is OutcomeSafeQuery.
	Statement string `json:"statement,omitempty"`

	// LastFeedback is the final rejection reason, set iff Kind is
	// OutcomeIterationsExhausted.
	LastFeedback string `json:"last_feedback,omitempty"`

	// Attempts is the full ordered attempt sequence for the run.
	Attempts []Attempt `json:"attempts"`
}

// SafeQueryProduced reports whether the run ended with an approved statement.
func (o *RunOutcome) SafeQueryProduced() bool {
	return o.Kind == OutcomeSafeQuery
}

// ApprovedAttempt returns the approved attempt, or nil if none exists.
func (o *RunOutcome) ApprovedAttempt() *Attempt {
	for i := range o.Attempts {
		if o.Attempts[i].Approved() {
			return &o.Attempts[i]
		}
	}
	return nil
}
