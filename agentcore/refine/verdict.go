// Package refine provides the query refinement orchestrator - the bounded
// control loop that coordinates SQL synthesis, layered safety validation,
// and failure-driven regeneration.
//
// The orchestrator:
//   - Owns the generate -> validate -> (accept | retry) loop
//   - Threads rejection feedback into the next generation attempt
//   - Enforces the iteration budget
//   - Guarantees no statement that failed validation ever escapes as approved
//
// Capabilities (generator, judge) are opaque interfaces so providers can be
// swapped and scripted in tests.
package refine

import (
	"fmt"
	"strings"
)

// =============================================================================
// ENUMS
// =============================================================================

// VerdictStatus represents the result of a safety check.
type VerdictStatus string

const (
	// VerdictStatusApproved indicates the statement passed the check.
	VerdictStatusApproved VerdictStatus = "approved"
	// VerdictStatusRejected indicates the statement failed the check.
	VerdictStatusRejected VerdictStatus = "rejected"
)

// VerdictStatusFromString parses a status string.
func VerdictStatusFromString(value string) (VerdictStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "approved":
		return VerdictStatusApproved, nil
	case "rejected":
		return VerdictStatusRejected, nil
	default:
		return "", fmt.Errorf("invalid verdict status '%s'. Must be one of: approved, rejected", value)
	}
}

// VerdictOrigin identifies which validation layer produced a verdict.
// Rejection reasons must stay attributable to their layer so the feedback
// loop and tests can assert on provenance.
type VerdictOrigin string

const (
	// VerdictOriginLexical is the deterministic text-level validator.
	VerdictOriginLexical VerdictOrigin = "lexical"
	// VerdictOriginSemantic is the intent-level judge capability.
	VerdictOriginSemantic VerdictOrigin = "semantic"
)

// VerdictOriginFromString parses an origin string.
func VerdictOriginFromString(value string) (VerdictOrigin, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "lexical":
		return VerdictOriginLexical, nil
	case "semantic":
		return VerdictOriginSemantic, nil
	default:
		return "", fmt.Errorf("invalid verdict origin '%s'. Must be one of: lexical, semantic", value)
	}
}

// =============================================================================
// VERDICT
// =============================================================================

// Verdict is the tagged result of a single safety check.
type Verdict struct {
	Status VerdictStatus `json:"status"`
	Origin VerdictOrigin `json:"origin"`
	Reason string        `json:"reason,omitempty"`
}

// Approve creates an approved verdict for the given origin.
func Approve(origin VerdictOrigin) Verdict {
	return Verdict{Status: VerdictStatusApproved, Origin: origin}
}

// Reject creates a rejected verdict with a descriptive reason.
func Reject(origin VerdictOrigin, reason string) Verdict {
	return Verdict{Status: VerdictStatusRejected, Origin: origin, Reason: reason}
}

// Approved reports whether the check passed.
func (v Verdict) Approved() bool {
	return v.Status == VerdictStatusApproved
}

// Rejected reports whether the check failed.
func (v Verdict) Rejected() bool {
	return v.Status == VerdictStatusRejected
}

// Validate validates cross-field constraints.
func (v Verdict) Validate() error {
	if v.Status == VerdictStatusRejected && v.Reason == "" {
		return fmt.Errorf("reason is required when status is 'rejected'")
	}
	if v.Status == VerdictStatusApproved && v.Reason != "" {
		return fmt.Errorf("reason must be empty when status is 'approved'")
	}
	return nil
}
