/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine raises these synchronously at the point of detection and never
  retries or self-corrects; the caller decides whether to halt a batch or
  skip the offending transaction.

ERROR CATEGORIES:
  1. Plan errors - Malformed tier table, bad percentages, bad deductions
  2. Input errors - Negative or missing GCI, malformed dates, broken linkage
  3. Assignment errors - More than one active plan for an agent
  4. Store errors - Missing records

USAGE:
  Callers branch on the sentinel with errors.Is and read details with errors.As:

    var planErr *generic.InvalidPlanError
    if errors.As(err, &planErr) {
        log.Printf("plan %s rejected: %s", planErr.PlanID, planErr.Reason)
    }

SEE ALSO:
  - commission/plan.go: Raises InvalidPlanError
  - commission/batch.go: Collects per-transaction InvalidInputError
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPlan is returned when a commission plan cannot be interpreted.
	ErrInvalidPlan = errors.New("invalid commission plan")

	// ErrInvalidInput is returned when a transaction or request is malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAmbiguousAssignment is returned when an agent has more than one
	// active plan at the same date.
	ErrAmbiguousAssignment = errors.New("ambiguous plan assignment")

	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrAssignmentNotFound is returned when an agent has no active plan.
	ErrAssignmentNotFound = errors.New("commission plan not assigned")

	// ErrRunNotFound is returned when a recalculation run doesn't exist.
	ErrRunNotFound = errors.New("recalculation run not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPlanError describes why a plan was rejected.
type InvalidPlanError struct {
	PlanID PlanID
	Reason string
}

func (e *InvalidPlanError) Error() string {
	if e.PlanID == "" {
		return fmt.Sprintf("invalid commission plan: %s", e.Reason)
	}
	return fmt.Sprintf("invalid commission plan %s: %s", e.PlanID, e.Reason)
}

func (e *InvalidPlanError) Unwrap() error {
	return ErrInvalidPlan
}

// InvalidInputError describes a malformed field. TransactionID is set when
// the field belongs to a transaction.
type InvalidInputError struct {
	TransactionID TransactionID
	Field         string
	Value         string
	Reason        string
}

func (e *InvalidInputError) Error() string {
	var b strings.Builder
	b.WriteString("invalid input")
	if e.TransactionID != "" {
		fmt.Fprintf(&b, " (transaction %s)", e.TransactionID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
		if e.Value != "" {
			fmt.Fprintf(&b, "=%q", e.Value)
		}
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// AmbiguousAssignmentError lists the plans competing for one agent on one date.
type AmbiguousAssignmentError struct {
	TenantID  TenantID
	AgentName AgentName
	At        TimePoint
	PlanIDs   []PlanID
}

func (e *AmbiguousAssignmentError) Error() string {
	ids := make([]string, len(e.PlanIDs))
	for i, id := range e.PlanIDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("agent %s has %d active plans on %s: %s",
		e.AgentName, len(e.PlanIDs), e.At, strings.Join(ids, ", "))
}

func (e *AmbiguousAssignmentError) Unwrap() error {
	return ErrAmbiguousAssignment
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrInvalidInput)
}

// IsConflict returns true if the error reports conflicting configuration.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAmbiguousAssignment)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrRunNotFound)
}
