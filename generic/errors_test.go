package generic_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/warp/commission-engine/generic"
)

func TestStructuredErrors_UnwrapToSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		client   bool
		conflict bool
	}{
		{&generic.InvalidPlanError{PlanID: "p", Reason: "no tiers"}, generic.ErrInvalidPlan, true, false},
		{&generic.InvalidInputError{TransactionID: "t", Field: "gci", Reason: "negative"}, generic.ErrInvalidInput, true, false},
		{&generic.AmbiguousAssignmentError{AgentName: "ann", At: generic.NewTimePoint(2025, time.May, 1), PlanIDs: []generic.PlanID{"a", "b"}}, generic.ErrAmbiguousAssignment, false, true},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("context: %w", tt.err)
		if !errors.Is(wrapped, tt.sentinel) {
			t.Errorf("%v should unwrap to %v", tt.err, tt.sentinel)
		}
		if generic.IsClientError(wrapped) != tt.client {
			t.Errorf("%v: IsClientError = %v", tt.err, !tt.client)
		}
		if generic.IsConflict(wrapped) != tt.conflict {
			t.Errorf("%v: IsConflict = %v", tt.err, !tt.conflict)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	in := &generic.InvalidInputError{TransactionID: "tx-9", Field: "closing_date", Value: "yesterday", Reason: "expected YYYY-MM-DD"}
	want := `invalid input (transaction tx-9): closing_date="yesterday": expected YYYY-MM-DD`
	if in.Error() != want {
		t.Errorf("got %q", in.Error())
	}

	amb := &generic.AmbiguousAssignmentError{AgentName: "ann", At: generic.NewTimePoint(2025, time.May, 1), PlanIDs: []generic.PlanID{"a", "b"}}
	if amb.Error() != "agent ann has 2 active plans on 2025-05-01: a, b" {
		t.Errorf("got %q", amb.Error())
	}

	if !generic.IsNotFound(fmt.Errorf("x: %w", generic.ErrPlanNotFound)) {
		t.Error("ErrPlanNotFound should be a not-found error")
	}
}
