/*
batch.go - Chronological calculation of one agent's transactions

PURPOSE:
  Runs an agent's transactions through the splitter in closing-date order,
  threading YTD state from one transaction to the next, resetting it at
  plan-year boundaries and collecting results and transition events.

STATE MACHINE (per plan-year):
  AccumulatingBelowCap --(YTD reaches cap)--> AtCap
  AtCap / AccumulatingBelowCap --(plan-year rollover)--> AccumulatingBelowCap
  The tier index is a continuous sub-state of AccumulatingBelowCap.

ORDERING:
  Transactions are sorted by ClosingDate ascending, ties broken by ID. The
  caller's slice is not modified. Upload or storage order never matters.

ERRORS:
  - Invalid plan or broken plan/assignment linkage aborts the batch
  - A bad transaction is reported in BatchResult.Errors and skipped; it
    does not advance YTD, and the rest of the batch is processed

SEE ALSO:
  - splitter.go: Per-transaction split
  - transition.go: Threshold crossing events
  - parallel.go: Many agents at once
*/
package commission

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// TransactionError is a per-transaction failure inside a batch.
type TransactionError struct {
	TransactionID generic.TransactionID
	Err           error
}

func (e TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.TransactionID, e.Err)
}

func (e TransactionError) Unwrap() error {
	return e.Err
}

// BatchResult is everything one agent's batch produced.
type BatchResult struct {
	TenantID  generic.TenantID
	AgentName generic.AgentName
	PlanID    generic.PlanID

	Results     []SplitResult
	Transitions []TierTransitionEvent

	// FinalYTD is the state after the last processed transaction, or the
	// prior state when nothing was processed.
	FinalYTD generic.YTDState

	// PlanYears holds the ending state of every plan-year seen, ascending.
	PlanYears []generic.YTDState

	Errors []TransactionError
}

// CalculateForAgent splits every transaction of one agent under one plan.
// prior is the YTD state to continue from; pass the zero value to start fresh.
// A prior state from a different plan-year than a transaction is not used
// for it.
func CalculateForAgent(plan *Plan, assignment Assignment, txns []Transaction, prior generic.YTDState) (*BatchResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if assignment.PlanID != plan.ID {
		return nil, &generic.InvalidInputError{
			Field: "plan_id", Value: string(assignment.PlanID),
			Reason: fmt.Sprintf("assignment for %s does not reference plan %s", assignment.AgentName, plan.ID),
		}
	}
	if assignment.AgentName == "" {
		return nil, &generic.InvalidInputError{Field: "agent_name", Reason: "assignment has no agent"}
	}
	anniversary, err := assignment.Anniversary()
	if err != nil {
		return nil, err
	}

	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.ClosingDate.Equal(b.ClosingDate) {
			return a.ClosingDate.Before(b.ClosingDate)
		}
		return a.ID < b.ID
	})

	if !prior.IsZero() && (prior.Key.TenantID != assignment.TenantID ||
		prior.Key.AgentName != assignment.AgentName ||
		prior.Key.PlanID != plan.ID) {
		prior = generic.YTDState{}
	}
	ledger := generic.NewLedger(prior)

	out := &BatchResult{
		TenantID:  assignment.TenantID,
		AgentName: assignment.AgentName,
		PlanID:    plan.ID,
		FinalYTD:  prior,
	}
	seen := make(map[generic.TransactionID]bool, len(sorted))

	for _, txn := range sorted {
		gci, err := checkTransaction(txn, assignment, seen)
		if err != nil {
			out.Errors = append(out.Errors, TransactionError{TransactionID: txn.ID, Err: err})
			continue
		}
		seen[txn.ID] = true

		period := generic.PlanYearFor(txn.ClosingDate, anniversary)
		key := generic.YTDKey{
			TenantID:  assignment.TenantID,
			AgentName: assignment.AgentName,
			PlanID:    plan.ID,
			PlanYear:  period.Key(),
		}
		state := ledger.Get(key, period)

		dueKeys, waived := plan.feeSchedule(state, txn.ClosingDate, period)
		res := plan.split(SplitInput{
			GCI:                gci,
			YTDBefore:          state.GCI,
			RoyaltyYTD:         state.Royalty,
			ReferralPercentage: txn.ReferralPercentage,
			WaivedFees:         waived,
		})
		res.TransactionID = txn.ID
		res.ClosingDate = txn.ClosingDate

		if assignment.HasTeam() {
			team := ApplyTeamSplit(res, assignment.TeamSplitPercentage)
			res.Team = &team
		}

		for _, ev := range plan.transitions(res.YTDBefore, res.YTDAfter, txn.ID, txn.ClosingDate) {
			ev.TenantID = assignment.TenantID
			ev.AgentName = assignment.AgentName
			out.Transitions = append(out.Transitions, ev)
		}

		out.FinalYTD = ledger.Apply(key, period, generic.YTDEntry{
			TransactionID: txn.ID,
			Date:          txn.ClosingDate,
			GCI:           gci,
			Royalty:       res.RoyaltyDeducted,
			ChargedFees:   chargedKeys(res, dueKeys),
		})
		out.Results = append(out.Results, *res)
	}

	out.PlanYears = ledger.Snapshot()
	return out, nil
}

// checkTransaction validates txn and its linkage to the assignment, and
// returns its GCI.
func checkTransaction(txn Transaction, a Assignment, seen map[generic.TransactionID]bool) (decimal.Decimal, error) {
	gci, err := txn.validate()
	if err != nil {
		return gci, err
	}
	invalid := func(field, value, reason string) error {
		return &generic.InvalidInputError{TransactionID: txn.ID, Field: field, Value: value, Reason: reason}
	}
	switch {
	case seen[txn.ID]:
		return gci, invalid("id", string(txn.ID), "duplicate transaction in batch")
	case txn.AgentName != "" && txn.AgentName != a.AgentName:
		return gci, invalid("agent_name", string(txn.AgentName), fmt.Sprintf("batch is for %s", a.AgentName))
	case txn.TenantID != "" && txn.TenantID != a.TenantID:
		return gci, invalid("tenant_id", string(txn.TenantID), fmt.Sprintf("batch is for %s", a.TenantID))
	case !a.IsActive(txn.ClosingDate):
		return gci, invalid("closing_date", txn.ClosingDate.String(), fmt.Sprintf("outside assignment to plan %s", a.PlanID))
	}
	return gci, nil
}

// feeSchedule returns, for fixed deductions charged less often than every
// transaction, the frequency key each would be charged under, and the names
// of those already charged for their current key.
func (p *Plan) feeSchedule(state generic.YTDState, date generic.TimePoint, period generic.Period) (map[string]string, []string) {
	keys := make(map[string]string)
	var waived []string
	for _, d := range p.Deductions {
		if d.Type != DeductionFixed {
			continue
		}
		var k string
		switch frequencyOf(d) {
		case FrequencyMonthly:
			k = d.Name + "@" + date.MonthKey()
		case FrequencyAnnual:
			k = d.Name + "@" + period.Key()
		default:
			continue
		}
		keys[d.Name] = k
		if state.HasCharged(k) {
			waived = append(waived, d.Name)
		}
	}
	return keys, waived
}

// chargedKeys lists the frequency keys of periodic fees actually taken.
func chargedKeys(res *SplitResult, dueKeys map[string]string) []string {
	var out []string
	for _, f := range res.FeeDeductions {
		if k, ok := dueKeys[f.Name]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
