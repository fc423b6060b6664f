package commission_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func day(year int, month time.Month, dd int) generic.TimePoint {
	return generic.NewTimePoint(year, month, dd)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func flatPlan(id, split string) *commission.Plan {
	return &commission.Plan{
		ID:              generic.PlanID(id),
		TenantID:        "brokerage-1",
		Name:            "Flat " + split,
		SplitPercentage: d(split),
	}
}

// slidingPlan is the 60% -> 70% at $50,000 scale.
func slidingPlan() *commission.Plan {
	return &commission.Plan{
		ID:         "sliding",
		TenantID:   "brokerage-1",
		Name:       "Sliding 60/70",
		UseSliding: true,
		Tiers: []commission.Tier{
			{ThresholdYTD: d("0"), SplitPercentage: d("60")},
			{ThresholdYTD: d("50000"), SplitPercentage: d("70")},
		},
	}
}

// cappedPlan is flat 70/30 until $20,000 YTD, then 100%.
func cappedPlan() *commission.Plan {
	p := flatPlan("capped", "70")
	p.CapAmount = d("20000")
	p.PostCapSplit = d("100")
	return p
}

func assignmentFor(plan *commission.Plan, agent string) commission.Assignment {
	return commission.Assignment{
		ID:        "asg-" + agent + "-" + string(plan.ID),
		TenantID:  plan.TenantID,
		AgentName: generic.AgentName(agent),
		PlanID:    plan.ID,
		StartDate: day(2020, time.January, 1),
	}
}

func txn(id string, on generic.TimePoint, gci string) commission.Transaction {
	return commission.Transaction{
		ID:          generic.TransactionID(id),
		ClosingDate: on,
		GCI:         dp(gci),
	}
}

func assertConserved(t *testing.T, r commission.SplitResult) {
	t.Helper()
	assert.Truef(t, r.ConservationGap().IsZero(),
		"transaction %s: agent %s + company %s + royalty %s + fees %s != GCI %s",
		r.TransactionID, r.AgentNetCommission, r.CompanyDollar, r.RoyaltyDeducted, r.TotalFees(), r.GrossCommissionIncome)
}
