/*
presets.go - Pre-built commission plans

PURPOSE:
  Ready-to-use plans for the common brokerage compensation models. They seed
  demo scenarios and serve as starting points for custom plans.

AVAILABLE PLANS:
  FlatSplitPlan:     One split for every dollar (e.g. 70/30)
  SlidingScalePlan:  Split rises as YTD GCI passes thresholds
  CappedPlan:        Flat split until the company dollar cap, then 100%
  FranchisePlan:     Capped sliding scale with franchise royalty and fees

EXAMPLE:
  plan := factory.CappedPlan("capped-70", "70", "20000")
  res, err := commission.SplitTransaction(&plan, ytd, gci)

SEE ALSO:
  - plan.go: Document codec
  - commission/plan.go: Plan type definition
*/
package factory

import (
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// FlatSplitPlan pays the agent split percent of every dollar.
func FlatSplitPlan(id generic.PlanID, split string) commission.Plan {
	return commission.Plan{
		ID:              id,
		Name:            "Flat " + split + "%",
		SplitPercentage: generic.MustParseDecimal(split),
	}
}

// SlidingScalePlan is the classic 60% to $50k, 70% to $100k, 80% above.
func SlidingScalePlan(id generic.PlanID) commission.Plan {
	return commission.Plan{
		ID:         id,
		Name:       "Sliding scale 60/70/80",
		UseSliding: true,
		Tiers: []commission.Tier{
			{ThresholdYTD: generic.MustParseDecimal("0"), SplitPercentage: generic.MustParseDecimal("60")},
			{ThresholdYTD: generic.MustParseDecimal("50000"), SplitPercentage: generic.MustParseDecimal("70")},
			{ThresholdYTD: generic.MustParseDecimal("100000"), SplitPercentage: generic.MustParseDecimal("80")},
		},
	}
}

// CappedPlan pays split percent until YTD GCI reaches capAmount, then 100%.
func CappedPlan(id generic.PlanID, split, capAmount string) commission.Plan {
	return commission.Plan{
		ID:              id,
		Name:            "Flat " + split + "% capped at " + capAmount,
		SplitPercentage: generic.MustParseDecimal(split),
		CapAmount:       generic.MustParseDecimal(capAmount),
		PostCapSplit:    generic.Hundred,
	}
}

// FranchisePlan is a capped sliding scale with a 6% royalty capped at
// $3,000, a per-transaction fee and a monthly technology fee.
func FranchisePlan(id generic.PlanID) commission.Plan {
	return commission.Plan{
		ID:         id,
		Name:       "Franchise 70/80 with royalty",
		UseSliding: true,
		Tiers: []commission.Tier{
			{ThresholdYTD: generic.MustParseDecimal("0"), SplitPercentage: generic.MustParseDecimal("70")},
			{ThresholdYTD: generic.MustParseDecimal("75000"), SplitPercentage: generic.MustParseDecimal("80")},
		},
		CapAmount:    generic.MustParseDecimal("120000"),
		PostCapSplit: generic.MustParseDecimal("95"),
		Deductions: []commission.Deduction{
			{Name: "transaction_fee", Amount: generic.MustParseDecimal("395"), Type: commission.DeductionFixed, Frequency: commission.FrequencyPerTransaction},
			{Name: "technology", Amount: generic.MustParseDecimal("75"), Type: commission.DeductionFixed, Frequency: commission.FrequencyMonthly},
			{Name: "e_and_o", Amount: generic.MustParseDecimal("1"), Type: commission.DeductionPercentage},
		},
		RoyaltyPercentage: generic.MustParseDecimal("6"),
		RoyaltyCap:        generic.MustParseDecimal("3000"),
	}
}

// Presets returns one of each built-in plan, owned by tenant.
func Presets(tenant generic.TenantID) []commission.Plan {
	plans := []commission.Plan{
		FlatSplitPlan("flat-70", "70"),
		SlidingScalePlan("sliding-60-80"),
		CappedPlan("capped-70", "70", "20000"),
		FranchisePlan("franchise"),
	}
	for i := range plans {
		plans[i].TenantID = tenant
	}
	return plans
}
