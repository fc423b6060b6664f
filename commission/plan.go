/*
Package commission computes commission splits between agents, teams and the brokerage.

PURPOSE:
  Given a commission plan, an agent's plan assignment and that agent's
  transactions, the engine produces per-transaction splits, the ending YTD
  state and every tier or cap threshold crossed along the way. It performs no
  I/O: plans, assignments and transactions come in as values, results go out
  as values.

KEY CONCEPTS IN THIS FILE (plan.go):
  - Plan: flat or sliding-scale split, cap, deductions, royalty
  - Tier: {ThresholdYTD, SplitPercentage}, ascending, first threshold 0
  - Deduction: fixed or percentage fee with a charging frequency

PLAN SHAPES:
  Flat 70/30:          SplitPercentage=70
  Sliding scale:       UseSliding=true, Tiers=[{0,60},{50000,70},{100000,80}]
  Capped:              CapAmount=20000, PostCapSplit=100
  Franchise:           RoyaltyPercentage=6, RoyaltyCap=3000

CAP AND TIERS:
  Tiers apply below the cap. Every dollar of YTD at or above CapAmount earns
  PostCapSplit regardless of which tier it would otherwise fall in, so a cap
  below the highest tier threshold is legal and simply makes the higher tiers
  unreachable at their nominal split.

SEE ALSO:
  - tier.go: Tier resolution
  - splitter.go: Marginal split algorithm
  - factory/plan.go: JSON/YAML plan documents
*/
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// PLAN
// =============================================================================

// Plan is an immutable description of how GCI is split. Plans are authored
// by brokerage administrators and validated before use.
type Plan struct {
	ID       generic.PlanID
	TenantID generic.TenantID
	Name     string

	// SplitPercentage is the agent's flat share (0,100]. Ignored when UseSliding.
	SplitPercentage decimal.Decimal

	// CapAmount is the YTD production at which PostCapSplit begins. Zero = no cap.
	CapAmount    decimal.Decimal
	PostCapSplit decimal.Decimal

	UseSliding bool
	Tiers      []Tier

	Deductions []Deduction

	RoyaltyPercentage decimal.Decimal
	RoyaltyCap        decimal.Decimal // cumulative royalty ceiling; zero = uncapped
}

// Tier is one bracket of a sliding scale.
type Tier struct {
	ThresholdYTD    decimal.Decimal
	SplitPercentage decimal.Decimal
}

// DeductionType selects how a deduction amount is interpreted.
type DeductionType string

const (
	DeductionFixed      DeductionType = "fixed"      // Amount is dollars
	DeductionPercentage DeductionType = "percentage" // Amount is percent of GCI
)

// Frequency is how often a fixed deduction is charged.
type Frequency string

const (
	FrequencyPerTransaction Frequency = "per_transaction"
	FrequencyMonthly        Frequency = "monthly" // first transaction of each calendar month
	FrequencyAnnual         Frequency = "annual"  // first transaction of each plan-year
)

// Deduction is a fee taken off the top before the agent/company split.
type Deduction struct {
	Name      string
	Amount    decimal.Decimal
	Type      DeductionType
	Frequency Frequency
}

// HasCap reports whether the plan defines a production cap.
func (p *Plan) HasCap() bool {
	return p.CapAmount.IsPositive()
}

// EffectivePostCapSplit is PostCapSplit, defaulting to 100 when unset.
func (p *Plan) EffectivePostCapSplit() decimal.Decimal {
	if p.PostCapSplit.IsZero() {
		return generic.Hundred
	}
	return p.PostCapSplit
}

// effectiveTiers returns the tier table the resolver walks. A flat plan is a
// single unbounded tier at its flat split.
func (p *Plan) effectiveTiers() []Tier {
	if !p.UseSliding {
		return []Tier{{ThresholdYTD: decimal.Zero, SplitPercentage: p.SplitPercentage}}
	}
	return p.Tiers
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the plan's internal consistency. It returns an
// *generic.InvalidPlanError describing the first problem found.
func (p *Plan) Validate() error {
	if p == nil {
		return &generic.InvalidPlanError{Reason: "plan is nil"}
	}
	invalid := func(format string, args ...any) error {
		return &generic.InvalidPlanError{PlanID: p.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if p.UseSliding {
		if err := validateTiers(p.Tiers); err != nil {
			return invalid("%s", err)
		}
	} else if !validSplit(p.SplitPercentage) {
		return invalid("split percentage %s outside (0,100]", p.SplitPercentage)
	}

	if p.CapAmount.IsNegative() {
		return invalid("cap amount %s is negative", p.CapAmount)
	}
	if p.HasCap() && !validSplit(p.EffectivePostCapSplit()) {
		return invalid("post-cap split %s outside (0,100]", p.PostCapSplit)
	}

	if !generic.IsPercentage(p.RoyaltyPercentage) {
		return invalid("royalty percentage %s outside [0,100]", p.RoyaltyPercentage)
	}
	if p.RoyaltyCap.IsNegative() {
		return invalid("royalty cap %s is negative", p.RoyaltyCap)
	}

	seen := make(map[string]bool, len(p.Deductions))
	for _, d := range p.Deductions {
		if d.Name == "" {
			return invalid("deduction without name")
		}
		if d.Name == ReferralFeeName {
			return invalid("deduction name %q is reserved for referral payouts", d.Name)
		}
		if seen[d.Name] {
			return invalid("duplicate deduction %q", d.Name)
		}
		seen[d.Name] = true
		if d.Amount.IsNegative() {
			return invalid("deduction %q amount %s is negative", d.Name, d.Amount)
		}
		switch d.Type {
		case DeductionFixed:
			switch d.Frequency {
			case FrequencyPerTransaction, FrequencyMonthly, FrequencyAnnual, "":
			default:
				return invalid("deduction %q has unknown frequency %q", d.Name, d.Frequency)
			}
		case DeductionPercentage:
			if !generic.IsPercentage(d.Amount) {
				return invalid("deduction %q percentage %s outside [0,100]", d.Name, d.Amount)
			}
		default:
			return invalid("deduction %q has unknown type %q", d.Name, d.Type)
		}
	}
	return nil
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("sliding scale enabled without tiers")
	}
	if !tiers[0].ThresholdYTD.IsZero() {
		return fmt.Errorf("missing base tier at threshold 0")
	}
	for i, t := range tiers {
		if !validSplit(t.SplitPercentage) {
			return fmt.Errorf("tier %d split %s outside (0,100]", i, t.SplitPercentage)
		}
		if i > 0 && !t.ThresholdYTD.GreaterThan(tiers[i-1].ThresholdYTD) {
			return fmt.Errorf("tier %d threshold %s not above %s", i, t.ThresholdYTD, tiers[i-1].ThresholdYTD)
		}
	}
	return nil
}

func validSplit(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(generic.Hundred)
}

// frequencyOf defaults an unset frequency to per-transaction.
func frequencyOf(d Deduction) Frequency {
	if d.Frequency == "" {
		return FrequencyPerTransaction
	}
	return d.Frequency
}
