/*
Package generic provides the domain-agnostic building blocks of the commission engine.

PURPOSE:
  Money arithmetic, calendar dates, plan-year periods, the YTD ledger and the
  error taxonomy live here. Nothing in this package knows what a tier, a cap
  or a royalty is; the commission package composes these pieces into the
  split calculation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal amounts rounded to cents at well-defined points
  - Percentages: stored as 0-100 values, applied with Percent()
  - Typed identifiers: tenant, agent, plan, team, transaction

DESIGN PRINCIPLES:
  1. Precision: every amount is a decimal.Decimal, never a float64
  2. Rounding happens once per figure, to the cent, half away from zero
  3. Type Safety: distinct ID types prevent mixing plan and agent keys

USAGE:
  gci := generic.MustParseDecimal("10000")
  agent := generic.RoundCents(generic.Percent(gci, generic.MustParseDecimal("60")))
  // agent == 6000.00

SEE ALSO:
  - time.go: Date handling
  - period.go: Plan-year resolution
  - ledger.go: YTD accumulation
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type AgentName string
type PlanID string
type TeamID string
type TransactionID string

// =============================================================================
// MONEY
// =============================================================================

// CentPlaces is the number of decimal places money is rounded to.
const CentPlaces int32 = 2

var (
	// Hundred is the divisor for percentage values.
	Hundred = decimal.NewFromInt(100)

	// OneCent is the smallest representable money movement.
	OneCent = decimal.New(1, -CentPlaces)
)

// RoundCents rounds an amount to whole cents, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// Percent returns pct percent of base without rounding.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(Hundred)
}

// ParseDecimal parses a decimal string, rejecting empty input.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty decimal")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustParseDecimal parses s or returns zero. Intended for literals.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ClampNonNegative returns d, or zero if d is negative.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// IsPercentage reports whether d lies in [0, 100].
func IsPercentage(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(Hundred)
}
