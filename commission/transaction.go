package commission

import (
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// TRANSACTION - Validated closed deal at the engine boundary
// =============================================================================

// Side is which side(s) of the deal the agent represented.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideBoth Side = "both" // double-ended: the side rate is earned twice
)

// Transaction is one closed deal credited to an agent. GCI is either given
// directly or derived from SalePrice and CommissionRate; it is never
// defaulted to zero when both are missing.
type Transaction struct {
	ID          generic.TransactionID
	TenantID    generic.TenantID
	AgentName   generic.AgentName
	ClosingDate generic.TimePoint
	Address     string

	GCI *decimal.Decimal

	SalePrice      *decimal.Decimal
	CommissionRate *decimal.Decimal // percent per side, e.g. 3 = 3%
	Side           Side

	// ReferralPercentage of GCI owed to a referring party, taken off the top.
	ReferralPercentage decimal.Decimal
}

// ResolveGCI returns the transaction's GCI rounded to cents.
func (t Transaction) ResolveGCI() (decimal.Decimal, error) {
	invalid := func(field, value, reason string) error {
		return &generic.InvalidInputError{TransactionID: t.ID, Field: field, Value: value, Reason: reason}
	}

	if t.GCI != nil {
		if t.GCI.IsNegative() {
			return decimal.Zero, invalid("gross_commission_income", t.GCI.String(), "must not be negative")
		}
		return generic.RoundCents(*t.GCI), nil
	}

	if t.SalePrice == nil || t.CommissionRate == nil {
		return decimal.Zero, invalid("gross_commission_income", "", "missing, and no sale price with commission rate to derive it")
	}
	if t.SalePrice.IsNegative() {
		return decimal.Zero, invalid("sale_price", t.SalePrice.String(), "must not be negative")
	}
	if !generic.IsPercentage(*t.CommissionRate) {
		return decimal.Zero, invalid("commission_rate", t.CommissionRate.String(), "outside [0,100]")
	}

	gci := generic.Percent(*t.SalePrice, *t.CommissionRate)
	switch t.Side {
	case SideBoth:
		gci = gci.Mul(decimal.NewFromInt(2))
	case SideBuy, SideSell, "":
	default:
		return decimal.Zero, invalid("side", string(t.Side), "expected buy, sell or both")
	}
	return generic.RoundCents(gci), nil
}

// validate checks everything about the transaction itself. Linkage to the
// assignment is checked by the batch calculator.
func (t Transaction) validate() (decimal.Decimal, error) {
	if t.ID == "" {
		return decimal.Zero, &generic.InvalidInputError{Field: "id", Reason: "required"}
	}
	if t.ClosingDate.IsZero() {
		return decimal.Zero, &generic.InvalidInputError{TransactionID: t.ID, Field: "closing_date", Reason: "required"}
	}
	if !generic.IsPercentage(t.ReferralPercentage) {
		return decimal.Zero, &generic.InvalidInputError{
			TransactionID: t.ID, Field: "referral_percentage",
			Value: t.ReferralPercentage.String(), Reason: "outside [0,100]",
		}
	}
	return t.ResolveGCI()
}
