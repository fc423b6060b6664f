/*
splitter.go - Marginal split of one transaction's GCI

PURPOSE:
  Splits a single transaction's GCI between agent and brokerage, taking the
  royalty and the plan's deductions off the top first.

ALGORITHM (bracketed, like marginal tax):
  1. ytdAfter = ytdBefore + GCI
  2. Cut [ytdBefore, ytdAfter] at every tier threshold and at the cap that
     lie strictly inside the interval
  3. Each segment earns the split in effect at its lower end: PostCapSplit
     at or above the cap, otherwise the tier split
  4. Royalty = min(GCI x royalty%, royaltyCap - royaltyYTD)
  5. Fees = referral + deductions (fixed per frequency, percentage of GCI),
     each clamped so the total taken off the top never exceeds GCI
  6. distributable = GCI - royalty - fees
     agentNet      = round(distributable x agentGross / GCI)
     companyDollar = distributable - agentNet

CONSERVATION:
  companyDollar is the residual, so
  agentNet + companyDollar + royalty + sum(fees) == GCI exactly, to the cent.

EXAMPLE:
  Tiers [{0,60},{50000,70}], ytdBefore 48000, GCI 5000:
    [48000,50000) x 60% = 1200
    [50000,53000) x 70% = 2100
    agentNet = 3300, companyDollar = 1700, splitType = blended

SEE ALSO:
  - tier.go: Tier lookup and boundary enumeration
  - batch.go: Threads YTD and royalty totals between transactions
*/
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// SplitType names which part of the plan a transaction was paid under.
type SplitType string

const (
	SplitSingleTier SplitType = "single-tier"
	SplitBlended    SplitType = "blended"
	SplitPostCap    SplitType = "post-cap"
)

// ReferralFeeName is the fee line used for a transaction's referral payout.
const ReferralFeeName = "referral"

// Segment is the part of a transaction's GCI paid at one rate.
type Segment struct {
	From            decimal.Decimal
	To              decimal.Decimal
	TierIndex       int
	SplitPercentage decimal.Decimal
	PostCap         bool
}

// Amount is the GCI covered by the segment.
func (s Segment) Amount() decimal.Decimal {
	return s.To.Sub(s.From)
}

// FeeDeduction is one itemized fee taken from a transaction.
type FeeDeduction struct {
	Name   string
	Type   DeductionType
	Amount decimal.Decimal
}

// SplitResult is the outcome of splitting one transaction.
type SplitResult struct {
	TransactionID generic.TransactionID
	ClosingDate   generic.TimePoint

	GrossCommissionIncome decimal.Decimal
	AgentNetCommission    decimal.Decimal
	CompanyDollar         decimal.Decimal
	RoyaltyDeducted       decimal.Decimal
	RoyaltyBase           decimal.Decimal // GCI the royalty was charged on
	FeeDeductions         []FeeDeduction

	YTDBefore decimal.Decimal
	YTDAfter  decimal.Decimal

	SplitType      SplitType
	Segments       []Segment
	EffectiveSplit decimal.Decimal // agent's gross share of GCI, percent

	// Team is set when the agent's net was divided with a team lead.
	Team *TeamSplit
}

// TotalFees sums the itemized fee deductions.
func (r *SplitResult) TotalFees() decimal.Decimal {
	total := decimal.Zero
	for _, f := range r.FeeDeductions {
		total = total.Add(f.Amount)
	}
	return total
}

// ConservationGap is GCI minus everything it was divided into. It is zero
// for every result the splitter produces.
func (r *SplitResult) ConservationGap() decimal.Decimal {
	return r.GrossCommissionIncome.
		Sub(r.AgentNetCommission).
		Sub(r.CompanyDollar).
		Sub(r.RoyaltyDeducted).
		Sub(r.TotalFees())
}

// SplitInput carries the per-transaction state the split depends on.
type SplitInput struct {
	GCI        decimal.Decimal
	YTDBefore  decimal.Decimal
	RoyaltyYTD decimal.Decimal

	ReferralPercentage decimal.Decimal

	// WaivedFees names fixed deductions already charged for their frequency
	// unit, so not charged on this transaction.
	WaivedFees []string
}

// =============================================================================
// SPLITTER
// =============================================================================

// SplitTransaction splits gci for an agent whose YTD production before the
// transaction is ytdBefore, with no royalty accumulated yet and every fixed
// deduction due.
func SplitTransaction(plan *Plan, ytdBefore, gci decimal.Decimal) (*SplitResult, error) {
	return Split(plan, SplitInput{GCI: gci, YTDBefore: ytdBefore})
}

// Split validates the plan and input, then splits one transaction.
func Split(plan *Plan, in SplitInput) (*SplitResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return plan.split(in), nil
}

func (in SplitInput) validate() error {
	switch {
	case in.GCI.IsNegative():
		return &generic.InvalidInputError{Field: "gross_commission_income", Value: in.GCI.String(), Reason: "must not be negative"}
	case in.YTDBefore.IsNegative():
		return &generic.InvalidInputError{Field: "ytd_before", Value: in.YTDBefore.String(), Reason: "must not be negative"}
	case in.RoyaltyYTD.IsNegative():
		return &generic.InvalidInputError{Field: "royalty_ytd", Value: in.RoyaltyYTD.String(), Reason: "must not be negative"}
	case !generic.IsPercentage(in.ReferralPercentage):
		return &generic.InvalidInputError{Field: "referral_percentage", Value: in.ReferralPercentage.String(), Reason: "outside [0,100]"}
	}
	return nil
}

// split assumes a validated plan and input.
func (p *Plan) split(in SplitInput) *SplitResult {
	gci := in.GCI
	before := in.YTDBefore
	after := before.Add(gci)

	segments := p.segments(before, after)
	agentGross := decimal.Zero
	for _, s := range segments {
		agentGross = agentGross.Add(generic.Percent(s.Amount(), s.SplitPercentage))
	}

	royalty, royaltyBase := p.royalty(gci, in.RoyaltyYTD)
	fees := p.fees(gci, royalty, in)

	res := &SplitResult{
		GrossCommissionIncome: gci,
		RoyaltyDeducted:       royalty,
		RoyaltyBase:           royaltyBase,
		FeeDeductions:         fees,
		YTDBefore:             before,
		YTDAfter:              after,
		Segments:              segments,
		SplitType:             splitTypeOf(segments),
	}

	distributable := gci.Sub(royalty).Sub(res.TotalFees())
	if gci.IsPositive() {
		res.AgentNetCommission = generic.RoundCents(distributable.Mul(agentGross).Div(gci))
		res.EffectiveSplit = agentGross.Div(gci).Mul(generic.Hundred).Round(4)
	} else {
		res.AgentNetCommission = decimal.Zero
		res.EffectiveSplit = segments[0].SplitPercentage
	}
	res.CompanyDollar = distributable.Sub(res.AgentNetCommission)
	return res
}

// segments partitions [before, after] at tier and cap boundaries. A zero-GCI
// transaction yields one empty segment at the rate in effect at before.
func (p *Plan) segments(before, after decimal.Decimal) []Segment {
	points := append([]decimal.Decimal{before}, p.boundariesWithin(before, after)...)
	points = append(points, after)

	out := make([]Segment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		split, tier, postCap := p.splitAt(points[i])
		out = append(out, Segment{
			From:            points[i],
			To:              points[i+1],
			TierIndex:       tier.Index,
			SplitPercentage: split,
			PostCap:         postCap,
		})
	}
	return out
}

func splitTypeOf(segments []Segment) SplitType {
	switch {
	case len(segments) > 1:
		return SplitBlended
	case segments[0].PostCap:
		return SplitPostCap
	default:
		return SplitSingleTier
	}
}

// royalty returns the royalty charged and the GCI it was charged on. Once
// the cumulative royalty reaches the cap no more is charged; a transaction
// straddling the cap pays royalty on the pre-cap portion only.
func (p *Plan) royalty(gci, royaltyYTD decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if !p.RoyaltyPercentage.IsPositive() || gci.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	full := generic.RoundCents(generic.Percent(gci, p.RoyaltyPercentage))
	if !p.RoyaltyCap.IsPositive() {
		return full, gci
	}
	room := generic.ClampNonNegative(p.RoyaltyCap.Sub(royaltyYTD))
	if full.LessThanOrEqual(room) {
		return full, gci
	}
	base := generic.RoundCents(room.Mul(generic.Hundred).Div(p.RoyaltyPercentage))
	return room, base
}

// fees itemizes the referral payout and the plan's deductions. Each fee is
// clamped to what is left after royalty and earlier fees.
func (p *Plan) fees(gci, royalty decimal.Decimal, in SplitInput) []FeeDeduction {
	remaining := gci.Sub(royalty)
	var out []FeeDeduction
	take := func(name string, typ DeductionType, amount decimal.Decimal) {
		amount = decimal.Min(generic.RoundCents(amount), remaining)
		if !amount.IsPositive() {
			return
		}
		remaining = remaining.Sub(amount)
		out = append(out, FeeDeduction{Name: name, Type: typ, Amount: amount})
	}

	if in.ReferralPercentage.IsPositive() {
		take(ReferralFeeName, DeductionPercentage, generic.Percent(gci, in.ReferralPercentage))
	}
	for _, d := range p.Deductions {
		switch d.Type {
		case DeductionFixed:
			if contains(in.WaivedFees, d.Name) {
				continue
			}
			take(d.Name, DeductionFixed, d.Amount)
		case DeductionPercentage:
			take(d.Name, DeductionPercentage, generic.Percent(gci, d.Amount))
		}
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
