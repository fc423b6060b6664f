package commission

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// TIER RESOLVER
// =============================================================================

// TierResolution is the tier in effect at a YTD value.
type TierResolution struct {
	Index           int
	SplitPercentage decimal.Decimal
	Floor           decimal.Decimal
	Ceiling         *decimal.Decimal // nil = unbounded
}

// ResolveTier returns the tier in effect at ytd. A flat plan always resolves
// to tier 0 at its flat split with no ceiling. A sliding plan resolves to the
// highest tier whose threshold is <= ytd.
//
// The cap is not considered here; see Plan.splitAt for the rate actually paid.
func ResolveTier(plan *Plan, ytd decimal.Decimal) (TierResolution, error) {
	if err := plan.Validate(); err != nil {
		return TierResolution{}, err
	}
	if ytd.IsNegative() {
		return TierResolution{}, &generic.InvalidInputError{Field: "ytd", Value: ytd.String(), Reason: "must not be negative"}
	}
	return plan.tierAt(ytd), nil
}

// tierAt assumes a validated plan and a non-negative ytd.
func (p *Plan) tierAt(ytd decimal.Decimal) TierResolution {
	tiers := p.effectiveTiers()
	// First tier whose threshold is above ytd; the one before it applies.
	i := sort.Search(len(tiers), func(i int) bool {
		return tiers[i].ThresholdYTD.GreaterThan(ytd)
	}) - 1
	if i < 0 {
		i = 0
	}
	res := TierResolution{
		Index:           i,
		SplitPercentage: tiers[i].SplitPercentage,
		Floor:           tiers[i].ThresholdYTD,
	}
	if i+1 < len(tiers) {
		ceiling := tiers[i+1].ThresholdYTD
		res.Ceiling = &ceiling
	}
	return res
}

// splitAt is the agent split paid on the dollar of production starting at
// ytd: the post-cap split at or above the cap, otherwise the tier split.
func (p *Plan) splitAt(ytd decimal.Decimal) (decimal.Decimal, TierResolution, bool) {
	tier := p.tierAt(ytd)
	if p.HasCap() && ytd.GreaterThanOrEqual(p.CapAmount) {
		return p.EffectivePostCapSplit(), tier, true
	}
	return tier.SplitPercentage, tier, false
}

// boundariesWithin returns every tier threshold and the cap lying strictly
// inside (from, to), ascending and without duplicates.
func (p *Plan) boundariesWithin(from, to decimal.Decimal) []decimal.Decimal {
	var cuts []decimal.Decimal
	inside := func(d decimal.Decimal) bool {
		return d.GreaterThan(from) && d.LessThan(to)
	}
	for _, t := range p.effectiveTiers() {
		if inside(t.ThresholdYTD) {
			cuts = append(cuts, t.ThresholdYTD)
		}
	}
	if p.HasCap() && inside(p.CapAmount) {
		cuts = append(cuts, p.CapAmount)
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].LessThan(cuts[j]) })

	out := cuts[:0]
	for i, c := range cuts {
		if i > 0 && c.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, c)
	}
	return out
}
