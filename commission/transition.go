package commission

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// TRANSITION DETECTOR
// =============================================================================

// TransitionKind distinguishes tier crossings from the cap crossing.
type TransitionKind string

const (
	TransitionTier TransitionKind = "tier"
	TransitionCap  TransitionKind = "cap"
)

// TierRef identifies one side of a transition. For a cap transition the new
// side has Index = number of tiers, Threshold = cap and the post-cap split.
type TierRef struct {
	Index           int
	Threshold       decimal.Decimal
	SplitPercentage decimal.Decimal
}

// TierTransitionEvent records the moment YTD production crossed a threshold.
// Events are immutable once emitted.
type TierTransitionEvent struct {
	Kind      TransitionKind
	TenantID  generic.TenantID
	AgentName generic.AgentName
	PlanID    generic.PlanID

	Previous TierRef
	New      TierRef

	// YTDAmount is the threshold itself, not the transaction's final YTD.
	YTDAmount decimal.Decimal

	TransactionID   generic.TransactionID
	TransactionDate generic.TimePoint
}

// DetectTransitions returns one event per threshold t with before < t <= after,
// ascending by threshold. A transaction that lands exactly on a threshold
// crosses it; one that starts exactly on it does not. Agent and tenant are
// left for the caller to stamp.
func DetectTransitions(plan *Plan, before, after decimal.Decimal, txnID generic.TransactionID, date generic.TimePoint) ([]TierTransitionEvent, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if before.IsNegative() || after.LessThan(before) {
		return nil, &generic.InvalidInputError{
			TransactionID: txnID, Field: "ytd",
			Value:  before.String() + ".." + after.String(),
			Reason: "expected 0 <= before <= after",
		}
	}
	return plan.transitions(before, after, txnID, date), nil
}

func (p *Plan) transitions(before, after decimal.Decimal, txnID generic.TransactionID, date generic.TimePoint) []TierTransitionEvent {
	crossed := func(t decimal.Decimal) bool {
		return t.GreaterThan(before) && t.LessThanOrEqual(after)
	}

	var events []TierTransitionEvent
	tiers := p.effectiveTiers()
	for i := 1; i < len(tiers); i++ {
		t := tiers[i].ThresholdYTD
		if !crossed(t) {
			continue
		}
		events = append(events, TierTransitionEvent{
			Kind:            TransitionTier,
			PlanID:          p.ID,
			Previous:        TierRef{Index: i - 1, Threshold: tiers[i-1].ThresholdYTD, SplitPercentage: tiers[i-1].SplitPercentage},
			New:             TierRef{Index: i, Threshold: t, SplitPercentage: tiers[i].SplitPercentage},
			YTDAmount:       t,
			TransactionID:   txnID,
			TransactionDate: date,
		})
	}

	if p.HasCap() && crossed(p.CapAmount) {
		// The tier in effect just below the cap.
		below := tiers[0]
		belowIdx := 0
		for i, t := range tiers {
			if t.ThresholdYTD.LessThan(p.CapAmount) {
				below, belowIdx = t, i
			}
		}
		events = append(events, TierTransitionEvent{
			Kind:            TransitionCap,
			PlanID:          p.ID,
			Previous:        TierRef{Index: belowIdx, Threshold: below.ThresholdYTD, SplitPercentage: below.SplitPercentage},
			New:             TierRef{Index: len(tiers), Threshold: p.CapAmount, SplitPercentage: p.EffectivePostCapSplit()},
			YTDAmount:       p.CapAmount,
			TransactionID:   txnID,
			TransactionDate: date,
		})
	}

	// Tier crossings before the cap crossing at the same amount.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].YTDAmount.LessThan(events[j].YTDAmount)
	})
	return events
}
