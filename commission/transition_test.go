package commission_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

func TestDetectTransitions_SingleCrossing(t *testing.T) {
	on := day(2025, time.June, 3)
	events, err := commission.DetectTransitions(slidingPlan(), d("48000"), d("53000"), "tx-1", on)
	require.NoError(t, err)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, commission.TransitionTier, ev.Kind)
	assert.Equal(t, generic.PlanID("sliding"), ev.PlanID)
	assert.Equal(t, 0, ev.Previous.Index)
	assertMoney(t, "60", ev.Previous.SplitPercentage)
	assert.Equal(t, 1, ev.New.Index)
	assertMoney(t, "50000", ev.New.Threshold)
	assertMoney(t, "70", ev.New.SplitPercentage)
	assertMoney(t, "50000", ev.YTDAmount, "YTD at the crossing, not the final YTD")
	assert.Equal(t, generic.TransactionID("tx-1"), ev.TransactionID)
	assert.True(t, on.Equal(ev.TransactionDate))
}

func TestDetectTransitions_OneEventPerThresholdCrossed(t *testing.T) {
	// GIVEN: Three tiers and $5,000 YTD
	// WHEN: One $20,000 transaction jumps past both $10,000 and $20,000
	// THEN: Two events, each at its own threshold, ascending

	plan := &commission.Plan{
		ID:         "three-tier",
		UseSliding: true,
		Tiers: []commission.Tier{
			{ThresholdYTD: d("0"), SplitPercentage: d("50")},
			{ThresholdYTD: d("10000"), SplitPercentage: d("60")},
			{ThresholdYTD: d("20000"), SplitPercentage: d("70")},
		},
	}

	events, err := commission.DetectTransitions(plan, d("5000"), d("25000"), "big", day(2025, time.May, 1))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assertMoney(t, "10000", events[0].YTDAmount)
	assert.Equal(t, 0, events[0].Previous.Index)
	assert.Equal(t, 1, events[0].New.Index)
	assertMoney(t, "20000", events[1].YTDAmount)
	assert.Equal(t, 1, events[1].Previous.Index)
	assert.Equal(t, 2, events[1].New.Index)

	res, err := commission.SplitTransaction(plan, d("5000"), d("20000"))
	require.NoError(t, err)
	// 5,000 x 50% + 10,000 x 60% + 5,000 x 70%
	assertMoney(t, "12000", res.AgentNetCommission)
}

func TestDetectTransitions_BoundaryEdges(t *testing.T) {
	plan := slidingPlan()
	on := day(2025, time.July, 1)

	tests := []struct {
		name          string
		before, after string
		want          int
	}{
		{"one dollar below, two dollar GCI", "49999", "50001", 1},
		{"lands exactly on threshold", "40000", "50000", 1},
		{"starts exactly on threshold", "50000", "60000", 0},
		{"stays below", "0", "49999.99", 0},
		{"zero GCI on threshold", "50000", "50000", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := commission.DetectTransitions(plan, d(tt.before), d(tt.after), "tx", on)
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
		})
	}
}

func TestDetectTransitions_CapCrossing(t *testing.T) {
	events, err := commission.DetectTransitions(cappedPlan(), d("15000"), d("25000"), "tx-cap", day(2025, time.March, 9))
	require.NoError(t, err)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, commission.TransitionCap, ev.Kind)
	assertMoney(t, "20000", ev.YTDAmount)
	assert.Equal(t, 0, ev.Previous.Index)
	assertMoney(t, "70", ev.Previous.SplitPercentage)
	assert.Equal(t, 1, ev.New.Index, "cap is the virtual tier after the last real tier")
	assertMoney(t, "100", ev.New.SplitPercentage)
}

func TestDetectTransitions_CapBelowTopTier_OrderedByAmount(t *testing.T) {
	plan := slidingPlan()
	plan.CapAmount = d("40000")

	events, err := commission.DetectTransitions(plan, d("30000"), d("60000"), "tx", day(2025, time.August, 8))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, commission.TransitionCap, events[0].Kind)
	assertMoney(t, "40000", events[0].YTDAmount)
	assert.Equal(t, commission.TransitionTier, events[1].Kind)
	assertMoney(t, "50000", events[1].YTDAmount)
}

func TestDetectTransitions_FlatPlanWithoutCap_NeverEmits(t *testing.T) {
	events, err := commission.DetectTransitions(flatPlan("flat", "70"), d("0"), d("10000000"), "tx", day(2025, time.January, 2))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDetectTransitions_DecreasingYTD_InvalidInput(t *testing.T) {
	_, err := commission.DetectTransitions(slidingPlan(), d("100"), d("50"), "tx", day(2025, time.January, 2))
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
