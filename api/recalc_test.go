package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/generic"
	"github.com/warp/commission-engine/store/memory"
)

// missingPlans reports every plan as missing.
type missingPlans struct{ commission.PlanRepository }

func (missingPlans) GetPlan(context.Context, generic.PlanID) (*commission.Plan, error) {
	return nil, generic.ErrPlanNotFound
}

// brokenPlans fails every lookup with a storage error.
type brokenPlans struct{ commission.PlanRepository }

func (brokenPlans) GetPlan(context.Context, generic.PlanID) (*commission.Plan, error) {
	return nil, errors.New("disk on fire")
}

func gciTxn(id, agent string, closing generic.TimePoint, gci string) commission.Transaction {
	v := decimal.RequireFromString(gci)
	return commission.Transaction{
		ID:          generic.TransactionID(id),
		AgentName:   generic.AgentName(agent),
		ClosingDate: closing,
		GCI:         &v,
	}
}

func newRecalcFixture(t *testing.T) (*memory.Store, *Recalculator, *observer.ObservedLogs) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, p := range factory.Presets("acme") {
		require.NoError(t, store.SavePlan(ctx, p))
	}
	end := day(2025, time.June, 30)
	require.NoError(t, store.SaveAssignment(ctx, commission.Assignment{
		ID: "a-flat", TenantID: "acme", AgentName: "Sam", PlanID: "flat-70",
		StartDate: day(2025, time.January, 1), EndDate: &end,
	}))
	require.NoError(t, store.SaveAssignment(ctx, commission.Assignment{
		ID: "a-sliding", TenantID: "acme", AgentName: "Sam", PlanID: "sliding-60-80",
		StartDate: day(2025, time.July, 1),
	}))
	require.NoError(t, store.SaveAssignment(ctx, commission.Assignment{
		ID: "a-ava", TenantID: "acme", AgentName: "Ava", PlanID: "capped-70",
		StartDate: day(2025, time.January, 1),
	}))

	core, logs := observer.New(zapcore.DebugLevel)
	rc := NewRecalculator(store, store, store, zap.New(core), 2)
	fixed := time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC)
	rc.Now = func() time.Time { return fixed }
	ids := 0
	rc.NewID = func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}
	return store, rc, logs
}

func TestRecalculator_RoutesByActiveAssignment(t *testing.T) {
	store, rc, logs := newRecalcFixture(t)
	ctx := context.Background()

	res, err := rc.Recalculate(ctx, "acme", []commission.Transaction{
		gciTxn("s3", "Sam", day(2025, time.July, 1), "30000"),
		gciTxn("s1", "Sam", day(2025, time.March, 7), "21000"),
		gciTxn("s2", "Sam", day(2025, time.June, 30), "27000"),
		gciTxn("a1", "Ava", day(2025, time.May, 1), "25000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.Run.ID)
	assert.Empty(t, res.Rejected)

	require.Len(t, res.Run.Outcomes, 3)
	assert.Equal(t, generic.AgentName("Ava"), res.Run.Outcomes[0].AgentName)
	assert.Equal(t, generic.PlanID("flat-70"), res.Run.Outcomes[1].PlanID)
	assert.Equal(t, generic.PlanID("sliding-60-80"), res.Run.Outcomes[2].PlanID)
	assert.Len(t, res.Run.Outcomes[1].Result.Results, 2, "June 30 is still inside the flat window")
	assert.Len(t, res.Run.Outcomes[2].Result.Results, 1)

	summary := res.Run.Summary()
	assert.Equal(t, 2, summary.Agents)
	assert.Equal(t, 4, summary.Transactions)
	assert.Equal(t, 1, summary.Transitions, "Ava crosses the cap")

	results, err := store.Results(ctx, "acme", "Sam")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, generic.TransactionID("s1"), results[0].TransactionID)
	assert.Equal(t, generic.TransactionID("s3"), results[2].TransactionID)
	// The sliding plan keeps its own YTD, so s3 starts from zero at 60%.
	assert.True(t, results[2].YTDBefore.IsZero())
	assert.True(t, results[2].EffectiveSplit.Equal(decimal.NewFromInt(60)))

	finished := logs.FilterMessage("recalculation finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, int64(4), fields["transactions"])
}

func TestRecalculator_RejectsUnroutable(t *testing.T) {
	_, rc, _ := newRecalcFixture(t)

	foreign := gciTxn("x1", "Ava", day(2025, time.May, 1), "100")
	foreign.TenantID = "globex"

	res, err := rc.Recalculate(context.Background(), "acme", []commission.Transaction{
		foreign,
		gciTxn("x2", "Nobody", day(2025, time.May, 1), "100"),
		gciTxn("x3", "Sam", day(2024, time.December, 31), "100"),
		gciTxn("x4", "", day(2025, time.May, 1), "100"),
		gciTxn("ok", "Ava", day(2025, time.May, 1), "100"),
	})
	require.NoError(t, err)

	require.Len(t, res.Rejected, 4)
	assert.True(t, generic.IsClientError(res.Rejected[0]))
	assert.True(t, errors.Is(res.Rejected[1], generic.ErrAssignmentNotFound))
	assert.True(t, errors.Is(res.Rejected[2], generic.ErrAssignmentNotFound), "before any assignment starts")
	assert.True(t, generic.IsClientError(res.Rejected[3]))
	assert.Equal(t, 1, res.Run.Summary().Transactions)
}

func TestRecalculator_MissingPlanClearsAgent(t *testing.T) {
	store, rc, _ := newRecalcFixture(t)
	ctx := context.Background()
	txns := []commission.Transaction{gciTxn("a1", "Ava", day(2025, time.May, 1), "1000")}

	_, err := rc.Recalculate(ctx, "acme", txns)
	require.NoError(t, err)
	results, _ := store.Results(ctx, "acme", "Ava")
	require.Len(t, results, 1)

	rc.Plans = missingPlans{}
	res, err := rc.Recalculate(ctx, "acme", txns)
	require.NoError(t, err)
	require.Len(t, res.Run.Outcomes, 1)
	assert.True(t, generic.IsNotFound(res.Run.Outcomes[0].Err))
	assert.Equal(t, 1, res.Run.Summary().Errors)

	results, _ = store.Results(ctx, "acme", "Ava")
	assert.Empty(t, results)
}

func TestRecalculator_StorageErrorFailsRun(t *testing.T) {
	_, rc, logs := newRecalcFixture(t)
	rc.Plans = brokenPlans{}

	_, err := rc.Recalculate(context.Background(), "acme", []commission.Transaction{
		gciTxn("a1", "Ava", day(2025, time.May, 1), "1000"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Equal(t, 1, logs.FilterMessage("recalculation failed").Len())
}

func TestRecalculator_ForeignPlanIsMissing(t *testing.T) {
	store, rc, _ := newRecalcFixture(t)
	ctx := context.Background()

	other := factory.FlatSplitPlan("globex-flat", "50")
	other.TenantID = "globex"
	require.NoError(t, store.SavePlan(ctx, other))
	require.NoError(t, store.SaveAssignment(ctx, commission.Assignment{
		ID: "a-bo", TenantID: "acme", AgentName: "Bo", PlanID: "globex-flat",
		StartDate: day(2025, time.January, 1),
	}))

	res, err := rc.Recalculate(ctx, "acme", []commission.Transaction{
		gciTxn("b1", "Bo", day(2025, time.May, 1), "1000"),
	})
	require.NoError(t, err)
	require.Len(t, res.Run.Outcomes, 1)
	assert.True(t, generic.IsNotFound(res.Run.Outcomes[0].Err))
}

func TestRecalculator_RequiresTenant(t *testing.T) {
	_, rc, _ := newRecalcFixture(t)
	_, err := rc.Recalculate(context.Background(), "", nil)
	assert.True(t, generic.IsClientError(err))
}

func TestRecalculator_Cancelled(t *testing.T) {
	_, rc, _ := newRecalcFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rc.Recalculate(ctx, "acme", []commission.Transaction{
		gciTxn("a1", "Ava", day(2025, time.May, 1), "1000"),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
