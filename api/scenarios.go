/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a realistic
	brokerage: preset plans, agent assignments and a year of closed deals,
	then recalculate so results are ready to browse.

AVAILABLE SCENARIOS:

	sliding-scale:          One agent climbing a 60/70/80 sliding scale
	capped-team:            Capped plan with a team lead taking 20% of net
	anniversary-franchise:  Franchise plan on an anniversary plan-year
	plan-change:            Flat split replaced by a sliding scale mid-year

HOW SCENARIOS WORK:
 1. Reset the store
 2. Save the preset plans for the demo tenant
 3. Assign agents to plans
 4. Recalculate the scenario's deals

USAGE VIA API:

	POST /api/scenarios/capped-team/load

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - factory/presets.go: Plan definitions
  - recalc.go: Recalculation
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/generic"
	"github.com/warp/commission-engine/observability"
)

// DemoTenant owns every scenario's data.
const DemoTenant generic.TenantID = "demo-brokerage"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sliding-scale",
		Name:        "Sliding Scale",
		Description: "One agent moving from 60% to 70% to 80% as YTD GCI passes $50k and $100k",
		Category:    "tiers",
	},
	{
		ID:          "capped-team",
		Name:        "Capped Team Agent",
		Description: "70/30 split capped at $20k GCI; the team lead keeps 20% of agent net",
		Category:    "cap",
	},
	{
		ID:          "anniversary-franchise",
		Name:        "Anniversary Franchise",
		Description: "Franchise plan with royalty and monthly fees on a March 15 plan-year",
		Category:    "fees",
	},
	{
		ID:          "plan-change",
		Name:        "Mid-Year Plan Change",
		Description: "Flat 70% until June, then a sliding scale from July 1",
		Category:    "assignments",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/{id}/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var load func(context.Context) (*RecalcResult, error)
	switch id {
	case "sliding-scale":
		load = h.loadSlidingScaleScenario
	case "capped-team":
		load = h.loadCappedTeamScenario
	case "anniversary-franchise":
		load = h.loadAnniversaryFranchiseScenario
	case "plan-change":
		load = h.loadPlanChangeScenario
	default:
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", id))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := h.savePresets(ctx); err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}
	res, err := load(ctx)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}
	h.currentScenario = id

	observability.FromContext(ctx).Info("scenario loaded",
		zap.String("scenario", id),
		zap.String("run_id", res.Run.ID),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": id,
		"run":      toRecalculateResponse(res),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSlidingScaleScenario(ctx context.Context) (*RecalcResult, error) {
	const agent = "Maya Chen"
	if err := h.assign(ctx, "asg-maya", agent, "sliding-60-80", day(2025, time.January, 1), nil, nil); err != nil {
		return nil, err
	}
	return h.Recalc.Recalculate(ctx, DemoTenant, []commission.Transaction{
		deal("maya-001", agent, day(2025, time.February, 14), "600000", commission.SideSell, "14 Alder Way"),
		deal("maya-002", agent, day(2025, time.April, 3), "900000", commission.SideBuy, "220 Harbor View Dr"),
		deal("maya-003", agent, day(2025, time.June, 20), "500000", commission.SideSell, "8 Quarry Ln"),
		deal("maya-004", agent, day(2025, time.September, 9), "1200000", commission.SideBoth, "1 Ridge Crest Ct"),
	})
}

func (h *Handler) loadCappedTeamScenario(ctx context.Context) (*RecalcResult, error) {
	const agent = "Luis Ortega"
	team := &teamShare{ID: "ortega-team", Percentage: decimal.NewFromInt(20)}
	if err := h.assign(ctx, "asg-luis", agent, "capped-70", day(2025, time.January, 1), nil, team); err != nil {
		return nil, err
	}
	return h.Recalc.Recalculate(ctx, DemoTenant, []commission.Transaction{
		deal("luis-001", agent, day(2025, time.January, 28), "350000", commission.SideSell, "77 Birch St"),
		deal("luis-002", agent, day(2025, time.March, 12), "250000", commission.SideBuy, "5 Cedar Row"),
		deal("luis-003", agent, day(2025, time.May, 30), "300000", commission.SideSell, "310 Elm Ave"),
		deal("luis-004", agent, day(2025, time.August, 15), "450000", commission.SideBuy, "19 Juniper Pl"),
	})
}

func (h *Handler) loadAnniversaryFranchiseScenario(ctx context.Context) (*RecalcResult, error) {
	const agent = "Priya Nair"
	a := commission.Assignment{
		ID:              "asg-priya",
		TenantID:        DemoTenant,
		AgentName:       agent,
		PlanID:          "franchise",
		AnniversaryDate: "03-15",
		StartDate:       day(2024, time.March, 15),
	}
	if err := h.Store.SaveAssignment(ctx, a); err != nil {
		return nil, err
	}
	return h.Recalc.Recalculate(ctx, DemoTenant, []commission.Transaction{
		deal("priya-001", agent, day(2025, time.January, 10), "800000", commission.SideSell, "42 Lakeshore Blvd"),
		deal("priya-002", agent, day(2025, time.January, 24), "650000", commission.SideBuy, "9 Meadow Ct"),
		deal("priya-003", agent, day(2025, time.March, 3), "1500000", commission.SideBoth, "600 Summit Rd"),
		deal("priya-004", agent, day(2025, time.April, 2), "700000", commission.SideSell, "12 Orchard Path"),
		deal("priya-005", agent, day(2025, time.April, 28), "550000", commission.SideBuy, "88 Willow Bend"),
	})
}

func (h *Handler) loadPlanChangeScenario(ctx context.Context) (*RecalcResult, error) {
	const agent = "Sam Brooks"
	juneEnd := day(2025, time.June, 30)
	if err := h.assign(ctx, "asg-sam-flat", agent, "flat-70", day(2025, time.January, 1), &juneEnd, nil); err != nil {
		return nil, err
	}
	if err := h.assign(ctx, "asg-sam-sliding", agent, "sliding-60-80", day(2025, time.July, 1), nil, nil); err != nil {
		return nil, err
	}
	return h.Recalc.Recalculate(ctx, DemoTenant, []commission.Transaction{
		deal("sam-001", agent, day(2025, time.March, 7), "700000", commission.SideSell, "3 Fox Hollow"),
		deal("sam-002", agent, day(2025, time.June, 30), "900000", commission.SideBuy, "150 Pier St"),
		deal("sam-003", agent, day(2025, time.July, 1), "1000000", commission.SideSell, "27 Canal Walk"),
		deal("sam-004", agent, day(2025, time.November, 18), "1400000", commission.SideBoth, "400 Bluff Dr"),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

type teamShare struct {
	ID         generic.TeamID
	Percentage decimal.Decimal
}

func (h *Handler) savePresets(ctx context.Context) error {
	for _, p := range factory.Presets(DemoTenant) {
		if err := h.Store.SavePlan(ctx, p); err != nil {
			return fmt.Errorf("preset %s: %w", p.ID, err)
		}
	}
	return nil
}

func (h *Handler) assign(ctx context.Context, id string, agent generic.AgentName, plan generic.PlanID, start generic.TimePoint, end *generic.TimePoint, team *teamShare) error {
	a := commission.Assignment{
		ID:        id,
		TenantID:  DemoTenant,
		AgentName: agent,
		PlanID:    plan,
		StartDate: start,
		EndDate:   end,
	}
	if team != nil {
		a.TeamID = team.ID
		a.TeamSplitPercentage = team.Percentage
	}
	return h.Store.SaveAssignment(ctx, a)
}

// deal is a closed sale paying 3% per side.
func deal(id string, agent generic.AgentName, closing generic.TimePoint, price string, side commission.Side, address string) commission.Transaction {
	salePrice := generic.MustParseDecimal(price)
	rate := generic.MustParseDecimal("3")
	return commission.Transaction{
		ID:             generic.TransactionID(id),
		TenantID:       DemoTenant,
		AgentName:      agent,
		ClosingDate:    closing,
		Address:        address,
		SalePrice:      &salePrice,
		CommissionRate: &rate,
		Side:           side,
	}
}

func day(year int, month time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(year, month, d)
}
