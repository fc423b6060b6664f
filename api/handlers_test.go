/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Plan creation from JSON and YAML, lookup and listing
- Assignment creation, overlap conflicts and missing plans
- Stateless calculation, including prior YTD and error statuses
- Tenant recalculation and the stored result endpoints
*/
package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/store/memory"
	"github.com/warp/commission-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const slidingPlanJSON = `{
	"id": "sliding",
	"tenant_id": "acme",
	"name": "Sliding 60/70",
	"use_sliding": true,
	"tiers": [
		{"threshold_ytd": "0", "split_percentage": "60"},
		{"threshold_ytd": "50000", "split_percentage": "70"}
	]
}`

func setupRouter(t *testing.T) (*chi.Mux, *Handler) {
	t.Helper()
	h := NewHandler(memory.New(), nil, 2)
	return NewRouter(h, nil, []string{"*"}), h
}

func do(t *testing.T, router http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func money(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func seedSliding(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/plans", "application/json", slidingPlanJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPost, "/api/assignments", "application/json",
		`{"id":"asg-ava","tenant_id":"acme","agent_name":"Ava","plan_id":"sliding","start_date":"2025-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// PLANS
// =============================================================================

func TestPlans_CreateGetList(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodPost, "/api/plans", "application/yaml", `
id: capped
tenant_id: acme
name: Capped 70
split_percentage: 70
cap_amount: 20000
`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/plans/capped", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc factory.PlanDocument
	decodeBody(t, rec, &doc)
	assert.Equal(t, "Capped 70", doc.Name)
	money(t, "20000", doc.CapAmount)

	do(t, router, http.MethodPost, "/api/plans", "application/json", slidingPlanJSON)
	do(t, router, http.MethodPost, "/api/plans", "application/json", `{"id":"other","tenant_id":"globex","split_percentage":"50"}`)

	rec = do(t, router, http.MethodGet, "/api/plans?tenant_id=acme", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Plans []factory.PlanDocument `json:"plans"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Plans, 2)
	assert.Equal(t, "capped", list.Plans[0].ID)
	assert.Equal(t, "sliding", list.Plans[1].ID)
}

func TestPlans_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodGet, "/api/plans/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/plans", "application/json", `{"id":"bad","split_percentage":"120"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "Invalid plan", resp.Error)
	assert.NotEmpty(t, resp.Details)

	rec = do(t, router, http.MethodPost, "/api/plans", "application/json", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func TestAssignments_CreateAndConflicts(t *testing.T) {
	router, _ := setupRouter(t)
	do(t, router, http.MethodPost, "/api/plans", "application/json", slidingPlanJSON)

	rec := do(t, router, http.MethodPost, "/api/assignments", "application/json",
		`{"tenant_id":"acme","agent_name":"Ava","plan_id":"sliding","start_date":"2025-01-01","end_date":"2025-06-30"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created AssignmentDTO
	decodeBody(t, rec, &created)
	assert.Len(t, created.ID, 26, "generated ULID")
	assert.Equal(t, "2025-06-30", created.EndDate)

	tests := map[string]struct {
		body string
		want int
	}{
		"overlap": {
			`{"tenant_id":"acme","agent_name":"Ava","plan_id":"sliding","start_date":"2025-06-01"}`,
			http.StatusConflict,
		},
		"missing plan": {
			`{"tenant_id":"acme","agent_name":"Bo","plan_id":"nope","start_date":"2025-01-01"}`,
			http.StatusNotFound,
		},
		"no start date": {
			`{"tenant_id":"acme","agent_name":"Bo","plan_id":"sliding"}`,
			http.StatusBadRequest,
		},
		"team split without team": {
			`{"tenant_id":"acme","agent_name":"Bo","plan_id":"sliding","start_date":"2025-01-01","team_split_percentage":"20"}`,
			http.StatusBadRequest,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/assignments", "application/json", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec = do(t, router, http.MethodPost, "/api/assignments", "application/json",
		`{"tenant_id":"acme","agent_name":"Ava","plan_id":"sliding","start_date":"2025-07-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, "adjacent windows do not overlap")

	rec = do(t, router, http.MethodGet, "/api/assignments?tenant_id=acme", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Assignments []AssignmentDTO `json:"assignments"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Assignments, 2)
	assert.Equal(t, "2025-01-01", list.Assignments[0].StartDate)
	assert.Equal(t, "2025-07-01", list.Assignments[1].StartDate)

	rec = do(t, router, http.MethodGet, "/api/assignments", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CALCULATE
// =============================================================================

func TestCalculate_InlinePlanAcrossCap(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodPost, "/api/calculate", "application/json", `{
		"plan": {"id": "capped", "split_percentage": "70", "cap_amount": "20000", "post_cap_split": "100"},
		"prior_ytd": {"plan_year_date": "2025-06-01", "gci": "18000"},
		"transactions": [
			{"id": "t1", "agent_name": "Ava", "closing_date": "2025-06-15", "gci": "5000"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res BatchResultDTO
	decodeBody(t, rec, &res)
	require.Len(t, res.Results, 1)
	r := res.Results[0]
	money(t, "4400", r.AgentNetCommission)
	money(t, "600", r.CompanyDollar)
	money(t, "18000", r.YTDBefore)
	money(t, "23000", r.YTDAfter)
	assert.Equal(t, "blended", r.SplitType)
	require.Len(t, r.Segments, 2)
	assert.True(t, r.Segments[1].PostCap)

	require.Len(t, res.Transitions, 1)
	assert.Equal(t, "cap", res.Transitions[0].Kind)
	money(t, "20000", res.Transitions[0].YTDAmount)
	assert.Empty(t, res.Errors)
}

func TestCalculate_SalePriceAndReferral(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodPost, "/api/calculate", "application/json", `{
		"plan": {"id": "flat", "split_percentage": "70"},
		"transactions": [
			{"id": "t1", "agent_name": "Ava", "closing_date": "2025-03-01",
			 "sale_price": "500000", "commission_rate": "3", "side": "sell", "referral_percentage": "25"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res BatchResultDTO
	decodeBody(t, rec, &res)
	require.Len(t, res.Results, 1)
	r := res.Results[0]
	money(t, "15000", r.GrossCommissionIncome)
	require.Len(t, r.FeeDeductions, 1)
	assert.Equal(t, "referral", r.FeeDeductions[0].Name)
	money(t, "3750", r.TotalFees)

	total := r.AgentNetCommission.Add(r.CompanyDollar).Add(r.RoyaltyDeducted).Add(r.TotalFees)
	money(t, "15000", total)
}

func TestCalculate_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := map[string]struct {
		body string
		want int
	}{
		"no plan": {
			`{"transactions":[{"id":"t1","agent_name":"Ava","closing_date":"2025-01-01","gci":"100"}]}`,
			http.StatusBadRequest,
		},
		"unknown plan id": {
			`{"plan_id":"nope","transactions":[]}`,
			http.StatusNotFound,
		},
		"invalid plan": {
			`{"plan":{"id":"p","split_percentage":"0"},"transactions":[]}`,
			http.StatusBadRequest,
		},
		"bad closing date": {
			`{"plan":{"id":"p","split_percentage":"70"},"transactions":[{"id":"t1","agent_name":"Ava","closing_date":"01/02/2025","gci":"100"}]}`,
			http.StatusBadRequest,
		},
		"no agent": {
			`{"plan":{"id":"p","split_percentage":"70"},"transactions":[]}`,
			http.StatusBadRequest,
		},
		"malformed body": {
			`[`,
			http.StatusBadRequest,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/calculate", "application/json", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCalculate_PerTransactionErrorsDoNotFailBatch(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodPost, "/api/calculate", "application/json", `{
		"plan": {"id": "flat", "split_percentage": "70"},
		"transactions": [
			{"id": "t1", "agent_name": "Ava", "closing_date": "2025-03-01", "gci": "1000"},
			{"id": "t2", "agent_name": "Ava", "closing_date": "2025-03-02", "gci": "-5"},
			{"id": "t3", "agent_name": "Ava", "closing_date": "2025-03-03"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res BatchResultDTO
	decodeBody(t, rec, &res)
	assert.Len(t, res.Results, 1)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "t2", res.Errors[0].TransactionID)
	assert.Equal(t, "t3", res.Errors[1].TransactionID)
}

// =============================================================================
// RECALCULATE AND RESULTS
// =============================================================================

func TestRecalculate_StoresResults(t *testing.T) {
	router, _ := setupRouter(t)
	seedSliding(t, router)

	rec := do(t, router, http.MethodPost, "/api/tenants/acme/recalculate", "application/json", `{
		"transactions": [
			{"id": "t2", "agent_name": "Ava", "closing_date": "2025-04-02", "gci": "20000"},
			{"id": "t1", "agent_name": "Ava", "closing_date": "2025-03-10", "gci": "40000"},
			{"id": "t3", "agent_name": "Ghost", "closing_date": "2025-03-10", "gci": "1000"},
			{"id": "t4", "agent_name": "Ava", "closing_date": "2025-13-01", "gci": "1000"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RecalculateResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Run.Agents)
	assert.Equal(t, 2, resp.Run.Transactions)
	assert.Equal(t, 1, resp.Run.Transitions)
	require.Len(t, resp.Rejected, 2)
	assert.Equal(t, "t4", resp.Rejected[0].TransactionID)
	assert.Equal(t, "t3", resp.Rejected[1].TransactionID)
	assert.Contains(t, resp.Rejected[1].Error, "not assigned")

	rec = do(t, router, http.MethodGet, "/api/tenants/acme/agents/Ava/results", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results struct {
		Results []SplitResultDTO `json:"results"`
	}
	decodeBody(t, rec, &results)
	require.Len(t, results.Results, 2)
	assert.Equal(t, "t1", results.Results[0].TransactionID)
	second := results.Results[1]
	money(t, "13000", second.AgentNetCommission)
	money(t, "7000", second.CompanyDollar)
	assert.Equal(t, "blended", second.SplitType)

	rec = do(t, router, http.MethodGet, "/api/tenants/acme/agents/Ava/transitions", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var transitions struct {
		Transitions []TransitionDTO `json:"transitions"`
	}
	decodeBody(t, rec, &transitions)
	require.Len(t, transitions.Transitions, 1)
	assert.Equal(t, "t2", transitions.Transitions[0].TransactionID)
	assert.Equal(t, 1, transitions.Transitions[0].New.Index)

	rec = do(t, router, http.MethodGet, "/api/tenants/acme/agents/Ava/ytd", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ytd struct {
		PlanYears []YTDStateDTO `json:"plan_years"`
	}
	decodeBody(t, rec, &ytd)
	require.Len(t, ytd.PlanYears, 1)
	money(t, "60000", ytd.PlanYears[0].GCI)
	assert.Equal(t, "2025-01-01", ytd.PlanYears[0].PlanYearStart)
	assert.Equal(t, 2, ytd.PlanYears[0].TransactionCount)

	rec = do(t, router, http.MethodGet, "/api/runs/"+resp.Run.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run RunSummaryDTO
	decodeBody(t, rec, &run)
	assert.Equal(t, resp.Run.ID, run.ID)
	assert.Equal(t, "acme", run.TenantID)

	rec = do(t, router, http.MethodGet, "/api/runs/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecalculate_ReplacesEarlierResults(t *testing.T) {
	router, _ := setupRouter(t)
	seedSliding(t, router)

	body := `{"transactions":[{"id":"t1","agent_name":"Ava","closing_date":"2025-03-10","gci":"40000"}]}`
	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodPost, "/api/tenants/acme/recalculate", "application/json", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/api/tenants/acme/agents/Ava/results", "", "")
	var results struct {
		Results []SplitResultDTO `json:"results"`
	}
	decodeBody(t, rec, &results)
	assert.Len(t, results.Results, 1)
}

func TestAgentResults_EscapedName(t *testing.T) {
	router, _ := setupRouter(t)
	do(t, router, http.MethodPost, "/api/plans", "application/json", slidingPlanJSON)
	do(t, router, http.MethodPost, "/api/assignments", "application/json",
		`{"tenant_id":"acme","agent_name":"Ava Lee","plan_id":"sliding","start_date":"2025-01-01"}`)
	rec := do(t, router, http.MethodPost, "/api/tenants/acme/recalculate", "application/json",
		`{"transactions":[{"id":"t1","agent_name":"Ava Lee","closing_date":"2025-03-10","gci":"1000"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/tenants/acme/agents/Ava%20Lee/results", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"transaction_id":"t1"`), rec.Body.String())
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecalculate_SQLiteBackend(t *testing.T) {
	// GIVEN: the API over a SQLite store
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	router := NewRouter(NewHandler(store, nil, 0), nil, []string{"*"})

	// WHEN: a scenario is loaded and recalculated
	loadScenario(t, router, "capped-team")

	// THEN: results, transitions and YTD come back from the database
	rec := do(t, router, http.MethodGet, "/api/tenants/demo-brokerage/agents/Luis%20Ortega/results", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results struct {
		Results []SplitResultDTO `json:"results"`
	}
	decodeBody(t, rec, &results)
	require.Len(t, results.Results, 4)
	money(t, "8400", results.Results[2].AgentNetCommission)
	require.NotNil(t, results.Results[2].Team)
	money(t, "1680", results.Results[2].Team.TeamLeadShare)

	rec = do(t, router, http.MethodGet, "/api/tenants/demo-brokerage/agents/Luis%20Ortega/ytd", "", "")
	var ytd struct {
		PlanYears []YTDStateDTO `json:"plan_years"`
	}
	decodeBody(t, rec, &ytd)
	require.Len(t, ytd.PlanYears, 1)
	money(t, "40500", ytd.PlanYears[0].GCI)

	rec = do(t, router, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
