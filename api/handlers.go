/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes plans, assignments and split calculation over REST. Handles HTTP
  request/response, JSON serialization, and delegates to the commission
  package.

ENDPOINTS:
  Plans:
    GET    /api/plans?tenant_id=       List the tenant's plans and shared plans
    POST   /api/plans                  Create or replace a plan (JSON or YAML)
    GET    /api/plans/{id}             Get a plan

  Assignments:
    GET    /api/assignments?tenant_id= List the tenant's assignments
    POST   /api/assignments            Assign an agent to a plan

  Calculation:
    POST   /api/calculate              Split transactions, store nothing
    POST   /api/tenants/{tenantID}/recalculate
                                       Recompute and store a tenant's results
    GET    /api/runs/{id}              Recalculation run summary

  Results:
    GET    /api/tenants/{tenantID}/agents/{agent}/results
    GET    /api/tenants/{tenantID}/agents/{agent}/transitions
    GET    /api/tenants/{tenantID}/agents/{agent}/ytd

  Scenarios (scenarios.go):
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/{id}/load    Load a demo scenario
    POST   /api/scenarios/reset        Clear all data

REQUEST FLOW:
  1. Decode the body into a DTO
  2. Convert to engine types (dates, amounts)
  3. Call the engine or a repository
  4. Serialize the response

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"}, status from the error:
  - 400: Invalid plan or input
  - 404: Plan, assignment or run not found
  - 409: Overlapping or ambiguous assignments
  - 500: Everything else (logged)

SECURITY NOTE:
  No authentication or authorization. Tenants are identified by path or
  query parameter only.

SEE ALSO:
  - dto.go: Request/response data structures
  - recalc.go: Tenant recalculation
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/generic"
	"github.com/warp/commission-engine/observability"
)

const maxBodyBytes = 4 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers persist to.
type Store interface {
	commission.PlanRepository
	commission.AssignmentRepository
	commission.ResultStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Store
	Recalc *Recalculator
	Logger *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler whose recalculations run at most workers
// agent batches at once.
func NewHandler(store Store, logger *zap.Logger, workers int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:  store,
		Recalc: NewRecalculator(store, store, store, logger, workers),
		Logger: logger,
	}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns the tenant's plans plus shared ones.
// GET /api/plans?tenant_id=
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	tenant := generic.TenantID(r.URL.Query().Get("tenant_id"))
	plans, err := h.Store.ListPlans(r.Context(), tenant)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list plans", err)
		return
	}

	docs := make([]factory.PlanDocument, len(plans))
	for i := range plans {
		docs[i] = factory.ToDocument(&plans[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": docs})
}

// CreatePlan stores a plan. The body is JSON unless Content-Type names YAML.
// POST /api/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	var plan *commission.Plan
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		plan, err = factory.ParsePlanYAML(body)
	} else {
		plan, err = factory.ParsePlanJSON(body)
	}
	if err != nil {
		h.writeDomainError(w, r, "Invalid plan", err)
		return
	}

	if err := h.Store.SavePlan(r.Context(), *plan); err != nil {
		h.writeDomainError(w, r, "Failed to save plan", err)
		return
	}
	observability.FromContext(r.Context()).Info("plan saved",
		zap.String("plan_id", string(plan.ID)),
		zap.String("tenant_id", string(plan.TenantID)),
	)
	writeJSON(w, http.StatusCreated, factory.ToDocument(plan))
}

// GetPlan returns one plan.
// GET /api/plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := generic.PlanID(chi.URLParam(r, "id"))
	plan, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Plan not found", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToDocument(plan))
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

// ListAssignments returns a tenant's assignments.
// GET /api/assignments?tenant_id=
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required", nil)
		return
	}
	assignments, err := h.Store.ListAssignments(r.Context(), generic.TenantID(tenant))
	if err != nil {
		h.writeDomainError(w, r, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": dtos})
}

// CreateAssignment assigns an agent to a plan. An ID is generated when the
// body has none; sending an existing ID replaces that assignment.
// POST /api/assignments
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignmentDTO
	if !decode(w, r, &req) {
		return
	}
	a, err := req.toAssignment()
	if err != nil {
		h.writeDomainError(w, r, "Invalid assignment", err)
		return
	}
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}

	if err := h.Store.SaveAssignment(r.Context(), a); err != nil {
		h.writeDomainError(w, r, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate splits one agent's transactions without touching stored results.
// POST /api/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !decode(w, r, &req) {
		return
	}

	plan, err := h.requestPlan(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, "Invalid plan", err)
		return
	}
	txns, err := toTransactions(req.Transactions)
	if err != nil {
		h.writeDomainError(w, r, "Invalid transaction", err)
		return
	}

	var assignment commission.Assignment
	if req.Assignment != nil {
		if assignment, err = req.Assignment.toAssignment(); err != nil {
			h.writeDomainError(w, r, "Invalid assignment", err)
			return
		}
	}
	if assignment.PlanID == "" {
		assignment.PlanID = plan.ID
	}
	if len(txns) > 0 {
		if assignment.AgentName == "" {
			assignment.AgentName = txns[0].AgentName
		}
		if assignment.TenantID == "" {
			assignment.TenantID = txns[0].TenantID
		}
	}

	prior, err := priorState(req.PriorYTD, assignment, plan.ID)
	if err != nil {
		h.writeDomainError(w, r, "Invalid prior_ytd", err)
		return
	}

	res, err := commission.CalculateForAgent(plan, assignment, txns, prior)
	if err != nil {
		h.writeDomainError(w, r, "Calculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResultDTO(res))
}

func (h *Handler) requestPlan(ctx context.Context, req CalculateRequest) (*commission.Plan, error) {
	switch {
	case req.Plan != nil:
		return req.Plan.ToPlan()
	case req.PlanID != "":
		return h.Store.GetPlan(ctx, generic.PlanID(req.PlanID))
	default:
		return nil, &generic.InvalidInputError{Field: "plan", Reason: "plan or plan_id is required"}
	}
}

func priorState(dto *PriorYTDDTO, a commission.Assignment, plan generic.PlanID) (generic.YTDState, error) {
	if dto == nil {
		return generic.YTDState{}, nil
	}
	date, err := parseDate("", "prior_ytd.plan_year_date", dto.PlanYearDate)
	if err != nil {
		return generic.YTDState{}, err
	}
	if dto.GCI.IsNegative() || dto.Royalty.IsNegative() {
		return generic.YTDState{}, &generic.InvalidInputError{Field: "prior_ytd", Reason: "amounts must not be negative"}
	}
	anniversary, err := a.Anniversary()
	if err != nil {
		return generic.YTDState{}, err
	}

	period := generic.PlanYearFor(date, anniversary)
	state := generic.NewYTDState(generic.YTDKey{
		TenantID:  a.TenantID,
		AgentName: a.AgentName,
		PlanID:    plan,
		PlanYear:  period.Key(),
	}, period)
	state.GCI = dto.GCI
	state.Royalty = dto.Royalty
	state.ChargedFees = append([]string{}, dto.ChargedFees...)
	return state, nil
}

// Recalculate recomputes and stores results for the posted transactions.
// Transactions that fail to decode are rejected alongside unroutable ones.
// POST /api/tenants/{tenantID}/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	tenant := generic.TenantID(chi.URLParam(r, "tenantID"))

	var req RecalculateRequest
	if !decode(w, r, &req) {
		return
	}

	var rejected []commission.TransactionError
	txns := make([]commission.Transaction, 0, len(req.Transactions))
	for _, dto := range req.Transactions {
		txn, err := dto.toTransaction()
		if err != nil {
			rejected = append(rejected, commission.TransactionError{TransactionID: generic.TransactionID(dto.ID), Err: err})
			continue
		}
		txns = append(txns, txn)
	}

	res, err := h.Recalc.Recalculate(r.Context(), tenant, txns)
	if err != nil {
		h.writeDomainError(w, r, "Recalculation failed", err)
		return
	}
	res.Rejected = append(rejected, res.Rejected...)
	writeJSON(w, http.StatusOK, toRecalculateResponse(res))
}

// GetRun returns a recalculation run summary.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, "Run not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunSummaryDTO(run))
}

// =============================================================================
// RESULT HANDLERS
// =============================================================================

// AgentResults returns the agent's stored splits in closing order.
// GET /api/tenants/{tenantID}/agents/{agent}/results
func (h *Handler) AgentResults(w http.ResponseWriter, r *http.Request) {
	tenant, agent, ok := agentParams(w, r)
	if !ok {
		return
	}
	results, err := h.Store.Results(r.Context(), tenant, agent)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get results", err)
		return
	}

	dtos := make([]SplitResultDTO, len(results))
	for i, res := range results {
		dtos[i] = toSplitResultDTO(res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": dtos})
}

// AgentTransitions returns the agent's tier and cap crossings.
// GET /api/tenants/{tenantID}/agents/{agent}/transitions
func (h *Handler) AgentTransitions(w http.ResponseWriter, r *http.Request) {
	tenant, agent, ok := agentParams(w, r)
	if !ok {
		return
	}
	events, err := h.Store.Transitions(r.Context(), tenant, agent)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get transitions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": toTransitionDTOs(events)})
}

// AgentYTD returns the agent's accumulation per plan-year.
// GET /api/tenants/{tenantID}/agents/{agent}/ytd
func (h *Handler) AgentYTD(w http.ResponseWriter, r *http.Request) {
	tenant, agent, ok := agentParams(w, r)
	if !ok {
		return
	}
	states, err := h.Store.YTD(r.Context(), tenant, agent)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get YTD", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan_years": toYTDStateDTOs(states)})
}

func agentParams(w http.ResponseWriter, r *http.Request) (generic.TenantID, generic.AgentName, bool) {
	agent, err := url.PathUnescape(chi.URLParam(r, "agent"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid agent name", err)
		return "", "", false
	}
	return generic.TenantID(chi.URLParam(r, "tenantID")), generic.AgentName(agent), true
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	observability.FromContext(r.Context()).Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Health reports liveness, and database reachability for stores that can
// be pinged.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			observability.FromContext(r.Context()).Error("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's kind. Unclassified
// errors are logged and their details withheld.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		observability.FromContext(r.Context()).Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", fmt.Errorf("decode: %w", err))
		return false
	}
	return true
}
