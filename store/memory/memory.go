// Package memory provides in-memory repositories for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// MEMORY STORE - Plans, assignments and run results in maps
// =============================================================================

// Store implements commission.PlanRepository, commission.AssignmentRepository
// and commission.ResultStore.
type Store struct {
	mu          sync.RWMutex
	plans       map[generic.PlanID]commission.Plan
	assignments map[string]commission.Assignment
	runs        map[string]commission.RunSummary
	agents      map[agentKey]agentResults
}

type agentKey struct {
	TenantID  generic.TenantID
	AgentName generic.AgentName
}

type agentResults struct {
	results     []commission.SplitResult
	transitions []commission.TierTransitionEvent
	ytd         []generic.YTDState
}

var (
	_ commission.PlanRepository       = (*Store)(nil)
	_ commission.AssignmentRepository = (*Store)(nil)
	_ commission.ResultStore          = (*Store)(nil)
)

func New() *Store {
	return &Store{
		plans:       make(map[generic.PlanID]commission.Plan),
		assignments: make(map[string]commission.Assignment),
		runs:        make(map[string]commission.RunSummary),
		agents:      make(map[agentKey]agentResults),
	}
}

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) GetPlan(_ context.Context, id generic.PlanID) (*commission.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, generic.ErrPlanNotFound
	}
	return &p, nil
}

// ListPlans returns the tenant's plans plus shared plans (no tenant), by ID.
func (s *Store) ListPlans(_ context.Context, tenant generic.TenantID) ([]commission.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []commission.Plan
	for _, p := range s.plans {
		if p.TenantID == "" || p.TenantID == tenant {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SavePlan(_ context.Context, plan commission.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
	return nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *Store) AssignmentsForAgent(_ context.Context, tenant generic.TenantID, agent generic.AgentName) ([]commission.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []commission.Assignment
	for _, a := range s.assignments {
		if a.TenantID == tenant && a.AgentName == agent {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func (s *Store) ListAssignments(_ context.Context, tenant generic.TenantID) ([]commission.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []commission.Assignment
	for _, a := range s.assignments {
		if a.TenantID == tenant {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

// SaveAssignment inserts or replaces by ID. The referenced plan must exist
// and the assignment must not overlap another for the same agent.
func (s *Store) SaveAssignment(_ context.Context, a commission.Assignment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[a.PlanID]; !ok {
		return generic.ErrPlanNotFound
	}
	existing := make([]commission.Assignment, 0, len(s.assignments))
	for _, e := range s.assignments {
		existing = append(existing, e)
	}
	if err := commission.CheckOverlap(existing, a); err != nil {
		return err
	}
	s.assignments[a.ID] = a
	return nil
}

func sortAssignments(as []commission.Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].AgentName != as[j].AgentName {
			return as[i].AgentName < as[j].AgentName
		}
		if !as[i].StartDate.Equal(as[j].StartDate) {
			return as[i].StartDate.Before(as[j].StartDate)
		}
		return as[i].ID < as[j].ID
	})
}

// =============================================================================
// RESULTS
// =============================================================================

// SaveRun replaces the stored outputs of every agent in the run. Agents whose
// outcome failed are cleared, so stale results never outlive a bad plan.
func (s *Store) SaveRun(_ context.Context, run commission.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make(map[agentKey]agentResults)
	for _, o := range run.Outcomes {
		k := agentKey{TenantID: o.TenantID, AgentName: o.AgentName}
		acc := fresh[k]
		if o.Result != nil {
			acc.results = append(acc.results, o.Result.Results...)
			acc.transitions = append(acc.transitions, o.Result.Transitions...)
			acc.ytd = append(acc.ytd, o.Result.PlanYears...)
		}
		fresh[k] = acc
	}
	for k, v := range fresh {
		s.agents[k] = v
	}
	s.runs[run.ID] = run.Summary()
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (commission.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return commission.RunSummary{}, generic.ErrRunNotFound
	}
	return r, nil
}

func (s *Store) Results(_ context.Context, tenant generic.TenantID, agent generic.AgentName) ([]commission.SplitResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.agents[agentKey{tenant, agent}].results
	return append([]commission.SplitResult(nil), src...), nil
}

func (s *Store) Transitions(_ context.Context, tenant generic.TenantID, agent generic.AgentName) ([]commission.TierTransitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.agents[agentKey{tenant, agent}].transitions
	return append([]commission.TierTransitionEvent(nil), src...), nil
}

func (s *Store) YTD(_ context.Context, tenant generic.TenantID, agent generic.AgentName) ([]generic.YTDState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.agents[agentKey{tenant, agent}].ytd
	return append([]generic.YTDState(nil), src...), nil
}

// Reset clears everything.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = make(map[generic.PlanID]commission.Plan)
	s.assignments = make(map[string]commission.Assignment)
	s.runs = make(map[string]commission.RunSummary)
	s.agents = make(map[agentKey]agentResults)
	return nil
}
