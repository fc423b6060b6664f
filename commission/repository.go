/*
repository.go - Persistence boundaries around the engine

PURPOSE:
  The engine itself never loads or saves anything. These interfaces are what
  callers (the recalculation service, the HTTP API) are handed so plans,
  assignments and derived results can live in memory, SQLite, or anywhere
  else without the engine noticing.

IMPLEMENTATIONS:
  - store/memory: In-memory maps for tests and demos
  - store/sqlite: SQLite database

SEE ALSO:
  - api/recalc.go: Loads through these interfaces, runs the engine, saves
*/
package commission

import (
	"context"
	"time"

	"github.com/warp/commission-engine/generic"
)

// PlanRepository stores commission plans.
type PlanRepository interface {
	GetPlan(ctx context.Context, id generic.PlanID) (*Plan, error)
	ListPlans(ctx context.Context, tenant generic.TenantID) ([]Plan, error)
	SavePlan(ctx context.Context, plan Plan) error
}

// AssignmentRepository stores agent-to-plan assignments. SaveAssignment
// rejects an assignment overlapping another for the same agent.
type AssignmentRepository interface {
	AssignmentsForAgent(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]Assignment, error)
	ListAssignments(ctx context.Context, tenant generic.TenantID) ([]Assignment, error)
	SaveAssignment(ctx context.Context, a Assignment) error
}

// Run is one recalculation of a tenant's agents.
type Run struct {
	ID         string
	TenantID   generic.TenantID
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []AgentOutcome
}

// RunSummary is a Run without its outcomes.
type RunSummary struct {
	ID           string
	TenantID     generic.TenantID
	StartedAt    time.Time
	FinishedAt   time.Time
	Agents       int
	Transactions int
	Transitions  int
	Errors       int
}

// Summary counts what the run produced.
func (r Run) Summary() RunSummary {
	s := RunSummary{ID: r.ID, TenantID: r.TenantID, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt}
	agents := make(map[generic.AgentName]bool)
	for _, o := range r.Outcomes {
		agents[o.AgentName] = true
		if o.Err != nil {
			s.Errors++
			continue
		}
		s.Transactions += len(o.Result.Results)
		s.Transitions += len(o.Result.Transitions)
		s.Errors += len(o.Result.Errors)
	}
	s.Agents = len(agents)
	return s
}

// ResultStore keeps the derived outputs of the latest run per agent. Saving
// a run replaces every earlier result, transition and YTD state of the
// agents it covers, since results are recomputed from scratch.
type ResultStore interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (RunSummary, error)
	Results(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]SplitResult, error)
	Transitions(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]TierTransitionEvent, error)
	YTD(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]generic.YTDState, error)
}
