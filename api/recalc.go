/*
recalc.go - Tenant recalculation

PURPOSE:
  Recomputes commission splits for a tenant's transactions from scratch and
  stores the results as one run. Every transaction is routed to the plan
  assignment active on its closing date; each assignment becomes one batch,
  and batches run concurrently.

DESIGN:
  - Results are never patched in place. A run replaces everything stored
    for the agents it covers, so re-running the same input is idempotent.
  - Transactions that cannot be routed (no active assignment, or more than
    one) are rejected individually and reported; the rest still run.
  - A batch whose plan is missing or invalid fails alone. Its agent's stored
    results are cleared rather than left stale.

OBSERVABILITY:
  Each run is one span ("Recalculate") and one summary log line.

USAGE:
  rc := NewRecalculator(store, store, store, logger, workers)
  res, err := rc.Recalculate(ctx, "acme", txns)

SEE ALSO:
  - commission/parallel.go: CalculateMany
  - commission/repository.go: ResultStore
*/
package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

var tracer = otel.Tracer("github.com/warp/commission-engine/api")

// Recalculator runs and stores tenant recalculations.
type Recalculator struct {
	Plans       commission.PlanRepository
	Assignments commission.AssignmentRepository
	Results     commission.ResultStore
	Logger      *zap.Logger

	// Workers bounds concurrent agent batches; 0 means GOMAXPROCS.
	Workers int

	Now   func() time.Time
	NewID func() string
}

// NewRecalculator creates a recalculator with ULID run IDs.
func NewRecalculator(plans commission.PlanRepository, assignments commission.AssignmentRepository, results commission.ResultStore, logger *zap.Logger, workers int) *Recalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recalculator{
		Plans:       plans,
		Assignments: assignments,
		Results:     results,
		Logger:      logger,
		Workers:     workers,
		Now:         time.Now,
		NewID:       func() string { return ulid.Make().String() },
	}
}

// RecalcResult is a stored run plus the transactions that never reached a
// batch.
type RecalcResult struct {
	Run      commission.Run
	Rejected []commission.TransactionError
}

// Recalculate splits txns for tenant and saves the run. The returned error
// covers storage failures and cancellation; calculation failures are
// reported inside the result.
func (rc *Recalculator) Recalculate(ctx context.Context, tenant generic.TenantID, txns []commission.Transaction) (*RecalcResult, error) {
	ctx, span := tracer.Start(ctx, "Recalculate", trace.WithAttributes(
		attribute.String("tenant_id", string(tenant)),
		attribute.Int("transactions", len(txns)),
	))
	defer span.End()

	res, err := rc.recalculate(ctx, tenant, txns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rc.Logger.Error("recalculation failed", zap.String("tenant_id", string(tenant)), zap.Error(err))
		return nil, err
	}

	summary := res.Run.Summary()
	span.SetAttributes(
		attribute.String("run_id", summary.ID),
		attribute.Int("agents", summary.Agents),
		attribute.Int("errors", summary.Errors+len(res.Rejected)),
	)
	rc.Logger.Info("recalculation finished",
		zap.String("run_id", summary.ID),
		zap.String("tenant_id", string(tenant)),
		zap.Int("agents", summary.Agents),
		zap.Int("transactions", summary.Transactions),
		zap.Int("transitions", summary.Transitions),
		zap.Int("errors", summary.Errors),
		zap.Int("rejected", len(res.Rejected)),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return res, nil
}

func (rc *Recalculator) recalculate(ctx context.Context, tenant generic.TenantID, txns []commission.Transaction) (*RecalcResult, error) {
	if tenant == "" {
		return nil, &generic.InvalidInputError{Field: "tenant_id", Reason: "required"}
	}
	started := rc.Now()

	assignments, err := rc.Assignments.ListAssignments(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	res := &RecalcResult{}
	groups := make(map[string]*commission.AgentJob)
	for _, txn := range txns {
		if txn.TenantID == "" {
			txn.TenantID = tenant
		}
		if err := routable(txn, tenant); err != nil {
			res.Rejected = append(res.Rejected, commission.TransactionError{TransactionID: txn.ID, Err: err})
			continue
		}
		a, err := commission.ResolveAssignment(assignments, tenant, txn.AgentName, txn.ClosingDate)
		if err != nil {
			res.Rejected = append(res.Rejected, commission.TransactionError{TransactionID: txn.ID, Err: err})
			continue
		}
		job, ok := groups[a.ID]
		if !ok {
			job = &commission.AgentJob{Assignment: a}
			groups[a.ID] = job
		}
		job.Transactions = append(job.Transactions, txn)
	}

	jobs := make([]commission.AgentJob, 0, len(groups))
	for _, job := range groups {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i].Assignment, jobs[j].Assignment
		if a.AgentName != b.AgentName {
			return a.AgentName < b.AgentName
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})

	// Jobs whose plan can't be loaded still produce an outcome, so the
	// agent's old results are cleared when the run is saved.
	var failed []commission.AgentOutcome
	runnable := jobs[:0]
	plans := make(map[generic.PlanID]*commission.Plan)
	for _, job := range jobs {
		plan, err := rc.plan(ctx, plans, tenant, job.Assignment.PlanID)
		if err != nil {
			if !generic.IsNotFound(err) {
				return nil, err
			}
			failed = append(failed, commission.AgentOutcome{
				TenantID:  tenant,
				AgentName: job.Assignment.AgentName,
				PlanID:    job.Assignment.PlanID,
				Err:       err,
			})
			continue
		}
		job.Plan = plan
		runnable = append(runnable, job)
	}

	outcomes, err := commission.CalculateMany(ctx, runnable, rc.Workers)
	if err != nil {
		return nil, err
	}
	outcomes = append(outcomes, failed...)
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].AgentName < outcomes[j].AgentName })

	res.Run = commission.Run{
		ID:         rc.NewID(),
		TenantID:   tenant,
		StartedAt:  started,
		FinishedAt: rc.Now(),
		Outcomes:   outcomes,
	}
	if err := rc.Results.SaveRun(ctx, res.Run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return res, nil
}

// plan loads a plan once per run. Plans of other tenants are reported as
// missing.
func (rc *Recalculator) plan(ctx context.Context, cache map[generic.PlanID]*commission.Plan, tenant generic.TenantID, id generic.PlanID) (*commission.Plan, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	p, err := rc.Plans.GetPlan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	if p.TenantID != "" && p.TenantID != tenant {
		return nil, fmt.Errorf("plan %s: %w", id, generic.ErrPlanNotFound)
	}
	cache[id] = p
	return p, nil
}

func routable(txn commission.Transaction, tenant generic.TenantID) error {
	switch {
	case txn.ID == "":
		return &generic.InvalidInputError{Field: "id", Reason: "required"}
	case txn.TenantID != tenant:
		return &generic.InvalidInputError{TransactionID: txn.ID, Field: "tenant_id", Value: string(txn.TenantID), Reason: "does not match the recalculated tenant"}
	case txn.AgentName == "":
		return &generic.InvalidInputError{TransactionID: txn.ID, Field: "agent_name", Reason: "required"}
	case txn.ClosingDate.IsZero():
		return &generic.InvalidInputError{TransactionID: txn.ID, Field: "closing_date", Reason: "required"}
	}
	return nil
}
