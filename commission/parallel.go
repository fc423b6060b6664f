package commission

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// PARALLEL FAN-OUT - One goroutine per agent batch
// =============================================================================

// AgentJob is one agent's batch input.
type AgentJob struct {
	Plan         *Plan
	Assignment   Assignment
	Transactions []Transaction
	Prior        generic.YTDState
}

// AgentOutcome is one agent's batch output. Err is set when the whole batch
// was rejected (invalid plan, broken linkage); per-transaction failures are
// in Result.Errors.
type AgentOutcome struct {
	TenantID  generic.TenantID
	AgentName generic.AgentName
	PlanID    generic.PlanID
	Result    *BatchResult
	Err       error
}

// CalculateMany runs CalculateForAgent for every job with at most limit
// batches in flight (limit <= 0 means GOMAXPROCS). Outcomes are returned in
// job order. Jobs share nothing, so no coordination is needed beyond the
// group; the only error returned is ctx's when it is cancelled.
func CalculateMany(ctx context.Context, jobs []AgentJob, limit int) ([]AgentOutcome, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	out := make([]AgentOutcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := CalculateForAgent(job.Plan, job.Assignment, job.Transactions, job.Prior)
			out[i] = AgentOutcome{
				TenantID:  job.Assignment.TenantID,
				AgentName: job.Assignment.AgentName,
				PlanID:    job.Assignment.PlanID,
				Result:    res,
				Err:       err,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
