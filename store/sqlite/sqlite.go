/*
Package sqlite provides a SQLite-backed implementation of the commission repositories.

PURPOSE:
  Implements commission.PlanRepository, commission.AssignmentRepository and
  commission.ResultStore on SQLite, so plans, assignments and the outputs of
  the latest recalculation survive restarts.

INTERFACES IMPLEMENTED:
  commission.PlanRepository:       Plan documents
  commission.AssignmentRepository: Agent-to-plan links with effective dates
  commission.ResultStore:          Split results, transitions, YTD states, runs

KEY TABLES:
  plans:            Plan definitions as JSON documents (versioned)
  assignments:      Agent-to-plan links
  split_results:    One row per processed transaction of the latest run
  tier_transitions: Threshold crossings of the latest run, in emission order
  ytd_states:       Ending state of every plan-year per agent and plan
  recalc_runs:      Summary of every recalculation

DERIVED DATA:
  split_results, tier_transitions and ytd_states are derived. SaveRun deletes
  the covered agents' rows and inserts the new ones in one transaction, so a
  reader never sees a half-written run.

MONEY:
  Amounts are stored as decimal strings, never REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - commission/repository.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - factory/plan.go: Plan document codec used for config_json
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/generic"
)

// Store implements the commission repositories using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ commission.PlanRepository       = (*Store)(nil)
	_ commission.AssignmentRepository = (*Store)(nil)
	_ commission.ResultStore          = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_tenant ON plans(tenant_id);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		plan_id TEXT NOT NULL REFERENCES plans(id),
		team_id TEXT,
		team_split_percentage TEXT NOT NULL DEFAULT '0',
		anniversary_date TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_agent
		ON assignments(tenant_id, agent_name, start_date);

	CREATE TABLE IF NOT EXISTS recalc_runs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		agents INTEGER NOT NULL,
		transactions INTEGER NOT NULL,
		transitions INTEGER NOT NULL,
		errors INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS split_results (
		tenant_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		closing_date TEXT NOT NULL,
		gci TEXT NOT NULL,
		agent_net TEXT NOT NULL,
		company_dollar TEXT NOT NULL,
		royalty TEXT NOT NULL,
		royalty_base TEXT NOT NULL,
		ytd_before TEXT NOT NULL,
		ytd_after TEXT NOT NULL,
		split_type TEXT NOT NULL,
		effective_split TEXT NOT NULL,
		fees_json TEXT NOT NULL,
		segments_json TEXT NOT NULL,
		team_json TEXT,
		PRIMARY KEY (tenant_id, agent_name, plan_id, transaction_id)
	);

	CREATE TABLE IF NOT EXISTS tier_transitions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		prev_index INTEGER NOT NULL,
		prev_threshold TEXT NOT NULL,
		prev_split TEXT NOT NULL,
		new_index INTEGER NOT NULL,
		new_threshold TEXT NOT NULL,
		new_split TEXT NOT NULL,
		ytd_amount TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		transaction_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tier_transitions_agent
		ON tier_transitions(tenant_id, agent_name);

	CREATE TABLE IF NOT EXISTS ytd_states (
		tenant_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		plan_year TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		gci TEXT NOT NULL,
		royalty TEXT NOT NULL,
		charged_fees_json TEXT NOT NULL,
		transaction_count INTEGER NOT NULL,
		last_transaction_id TEXT,
		last_transaction_date TEXT,
		run_id TEXT NOT NULL,
		PRIMARY KEY (tenant_id, agent_name, plan_id, plan_year)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// inTx runs fn inside a database transaction, committing if it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// PLAN REPOSITORY
// =============================================================================

// SavePlan validates and upserts a plan, bumping its version on update.
func (s *Store) SavePlan(ctx context.Context, plan commission.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	config, err := factory.MarshalPlanJSON(&plan)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", plan.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO plans (id, tenant_id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			name = excluded.name,
			config_json = excluded.config_json,
			version = plans.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query,
		string(plan.ID), string(plan.TenantID), plan.Name, string(config), now, now,
	)
	return err
}

// GetPlan returns generic.ErrPlanNotFound when the plan does not exist.
func (s *Store) GetPlan(ctx context.Context, id generic.PlanID) (*commission.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var config string
	err := s.db.QueryRowContext(ctx, "SELECT config_json FROM plans WHERE id = ?", string(id)).Scan(&config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return factory.ParsePlanJSON([]byte(config))
}

// ListPlans returns the tenant's plans plus shared plans, by ID.
func (s *Store) ListPlans(ctx context.Context, tenant generic.TenantID) ([]commission.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT config_json FROM plans
		WHERE tenant_id = '' OR tenant_id = ?
		ORDER BY id
	`, string(tenant))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []commission.Plan
	for rows.Next() {
		var config string
		if err := rows.Scan(&config); err != nil {
			return nil, err
		}
		p, err := factory.ParsePlanJSON([]byte(config))
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// PlanVersion returns how many times a plan was saved.
func (s *Store) PlanVersion(ctx context.Context, id generic.PlanID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM plans WHERE id = ?", string(id)).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, generic.ErrPlanNotFound
	}
	return version, err
}

// =============================================================================
// ASSIGNMENT REPOSITORY
// =============================================================================

const assignmentColumns = `id, tenant_id, agent_name, plan_id, team_id, team_split_percentage,
	anniversary_date, start_date, end_date`

// SaveAssignment upserts an assignment. The plan must exist and the
// assignment must not overlap another one of the same agent.
func (s *Store) SaveAssignment(ctx context.Context, a commission.Assignment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans WHERE id = ?", string(a.PlanID)).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return generic.ErrPlanNotFound
		}

		existing, err := queryAssignments(ctx, tx, `
			SELECT `+assignmentColumns+` FROM assignments
			WHERE tenant_id = ? AND agent_name = ?
		`, string(a.TenantID), string(a.AgentName))
		if err != nil {
			return err
		}
		if err := commission.CheckOverlap(existing, a); err != nil {
			return err
		}

		var endDate *string
		if a.EndDate != nil {
			e := a.EndDate.String()
			endDate = &e
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignments (`+assignmentColumns+`, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				tenant_id = excluded.tenant_id,
				agent_name = excluded.agent_name,
				plan_id = excluded.plan_id,
				team_id = excluded.team_id,
				team_split_percentage = excluded.team_split_percentage,
				anniversary_date = excluded.anniversary_date,
				start_date = excluded.start_date,
				end_date = excluded.end_date
		`,
			a.ID, string(a.TenantID), string(a.AgentName), string(a.PlanID),
			nullString(string(a.TeamID)), a.TeamSplitPercentage.String(),
			nullString(a.AnniversaryDate), a.StartDate.String(), endDate,
			time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
}

// AssignmentsForAgent returns the agent's assignments ordered by start date.
func (s *Store) AssignmentsForAgent(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]commission.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryAssignments(ctx, s.db, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE tenant_id = ? AND agent_name = ?
		ORDER BY start_date, id
	`, string(tenant), string(agent))
}

// ListAssignments returns the tenant's assignments by agent, then start date.
func (s *Store) ListAssignments(ctx context.Context, tenant generic.TenantID) ([]commission.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryAssignments(ctx, s.db, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE tenant_id = ?
		ORDER BY agent_name, start_date, id
	`, string(tenant))
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryAssignments(ctx context.Context, q querier, query string, args ...any) ([]commission.Assignment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commission.Assignment
	for rows.Next() {
		var a commission.Assignment
		var tenant, agent, plan, teamSplit, start string
		var teamID, anniversary, end sql.NullString
		if err := rows.Scan(&a.ID, &tenant, &agent, &plan, &teamID, &teamSplit,
			&anniversary, &start, &end); err != nil {
			return nil, err
		}
		a.TenantID = generic.TenantID(tenant)
		a.AgentName = generic.AgentName(agent)
		a.PlanID = generic.PlanID(plan)
		a.TeamID = generic.TeamID(teamID.String)
		a.TeamSplitPercentage = generic.MustParseDecimal(teamSplit)
		a.AnniversaryDate = anniversary.String
		if a.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if end.Valid {
			e, err := generic.ParseDate(end.String)
			if err != nil {
				return nil, err
			}
			a.EndDate = &e
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// RESULT STORE
// =============================================================================

// SaveRun replaces the derived rows of every agent in the run and records
// the run summary, atomically.
func (s *Store) SaveRun(ctx context.Context, run commission.Run) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		cleared := make(map[[2]string]bool)
		for _, o := range run.Outcomes {
			k := [2]string{string(o.TenantID), string(o.AgentName)}
			if cleared[k] {
				continue
			}
			cleared[k] = true
			for _, table := range []string{"split_results", "tier_transitions", "ytd_states"} {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM "+table+" WHERE tenant_id = ? AND agent_name = ?", k[0], k[1]); err != nil {
					return err
				}
			}
		}

		for _, o := range run.Outcomes {
			if o.Result == nil {
				continue
			}
			if err := insertBatch(ctx, tx, run.ID, o.Result); err != nil {
				return fmt.Errorf("save %s/%s: %w", o.AgentName, o.PlanID, err)
			}
		}

		sum := run.Summary()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recalc_runs (id, tenant_id, started_at, finished_at, agents, transactions, transitions, errors)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				finished_at = excluded.finished_at,
				agents = excluded.agents,
				transactions = excluded.transactions,
				transitions = excluded.transitions,
				errors = excluded.errors
		`,
			sum.ID, string(sum.TenantID),
			sum.StartedAt.UTC().Format(time.RFC3339Nano), sum.FinishedAt.UTC().Format(time.RFC3339Nano),
			sum.Agents, sum.Transactions, sum.Transitions, sum.Errors,
		)
		return err
	})
}

func insertBatch(ctx context.Context, tx *sql.Tx, runID string, b *commission.BatchResult) error {
	for _, r := range b.Results {
		fees, err := json.Marshal(r.FeeDeductions)
		if err != nil {
			return err
		}
		segments, err := json.Marshal(r.Segments)
		if err != nil {
			return err
		}
		var team sql.NullString
		if r.Team != nil {
			raw, err := json.Marshal(r.Team)
			if err != nil {
				return err
			}
			team = nullString(string(raw))
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO split_results (tenant_id, agent_name, plan_id, transaction_id, run_id, closing_date,
				gci, agent_net, company_dollar, royalty, royalty_base, ytd_before, ytd_after,
				split_type, effective_split, fees_json, segments_json, team_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			string(b.TenantID), string(b.AgentName), string(b.PlanID), string(r.TransactionID), runID,
			r.ClosingDate.String(),
			r.GrossCommissionIncome.String(), r.AgentNetCommission.String(), r.CompanyDollar.String(),
			r.RoyaltyDeducted.String(), r.RoyaltyBase.String(), r.YTDBefore.String(), r.YTDAfter.String(),
			string(r.SplitType), r.EffectiveSplit.String(), string(fees), string(segments), team,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("transaction %s stored twice: %w", r.TransactionID, err)
			}
			return err
		}
	}

	for _, ev := range b.Transitions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tier_transitions (run_id, tenant_id, agent_name, plan_id, kind,
				prev_index, prev_threshold, prev_split, new_index, new_threshold, new_split,
				ytd_amount, transaction_id, transaction_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, string(ev.TenantID), string(ev.AgentName), string(ev.PlanID), string(ev.Kind),
			ev.Previous.Index, ev.Previous.Threshold.String(), ev.Previous.SplitPercentage.String(),
			ev.New.Index, ev.New.Threshold.String(), ev.New.SplitPercentage.String(),
			ev.YTDAmount.String(), string(ev.TransactionID), ev.TransactionDate.String(),
		)
		if err != nil {
			return err
		}
	}

	for _, st := range b.PlanYears {
		fees, err := json.Marshal(st.ChargedFees)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ytd_states (tenant_id, agent_name, plan_id, plan_year, period_start, period_end,
				gci, royalty, charged_fees_json, transaction_count, last_transaction_id,
				last_transaction_date, run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id, agent_name, plan_id, plan_year) DO UPDATE SET
				gci = excluded.gci,
				royalty = excluded.royalty,
				charged_fees_json = excluded.charged_fees_json,
				transaction_count = excluded.transaction_count,
				last_transaction_id = excluded.last_transaction_id,
				last_transaction_date = excluded.last_transaction_date,
				run_id = excluded.run_id
		`,
			string(st.Key.TenantID), string(st.Key.AgentName), string(st.Key.PlanID), st.Key.PlanYear,
			st.Period.Start.String(), st.Period.End.String(),
			st.GCI.String(), st.Royalty.String(), string(fees), st.TransactionCount,
			nullString(string(st.LastTransactionID)), nullString(st.LastTransactionDate.String()),
			runID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetRun returns generic.ErrRunNotFound when no run has the ID.
func (s *Store) GetRun(ctx context.Context, id string) (commission.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum commission.RunSummary
	var tenant, started, finished string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, started_at, finished_at, agents, transactions, transitions, errors
		FROM recalc_runs WHERE id = ?
	`, id).Scan(&sum.ID, &tenant, &started, &finished, &sum.Agents, &sum.Transactions, &sum.Transitions, &sum.Errors)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, generic.ErrRunNotFound
	}
	if err != nil {
		return sum, err
	}
	sum.TenantID = generic.TenantID(tenant)
	sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	sum.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return sum, nil
}

// Results returns the agent's split results in closing-date order.
func (s *Store) Results(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]commission.SplitResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, closing_date, gci, agent_net, company_dollar, royalty, royalty_base,
			ytd_before, ytd_after, split_type, effective_split, fees_json, segments_json, team_json
		FROM split_results
		WHERE tenant_id = ? AND agent_name = ?
		ORDER BY closing_date, transaction_id
	`, string(tenant), string(agent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commission.SplitResult
	for rows.Next() {
		var r commission.SplitResult
		var txnID, closing, gci, net, company, royalty, base, before, after, splitType, effective, fees, segments string
		var team sql.NullString
		if err := rows.Scan(&txnID, &closing, &gci, &net, &company, &royalty, &base,
			&before, &after, &splitType, &effective, &fees, &segments, &team); err != nil {
			return nil, err
		}
		r.TransactionID = generic.TransactionID(txnID)
		if r.ClosingDate, err = generic.ParseDate(closing); err != nil {
			return nil, err
		}
		r.GrossCommissionIncome = generic.MustParseDecimal(gci)
		r.AgentNetCommission = generic.MustParseDecimal(net)
		r.CompanyDollar = generic.MustParseDecimal(company)
		r.RoyaltyDeducted = generic.MustParseDecimal(royalty)
		r.RoyaltyBase = generic.MustParseDecimal(base)
		r.YTDBefore = generic.MustParseDecimal(before)
		r.YTDAfter = generic.MustParseDecimal(after)
		r.SplitType = commission.SplitType(splitType)
		r.EffectiveSplit = generic.MustParseDecimal(effective)
		if err := json.Unmarshal([]byte(fees), &r.FeeDeductions); err != nil {
			return nil, fmt.Errorf("decode fees of %s: %w", txnID, err)
		}
		if err := json.Unmarshal([]byte(segments), &r.Segments); err != nil {
			return nil, fmt.Errorf("decode segments of %s: %w", txnID, err)
		}
		if team.Valid {
			r.Team = &commission.TeamSplit{}
			if err := json.Unmarshal([]byte(team.String), r.Team); err != nil {
				return nil, fmt.Errorf("decode team split of %s: %w", txnID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Transitions returns the agent's transition events in emission order.
func (s *Store) Transitions(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]commission.TierTransitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, agent_name, plan_id, kind, prev_index, prev_threshold, prev_split,
			new_index, new_threshold, new_split, ytd_amount, transaction_id, transaction_date
		FROM tier_transitions
		WHERE tenant_id = ? AND agent_name = ?
		ORDER BY seq
	`, string(tenant), string(agent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commission.TierTransitionEvent
	for rows.Next() {
		var ev commission.TierTransitionEvent
		var tenantID, agentName, planID, kind, prevThreshold, prevSplit, newThreshold, newSplit, ytd, txnID, date string
		if err := rows.Scan(&tenantID, &agentName, &planID, &kind,
			&ev.Previous.Index, &prevThreshold, &prevSplit,
			&ev.New.Index, &newThreshold, &newSplit,
			&ytd, &txnID, &date); err != nil {
			return nil, err
		}
		ev.TenantID = generic.TenantID(tenantID)
		ev.AgentName = generic.AgentName(agentName)
		ev.PlanID = generic.PlanID(planID)
		ev.Kind = commission.TransitionKind(kind)
		ev.Previous.Threshold = generic.MustParseDecimal(prevThreshold)
		ev.Previous.SplitPercentage = generic.MustParseDecimal(prevSplit)
		ev.New.Threshold = generic.MustParseDecimal(newThreshold)
		ev.New.SplitPercentage = generic.MustParseDecimal(newSplit)
		ev.YTDAmount = generic.MustParseDecimal(ytd)
		ev.TransactionID = generic.TransactionID(txnID)
		if ev.TransactionDate, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// YTD returns the agent's plan-year states ordered by plan-year start.
func (s *Store) YTD(ctx context.Context, tenant generic.TenantID, agent generic.AgentName) ([]generic.YTDState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, plan_year, period_start, period_end, gci, royalty, charged_fees_json,
			transaction_count, last_transaction_id, last_transaction_date
		FROM ytd_states
		WHERE tenant_id = ? AND agent_name = ?
		ORDER BY period_start, plan_id
	`, string(tenant), string(agent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.YTDState
	for rows.Next() {
		st := generic.YTDState{Key: generic.YTDKey{TenantID: tenant, AgentName: agent}}
		var planID, start, end, gci, royalty, fees string
		var lastID, lastDate sql.NullString
		if err := rows.Scan(&planID, &st.Key.PlanYear, &start, &end, &gci, &royalty, &fees,
			&st.TransactionCount, &lastID, &lastDate); err != nil {
			return nil, err
		}
		st.Key.PlanID = generic.PlanID(planID)
		if st.Period.Start, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if st.Period.End, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		st.GCI = generic.MustParseDecimal(gci)
		st.Royalty = generic.MustParseDecimal(royalty)
		if err := json.Unmarshal([]byte(fees), &st.ChargedFees); err != nil {
			return nil, err
		}
		st.LastTransactionID = generic.TransactionID(lastID.String)
		if lastDate.Valid {
			if st.LastTransactionDate, err = generic.ParseDate(lastDate.String); err != nil {
				return nil, err
			}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"split_results", "tier_transitions", "ytd_states", "recalc_runs", "assignments", "plans"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
