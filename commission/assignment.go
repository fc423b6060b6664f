/*
assignment.go - Agent-to-plan mapping with effective dates

PURPOSE:
  An agent is paid under exactly one plan at any date. Assignments carry the
  effective window, the optional team membership and the optional
  anniversary that moves the agent's plan-year off the calendar year.

KEY CONCEPTS:
  Assignment:
    Links (tenant, agent) to a plan with:
    - Effective dates (StartDate, optional EndDate)
    - Team membership and the team lead's share of the agent's net
    - AnniversaryDate (MM-DD) for anniversary plan-years

  ResolveAssignment:
    Picks the one assignment active at a date. Zero matches is
    ErrAssignmentNotFound, two or more is an AmbiguousAssignmentError.

  CheckOverlap:
    Rejects a new assignment whose window overlaps an existing one for the
    same agent. Repositories call it on save so ambiguity is caught early.

SEE ALSO:
  - batch.go: Uses the assignment to scope a batch
  - team.go: Applies TeamSplitPercentage
*/
package commission

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// ASSIGNMENT
// =============================================================================

// Assignment links an agent to a plan for a date window.
type Assignment struct {
	ID        string
	TenantID  generic.TenantID
	AgentName generic.AgentName
	PlanID    generic.PlanID

	TeamID              generic.TeamID
	TeamSplitPercentage decimal.Decimal // team lead's share of agent net, 0-100

	// AnniversaryDate is "MM-DD"; empty means calendar plan-years.
	AnniversaryDate string

	StartDate generic.TimePoint
	EndDate   *generic.TimePoint // nil = open-ended
}

// IsActive returns true if the assignment is active at the given date.
func (a Assignment) IsActive(at generic.TimePoint) bool {
	if at.Before(a.StartDate) {
		return false
	}
	if a.EndDate != nil && at.After(*a.EndDate) {
		return false
	}
	return true
}

// HasTeam reports whether the agent's net is shared with a team lead.
func (a Assignment) HasTeam() bool {
	return a.TeamID != "" && a.TeamSplitPercentage.IsPositive()
}

// Anniversary parses AnniversaryDate. Nil means calendar plan-years.
func (a Assignment) Anniversary() (*generic.MonthDay, error) {
	if a.AnniversaryDate == "" {
		return nil, nil
	}
	md, err := generic.ParseMonthDay(a.AnniversaryDate)
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// Validate checks the assignment's own fields.
func (a Assignment) Validate() error {
	invalid := func(field, value, reason string) error {
		return &generic.InvalidInputError{Field: field, Value: value, Reason: reason}
	}
	switch {
	case a.TenantID == "":
		return invalid("tenant_id", "", "required")
	case a.AgentName == "":
		return invalid("agent_name", "", "required")
	case a.PlanID == "":
		return invalid("plan_id", "", "required")
	case a.StartDate.IsZero():
		return invalid("start_date", "", "required")
	case a.EndDate != nil && a.EndDate.Before(a.StartDate):
		return invalid("end_date", a.EndDate.String(), "before start_date")
	case !generic.IsPercentage(a.TeamSplitPercentage):
		return invalid("team_split_percentage", a.TeamSplitPercentage.String(), "outside [0,100]")
	case a.TeamSplitPercentage.IsPositive() && a.TeamID == "":
		return invalid("team_id", "", "required when team_split_percentage is set")
	}
	if _, err := a.Anniversary(); err != nil {
		return err
	}
	return nil
}

func (a Assignment) overlaps(b Assignment) bool {
	// Windows [aStart, aEnd] and [bStart, bEnd] intersect.
	if a.EndDate != nil && a.EndDate.Before(b.StartDate) {
		return false
	}
	if b.EndDate != nil && b.EndDate.Before(a.StartDate) {
		return false
	}
	return true
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveAssignment returns the single assignment for tenant/agent active at
// the given date.
func ResolveAssignment(assignments []Assignment, tenant generic.TenantID, agent generic.AgentName, at generic.TimePoint) (Assignment, error) {
	var active []Assignment
	for _, a := range assignments {
		if a.TenantID == tenant && a.AgentName == agent && a.IsActive(at) {
			active = append(active, a)
		}
	}
	switch len(active) {
	case 0:
		return Assignment{}, fmt.Errorf("agent %s on %s: %w", agent, at, generic.ErrAssignmentNotFound)
	case 1:
		return active[0], nil
	default:
		return Assignment{}, ambiguous(tenant, agent, at, active)
	}
}

// CheckOverlap returns an AmbiguousAssignmentError if candidate's window
// overlaps any existing assignment for the same agent. An existing
// assignment with the same ID is the one being replaced and is ignored.
func CheckOverlap(existing []Assignment, candidate Assignment) error {
	var clash []Assignment
	for _, a := range existing {
		if a.ID == candidate.ID || a.TenantID != candidate.TenantID || a.AgentName != candidate.AgentName {
			continue
		}
		if a.overlaps(candidate) {
			clash = append(clash, a)
		}
	}
	if len(clash) == 0 {
		return nil
	}
	return ambiguous(candidate.TenantID, candidate.AgentName, candidate.StartDate, append(clash, candidate))
}

func ambiguous(tenant generic.TenantID, agent generic.AgentName, at generic.TimePoint, active []Assignment) error {
	ids := make([]generic.PlanID, len(active))
	for i, a := range active {
		ids[i] = a.PlanID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &generic.AmbiguousAssignmentError{TenantID: tenant, AgentName: agent, At: at, PlanIDs: ids}
}
