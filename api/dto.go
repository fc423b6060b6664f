/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the engine's
  types from the wire contract. Keys are snake_case; money is a decimal
  string ("1666.67"); dates are "YYYY-MM-DD".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Plans:        factory.PlanDocument (shared with the plan file format)
  Assignments:  AssignmentDTO
  Transactions: TransactionDTO
  Results:      SplitResultDTO, TransitionDTO, YTDStateDTO, BatchResultDTO
  Runs:         RecalculateRequest, RecalculateResponse, RunSummaryDTO
  Scenarios:    ScenarioDTO

VALIDATION:
  Conversion to engine types parses dates and amounts and reports failures
  as *generic.InvalidInputError. Business validation stays in the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanDocument
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// ASSIGNMENTS
// =============================================================================

type AssignmentDTO struct {
	ID                  string          `json:"id,omitempty"`
	TenantID            string          `json:"tenant_id"`
	AgentName           string          `json:"agent_name"`
	PlanID              string          `json:"plan_id"`
	TeamID              string          `json:"team_id,omitempty"`
	TeamSplitPercentage decimal.Decimal `json:"team_split_percentage"`
	AnniversaryDate     string          `json:"anniversary_date,omitempty"`
	StartDate           string          `json:"start_date"`
	EndDate             string          `json:"end_date,omitempty"`
}

func (d AssignmentDTO) toAssignment() (commission.Assignment, error) {
	a := commission.Assignment{
		ID:                  d.ID,
		TenantID:            generic.TenantID(d.TenantID),
		AgentName:           generic.AgentName(d.AgentName),
		PlanID:              generic.PlanID(d.PlanID),
		TeamID:              generic.TeamID(d.TeamID),
		TeamSplitPercentage: d.TeamSplitPercentage,
		AnniversaryDate:     d.AnniversaryDate,
	}
	if d.StartDate != "" {
		start, err := parseDate("", "start_date", d.StartDate)
		if err != nil {
			return a, err
		}
		a.StartDate = start
	}
	if d.EndDate != "" {
		end, err := parseDate("", "end_date", d.EndDate)
		if err != nil {
			return a, err
		}
		a.EndDate = &end
	}
	return a, nil
}

func toAssignmentDTO(a commission.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:                  a.ID,
		TenantID:            string(a.TenantID),
		AgentName:           string(a.AgentName),
		PlanID:              string(a.PlanID),
		TeamID:              string(a.TeamID),
		TeamSplitPercentage: a.TeamSplitPercentage,
		AnniversaryDate:     a.AnniversaryDate,
		StartDate:           a.StartDate.String(),
	}
	if a.EndDate != nil {
		dto.EndDate = a.EndDate.String()
	}
	return dto
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO is a closed deal. Send either gci, or sale_price with
// commission_rate (percent per side) and side.
type TransactionDTO struct {
	ID                 string           `json:"id"`
	TenantID           string           `json:"tenant_id,omitempty"`
	AgentName          string           `json:"agent_name"`
	ClosingDate        string           `json:"closing_date"`
	Address            string           `json:"address,omitempty"`
	GCI                *decimal.Decimal `json:"gci,omitempty"`
	SalePrice          *decimal.Decimal `json:"sale_price,omitempty"`
	CommissionRate     *decimal.Decimal `json:"commission_rate,omitempty"`
	Side               string           `json:"side,omitempty"`
	ReferralPercentage decimal.Decimal  `json:"referral_percentage"`
}

func (d TransactionDTO) toTransaction() (commission.Transaction, error) {
	closing, err := parseDate(generic.TransactionID(d.ID), "closing_date", d.ClosingDate)
	if err != nil {
		return commission.Transaction{}, err
	}
	return commission.Transaction{
		ID:                 generic.TransactionID(d.ID),
		TenantID:           generic.TenantID(d.TenantID),
		AgentName:          generic.AgentName(d.AgentName),
		ClosingDate:        closing,
		Address:            d.Address,
		GCI:                d.GCI,
		SalePrice:          d.SalePrice,
		CommissionRate:     d.CommissionRate,
		Side:               commission.Side(d.Side),
		ReferralPercentage: d.ReferralPercentage,
	}, nil
}

func toTransactions(dtos []TransactionDTO) ([]commission.Transaction, error) {
	out := make([]commission.Transaction, 0, len(dtos))
	for _, d := range dtos {
		t, err := d.toTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseDate(txn generic.TransactionID, field, value string) (generic.TimePoint, error) {
	tp, err := generic.ParseDate(value)
	if err != nil {
		return tp, &generic.InvalidInputError{TransactionID: txn, Field: field, Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return tp, nil
}

// =============================================================================
// RESULTS
// =============================================================================

type SegmentDTO struct {
	From            decimal.Decimal `json:"from"`
	To              decimal.Decimal `json:"to"`
	TierIndex       int             `json:"tier_index"`
	SplitPercentage decimal.Decimal `json:"split_percentage"`
	PostCap         bool            `json:"post_cap"`
}

type FeeDTO struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type TeamSplitDTO struct {
	TeamSplitPercentage decimal.Decimal `json:"team_split_percentage"`
	AgentShare          decimal.Decimal `json:"agent_share"`
	TeamLeadShare       decimal.Decimal `json:"team_lead_share"`
}

// SplitResultDTO is one transaction's split.
type SplitResultDTO struct {
	TransactionID         string          `json:"transaction_id"`
	ClosingDate           string          `json:"closing_date"`
	GrossCommissionIncome decimal.Decimal `json:"gross_commission_income"`
	AgentNetCommission    decimal.Decimal `json:"agent_net_commission"`
	CompanyDollar         decimal.Decimal `json:"company_dollar"`
	RoyaltyDeducted       decimal.Decimal `json:"royalty_deducted"`
	RoyaltyBase           decimal.Decimal `json:"royalty_base"`
	FeeDeductions         []FeeDTO        `json:"fee_deductions"`
	TotalFees             decimal.Decimal `json:"total_fees"`
	YTDBefore             decimal.Decimal `json:"ytd_before"`
	YTDAfter              decimal.Decimal `json:"ytd_after"`
	SplitType             string          `json:"split_type"`
	EffectiveSplit        decimal.Decimal `json:"effective_split"`
	Segments              []SegmentDTO    `json:"segments"`
	Team                  *TeamSplitDTO   `json:"team,omitempty"`
}

func toSplitResultDTO(r commission.SplitResult) SplitResultDTO {
	dto := SplitResultDTO{
		TransactionID:         string(r.TransactionID),
		ClosingDate:           r.ClosingDate.String(),
		GrossCommissionIncome: r.GrossCommissionIncome,
		AgentNetCommission:    r.AgentNetCommission,
		CompanyDollar:         r.CompanyDollar,
		RoyaltyDeducted:       r.RoyaltyDeducted,
		RoyaltyBase:           r.RoyaltyBase,
		FeeDeductions:         make([]FeeDTO, len(r.FeeDeductions)),
		TotalFees:             r.TotalFees(),
		YTDBefore:             r.YTDBefore,
		YTDAfter:              r.YTDAfter,
		SplitType:             string(r.SplitType),
		EffectiveSplit:        r.EffectiveSplit,
		Segments:              make([]SegmentDTO, len(r.Segments)),
	}
	for i, f := range r.FeeDeductions {
		dto.FeeDeductions[i] = FeeDTO{Name: f.Name, Type: string(f.Type), Amount: f.Amount}
	}
	for i, s := range r.Segments {
		dto.Segments[i] = SegmentDTO{From: s.From, To: s.To, TierIndex: s.TierIndex, SplitPercentage: s.SplitPercentage, PostCap: s.PostCap}
	}
	if r.Team != nil {
		dto.Team = &TeamSplitDTO{
			TeamSplitPercentage: r.Team.TeamSplitPercentage,
			AgentShare:          r.Team.AgentShare,
			TeamLeadShare:       r.Team.TeamLeadShare,
		}
	}
	return dto
}

type TierRefDTO struct {
	Index           int             `json:"index"`
	Threshold       decimal.Decimal `json:"threshold"`
	SplitPercentage decimal.Decimal `json:"split_percentage"`
}

// TransitionDTO is a tier or cap crossing.
type TransitionDTO struct {
	Kind            string          `json:"kind"`
	TenantID        string          `json:"tenant_id"`
	AgentName       string          `json:"agent_name"`
	PlanID          string          `json:"plan_id"`
	Previous        TierRefDTO      `json:"previous"`
	New             TierRefDTO      `json:"new"`
	YTDAmount       decimal.Decimal `json:"ytd_amount"`
	TransactionID   string          `json:"transaction_id"`
	TransactionDate string          `json:"transaction_date"`
}

func toTransitionDTOs(events []commission.TierTransitionEvent) []TransitionDTO {
	out := make([]TransitionDTO, len(events))
	for i, ev := range events {
		out[i] = TransitionDTO{
			Kind:            string(ev.Kind),
			TenantID:        string(ev.TenantID),
			AgentName:       string(ev.AgentName),
			PlanID:          string(ev.PlanID),
			Previous:        TierRefDTO{Index: ev.Previous.Index, Threshold: ev.Previous.Threshold, SplitPercentage: ev.Previous.SplitPercentage},
			New:             TierRefDTO{Index: ev.New.Index, Threshold: ev.New.Threshold, SplitPercentage: ev.New.SplitPercentage},
			YTDAmount:       ev.YTDAmount,
			TransactionID:   string(ev.TransactionID),
			TransactionDate: ev.TransactionDate.String(),
		}
	}
	return out
}

// YTDStateDTO is an agent's accumulation in one plan-year.
type YTDStateDTO struct {
	PlanID              string          `json:"plan_id"`
	PlanYearStart       string          `json:"plan_year_start"`
	PlanYearEnd         string          `json:"plan_year_end"`
	GCI                 decimal.Decimal `json:"gci"`
	Royalty             decimal.Decimal `json:"royalty"`
	ChargedFees         []string        `json:"charged_fees"`
	TransactionCount    int             `json:"transaction_count"`
	LastTransactionID   string          `json:"last_transaction_id,omitempty"`
	LastTransactionDate string          `json:"last_transaction_date,omitempty"`
}

func toYTDStateDTOs(states []generic.YTDState) []YTDStateDTO {
	out := make([]YTDStateDTO, len(states))
	for i, s := range states {
		out[i] = YTDStateDTO{
			PlanID:              string(s.Key.PlanID),
			PlanYearStart:       s.Period.Start.String(),
			PlanYearEnd:         s.Period.End.String(),
			GCI:                 s.GCI,
			Royalty:             s.Royalty,
			ChargedFees:         append([]string{}, s.ChargedFees...),
			TransactionCount:    s.TransactionCount,
			LastTransactionID:   string(s.LastTransactionID),
			LastTransactionDate: s.LastTransactionDate.String(),
		}
	}
	return out
}

// PriorYTDDTO seeds a stateless calculation with production already
// recorded elsewhere in the plan-year containing PlanYearDate.
type PriorYTDDTO struct {
	PlanYearDate string          `json:"plan_year_date"`
	GCI          decimal.Decimal `json:"gci"`
	Royalty      decimal.Decimal `json:"royalty"`
	ChargedFees  []string        `json:"charged_fees,omitempty"`
}

type TransactionErrorDTO struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

func toTransactionErrorDTOs(errs []commission.TransactionError) []TransactionErrorDTO {
	out := make([]TransactionErrorDTO, len(errs))
	for i, e := range errs {
		out[i] = TransactionErrorDTO{TransactionID: string(e.TransactionID), Error: e.Err.Error()}
	}
	return out
}

// BatchResultDTO is everything one agent's batch produced.
type BatchResultDTO struct {
	TenantID    string                `json:"tenant_id"`
	AgentName   string                `json:"agent_name"`
	PlanID      string                `json:"plan_id"`
	Results     []SplitResultDTO      `json:"results"`
	Transitions []TransitionDTO       `json:"transitions"`
	PlanYears   []YTDStateDTO         `json:"plan_years"`
	Errors      []TransactionErrorDTO `json:"errors"`
}

func toBatchResultDTO(b *commission.BatchResult) BatchResultDTO {
	dto := BatchResultDTO{
		TenantID:    string(b.TenantID),
		AgentName:   string(b.AgentName),
		PlanID:      string(b.PlanID),
		Results:     make([]SplitResultDTO, len(b.Results)),
		Transitions: toTransitionDTOs(b.Transitions),
		PlanYears:   toYTDStateDTOs(b.PlanYears),
		Errors:      toTransactionErrorDTOs(b.Errors),
	}
	for i, r := range b.Results {
		dto.Results[i] = toSplitResultDTO(r)
	}
	return dto
}

// =============================================================================
// CALCULATE / RECALCULATE
// =============================================================================

// CalculateRequest splits transactions without persisting anything. The plan
// is given inline or by plan_id; the assignment defaults to an open-ended,
// calendar-year one.
type CalculateRequest struct {
	Plan         *factory.PlanDocument `json:"plan,omitempty"`
	PlanID       string                `json:"plan_id,omitempty"`
	Assignment   *AssignmentDTO        `json:"assignment,omitempty"`
	Transactions []TransactionDTO      `json:"transactions"`
	PriorYTD     *PriorYTDDTO          `json:"prior_ytd,omitempty"`
}

type RecalculateRequest struct {
	Transactions []TransactionDTO `json:"transactions"`
}

type RunSummaryDTO struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Agents       int       `json:"agents"`
	Transactions int       `json:"transactions"`
	Transitions  int       `json:"transitions"`
	Errors       int       `json:"errors"`
}

func toRunSummaryDTO(s commission.RunSummary) RunSummaryDTO {
	return RunSummaryDTO{
		ID:           s.ID,
		TenantID:     string(s.TenantID),
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		Agents:       s.Agents,
		Transactions: s.Transactions,
		Transitions:  s.Transitions,
		Errors:       s.Errors,
	}
}

// AgentOutcomeDTO summarizes one agent batch of a run.
type AgentOutcomeDTO struct {
	AgentName    string                `json:"agent_name"`
	PlanID       string                `json:"plan_id"`
	Transactions int                   `json:"transactions"`
	Transitions  []TransitionDTO       `json:"transitions"`
	Errors       []TransactionErrorDTO `json:"errors"`
	Error        string                `json:"error,omitempty"`
}

type RecalculateResponse struct {
	Run      RunSummaryDTO         `json:"run"`
	Agents   []AgentOutcomeDTO     `json:"agents"`
	Rejected []TransactionErrorDTO `json:"rejected"`
}

func toRecalculateResponse(res *RecalcResult) RecalculateResponse {
	resp := RecalculateResponse{
		Run:      toRunSummaryDTO(res.Run.Summary()),
		Agents:   make([]AgentOutcomeDTO, len(res.Run.Outcomes)),
		Rejected: toTransactionErrorDTOs(res.Rejected),
	}
	for i, o := range res.Run.Outcomes {
		dto := AgentOutcomeDTO{
			AgentName:   string(o.AgentName),
			PlanID:      string(o.PlanID),
			Transitions: []TransitionDTO{},
			Errors:      []TransactionErrorDTO{},
		}
		if o.Err != nil {
			dto.Error = o.Err.Error()
		}
		if o.Result != nil {
			dto.Transactions = len(o.Result.Results)
			dto.Transitions = toTransitionDTOs(o.Result.Transitions)
			dto.Errors = toTransactionErrorDTOs(o.Result.Errors)
		}
		resp.Agents[i] = dto
	}
	return resp
}

// =============================================================================
// MISC
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
