package commission

import (
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// TEAM OVERLAY
// =============================================================================

// TeamSplit divides an agent's net commission with the team lead.
type TeamSplit struct {
	TeamSplitPercentage decimal.Decimal
	AgentShare          decimal.Decimal
	TeamLeadShare       decimal.Decimal
}

// ApplyTeamSplit gives the team lead pct percent of the agent's net
// commission. The GCI, the company dollar, royalty and fees are untouched.
// A pct of zero (no team) leaves the whole net with the agent.
func ApplyTeamSplit(result *SplitResult, pct decimal.Decimal) TeamSplit {
	net := result.AgentNetCommission
	if !pct.IsPositive() {
		return TeamSplit{TeamSplitPercentage: decimal.Zero, AgentShare: net, TeamLeadShare: decimal.Zero}
	}
	pct = decimal.Min(pct, generic.Hundred)
	lead := generic.RoundCents(generic.Percent(net, pct))
	return TeamSplit{
		TeamSplitPercentage: pct,
		AgentShare:          net.Sub(lead),
		TeamLeadShare:       lead,
	}
}
