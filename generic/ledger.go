/*
ledger.go - Year-to-date production ledger

PURPOSE:
  Tracks, per (tenant, agent, plan, plan-year), the cumulative GCI counted
  toward tier and cap thresholds, the cumulative royalty counted toward the
  royalty cap, and which once-per-period fees were already charged.

CRITICAL INVARIANTS:
  1. MONOTONIC: GCI and Royalty never decrease within a plan-year
  2. LAZY: A state is created on the first transaction of its plan-year
  3. VALUE SEMANTICS: Advance returns a new state, the receiver is untouched
  4. RESET ON ROLLOVER: A new plan-year gets a new key, hence a fresh state

Transactions are never un-applied. Corrections are made by recomputing the
whole batch from scratch, which is always safe because states are derived.

EXAMPLE FLOW:
  key := generic.YTDKey{TenantID: "t1", AgentName: "Ann", PlanID: "p1", PlanYear: "2025-01-01"}
  s0 := generic.NewYTDState(key, period)            // GCI 0
  s1 := s0.Advance(generic.YTDEntry{GCI: d(12000)}) // GCI 12000
  s2 := s1.Advance(generic.YTDEntry{GCI: d(8000)})  // GCI 20000, s1 still 12000

SEE ALSO:
  - period.go: Plan-year resolution
  - commission/batch.go: The only writer of YTD state
*/
package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// YTD STATE
// =============================================================================

// YTDKey identifies one agent's accumulation under one plan in one plan-year.
type YTDKey struct {
	TenantID  TenantID
	AgentName AgentName
	PlanID    PlanID
	PlanYear  string // Period.Key() of the plan-year
}

// YTDState is the running total for a YTDKey.
type YTDState struct {
	Key    YTDKey
	Period Period

	// GCI counted toward tier and cap thresholds.
	GCI decimal.Decimal

	// Royalty counted toward the plan's royalty cap.
	Royalty decimal.Decimal

	// ChargedFees holds sorted frequency keys of fixed fees already charged.
	ChargedFees []string

	TransactionCount    int
	LastTransactionID   TransactionID
	LastTransactionDate TimePoint
}

// YTDEntry is the effect of one transaction on a YTDState.
type YTDEntry struct {
	TransactionID TransactionID
	Date          TimePoint
	GCI           decimal.Decimal
	Royalty       decimal.Decimal
	ChargedFees   []string
}

// NewYTDState returns the empty state a plan-year starts from.
func NewYTDState(key YTDKey, period Period) YTDState {
	return YTDState{Key: key, Period: period, GCI: decimal.Zero, Royalty: decimal.Zero}
}

// IsZero reports whether the state was never initialized.
func (s YTDState) IsZero() bool {
	return s.Key == YTDKey{}
}

// HasCharged reports whether the fee frequency key was already charged.
func (s YTDState) HasCharged(feeKey string) bool {
	i := sort.SearchStrings(s.ChargedFees, feeKey)
	return i < len(s.ChargedFees) && s.ChargedFees[i] == feeKey
}

// Advance applies an entry and returns the resulting state. Negative deltas
// are ignored so the totals stay monotonic.
func (s YTDState) Advance(e YTDEntry) YTDState {
	next := s
	next.GCI = s.GCI.Add(ClampNonNegative(e.GCI))
	next.Royalty = s.Royalty.Add(ClampNonNegative(e.Royalty))
	next.ChargedFees = mergeSorted(s.ChargedFees, e.ChargedFees)
	next.TransactionCount = s.TransactionCount + 1
	next.LastTransactionID = e.TransactionID
	next.LastTransactionDate = e.Date
	return next
}

func mergeSorted(existing, added []string) []string {
	out := make([]string, 0, len(existing)+len(added))
	out = append(out, existing...)
	for _, k := range added {
		i := sort.SearchStrings(out, k)
		if i < len(out) && out[i] == k {
			continue
		}
		out = append(out, "")
		copy(out[i+1:], out[i:])
		out[i] = k
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// =============================================================================
// LEDGER - Lookup and incremental update over many keys
// =============================================================================

// Ledger holds YTD states by key. It is owned by a single goroutine; callers
// running agents in parallel give each agent its own Ledger.
type Ledger struct {
	states map[YTDKey]YTDState
}

// NewLedger seeds a ledger with prior states. Zero states are skipped.
func NewLedger(prior ...YTDState) *Ledger {
	l := &Ledger{states: make(map[YTDKey]YTDState)}
	for _, s := range prior {
		if !s.IsZero() {
			l.states[s.Key] = s
		}
	}
	return l
}

// Lookup returns the state for key and whether it exists.
func (l *Ledger) Lookup(key YTDKey) (YTDState, bool) {
	s, ok := l.states[key]
	return s, ok
}

// Get returns the state for key, creating an empty one for period if absent.
func (l *Ledger) Get(key YTDKey, period Period) YTDState {
	if s, ok := l.states[key]; ok {
		return s
	}
	s := NewYTDState(key, period)
	l.states[key] = s
	return s
}

// Apply advances the state for key by e and stores the result.
func (l *Ledger) Apply(key YTDKey, period Period, e YTDEntry) YTDState {
	next := l.Get(key, period).Advance(e)
	l.states[key] = next
	return next
}

// Snapshot returns every state ordered by plan, then plan-year.
func (l *Ledger) Snapshot() []YTDState {
	out := make([]YTDState, 0, len(l.states))
	for _, s := range l.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.TenantID != b.TenantID {
			return a.TenantID < b.TenantID
		}
		if a.AgentName != b.AgentName {
			return a.AgentName < b.AgentName
		}
		if a.PlanID != b.PlanID {
			return a.PlanID < b.PlanID
		}
		return a.PlanYear < b.PlanYear
	})
	return out
}
