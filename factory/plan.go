/*
Package factory converts plan documents (JSON, YAML) to commission plans and back.

PURPOSE:
  Brokerage administrators author plans as documents. This package is the
  only place the document shape is known; the engine sees validated
  commission.Plan values and the store persists the JSON form.

JSON FORMAT:
  {
    "id": "sliding-2025",
    "name": "Sliding scale with cap",
    "use_sliding": true,
    "tiers": [
      {"threshold_ytd": "0", "split_percentage": "60"},
      {"threshold_ytd": "50000", "split_percentage": "70"}
    ],
    "cap_amount": "90000",
    "post_cap_split": "100",
    "deductions": [
      {"name": "transaction_fee", "amount": "395", "type": "fixed", "frequency": "per_transaction"},
      {"name": "e_and_o", "amount": "1", "type": "percentage"}
    ],
    "royalty_percentage": "6",
    "royalty_cap": "3000"
  }

  Amounts may be JSON numbers or strings; strings avoid float rounding.

YAML FORMAT:
  Same keys. A seed file holds a list under "plans:".

SEE ALSO:
  - presets.go: Ready-made plan documents
  - commission/plan.go: The validated plan model
  - store/sqlite: Persists plans as JSON documents
*/
package factory

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// PlanDocument is the serialized form of a commission plan.
type PlanDocument struct {
	ID                string              `json:"id" yaml:"id"`
	TenantID          string              `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Name              string              `json:"name" yaml:"name"`
	SplitPercentage   decimal.Decimal     `json:"split_percentage" yaml:"split_percentage"`
	CapAmount         decimal.Decimal     `json:"cap_amount" yaml:"cap_amount"`
	PostCapSplit      decimal.Decimal     `json:"post_cap_split" yaml:"post_cap_split"`
	UseSliding        bool                `json:"use_sliding" yaml:"use_sliding"`
	Tiers             []TierDocument      `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	Deductions        []DeductionDocument `json:"deductions,omitempty" yaml:"deductions,omitempty"`
	RoyaltyPercentage decimal.Decimal     `json:"royalty_percentage" yaml:"royalty_percentage"`
	RoyaltyCap        decimal.Decimal     `json:"royalty_cap" yaml:"royalty_cap"`
}

type TierDocument struct {
	ThresholdYTD    decimal.Decimal `json:"threshold_ytd" yaml:"threshold_ytd"`
	SplitPercentage decimal.Decimal `json:"split_percentage" yaml:"split_percentage"`
}

type DeductionDocument struct {
	Name      string          `json:"name" yaml:"name"`
	Amount    decimal.Decimal `json:"amount" yaml:"amount"`
	Type      string          `json:"type" yaml:"type"`
	Frequency string          `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// planSet is the YAML seed file layout.
type planSet struct {
	Plans []PlanDocument `yaml:"plans" json:"plans"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParsePlanJSON decodes and validates a JSON plan document.
func ParsePlanJSON(data []byte) (*commission.Plan, error) {
	var doc PlanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &generic.InvalidPlanError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return doc.ToPlan()
}

// ParsePlanYAML decodes and validates a YAML plan document.
func ParsePlanYAML(data []byte) (*commission.Plan, error) {
	var doc PlanDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &generic.InvalidPlanError{Reason: fmt.Sprintf("malformed YAML: %v", err)}
	}
	return doc.ToPlan()
}

// ParsePlanSet decodes a seed file with a top-level "plans" list. YAML is a
// superset of JSON, so both formats are accepted.
func ParsePlanSet(data []byte) ([]commission.Plan, error) {
	var set planSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, &generic.InvalidPlanError{Reason: fmt.Sprintf("malformed plan set: %v", err)}
	}
	plans := make([]commission.Plan, 0, len(set.Plans))
	for i, doc := range set.Plans {
		p, err := doc.ToPlan()
		if err != nil {
			return nil, fmt.Errorf("plan %d: %w", i, err)
		}
		plans = append(plans, *p)
	}
	return plans, nil
}

// ToPlan converts the document to a validated plan.
func (doc PlanDocument) ToPlan() (*commission.Plan, error) {
	if doc.ID == "" {
		return nil, &generic.InvalidPlanError{Reason: "id is required"}
	}
	plan := &commission.Plan{
		ID:                generic.PlanID(doc.ID),
		TenantID:          generic.TenantID(doc.TenantID),
		Name:              doc.Name,
		SplitPercentage:   doc.SplitPercentage,
		CapAmount:         doc.CapAmount,
		PostCapSplit:      doc.PostCapSplit,
		UseSliding:        doc.UseSliding,
		RoyaltyPercentage: doc.RoyaltyPercentage,
		RoyaltyCap:        doc.RoyaltyCap,
	}
	for _, t := range doc.Tiers {
		plan.Tiers = append(plan.Tiers, commission.Tier{
			ThresholdYTD:    t.ThresholdYTD,
			SplitPercentage: t.SplitPercentage,
		})
	}
	for _, d := range doc.Deductions {
		plan.Deductions = append(plan.Deductions, commission.Deduction{
			Name:      d.Name,
			Amount:    d.Amount,
			Type:      commission.DeductionType(d.Type),
			Frequency: commission.Frequency(d.Frequency),
		})
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// ToDocument converts a plan to its document form.
func ToDocument(plan *commission.Plan) PlanDocument {
	doc := PlanDocument{
		ID:                string(plan.ID),
		TenantID:          string(plan.TenantID),
		Name:              plan.Name,
		SplitPercentage:   plan.SplitPercentage,
		CapAmount:         plan.CapAmount,
		PostCapSplit:      plan.PostCapSplit,
		UseSliding:        plan.UseSliding,
		RoyaltyPercentage: plan.RoyaltyPercentage,
		RoyaltyCap:        plan.RoyaltyCap,
	}
	for _, t := range plan.Tiers {
		doc.Tiers = append(doc.Tiers, TierDocument{ThresholdYTD: t.ThresholdYTD, SplitPercentage: t.SplitPercentage})
	}
	for _, d := range plan.Deductions {
		doc.Deductions = append(doc.Deductions, DeductionDocument{
			Name:      d.Name,
			Amount:    d.Amount,
			Type:      string(d.Type),
			Frequency: string(d.Frequency),
		})
	}
	return doc
}

// MarshalPlanJSON encodes a plan as a JSON document.
func MarshalPlanJSON(plan *commission.Plan) ([]byte, error) {
	return json.Marshal(ToDocument(plan))
}

// MarshalPlanYAML encodes a plan as a YAML document.
func MarshalPlanYAML(plan *commission.Plan) ([]byte, error) {
	return yaml.Marshal(ToDocument(plan))
}
