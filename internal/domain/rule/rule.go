package rule

import (
	"sort"
	"time"

	"github.com/invoice-reconciliation/internal/domain/shared"
)

// Rule is a reconciliation rule as configured for a vendor (or all vendors).
// Rules are read-only during an evaluation run.
type Rule struct {
	RuleID        string            `json:"rule_id" validate:"required"`
	RuleName      string            `json:"rule_name" validate:"required"`
	VendorCode    string            `json:"vendor_code" validate:"required"`
	EntityType    shared.EntityType `json:"entity_type" validate:"required,oneof=INVOICE LINE_ITEM"`
	RuleType      shared.RuleType   `json:"rule_type" validate:"required,oneof=HARD SOFT"`
	Priority      int               `json:"priority"`
	IsActive      bool              `json:"is_active"`
	EffectiveFrom time.Time         `json:"effective_from"`
	EffectiveTo   *time.Time        `json:"effective_to,omitempty"`
	Conditions    []Condition       `json:"conditions" validate:"dive"`
	Actions       Actions           `json:"actions"`

	// Sequence is the insertion order, used to break priority ties
	Sequence int64 `json:"-"`
	// ConfigError is set by Prepare when the rule cannot be evaluated
	ConfigError string `json:"-"`
}

// Actions is the action pair applied after a rule is evaluated
type Actions struct {
	OnMatch     shared.ActionType `json:"on_match" validate:"required,oneof=CONTINUE DISPUTED FLAG_WARNING FLAG_AS_CANCELLED_PENDING_REFUND FLAG_FOR_FUTURE_PROCESSING BLOCK_PROCESSING"`
	OnMismatch  shared.ActionType `json:"on_mismatch" validate:"required,oneof=CONTINUE DISPUTED FLAG_WARNING FLAG_AS_CANCELLED_PENDING_REFUND FLAG_FOR_FUTURE_PROCESSING BLOCK_PROCESSING"`
	DisputeType string            `json:"dispute_type,omitempty"`
	WarningType string            `json:"warning_type,omitempty"`
}

// IsEffectiveAt reports whether t falls in the half-open window [EffectiveFrom, EffectiveTo)
func (r *Rule) IsEffectiveAt(t time.Time) bool {
	if t.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && !t.Before(*r.EffectiveTo) {
		return false
	}
	return true
}

// MatchesVendor reports whether the rule targets vendorCode, directly or through the wildcard
func (r *Rule) MatchesVendor(vendorCode string) bool {
	return r.VendorCode == shared.WildcardVendorCode || r.VendorCode == vendorCode
}

// AppliesTo reports whether the rule is a candidate for an entity of the given vendor and type at asOf
func (r *Rule) AppliesTo(vendorCode string, entityType shared.EntityType, asOf time.Time) bool {
	return r.IsActive &&
		r.EntityType == entityType &&
		r.MatchesVendor(vendorCode) &&
		r.IsEffectiveAt(asOf)
}

// Valid reports whether Prepare accepted the rule
func (r *Rule) Valid() bool {
	return r.ConfigError == ""
}

// Clone returns a deep copy so snapshot holders never share mutable state
func (r *Rule) Clone() *Rule {
	c := *r
	if r.EffectiveTo != nil {
		to := *r.EffectiveTo
		c.EffectiveTo = &to
	}
	c.Conditions = make([]Condition, len(r.Conditions))
	copy(c.Conditions, r.Conditions)
	return &c
}

// SortByPriority orders rules ascending by priority, keeping insertion order for ties
func SortByPriority(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Sequence < rules[j].Sequence
	})
}

// Filter returns the rules that apply to the entity, sorted by priority
func Filter(rules []*Rule, vendorCode string, entityType shared.EntityType, asOf time.Time) []*Rule {
	var applicable []*Rule
	for _, r := range rules {
		if r.AppliesTo(vendorCode, entityType, asOf) {
			applicable = append(applicable, r)
		}
	}
	SortByPriority(applicable)
	return applicable
}
