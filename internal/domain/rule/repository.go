package rule

import (
	"context"
	"strings"
	"time"

	"github.com/invoice-reconciliation/internal/domain/shared"
)

// Repository is the read side of the rule store used by the engine
type Repository interface {
	// FindApplicable returns active rules for the vendor (including wildcard rules) and entity type
	// that are effective at asOf, ordered by priority then insertion order.
	FindApplicable(ctx context.Context, vendorCode string, entityType shared.EntityType, asOf time.Time) ([]*Rule, error)
	GetByID(ctx context.Context, ruleID string) (*Rule, error)
}

// ErrRuleNotFound indicates a missing rule
type ErrRuleNotFound struct {
	RuleID string
}

func (e ErrRuleNotFound) Error() string {
	return "reconciliation rule not found: " + e.RuleID
}

// ErrInvalidRule lists every problem found while preparing a rule
type ErrInvalidRule struct {
	RuleID   string
	Problems []string
}

func (e ErrInvalidRule) Error() string {
	return "invalid reconciliation rule " + e.RuleID + ": " + strings.Join(e.Problems, "; ")
}

// ErrDuplicateRule indicates rule id uniqueness violation
type ErrDuplicateRule struct {
	RuleID string
}

func (e ErrDuplicateRule) Error() string {
	return "reconciliation rule already exists: " + e.RuleID
}

// ErrSupersedeConflict indicates a rule cannot be replaced by the given version
type ErrSupersedeConflict struct {
	RuleID string
	Reason string
}

func (e ErrSupersedeConflict) Error() string {
	return "cannot supersede reconciliation rule " + e.RuleID + ": " + e.Reason
}

// CheckReplacement reports why replacement cannot supersede previous, if it cannot.
// A replacement targets the same vendor and entity type and takes effect inside
// the previous rule's effective window.
func CheckReplacement(previous, replacement *Rule) error {
	switch {
	case replacement.RuleID == previous.RuleID:
		return ErrSupersedeConflict{RuleID: previous.RuleID, Reason: "replacement needs its own rule_id"}
	case replacement.VendorCode != previous.VendorCode || replacement.EntityType != previous.EntityType:
		return ErrSupersedeConflict{RuleID: previous.RuleID, Reason: "replacement must keep vendor_code and entity_type"}
	case !replacement.EffectiveFrom.After(previous.EffectiveFrom):
		return ErrSupersedeConflict{RuleID: previous.RuleID, Reason: "replacement must take effect after the current version"}
	case previous.EffectiveTo != nil && !replacement.EffectiveFrom.Before(*previous.EffectiveTo):
		return ErrSupersedeConflict{RuleID: previous.RuleID, Reason: "current version has already ended"}
	}
	return nil
}
