package engine

import (
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// actionRank orders actions from weakest to strongest
var actionRank = map[shared.ActionType]int{
	shared.ActionContinue:                     0,
	shared.ActionFlagWarning:                  1,
	shared.ActionFlagForFutureProcessing:      2,
	shared.ActionFlagAsCancelledPendingRefund: 3,
	shared.ActionDisputed:                     4,
	shared.ActionBlockProcessing:              5,
}

// ActionResolver keeps the strongest action fired so far
type ActionResolver struct {
	action      shared.ActionType
	disputeType string
	warningType string
}

// NewActionResolver starts from CONTINUE
func NewActionResolver() *ActionResolver {
	return &ActionResolver{action: shared.ActionContinue}
}

// Observe records an action fired by a rule. The dispute and warning types follow the
// rule that set the winning action; ties keep the earlier rule's types.
func (r *ActionResolver) Observe(action shared.ActionType, actions rule.Actions) {
	if actionRank[action] <= actionRank[r.action] {
		return
	}
	r.action = action
	r.disputeType = actions.DisputeType
	r.warningType = actions.WarningType
}

// Action is the winning action
func (r *ActionResolver) Action() shared.ActionType {
	return r.action
}

// DisputeType is the dispute type of the rule that produced the winning action
func (r *ActionResolver) DisputeType() string {
	return r.disputeType
}

// WarningType is the warning type of the rule that produced the winning action
func (r *ActionResolver) WarningType() string {
	return r.warningType
}

// StrongerAction returns the higher precedence of a and b
func StrongerAction(a, b shared.ActionType) shared.ActionType {
	if actionRank[b] > actionRank[a] {
		return b
	}
	return a
}
