package engine

import (
	"time"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// severity orders statuses; ERROR sits above the ladder
var severity = map[shared.ValidationStatus]int{
	shared.ValidationStatusPending:                0,
	shared.ValidationStatusPassed:                 1,
	shared.ValidationStatusWarning:                2,
	shared.ValidationStatusFutureProcessing:       3,
	shared.ValidationStatusCancelledPendingRefund: 4,
	shared.ValidationStatusFailed:                 5,
	shared.ValidationStatusDisputed:               6,
	shared.ValidationStatusBlocked:                7,
	shared.ValidationStatusError:                  8,
}

var actionStatus = map[shared.ActionType]shared.ValidationStatus{
	shared.ActionBlockProcessing:              shared.ValidationStatusBlocked,
	shared.ActionDisputed:                     shared.ValidationStatusDisputed,
	shared.ActionFlagAsCancelledPendingRefund: shared.ValidationStatusCancelledPendingRefund,
	shared.ActionFlagForFutureProcessing:      shared.ValidationStatusFutureProcessing,
	shared.ActionFlagWarning:                  shared.ValidationStatusWarning,
}

// MoreSevere returns the more severe of a and b
func MoreSevere(a, b shared.ValidationStatus) shared.ValidationStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// StatusForAction maps a resolved action to the status it implies; CONTINUE implies none
func StatusForAction(action shared.ActionType) (shared.ValidationStatus, bool) {
	s, ok := actionStatus[action]
	return s, ok
}

// TallyStatus derives the status from rule results alone
func TallyStatus(results []invoice.RuleResult) shared.ValidationStatus {
	status := shared.ValidationStatusPassed
	for _, r := range results {
		switch {
		case r.RuleType == shared.RuleTypeHard && r.Result == shared.ResultFailed:
			return shared.ValidationStatusFailed
		case r.RuleType == shared.RuleTypeSoft && r.Result != shared.ResultPassed:
			status = shared.ValidationStatusWarning
		}
	}
	return status
}

// EntityStatus combines the tally with the status implied by the resolved action
func EntityStatus(results []invoice.RuleResult, action shared.ActionType) shared.ValidationStatus {
	status := TallyStatus(results)
	if s, ok := StatusForAction(action); ok {
		status = MoreSevere(status, s)
	}
	return status
}

// AggregateInvoice folds line item results and the invoice-level result into the invoice status.
// Line items are counted in the order given; the dispute type comes from the first disputed one.
func AggregateInvoice(inv *invoice.Invoice, lineItems []*invoice.ValidationResult, invoiceResult *invoice.ValidationResult, now time.Time) *invoice.ReconciliationStatus {
	status := &invoice.ReconciliationStatus{
		InvoiceID:          inv.ID,
		VendorCode:         inv.VendorCode,
		Status:             shared.ValidationStatusPassed,
		TotalLineItems:     len(lineItems),
		StatusSummary:      map[shared.ValidationStatus]int{},
		DisputeTypeSummary: map[string]int{},
		InvoiceValidation:  invoiceResult,
		ApprovalStatus:     shared.ApprovalStatusPending,
		EvaluatedAt:        now,
	}

	for _, li := range lineItems {
		status.StatusSummary[li.OverallStatus]++
		if li.OverallStatus == shared.ValidationStatusDisputed {
			if li.DisputeType != "" {
				status.DisputeTypeSummary[li.DisputeType]++
			}
			if status.DisputeType == "" {
				status.DisputeType = li.DisputeType
			}
		}
		status.Status = MoreSevere(status.Status, li.OverallStatus)
	}

	if invoiceResult != nil {
		status.Status = MoreSevere(status.Status, invoiceResult.OverallStatus)
		if status.DisputeType == "" && invoiceResult.OverallStatus == shared.ValidationStatusDisputed {
			status.DisputeType = invoiceResult.DisputeType
		}
	}
	if status.Status != shared.ValidationStatusDisputed {
		status.DisputeType = ""
	}
	return status
}
