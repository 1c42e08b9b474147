package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

func TestActionResolver(t *testing.T) {
	t.Run("StartsWithContinue", func(t *testing.T) {
		r := NewActionResolver()
		assert.Equal(t, shared.ActionContinue, r.Action())
		assert.Empty(t, r.DisputeType())
	})

	t.Run("Precedence", func(t *testing.T) {
		order := []shared.ActionType{
			shared.ActionContinue,
			shared.ActionFlagWarning,
			shared.ActionFlagForFutureProcessing,
			shared.ActionFlagAsCancelledPendingRefund,
			shared.ActionDisputed,
			shared.ActionBlockProcessing,
		}
		for i := 1; i < len(order); i++ {
			assert.Equal(t, order[i], StrongerAction(order[i-1], order[i]))
			assert.Equal(t, order[i], StrongerAction(order[i], order[i-1]))
		}
	})

	t.Run("TypesFromFirstWinningRule", func(t *testing.T) {
		r := NewActionResolver()
		r.Observe(shared.ActionFlagWarning, rule.Actions{WarningType: "NAME"})
		r.Observe(shared.ActionDisputed, rule.Actions{DisputeType: "RATE", WarningType: "RATE_WARN"})
		r.Observe(shared.ActionDisputed, rule.Actions{DisputeType: "TAX", WarningType: "TAX_WARN"})
		r.Observe(shared.ActionFlagWarning, rule.Actions{WarningType: "LATER"})

		assert.Equal(t, shared.ActionDisputed, r.Action())
		assert.Equal(t, "RATE", r.DisputeType())
		assert.Equal(t, "RATE_WARN", r.WarningType())
	})

	t.Run("WarningTypeDroppedWhenOutranked", func(t *testing.T) {
		r := NewActionResolver()
		r.Observe(shared.ActionFlagWarning, rule.Actions{WarningType: "SOFT_NAME"})
		r.Observe(shared.ActionDisputed, rule.Actions{DisputeType: "RATE"})

		assert.Equal(t, "RATE", r.DisputeType())
		assert.Empty(t, r.WarningType())
	})

	t.Run("WarningWins", func(t *testing.T) {
		r := NewActionResolver()
		r.Observe(shared.ActionContinue, rule.Actions{})
		r.Observe(shared.ActionFlagWarning, rule.Actions{WarningType: "SOFT_NAME"})
		r.Observe(shared.ActionFlagWarning, rule.Actions{WarningType: "LATER"})

		assert.Equal(t, shared.ActionFlagWarning, r.Action())
		assert.Equal(t, "SOFT_NAME", r.WarningType())
		assert.Empty(t, r.DisputeType())
	})

	t.Run("BlockHidesDisputeType", func(t *testing.T) {
		r := NewActionResolver()
		r.Observe(shared.ActionDisputed, rule.Actions{DisputeType: "RATE"})
		r.Observe(shared.ActionBlockProcessing, rule.Actions{})

		assert.Equal(t, shared.ActionBlockProcessing, r.Action())
		assert.Empty(t, r.DisputeType())
	})
}

func TestEntityStatus(t *testing.T) {
	hardFailed := invoice.RuleResult{RuleType: shared.RuleTypeHard, Result: shared.ResultFailed}
	softWarning := invoice.RuleResult{RuleType: shared.RuleTypeSoft, Result: shared.ResultWarning}
	passed := invoice.RuleResult{RuleType: shared.RuleTypeHard, Result: shared.ResultPassed}

	tests := []struct {
		name    string
		results []invoice.RuleResult
		action  shared.ActionType
		want    shared.ValidationStatus
	}{
		{"NoRules", nil, shared.ActionContinue, shared.ValidationStatusPassed},
		{"AllPassed", []invoice.RuleResult{passed}, shared.ActionContinue, shared.ValidationStatusPassed},
		{"SoftWarning", []invoice.RuleResult{passed, softWarning}, shared.ActionContinue, shared.ValidationStatusWarning},
		{"HardFailure", []invoice.RuleResult{softWarning, hardFailed}, shared.ActionContinue, shared.ValidationStatusFailed},
		{"ActionRaisesStatus", []invoice.RuleResult{softWarning}, shared.ActionFlagAsCancelledPendingRefund, shared.ValidationStatusCancelledPendingRefund},
		{"TallyBeatsWeakerAction", []invoice.RuleResult{hardFailed}, shared.ActionFlagForFutureProcessing, shared.ValidationStatusFailed},
		{"DisputedBeatsFailed", []invoice.RuleResult{hardFailed}, shared.ActionDisputed, shared.ValidationStatusDisputed},
		{"ActionOnPassingRule", []invoice.RuleResult{passed}, shared.ActionFlagForFutureProcessing, shared.ValidationStatusFutureProcessing},
		{"Blocked", []invoice.RuleResult{hardFailed}, shared.ActionBlockProcessing, shared.ValidationStatusBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntityStatus(tt.results, tt.action))
		})
	}
}

func lineResult(id string, status shared.ValidationStatus, disputeType string) *invoice.ValidationResult {
	return &invoice.ValidationResult{
		EntityID:      id,
		EntityType:    shared.EntityTypeLineItem,
		InvoiceID:     "inv-1",
		VendorCode:    "ACME",
		OverallStatus: status,
		DisputeType:   disputeType,
		RuleResults:   []invoice.RuleResult{},
		EvaluatedAt:   evalTime,
	}
}

func TestAggregateInvoice(t *testing.T) {
	inv := &invoice.Invoice{ID: "inv-1", VendorCode: "ACME"}

	t.Run("MostSevereLineItemWins", func(t *testing.T) {
		lines := []*invoice.ValidationResult{
			lineResult("li-1", shared.ValidationStatusPassed, ""),
			lineResult("li-2", shared.ValidationStatusDisputed, "RATE_MISMATCH"),
			lineResult("li-3", shared.ValidationStatusWarning, ""),
			lineResult("li-4", shared.ValidationStatusDisputed, "RATE_MISMATCH"),
			lineResult("li-5", shared.ValidationStatusDisputed, "MISSING_BOOKING"),
		}

		status := AggregateInvoice(inv, lines, nil, evalTime)

		assert.Equal(t, shared.ValidationStatusDisputed, status.Status)
		assert.Equal(t, "RATE_MISMATCH", status.DisputeType)
		assert.Equal(t, 5, status.TotalLineItems)
		assert.Equal(t, map[shared.ValidationStatus]int{
			shared.ValidationStatusPassed:   1,
			shared.ValidationStatusDisputed: 3,
			shared.ValidationStatusWarning:  1,
		}, status.StatusSummary)
		assert.Equal(t, map[string]int{"RATE_MISMATCH": 2, "MISSING_BOOKING": 1}, status.DisputeTypeSummary)
		assert.Equal(t, shared.ApprovalStatusPending, status.ApprovalStatus)
	})

	t.Run("ErrorAlwaysWins", func(t *testing.T) {
		lines := []*invoice.ValidationResult{
			lineResult("li-1", shared.ValidationStatusBlocked, ""),
			lineResult("li-2", shared.ValidationStatusError, ""),
		}

		status := AggregateInvoice(inv, lines, nil, evalTime)

		assert.Equal(t, shared.ValidationStatusError, status.Status)
	})

	t.Run("InvoiceLevelResultCounts", func(t *testing.T) {
		invoiceResult := lineResult("inv-1", shared.ValidationStatusFailed, "")
		invoiceResult.EntityType = shared.EntityTypeInvoice

		status := AggregateInvoice(inv, []*invoice.ValidationResult{lineResult("li-1", shared.ValidationStatusWarning, "")}, invoiceResult, evalTime)

		assert.Equal(t, shared.ValidationStatusFailed, status.Status)
		assert.Equal(t, 1, status.StatusSummary[shared.ValidationStatusWarning])
		assert.Same(t, invoiceResult, status.InvoiceValidation)
	})

	t.Run("NoLineItems", func(t *testing.T) {
		status := AggregateInvoice(inv, nil, nil, evalTime)

		assert.Equal(t, shared.ValidationStatusPassed, status.Status)
		assert.Empty(t, status.StatusSummary)
	})

	t.Run("RoundTripIsIdempotent", func(t *testing.T) {
		lines := []*invoice.ValidationResult{
			lineResult("li-1", shared.ValidationStatusDisputed, "RATE_MISMATCH"),
			lineResult("li-2", shared.ValidationStatusPassed, ""),
		}
		first := AggregateInvoice(inv, lines, nil, evalTime)

		raw, err := json.Marshal(first)
		require.NoError(t, err)
		var decoded invoice.ReconciliationStatus
		require.NoError(t, json.Unmarshal(raw, &decoded))

		assert.Equal(t, first, &decoded)
		assert.Equal(t, first, AggregateInvoice(inv, lines, nil, evalTime))
	})
}
