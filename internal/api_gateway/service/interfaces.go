package service

import (
	"context"

	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// ReconciliationService defines the interface for reconciliation requests, results and approvals
type ReconciliationService interface {
	// RequestReconciliation publishes a reconciliation request for the invoices
	RequestReconciliation(ctx context.Context, invoiceIDs []string, correlationID string) (*shared.ReconciliationRequest, error)

	// GetInvoiceReconciliation returns nil if the invoice has not been reconciled
	GetInvoiceReconciliation(ctx context.Context, invoiceID string) (*invoice.ReconciliationStatus, error)

	// GetLineItemValidation returns nil if the line item has no validation result
	GetLineItemValidation(ctx context.Context, lineItemID string) (*invoice.ValidationResult, error)

	// RecordApproval stores a human decision and returns the updated status.
	// Returns ErrApprovalNotAllowed when an APPROVED decision targets a BLOCKED or ERROR invoice
	// and ErrStatusNotFound when the invoice has not been reconciled.
	RecordApproval(ctx context.Context, invoiceID string, decision shared.ApprovalStatus, actor, comment string) (*invoice.ReconciliationStatus, error)
}

// RuleService defines the interface for rule administration
type RuleService interface {
	// ListApplicable returns the rules applied now to the vendor's entities, wildcard rules included
	ListApplicable(ctx context.Context, vendorCode string, entityType shared.EntityType) ([]*rule.Rule, error)

	// CreateRule validates and stores a rule.
	// Returns ErrInvalidRule or ErrDuplicateRule
	CreateRule(ctx context.Context, r *rule.Rule) error

	// SupersedeRule ends ruleID where replacement takes effect and stores replacement.
	// Returns ErrRuleNotFound, ErrSupersedeConflict, ErrInvalidRule or ErrDuplicateRule
	SupersedeRule(ctx context.Context, ruleID string, replacement *rule.Rule) error

	// ValidateRule returns every configuration problem of the rule, none if it is valid
	ValidateRule(r *rule.Rule) []string
}

// MappingService maintains HMS booking mappings
type MappingService interface {
	UpsertMapping(ctx context.Context, vendorCode, vendorBookingID, omsBookingID string) (*hms.Mapping, error)
}

// RuleStore is a rule repository that also accepts new rule versions
type RuleStore interface {
	rule.Repository
	Create(ctx context.Context, r *rule.Rule) error
	Supersede(ctx context.Context, previousID string, replacement *rule.Rule) error
}

// MappingStore persists HMS booking mappings
type MappingStore interface {
	Upsert(ctx context.Context, m hms.Mapping) error
}
