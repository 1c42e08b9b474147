package invoice

import (
	"context"
	"errors"
)

var (
	ErrApprovalNotAllowed = errors.New("invoice cannot be approved in its current reconciliation status")
	ErrInvalidDecision    = errors.New("decision must be APPROVED or REJECTED")
)

// Repository is the entity source for reconciliation
type Repository interface {
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	GetLineItems(ctx context.Context, invoiceID string) ([]*LineItem, error)
}

// ResultSink persists evaluation output. Every write is an idempotent upsert keyed by entity id.
type ResultSink interface {
	UpsertValidationResult(ctx context.Context, result *ValidationResult) error
	UpsertReconciliationStatus(ctx context.Context, status *ReconciliationStatus) error
}

// StatusRepository serves reconciliation results and records approval decisions
type StatusRepository interface {
	GetReconciliationStatus(ctx context.Context, invoiceID string) (*ReconciliationStatus, error)
	GetValidationResult(ctx context.Context, entityID string) (*ValidationResult, error)
	RecordApproval(ctx context.Context, invoiceID string, approval *Approval) error
}

// ErrInvoiceNotFound indicates a missing invoice
type ErrInvoiceNotFound struct {
	InvoiceID string
}

func (e ErrInvoiceNotFound) Error() string {
	return "invoice not found: " + e.InvoiceID
}

// ErrStatusNotFound indicates an invoice that has not been reconciled yet
type ErrStatusNotFound struct {
	InvoiceID string
}

func (e ErrStatusNotFound) Error() string {
	return "reconciliation status not found for invoice: " + e.InvoiceID
}

// ErrValidationNotFound indicates an entity without a validation result
type ErrValidationNotFound struct {
	EntityID string
}

func (e ErrValidationNotFound) Error() string {
	return "validation result not found: " + e.EntityID
}
