package service

import (
	"github.com/google/uuid"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// BatchReport summarizes one Reconcile call
type BatchReport struct {
	RequestID uuid.UUID        `json:"request_id"`
	Invoices  []InvoiceOutcome `json:"invoices"`
	// NotFound lists requested invoices missing from the entity source
	NotFound []string `json:"not_found,omitempty"`
	// NotProcessed lists invoices whose evaluation did not complete; nothing was persisted for them
	NotProcessed []string `json:"not_processed,omitempty"`
	// PersistFailures lists evaluated invoices whose results could not be stored
	PersistFailures []string `json:"persist_failures,omitempty"`
}

// InvoiceOutcome is the result of one reconciled invoice
type InvoiceOutcome struct {
	InvoiceID string                        `json:"invoice_id"`
	Status    shared.ValidationStatus       `json:"status"`
	LineItems int                           `json:"line_items"`
	Errors    []string                      `json:"errors,omitempty"`
	Persisted bool                          `json:"persisted"`
	Result    *invoice.ReconciliationStatus `json:"-"`
}

// Persisted returns the outcomes whose results were stored
func (r *BatchReport) Persisted() []InvoiceOutcome {
	var out []InvoiceOutcome
	for _, o := range r.Invoices {
		if o.Persisted {
			out = append(out, o)
		}
	}
	return out
}
