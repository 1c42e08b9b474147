package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyInvoiceIDs = errors.New("at least one invoice id is required")
)

// ReconciliationRequest defines a Kafka message asking for a batch of invoices to be reconciled
type ReconciliationRequest struct {
	RequestID     uuid.UUID `json:"request_id"`
	InvoiceIDs    []string  `json:"invoice_ids"`
	CorrelationID string    `json:"correlation_id"`
	RequestedAt   time.Time `json:"requested_at"`
}

// Validate checks the request carries something to reconcile
func (r *ReconciliationRequest) Validate() error {
	if len(r.InvoiceIDs) == 0 {
		return ErrEmptyInvoiceIDs
	}
	for _, id := range r.InvoiceIDs {
		if id == "" {
			return errors.New("invoice id cannot be empty")
		}
	}
	return nil
}

// ReconciliationCompleted is published once per invoice after its results are persisted
type ReconciliationCompleted struct {
	RequestID          uuid.UUID                `json:"request_id"`
	InvoiceID          string                   `json:"invoice_id"`
	VendorCode         string                   `json:"vendor_code"`
	Status             ValidationStatus         `json:"status"`
	DisputeType        string                   `json:"dispute_type,omitempty"`
	StatusSummary      map[ValidationStatus]int `json:"status_summary"`
	DisputeTypeSummary map[string]int           `json:"dispute_type_summary"`
	CorrelationID      string                   `json:"correlation_id,omitempty"`
	EvaluatedAt        time.Time                `json:"evaluated_at"`
}
