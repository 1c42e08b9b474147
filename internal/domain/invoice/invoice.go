package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invoice-reconciliation/internal/domain/shared"
)

// Invoice is a vendor invoice as produced by the extraction pipeline
type Invoice struct {
	ID             string                 `json:"id" bson:"_id"`
	VendorCode     string                 `json:"vendor_code" bson:"vendor_code"`
	InvoiceNumber  string                 `json:"invoice_number" bson:"invoice_number"`
	InvoiceDate    *time.Time             `json:"invoice_date,omitempty" bson:"invoice_date,omitempty"`
	Currency       string                 `json:"currency" bson:"currency"`
	TotalAmount    *float64               `json:"total_amount,omitempty" bson:"total_amount,omitempty"`
	LineItemIDs    []string               `json:"line_item_ids" bson:"line_item_ids"`
	OMS            map[string]interface{} `json:"-" bson:"oms,omitempty"`
	ApprovalStatus shared.ApprovalStatus  `json:"approval_status" bson:"approval_status"`
	CreatedAt      time.Time              `json:"created_at" bson:"created_at"`
}

// Booking is the booking sub-record of a line item
type Booking struct {
	ConfirmationNumber string     `json:"confirmation_number,omitempty" bson:"confirmation_number,omitempty"`
	GuestName          string     `json:"guest_name,omitempty" bson:"guest_name,omitempty"`
	PropertyName       string     `json:"property_name,omitempty" bson:"property_name,omitempty"`
	PropertyCode       string     `json:"property_code,omitempty" bson:"property_code,omitempty"`
	CheckIn            *time.Time `json:"check_in,omitempty" bson:"check_in,omitempty"`
	CheckOut           *time.Time `json:"check_out,omitempty" bson:"check_out,omitempty"`
	Status             string     `json:"status,omitempty" bson:"status,omitempty"`
}

// Financial is the financial sub-record of a line item. Amounts are in major units.
type Financial struct {
	Currency   string   `json:"currency,omitempty" bson:"currency,omitempty"`
	Rate       *float64 `json:"rate,omitempty" bson:"rate,omitempty"`
	Nights     *int     `json:"nights,omitempty" bson:"nights,omitempty"`
	Subtotal   *float64 `json:"subtotal,omitempty" bson:"subtotal,omitempty"`
	Taxes      *float64 `json:"taxes,omitempty" bson:"taxes,omitempty"`
	Fees       *float64 `json:"fees,omitempty" bson:"fees,omitempty"`
	Total      *float64 `json:"total,omitempty" bson:"total,omitempty"`
	Commission *float64 `json:"commission,omitempty" bson:"commission,omitempty"`
}

// LineItem is one billable booking extracted from an invoice.
// OMS holds the parallel OMS record using the same field names as the invoice side.
type LineItem struct {
	ID         string                 `json:"id" bson:"_id"`
	InvoiceID  string                 `json:"invoice_id" bson:"invoice_id"`
	VendorCode string                 `json:"vendor_code" bson:"vendor_code"`
	Booking    Booking                `json:"booking" bson:"booking"`
	Financial  Financial              `json:"financial" bson:"financial"`
	OMS        map[string]interface{} `json:"-" bson:"oms,omitempty"`
	Validation *ValidationResult      `json:"-" bson:"validation,omitempty"`
}

// Amount returns a pointer to v, for building optional amounts
func Amount(v float64) *float64 {
	return &v
}

// Record returns the invoice-side view of the line item as a generic document
func (li *LineItem) Record() (map[string]interface{}, error) {
	return ToRecord(li)
}

// Record returns the invoice-side view of the invoice as a generic document
func (inv *Invoice) Record() (map[string]interface{}, error) {
	return ToRecord(inv)
}

// ToRecord converts v into a generic document keyed by its json field names.
// Numbers are kept as json.Number so no precision is lost before comparison.
func ToRecord(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var record map[string]interface{}
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return record, nil
}
