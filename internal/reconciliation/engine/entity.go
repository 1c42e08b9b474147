package engine

import (
	"fmt"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// Entity is anything rules are evaluated against: an invoice or one of its line items
type Entity struct {
	ID            string
	InvoiceID     string
	VendorCode    string
	Type          shared.EntityType
	InvoiceRecord map[string]interface{}
	OMSRecord     map[string]interface{}
}

// LineItemEntity builds the evaluation view of a line item
func LineItemEntity(li *invoice.LineItem) (Entity, error) {
	record, err := li.Record()
	if err != nil {
		return Entity{}, fmt.Errorf("line item %s: %w", li.ID, err)
	}
	return Entity{
		ID:            li.ID,
		InvoiceID:     li.InvoiceID,
		VendorCode:    li.VendorCode,
		Type:          shared.EntityTypeLineItem,
		InvoiceRecord: record,
		OMSRecord:     li.OMS,
	}, nil
}

// InvoiceEntity builds the evaluation view of an invoice
func InvoiceEntity(inv *invoice.Invoice) (Entity, error) {
	record, err := inv.Record()
	if err != nil {
		return Entity{}, fmt.Errorf("invoice %s: %w", inv.ID, err)
	}
	return Entity{
		ID:            inv.ID,
		InvoiceID:     inv.ID,
		VendorCode:    inv.VendorCode,
		Type:          shared.EntityTypeInvoice,
		InvoiceRecord: record,
		OMSRecord:     inv.OMS,
	}, nil
}
