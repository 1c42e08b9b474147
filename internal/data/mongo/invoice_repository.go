// Package mongo provides MongoDB implementations of the invoice source and the result store.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/invoice-reconciliation/internal/domain/invoice"
)

const (
	InvoiceCollectionName  = "invoices"
	LineItemCollectionName = "line_items"
)

// InvoiceRepository implements invoice.Repository for MongoDB
type InvoiceRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewInvoiceRepository creates a MongoDB invoice repository
func NewInvoiceRepository(logger *slog.Logger, db *mongo.Database) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// GetInvoice retrieves an invoice together with its OMS view
func (r *InvoiceRepository) GetInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.Collection(InvoiceCollectionName).FindOne(ctx, bson.M{"_id": invoiceID}).Decode(&inv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, invoice.ErrInvoiceNotFound{InvoiceID: invoiceID}
		}
		r.logger.Error("Failed to get invoice", "invoice_id", invoiceID, "error", err)
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	inv.OMS = normalizeDocument(inv.OMS)
	return &inv, nil
}

// GetLineItems returns the line items of an invoice ordered by id
func (r *InvoiceRepository) GetLineItems(ctx context.Context, invoiceID string) ([]*invoice.LineItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.db.Collection(LineItemCollectionName).Find(ctx, bson.M{"invoice_id": invoiceID}, opts)
	if err != nil {
		r.logger.Error("Failed to query line items", "invoice_id", invoiceID, "error", err)
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*invoice.LineItem
	if err := cursor.All(ctx, &items); err != nil {
		r.logger.Error("Failed to decode line items", "invoice_id", invoiceID, "error", err)
		return nil, fmt.Errorf("failed to decode line items: %w", err)
	}

	for _, li := range items {
		li.OMS = normalizeDocument(li.OMS)
	}
	return items, nil
}

// normalizeDocument rewrites driver specific values so OMS records look like decoded JSON.
// Nested documents become maps, arrays become slices, dates become time.Time
// and decimals become json.Number.
func normalizeDocument(doc map[string]interface{}) map[string]interface{} {
	if doc == nil {
		return nil
	}
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(val))
		for _, e := range val {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case primitive.M:
		return normalizeDocument(val)
	case map[string]interface{}:
		return normalizeDocument(val)
	case primitive.A:
		return normalizeSlice(val)
	case []interface{}:
		return normalizeSlice(val)
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return json.Number(val.String())
	case primitive.ObjectID:
		return val.Hex()
	default:
		return v
	}
}

func normalizeSlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = normalizeValue(v)
	}
	return out
}
