package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

const (
	ValidationResultCollectionName     = "validation_results"
	ReconciliationStatusCollectionName = "reconciliation_statuses"
)

// ResultRepository stores validation results and reconciliation statuses.
// It implements both invoice.ResultSink and invoice.StatusRepository.
type ResultRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewResultRepository creates a MongoDB result repository
func NewResultRepository(logger *slog.Logger, db *mongo.Database) *ResultRepository {
	return &ResultRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique keys the upserts rely on
func (r *ResultRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string]string{
		ValidationResultCollectionName:     "entity_id",
		ReconciliationStatusCollectionName: "invoice_id",
	}
	for collection, key := range indexes {
		model := mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		if _, err := r.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create %s index on %s: %w", key, collection, err)
		}
	}
	return nil
}

// UpsertValidationResult replaces the stored result of an entity.
// Line item results are mirrored onto the line item document.
func (r *ResultRepository) UpsertValidationResult(ctx context.Context, result *invoice.ValidationResult) error {
	_, err := r.db.Collection(ValidationResultCollectionName).ReplaceOne(ctx,
		bson.M{"entity_id": result.EntityID},
		result,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error("Failed to upsert validation result",
			"entity_id", result.EntityID,
			"entity_type", result.EntityType,
			"error", err)
		return fmt.Errorf("failed to upsert validation result: %w", err)
	}

	if result.EntityType != shared.EntityTypeLineItem {
		return nil
	}

	_, err = r.db.Collection(LineItemCollectionName).UpdateOne(ctx,
		bson.M{"_id": result.EntityID},
		bson.M{"$set": bson.M{"validation": result}},
	)
	if err != nil {
		r.logger.Error("Failed to attach validation to line item", "entity_id", result.EntityID, "error", err)
		return fmt.Errorf("failed to attach validation to line item: %w", err)
	}
	return nil
}

// UpsertReconciliationStatus writes the engine owned fields of the invoice status.
// An approval already recorded survives re-evaluation.
func (r *ResultRepository) UpsertReconciliationStatus(ctx context.Context, status *invoice.ReconciliationStatus) error {
	update := bson.M{
		"$set": bson.M{
			"vendor_code":          status.VendorCode,
			"status":               status.Status,
			"dispute_type":         status.DisputeType,
			"total_line_items":     status.TotalLineItems,
			"status_summary":       status.StatusSummary,
			"dispute_type_summary": status.DisputeTypeSummary,
			"invoice_validation":   status.InvoiceValidation,
			"evaluated_at":         status.EvaluatedAt,
		},
		"$setOnInsert": bson.M{
			"approval_status": shared.ApprovalStatusPending,
		},
	}

	_, err := r.db.Collection(ReconciliationStatusCollectionName).UpdateOne(ctx,
		bson.M{"invoice_id": status.InvoiceID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error("Failed to upsert reconciliation status",
			"invoice_id", status.InvoiceID,
			"status", status.Status,
			"error", err)
		return fmt.Errorf("failed to upsert reconciliation status: %w", err)
	}
	return nil
}

// GetReconciliationStatus retrieves the status of an invoice
func (r *ResultRepository) GetReconciliationStatus(ctx context.Context, invoiceID string) (*invoice.ReconciliationStatus, error) {
	var status invoice.ReconciliationStatus
	err := r.db.Collection(ReconciliationStatusCollectionName).FindOne(ctx, bson.M{"invoice_id": invoiceID}).Decode(&status)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, invoice.ErrStatusNotFound{InvoiceID: invoiceID}
		}
		r.logger.Error("Failed to get reconciliation status", "invoice_id", invoiceID, "error", err)
		return nil, fmt.Errorf("failed to get reconciliation status: %w", err)
	}
	return &status, nil
}

// GetValidationResult retrieves the validation result of an entity
func (r *ResultRepository) GetValidationResult(ctx context.Context, entityID string) (*invoice.ValidationResult, error) {
	var result invoice.ValidationResult
	err := r.db.Collection(ValidationResultCollectionName).FindOne(ctx, bson.M{"entity_id": entityID}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, invoice.ErrValidationNotFound{EntityID: entityID}
		}
		r.logger.Error("Failed to get validation result", "entity_id", entityID, "error", err)
		return nil, fmt.Errorf("failed to get validation result: %w", err)
	}
	return &result, nil
}

// RecordApproval stores a human decision. Approving a BLOCKED or ERROR invoice is refused.
func (r *ResultRepository) RecordApproval(ctx context.Context, invoiceID string, approval *invoice.Approval) error {
	if approval.Decision != shared.ApprovalStatusApproved && approval.Decision != shared.ApprovalStatusRejected {
		return invoice.ErrInvalidDecision
	}

	filter := bson.M{"invoice_id": invoiceID}
	if approval.Decision == shared.ApprovalStatusApproved {
		filter["status"] = bson.M{"$nin": bson.A{shared.ValidationStatusBlocked, shared.ValidationStatusError}}
	}
	update := bson.M{"$set": bson.M{
		"approval_status": approval.Decision,
		"approval":        approval,
	}}

	res, err := r.db.Collection(ReconciliationStatusCollectionName).UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to record approval", "invoice_id", invoiceID, "error", err)
		return fmt.Errorf("failed to record approval: %w", err)
	}

	if res.MatchedCount == 0 {
		if _, err := r.GetReconciliationStatus(ctx, invoiceID); err != nil {
			return err
		}
		return invoice.ErrApprovalNotAllowed
	}

	_, err = r.db.Collection(InvoiceCollectionName).UpdateOne(ctx,
		bson.M{"_id": invoiceID},
		bson.M{"$set": bson.M{"approval_status": approval.Decision}},
	)
	if err != nil {
		r.logger.Error("Failed to mirror approval onto invoice", "invoice_id", invoiceID, "error", err)
		return fmt.Errorf("failed to mirror approval onto invoice: %w", err)
	}

	r.logger.Info("Approval recorded", "invoice_id", invoiceID, "decision", approval.Decision, "actor", approval.Actor)
	return nil
}
