package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/shared"
	"github.com/invoice-reconciliation/internal/platform/messaging/producers"
)

// ReconciliationServiceImpl implements the ReconciliationService interface
type ReconciliationServiceImpl struct {
	statuses invoice.StatusRepository
	producer producers.MessagePublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(logger *slog.Logger, statuses invoice.StatusRepository, producer producers.MessagePublisher) ReconciliationService {
	return &ReconciliationServiceImpl{
		statuses: statuses,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestReconciliation builds a request for the invoices and publishes it keyed by its request id
func (s *ReconciliationServiceImpl) RequestReconciliation(ctx context.Context, invoiceIDs []string, correlationID string) (*shared.ReconciliationRequest, error) {
	request := &shared.ReconciliationRequest{
		RequestID:     uuid.New(),
		InvoiceIDs:    invoiceIDs,
		CorrelationID: correlationID,
		RequestedAt:   s.now().UTC(),
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	if err := s.producer.Publish(ctx, request.RequestID.String(), request); err != nil {
		s.logger.Error("Failed to publish reconciliation request",
			"request_id", request.RequestID.String(),
			"invoices", len(invoiceIDs),
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Reconciliation request published",
		"request_id", request.RequestID.String(),
		"invoices", len(invoiceIDs),
		"correlation_id", correlationID,
	)
	return request, nil
}

func (s *ReconciliationServiceImpl) GetInvoiceReconciliation(ctx context.Context, invoiceID string) (*invoice.ReconciliationStatus, error) {
	status, err := s.statuses.GetReconciliationStatus(ctx, invoiceID)
	if err != nil {
		var notFound invoice.ErrStatusNotFound
		if errors.As(err, &notFound) {
			s.logger.Info("Reconciliation status not found", "invoice_id", invoiceID)
			return nil, nil
		}
		s.logger.Error("Failed to get reconciliation status", "invoice_id", invoiceID, "error", err)
		return nil, err
	}
	return status, nil
}

func (s *ReconciliationServiceImpl) GetLineItemValidation(ctx context.Context, lineItemID string) (*invoice.ValidationResult, error) {
	result, err := s.statuses.GetValidationResult(ctx, lineItemID)
	if err != nil {
		var notFound invoice.ErrValidationNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		s.logger.Error("Failed to get validation result", "line_item_id", lineItemID, "error", err)
		return nil, err
	}
	if result.EntityType != shared.EntityTypeLineItem {
		return nil, nil
	}
	return result, nil
}

func (s *ReconciliationServiceImpl) RecordApproval(ctx context.Context, invoiceID string, decision shared.ApprovalStatus, actor, comment string) (*invoice.ReconciliationStatus, error) {
	approval := &invoice.Approval{
		Decision:  decision,
		Actor:     actor,
		Comment:   comment,
		DecidedAt: s.now().UTC(),
	}

	if err := s.statuses.RecordApproval(ctx, invoiceID, approval); err != nil {
		s.logger.Warn("Approval rejected", "invoice_id", invoiceID, "decision", decision, "actor", actor, "error", err)
		return nil, err
	}

	s.logger.Info("Approval recorded", "invoice_id", invoiceID, "decision", decision, "actor", actor)
	return s.statuses.GetReconciliationStatus(ctx, invoiceID)
}
