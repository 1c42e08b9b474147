package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/invoice-reconciliation/internal/domain/shared"
	"github.com/invoice-reconciliation/internal/platform/messaging/producers"
	"github.com/invoice-reconciliation/internal/reconciliation_processor/service"
)

// RequestHandler handles reconciliation request messages from Kafka
type RequestHandler struct {
	service   service.ReconciliationService
	publisher producers.MessagePublisher
	dlq       producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewRequestHandler creates a new handler
func NewRequestHandler(
	logger *slog.Logger,
	reconciliationService service.ReconciliationService,
	publisher producers.MessagePublisher,
	dlq producers.DeadLetterPublisher,
) *RequestHandler {
	return &RequestHandler{
		service:   reconciliationService,
		publisher: publisher,
		dlq:       dlq,
		logger:    logger,
	}
}

// HandleMessage processes one Kafka message. A nil return commits the offset.
func (h *RequestHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.ReconciliationRequest
	if err := json.Unmarshal(value, &request); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal reconciliation request", err)
	}
	if err := request.Validate(); err != nil {
		return h.deadLetter(ctx, key, value, "Invalid reconciliation request", err)
	}

	logger := h.logger.With("request_id", request.RequestID.String())
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received reconciliation request", "invoices", len(request.InvoiceIDs))

	report, err := h.service.Reconcile(ctx, &request)
	// invoices persisted before a failure are final, announce them either way
	publishErr := h.publishCompleted(ctx, &request, report)

	if err != nil {
		logger.Error("Reconciliation failed", "error", err)
		return fmt.Errorf("reconciliation request %s failed: %w", request.RequestID.String(), err)
	}
	if publishErr != nil {
		return publishErr
	}
	if len(report.PersistFailures) > 0 {
		return fmt.Errorf("reconciliation request %s: results not persisted for invoices %s",
			request.RequestID.String(), strings.Join(report.PersistFailures, ", "))
	}

	logger.Info("Successfully processed reconciliation request",
		"reconciled", len(report.Invoices),
		"not_found", len(report.NotFound),
	)
	return nil
}

func (h *RequestHandler) publishCompleted(ctx context.Context, request *shared.ReconciliationRequest, report *service.BatchReport) error {
	if report == nil {
		return nil
	}

	for _, outcome := range report.Persisted() {
		status := outcome.Result
		event := shared.ReconciliationCompleted{
			RequestID:          request.RequestID,
			InvoiceID:          outcome.InvoiceID,
			VendorCode:         status.VendorCode,
			Status:             status.Status,
			DisputeType:        status.DisputeType,
			StatusSummary:      status.StatusSummary,
			DisputeTypeSummary: status.DisputeTypeSummary,
			CorrelationID:      request.CorrelationID,
			EvaluatedAt:        status.EvaluatedAt,
		}
		if err := h.publisher.Publish(ctx, outcome.InvoiceID, event); err != nil {
			h.logger.Error("Failed to publish reconciliation result",
				"invoice_id", outcome.InvoiceID,
				"request_id", request.RequestID.String(),
				"error", err,
			)
			return fmt.Errorf("failed to publish result for invoice %s: %w", outcome.InvoiceID, err)
		}
	}
	return nil
}

// deadLetter parks an unprocessable message. The offset is committed only if the DLQ accepted it.
func (h *RequestHandler) deadLetter(ctx context.Context, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg, "error", cause, "message_key", string(key))

	reason := fmt.Sprintf("%s: %s", msg, cause.Error())
	if h.dlq != nil {
		if err := h.dlq.PublishToDLQ(ctx, string(key), value, reason); err != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", err,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", strings.ToLower(msg), cause)
}
