package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/invoice-reconciliation/internal/api_gateway/middleware"
	"github.com/invoice-reconciliation/internal/api_gateway/service"
	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// ReconciliationHandler handles HTTP requests for reconciliation runs, results and approvals
type ReconciliationHandler struct {
	reconciliationService service.ReconciliationService
	logger                *slog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(logger *slog.Logger, reconciliationService service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// Create publishes a reconciliation request; results are produced asynchronously
func (h *ReconciliationHandler) Create(c *gin.Context) {
	var req CreateReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request, err := h.reconciliationService.RequestReconciliation(c.Request.Context(), req.InvoiceIDs, middleware.GetCorrelationID(c))
	if err != nil {
		h.logger.Error("Failed to request reconciliation", "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, ReconciliationAcceptedResponse{
		RequestID:  request.RequestID.String(),
		InvoiceIDs: request.InvoiceIDs,
		Status:     string(shared.ValidationStatusPending),
	})
}

// GetInvoiceReconciliation returns the invoice reconciliation status, 404 if not reconciled yet
func (h *ReconciliationHandler) GetInvoiceReconciliation(c *gin.Context) {
	invoiceID := c.Param("id")

	status, err := h.reconciliationService.GetInvoiceReconciliation(c.Request.Context(), invoiceID)
	if err != nil {
		h.logger.Error("Failed to get reconciliation status", "invoice_id", invoiceID, "error", err)
		RespondInternalError(c)
		return
	}
	if status == nil {
		RespondNotFound(c, "Invoice has not been reconciled")
		return
	}

	RespondOK(c, status)
}

// GetLineItemValidation returns the validation result of one line item
func (h *ReconciliationHandler) GetLineItemValidation(c *gin.Context) {
	lineItemID := c.Param("id")

	result, err := h.reconciliationService.GetLineItemValidation(c.Request.Context(), lineItemID)
	if err != nil {
		h.logger.Error("Failed to get validation result", "line_item_id", lineItemID, "error", err)
		RespondInternalError(c)
		return
	}
	if result == nil {
		RespondNotFound(c, "Line item has no validation result")
		return
	}

	RespondOK(c, result)
}

// RecordApproval stores the approval decision for a reconciled invoice
func (h *ReconciliationHandler) RecordApproval(c *gin.Context) {
	invoiceID := c.Param("id")

	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	status, err := h.reconciliationService.RecordApproval(c.Request.Context(), invoiceID, shared.ApprovalStatus(req.Decision), req.Actor, req.Comment)
	if err != nil {
		var notReconciled invoice.ErrStatusNotFound
		switch {
		case errors.As(err, &notReconciled):
			RespondConflict(c, "Invoice has not been reconciled yet")
		case errors.Is(err, invoice.ErrApprovalNotAllowed):
			RespondConflict(c, err.Error())
		case errors.Is(err, invoice.ErrInvalidDecision):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Error("Failed to record approval", "invoice_id", invoiceID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, status)
}
