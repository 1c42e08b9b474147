package handler

import (
	"github.com/invoice-reconciliation/internal/domain/rule"
)

// CreateReconciliationRequest asks for a batch of invoices to be reconciled
type CreateReconciliationRequest struct {
	InvoiceIDs []string `json:"invoice_ids" binding:"required,min=1,max=500,dive,required"`
}

// ReconciliationAcceptedResponse acknowledges a published reconciliation request
type ReconciliationAcceptedResponse struct {
	RequestID  string   `json:"request_id"`
	InvoiceIDs []string `json:"invoice_ids"`
	Status     string   `json:"status"`
}

// ApprovalRequest records a human decision on a reconciled invoice
type ApprovalRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
	Actor    string `json:"actor" binding:"required"`
	Comment  string `json:"comment,omitempty" binding:"max=2000"`
}

// RuleQuery selects the rules applied to one vendor's entities
type RuleQuery struct {
	VendorCode string `form:"vendor_code" binding:"required"`
	EntityType string `form:"entity_type,default=LINE_ITEM" binding:"oneof=INVOICE LINE_ITEM"`
}

// RuleResponse represents a rule in API responses
type RuleResponse struct {
	*rule.Rule
	Valid       bool   `json:"valid"`
	ConfigError string `json:"config_error,omitempty"`
}

// RuleValidationResponse reports the configuration problems of a rule definition
type RuleValidationResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// HMSMappingRequest links a vendor booking reference to an OMS booking
type HMSMappingRequest struct {
	VendorCode      string `json:"vendor_code" binding:"required"`
	VendorBookingID string `json:"vendor_booking_id" binding:"required"`
	OMSBookingID    string `json:"oms_booking_id" binding:"required"`
}

func mapRuleToResponse(r *rule.Rule) RuleResponse {
	return RuleResponse{
		Rule:        r,
		Valid:       r.Valid(),
		ConfigError: r.ConfigError,
	}
}
