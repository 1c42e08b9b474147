package invoice

import (
	"time"

	"github.com/invoice-reconciliation/internal/domain/shared"
)

// Evidence records why a rule produced its result
type Evidence struct {
	Timestamp time.Time               `json:"timestamp" bson:"timestamp"`
	Severity  shared.EvidenceSeverity `json:"severity" bson:"severity"`
	Details   string                  `json:"details" bson:"details"`
}

// RuleResult is the outcome of one rule against one entity
type RuleResult struct {
	RuleID        string              `json:"rule_id" bson:"rule_id"`
	RuleName      string              `json:"rule_name" bson:"rule_name"`
	RuleType      shared.RuleType     `json:"rule_type" bson:"rule_type"`
	Result        shared.ResultStatus `json:"result" bson:"result"`
	Message       string              `json:"message" bson:"message"`
	Field         string              `json:"field,omitempty" bson:"field,omitempty"`
	Operator      shared.Operator     `json:"operator,omitempty" bson:"operator,omitempty"`
	ExpectedValue string              `json:"expected_value,omitempty" bson:"expected_value,omitempty"`
	ActualValue   string              `json:"actual_value,omitempty" bson:"actual_value,omitempty"`
	Action        shared.ActionType   `json:"action,omitempty" bson:"action,omitempty"`
	Evidence      Evidence            `json:"evidence" bson:"evidence"`
}

// ValidationResult aggregates every rule result for one entity. It is recomputed on each evaluation.
type ValidationResult struct {
	EntityID       string                  `json:"entity_id" bson:"entity_id"`
	EntityType     shared.EntityType       `json:"entity_type" bson:"entity_type"`
	InvoiceID      string                  `json:"invoice_id" bson:"invoice_id"`
	VendorCode     string                  `json:"vendor_code" bson:"vendor_code"`
	OverallStatus  shared.ValidationStatus `json:"overall_status" bson:"overall_status"`
	TotalRules     int                     `json:"total_rules" bson:"total_rules"`
	PassedRules    int                     `json:"passed_rules" bson:"passed_rules"`
	FailedRules    int                     `json:"failed_rules" bson:"failed_rules"`
	Warnings       int                     `json:"warnings" bson:"warnings"`
	ResolvedAction shared.ActionType       `json:"resolved_action" bson:"resolved_action"`
	DisputeType    string                  `json:"dispute_type,omitempty" bson:"dispute_type,omitempty"`
	WarningType    string                  `json:"warning_type,omitempty" bson:"warning_type,omitempty"`
	Blocked        bool                    `json:"blocked" bson:"blocked"`
	Error          string                  `json:"error,omitempty" bson:"error,omitempty"`
	RuleResults    []RuleResult            `json:"rule_results" bson:"rule_results"`
	EvaluatedAt    time.Time               `json:"evaluated_at" bson:"evaluated_at"`
}

// ReconciliationStatus is the invoice-level aggregate derived from its line item results
type ReconciliationStatus struct {
	InvoiceID          string                          `json:"invoice_id" bson:"invoice_id"`
	VendorCode         string                          `json:"vendor_code" bson:"vendor_code"`
	Status             shared.ValidationStatus         `json:"status" bson:"status"`
	DisputeType        string                          `json:"dispute_type,omitempty" bson:"dispute_type,omitempty"`
	TotalLineItems     int                             `json:"total_line_items" bson:"total_line_items"`
	StatusSummary      map[shared.ValidationStatus]int `json:"status_summary" bson:"status_summary"`
	DisputeTypeSummary map[string]int                  `json:"dispute_type_summary" bson:"dispute_type_summary"`
	InvoiceValidation  *ValidationResult               `json:"invoice_validation,omitempty" bson:"invoice_validation,omitempty"`
	ApprovalStatus     shared.ApprovalStatus           `json:"approval_status" bson:"approval_status"`
	Approval           *Approval                       `json:"approval,omitempty" bson:"approval,omitempty"`
	EvaluatedAt        time.Time                       `json:"evaluated_at" bson:"evaluated_at"`
}

// Approval is the human decision recorded against a reconciled invoice
type Approval struct {
	Decision  shared.ApprovalStatus `json:"decision" bson:"decision"`
	Actor     string                `json:"actor" bson:"actor"`
	Comment   string                `json:"comment,omitempty" bson:"comment,omitempty"`
	DecidedAt time.Time             `json:"decided_at" bson:"decided_at"`
}
