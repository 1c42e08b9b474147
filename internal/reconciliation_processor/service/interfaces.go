package service

import (
	"context"
	"time"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
	"github.com/invoice-reconciliation/internal/reconciliation/engine"
)

// ReconciliationService reconciles a batch of invoices
type ReconciliationService interface {
	Reconcile(ctx context.Context, request *shared.ReconciliationRequest) (*BatchReport, error)
}

// EntityEvaluator evaluates one entity against a rule snapshot
type EntityEvaluator interface {
	Evaluate(ctx context.Context, entity engine.Entity, rules []*rule.Rule, now time.Time) (*invoice.ValidationResult, error)
}

var _ EntityEvaluator = (*engine.RuleEngine)(nil)
