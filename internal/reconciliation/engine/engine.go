package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
	"github.com/invoice-reconciliation/internal/reconciliation/evaluator"
)

// ConditionEvaluator checks one condition of a rule
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, vendorCode string, c *rule.Condition, invoiceRecord, omsRecord interface{}) (evaluator.Outcome, error)
}

// RuleEngine evaluates an ordered rule set against a single entity
type RuleEngine struct {
	logger    *slog.Logger
	evaluator ConditionEvaluator
}

// NewRuleEngine creates a rule engine
func NewRuleEngine(logger *slog.Logger, evaluator ConditionEvaluator) *RuleEngine {
	return &RuleEngine{logger: logger, evaluator: evaluator}
}

// Evaluate applies every applicable rule to the entity at now and returns its validation result.
// Output depends only on the entity, the rules and now. An error means a collaborator could
// not answer and the result must be discarded. Once started, every candidate rule runs;
// ctx only reaches the collaborators.
func (e *RuleEngine) Evaluate(ctx context.Context, entity Entity, rules []*rule.Rule, now time.Time) (*invoice.ValidationResult, error) {
	candidates := rule.Filter(rules, entity.VendorCode, entity.Type, now)
	resolver := NewActionResolver()

	result := &invoice.ValidationResult{
		EntityID:    entity.ID,
		EntityType:  entity.Type,
		InvoiceID:   entity.InvoiceID,
		VendorCode:  entity.VendorCode,
		RuleResults: make([]invoice.RuleResult, 0, len(candidates)),
		EvaluatedAt: now,
	}

	for _, r := range candidates {
		rr, action, err := e.evaluateRule(ctx, entity, r, now)
		if err != nil {
			return nil, fmt.Errorf("rule %s on %s %s: %w", r.RuleID, entity.Type, entity.ID, err)
		}
		result.RuleResults = append(result.RuleResults, rr)
		if action == "" {
			continue
		}

		resolver.Observe(action, r.Actions)
		if action == shared.ActionBlockProcessing {
			result.Blocked = true
			e.logger.Info("Processing blocked by rule",
				"entity_id", entity.ID,
				"entity_type", entity.Type,
				"rule_id", r.RuleID,
			)
			break
		}
	}

	for _, rr := range result.RuleResults {
		switch rr.Result {
		case shared.ResultPassed:
			result.PassedRules++
		case shared.ResultFailed:
			result.FailedRules++
		case shared.ResultWarning:
			result.Warnings++
		}
	}
	result.TotalRules = len(result.RuleResults)
	result.ResolvedAction = resolver.Action()
	result.DisputeType = resolver.DisputeType()
	result.WarningType = resolver.WarningType()
	result.OverallStatus = EntityStatus(result.RuleResults, result.ResolvedAction)
	return result, nil
}

// evaluateRule runs the rule's conditions in order, stopping at the first that fails.
// It returns the action to apply, or "" when the rule could not be evaluated.
func (e *RuleEngine) evaluateRule(ctx context.Context, entity Entity, r *rule.Rule, now time.Time) (invoice.RuleResult, shared.ActionType, error) {
	rr := invoice.RuleResult{
		RuleID:   r.RuleID,
		RuleName: r.RuleName,
		RuleType: r.RuleType,
	}

	if !r.Valid() {
		rr.Result = shared.ResultFailed
		rr.Message = "rule configuration is invalid"
		rr.Evidence = invoice.Evidence{Timestamp: now, Severity: shared.SeverityConfigError, Details: r.ConfigError}
		return rr, "", nil
	}

	for i := range r.Conditions {
		c := &r.Conditions[i]
		out, err := e.evaluator.Evaluate(ctx, entity.VendorCode, c, entity.InvoiceRecord, entity.OMSRecord)
		if err != nil {
			return rr, "", err
		}
		if out.ConfigError {
			rr.Result = shared.ResultFailed
			rr.Message = "condition configuration is invalid"
			rr.Field = out.Field
			rr.Operator = c.Operator
			rr.Evidence = invoice.Evidence{Timestamp: now, Severity: shared.SeverityConfigError, Details: out.Details}
			return rr, "", nil
		}
		if !out.Passed {
			rr.Result = shared.ResultWarning
			severity := shared.SeverityWarning
			if r.RuleType == shared.RuleTypeHard {
				rr.Result = shared.ResultFailed
				severity = shared.SeverityError
			}
			rr.Message = fmt.Sprintf("%s %s check failed", c.Type, c.Operator)
			rr.Field = out.Field
			rr.Operator = c.Operator
			rr.ExpectedValue = out.Expected
			rr.ActualValue = out.Actual
			rr.Action = r.Actions.OnMismatch
			rr.Evidence = invoice.Evidence{Timestamp: now, Severity: severity, Details: out.Details}
			return rr, r.Actions.OnMismatch, nil
		}
	}

	rr.Result = shared.ResultPassed
	rr.Message = fmt.Sprintf("all %d conditions passed", len(r.Conditions))
	rr.Action = r.Actions.OnMatch
	rr.Evidence = invoice.Evidence{Timestamp: now, Severity: shared.SeverityInfo, Details: rr.Message}
	return rr, r.Actions.OnMatch, nil
}

// ErrorResult is recorded for an entity whose evaluation failed unexpectedly
func ErrorResult(entity Entity, now time.Time, message string) *invoice.ValidationResult {
	return &invoice.ValidationResult{
		EntityID:       entity.ID,
		EntityType:     entity.Type,
		InvoiceID:      entity.InvoiceID,
		VendorCode:     entity.VendorCode,
		OverallStatus:  shared.ValidationStatusError,
		ResolvedAction: shared.ActionContinue,
		Error:          message,
		RuleResults:    []invoice.RuleResult{},
		EvaluatedAt:    now,
	}
}
