package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/invoice-reconciliation/internal/api_gateway/middleware"
	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// RuleServiceImpl implements RuleService and MappingService
type RuleServiceImpl struct {
	rules    RuleStore
	mappings MappingStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewRuleService creates a new rule service
func NewRuleService(logger *slog.Logger, rules RuleStore, mappings MappingStore) *RuleServiceImpl {
	return &RuleServiceImpl{
		rules:    rules,
		mappings: mappings,
		logger:   logger,
		now:      time.Now,
	}
}

var (
	_ RuleService    = (*RuleServiceImpl)(nil)
	_ MappingService = (*RuleServiceImpl)(nil)
)

func (s *RuleServiceImpl) ListApplicable(ctx context.Context, vendorCode string, entityType shared.EntityType) ([]*rule.Rule, error) {
	return s.rules.FindApplicable(ctx, vendorCode, entityType, s.now().UTC())
}

// CreateRule stores r. A rule without an effective start applies from now.
func (s *RuleServiceImpl) CreateRule(ctx context.Context, r *rule.Rule) error {
	if r.EffectiveFrom.IsZero() {
		r.EffectiveFrom = s.now().UTC()
	}

	if err := s.rules.Create(ctx, r); err != nil {
		s.logger.Warn("Failed to create rule", "rule_id", r.RuleID, "error", err)
		return err
	}

	s.logger.Info("Rule created",
		"correlation_id", middleware.CorrelationIDFromContext(ctx),
		"rule_id", r.RuleID,
		"vendor_code", r.VendorCode,
		"entity_type", r.EntityType,
		"priority", r.Priority,
	)
	return nil
}

// SupersedeRule replaces ruleID with a new version. A version without an effective start applies from now.
func (s *RuleServiceImpl) SupersedeRule(ctx context.Context, ruleID string, replacement *rule.Rule) error {
	if replacement.EffectiveFrom.IsZero() {
		replacement.EffectiveFrom = s.now().UTC()
	}

	if err := s.rules.Supersede(ctx, ruleID, replacement); err != nil {
		s.logger.Warn("Failed to supersede rule", "rule_id", ruleID, "replacement_id", replacement.RuleID, "error", err)
		return err
	}

	s.logger.Info("Rule superseded",
		"correlation_id", middleware.CorrelationIDFromContext(ctx),
		"rule_id", ruleID,
		"replacement_id", replacement.RuleID,
		"effective_from", replacement.EffectiveFrom,
	)
	return nil
}

func (s *RuleServiceImpl) ValidateRule(r *rule.Rule) []string {
	err := r.Prepare()
	if err == nil {
		return nil
	}
	var invalid rule.ErrInvalidRule
	if errors.As(err, &invalid) {
		return invalid.Problems
	}
	return []string{err.Error()}
}

func (s *RuleServiceImpl) UpsertMapping(ctx context.Context, vendorCode, vendorBookingID, omsBookingID string) (*hms.Mapping, error) {
	m := hms.Mapping{
		VendorCode:      vendorCode,
		VendorBookingID: vendorBookingID,
		OMSBookingID:    omsBookingID,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.mappings.Upsert(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("HMS mapping stored", "correlation_id", middleware.CorrelationIDFromContext(ctx), "vendor_code", vendorCode, "vendor_booking_id", vendorBookingID)
	return &m, nil
}
