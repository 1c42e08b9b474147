package service

import (
	"context"
	"fmt"
	"time"

	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

type snapshotKey struct {
	vendorCode string
	entityType shared.EntityType
}

// ruleSnapshot is the rule set of one batch, loaded once and read-only afterwards
type ruleSnapshot struct {
	rules map[snapshotKey][]*rule.Rule
}

// loadSnapshot fetches the applicable rules of every vendor for both entity types
func loadSnapshot(ctx context.Context, repo rule.Repository, vendorCodes []string, asOf time.Time) (*ruleSnapshot, error) {
	snap := &ruleSnapshot{rules: make(map[snapshotKey][]*rule.Rule)}
	for _, vendor := range vendorCodes {
		for _, entityType := range []shared.EntityType{shared.EntityTypeLineItem, shared.EntityTypeInvoice} {
			key := snapshotKey{vendorCode: vendor, entityType: entityType}
			if _, loaded := snap.rules[key]; loaded {
				continue
			}
			rules, err := repo.FindApplicable(ctx, vendor, entityType, asOf)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s rules for vendor %s: %w", entityType, vendor, err)
			}
			snap.rules[key] = rules
		}
	}
	return snap, nil
}

// rulesFor returns a private copy of the rules so evaluations never share mutable state
func (s *ruleSnapshot) rulesFor(vendorCode string, entityType shared.EntityType) []*rule.Rule {
	src := s.rules[snapshotKey{vendorCode: vendorCode, entityType: entityType}]
	out := make([]*rule.Rule, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	return out
}
