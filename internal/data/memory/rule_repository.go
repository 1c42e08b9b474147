// Package memory provides an in-process rule store, used for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// RuleRepository keeps rules in memory. Stored rules are copied on the way in and out.
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*rule.Rule
	seq   int64
}

func NewRuleRepository() *RuleRepository {
	return &RuleRepository{rules: make(map[string]*rule.Rule)}
}

// Create validates rl and stores a copy, assigning the next insertion sequence
func (r *RuleRepository) Create(_ context.Context, rl *rule.Rule) error {
	if err := rl.Prepare(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rl.RuleID]; exists {
		return rule.ErrDuplicateRule{RuleID: rl.RuleID}
	}
	r.seq++
	rl.Sequence = r.seq
	r.rules[rl.RuleID] = rl.Clone()
	return nil
}

func (r *RuleRepository) FindApplicable(_ context.Context, vendorCode string, entityType shared.EntityType, asOf time.Time) ([]*rule.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*rule.Rule, 0, len(r.rules))
	for _, rl := range r.rules {
		all = append(all, rl.Clone())
	}
	return rule.Filter(all, vendorCode, entityType, asOf), nil
}

func (r *RuleRepository) GetByID(_ context.Context, ruleID string) (*rule.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rl, ok := r.rules[ruleID]
	if !ok {
		return nil, rule.ErrRuleNotFound{RuleID: ruleID}
	}
	return rl.Clone(), nil
}

// Supersede ends previousID where replacement takes effect and stores replacement
func (r *RuleRepository) Supersede(_ context.Context, previousID string, replacement *rule.Rule) error {
	if err := replacement.Prepare(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.rules[previousID]
	if !ok {
		return rule.ErrRuleNotFound{RuleID: previousID}
	}
	if err := rule.CheckReplacement(previous, replacement); err != nil {
		return err
	}
	if _, exists := r.rules[replacement.RuleID]; exists {
		return rule.ErrDuplicateRule{RuleID: replacement.RuleID}
	}

	end := replacement.EffectiveFrom
	previous.EffectiveTo = &end
	r.seq++
	replacement.Sequence = r.seq
	r.rules[replacement.RuleID] = replacement.Clone()
	return nil
}
