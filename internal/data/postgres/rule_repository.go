// Package postgres provides PostgreSQL implementations of the rule store and HMS booking mappings.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
	"github.com/invoice-reconciliation/internal/platform/persistence"
)

const uniqueViolation = "23505"

const selectRuleColumns = `
		SELECT rule_id, seq, rule_name, vendor_code, entity_type, rule_type, priority, is_active,
		       effective_from, effective_to, conditions, actions
		FROM reconciliation_rules`

// TxRunner runs fn inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ TxRunner = (*persistence.PostgresDB)(nil)

// RuleRepository implements rule.Repository for PostgreSQL
type RuleRepository struct {
	querier persistence.Querier // *pgxpool.Pool or pgx.Tx
	txs     TxRunner
	logger  *slog.Logger
}

// NewRuleRepository creates a PostgreSQL rule repository
func NewRuleRepository(logger *slog.Logger, db *persistence.PostgresDB) *RuleRepository {
	return &RuleRepository{
		querier: db.Pool(),
		txs:     db,
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *RuleRepository) WithTx(tx pgx.Tx) *RuleRepository {
	return &RuleRepository{
		querier: tx,
		txs:     r.txs,
		logger:  r.logger,
	}
}

// FindApplicable loads the active rules of a vendor, including wildcard rules, effective at asOf.
// Rules whose stored configuration does not parse are returned with ConfigError set.
func (r *RuleRepository) FindApplicable(ctx context.Context, vendorCode string, entityType shared.EntityType, asOf time.Time) ([]*rule.Rule, error) {
	query := selectRuleColumns + `
		WHERE is_active = TRUE
		  AND entity_type = $1
		  AND (vendor_code = $2 OR vendor_code = $3)
		  AND effective_from <= $4
		  AND (effective_to IS NULL OR effective_to > $4)
		ORDER BY priority ASC, seq ASC
	`

	rows, err := r.querier.Query(ctx, query, entityType, vendorCode, shared.WildcardVendorCode, asOf)
	if err != nil {
		r.logger.Error("Failed to query applicable rules", "vendor_code", vendorCode, "entity_type", entityType, "error", err)
		return nil, fmt.Errorf("failed to query applicable rules: %w", err)
	}
	defer rows.Close()

	var rules []*rule.Rule
	for rows.Next() {
		rl, err := scanRule(rows)
		if err != nil {
			r.logger.Error("Failed to scan rule", "error", err)
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := rl.Prepare(); err != nil {
			r.logger.Warn("Rule configuration is invalid", "rule_id", rl.RuleID, "error", err)
		}
		rules = append(rules, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	rule.SortByPriority(rules)
	return rules, nil
}

// GetByID retrieves a rule by its id
func (r *RuleRepository) GetByID(ctx context.Context, ruleID string) (*rule.Rule, error) {
	return r.getByID(ctx, ruleID, "")
}

func (r *RuleRepository) getByID(ctx context.Context, ruleID, lock string) (*rule.Rule, error) {
	query := selectRuleColumns + `
		WHERE rule_id = $1
	` + lock

	rl, err := scanRule(r.querier.QueryRow(ctx, query, ruleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rule.ErrRuleNotFound{RuleID: ruleID}
		}
		r.logger.Error("Failed to get rule", "rule_id", ruleID, "error", err)
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	if err := rl.Prepare(); err != nil {
		r.logger.Warn("Rule configuration is invalid", "rule_id", rl.RuleID, "error", err)
	}
	return rl, nil
}

// Create validates and stores a new rule, assigning its insertion sequence
func (r *RuleRepository) Create(ctx context.Context, rl *rule.Rule) error {
	if err := rl.Prepare(); err != nil {
		return err
	}

	conditions, err := json.Marshal(rl.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(rl.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	query := `
		INSERT INTO reconciliation_rules (rule_id, rule_name, vendor_code, entity_type, rule_type, priority,
			is_active, effective_from, effective_to, conditions, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq
	`

	err = r.querier.QueryRow(ctx, query,
		rl.RuleID,
		rl.RuleName,
		rl.VendorCode,
		rl.EntityType,
		rl.RuleType,
		rl.Priority,
		rl.IsActive,
		rl.EffectiveFrom,
		rl.EffectiveTo,
		conditions,
		actions,
	).Scan(&rl.Sequence)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return rule.ErrDuplicateRule{RuleID: rl.RuleID}
		}
		r.logger.Error("Failed to create rule", "rule_id", rl.RuleID, "error", err)
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// Supersede ends previousID where replacement takes effect and inserts replacement,
// in one transaction
func (r *RuleRepository) Supersede(ctx context.Context, previousID string, replacement *rule.Rule) error {
	if err := replacement.Prepare(); err != nil {
		return err
	}

	return r.txs.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := r.WithTx(tx)

		previous, err := repo.getByID(ctx, previousID, "FOR UPDATE")
		if err != nil {
			return err
		}
		if err := rule.CheckReplacement(previous, replacement); err != nil {
			return err
		}

		query := `
			UPDATE reconciliation_rules
			SET effective_to = $2
			WHERE rule_id = $1
		`
		if _, err := repo.querier.Exec(ctx, query, previousID, replacement.EffectiveFrom); err != nil {
			r.logger.Error("Failed to end rule", "rule_id", previousID, "error", err)
			return fmt.Errorf("failed to end rule: %w", err)
		}

		return repo.Create(ctx, replacement)
	})
}

func scanRule(row pgx.Row) (*rule.Rule, error) {
	var (
		rl         rule.Rule
		conditions []byte
		actions    []byte
	)
	err := row.Scan(
		&rl.RuleID,
		&rl.Sequence,
		&rl.RuleName,
		&rl.VendorCode,
		&rl.EntityType,
		&rl.RuleType,
		&rl.Priority,
		&rl.IsActive,
		&rl.EffectiveFrom,
		&rl.EffectiveTo,
		&conditions,
		&actions,
	)
	if err != nil {
		return nil, err
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rl.Conditions); err != nil {
			return nil, fmt.Errorf("rule %s has malformed conditions: %w", rl.RuleID, err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rl.Actions); err != nil {
			return nil, fmt.Errorf("rule %s has malformed actions: %w", rl.RuleID, err)
		}
	}
	return &rl, nil
}
