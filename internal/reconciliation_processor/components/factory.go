package components

import (
	"log/slog"

	"github.com/invoice-reconciliation/internal/config"
	redisdata "github.com/invoice-reconciliation/internal/data/redis"
	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/reconciliation/engine"
	"github.com/invoice-reconciliation/internal/reconciliation/evaluator"
	"github.com/invoice-reconciliation/internal/reconciliation_processor/service"
)

// CreateHMSLookup builds the booking mapping chain: the mapping source, an optional cache
// in front of it, and a per call timeout around both. A nil cache disables caching.
func CreateHMSLookup(logger *slog.Logger, source hms.Lookup, cache redisdata.Cache, cfg *config.Config) hms.Lookup {
	lookup := source
	if cache != nil {
		lookup = redisdata.NewCachedLookup(logger.With("component", "hms_cache"), cache, source, cfg.Reconciliation.HMSCacheTTL)
		logger.Info("HMS mapping cache enabled", "ttl", cfg.Reconciliation.HMSCacheTTL.String())
	}
	return hms.WithTimeout(lookup, cfg.Reconciliation.HMSLookupTimeout)
}

// CreateBatchService creates the BatchService with its rule engine and worker pool.
func CreateBatchService(
	logger *slog.Logger,
	rules rule.Repository,
	invoices invoice.Repository,
	sink invoice.ResultSink,
	lookup hms.Lookup,
	cfg *config.Config,
) (*service.BatchService, error) {
	ruleEngine := engine.NewRuleEngine(
		logger.With("component", "rule_engine"),
		evaluator.NewEvaluator(logger.With("component", "condition_evaluator"), lookup),
	)

	batchService, err := service.NewBatchService(
		logger.With("component", "batch_service"),
		rules,
		invoices,
		sink,
		ruleEngine,
		service.Config{
			PoolSize:             cfg.WorkerPool.Size,
			PersistRetryAttempts: cfg.Reconciliation.PersistRetryAttempts,
			PersistRetryBackoff:  cfg.Reconciliation.PersistRetryBackoff,
		},
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Created batch reconciliation service", "pool_size", cfg.WorkerPool.Size)
	return batchService, nil
}
