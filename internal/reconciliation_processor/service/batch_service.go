package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
	"github.com/invoice-reconciliation/internal/reconciliation/engine"
)

const tracerName = "github.com/invoice-reconciliation/internal/reconciliation_processor/service"

// Config tunes the batch service
type Config struct {
	PoolSize             int
	PersistRetryAttempts int
	PersistRetryBackoff  time.Duration
}

// BatchService evaluates the line items of every requested invoice on a bounded worker pool
// and persists each invoice once all of its entities are evaluated.
type BatchService struct {
	rules     rule.Repository
	invoices  invoice.Repository
	sink      invoice.ResultSink
	evaluator EntityEvaluator
	pool      *ants.Pool
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     func() time.Time
}

func NewBatchService(
	logger *slog.Logger,
	rules rule.Repository,
	invoices invoice.Repository,
	sink invoice.ResultSink,
	evaluator EntityEvaluator,
	cfg Config,
) (*BatchService, error) {
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	if cfg.PersistRetryAttempts <= 0 {
		cfg.PersistRetryAttempts = 1
	}

	return &BatchService{
		rules:     rules,
		invoices:  invoices,
		sink:      sink,
		evaluator: evaluator,
		pool:      pool,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		clock:     time.Now,
	}, nil
}

// invoiceRun tracks one invoice through the batch
type invoiceRun struct {
	invoice   *invoice.Invoice
	lineItems []*invoice.LineItem
	results   []*invoice.ValidationResult
	remaining atomic.Int32
}

// batchRun is the shared state of one Reconcile call. Dispatched tasks run on ctx, which
// ignores cancellation of the request; stop ends dispatch.
type batchRun struct {
	ctx      context.Context
	stop     context.Context
	now      time.Time
	snapshot *ruleSnapshot
	logger   *slog.Logger
	wg       sync.WaitGroup

	mu       sync.Mutex
	fatal    error
	outcomes map[string]InvoiceOutcome
	halt     context.CancelFunc
}

func (b *batchRun) fail(err error) {
	b.mu.Lock()
	if b.fatal == nil {
		b.fatal = err
	}
	b.mu.Unlock()
	b.halt()
}

func (b *batchRun) record(o InvoiceOutcome) {
	b.mu.Lock()
	b.outcomes[o.InvoiceID] = o
	b.mu.Unlock()
}

// Reconcile evaluates the requested invoices against a rule snapshot taken at the start of the call.
// Rule source, entity source or HMS failures abort the batch: nothing further is dispatched and
// invoices without a complete evaluation are reported as not processed. Cancelling ctx stops
// dispatch only; entities already running finish and their invoices are persisted.
func (s *BatchService) Reconcile(ctx context.Context, request *shared.ReconciliationRequest) (*BatchReport, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	logger := s.logger.With("request_id", request.RequestID.String())
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	ctx, span := s.tracer.Start(ctx, "reconciliation.batch", trace.WithAttributes(
		attribute.String("reconciliation.request_id", request.RequestID.String()),
		attribute.Int("reconciliation.invoices", len(request.InvoiceIDs)),
	))
	defer span.End()

	now := s.clock().UTC()
	report := &BatchReport{RequestID: request.RequestID}

	runs, err := s.loadInvoices(ctx, request.InvoiceIDs, report)
	if err != nil {
		return s.abort(span, logger, report, err)
	}

	snapshot, err := loadSnapshot(ctx, s.rules, vendorCodes(runs), now)
	if err != nil {
		return s.abort(span, logger, report, err)
	}

	logger.Info("Reconciliation batch started", "invoices", len(runs), "evaluated_at", now)

	stop, halt := context.WithCancel(ctx)
	defer halt()
	batch := &batchRun{
		ctx:      context.WithoutCancel(ctx),
		stop:     stop,
		halt:     halt,
		now:      now,
		snapshot: snapshot,
		logger:   logger,
		outcomes: make(map[string]InvoiceOutcome, len(runs)),
	}

	s.dispatch(batch, runs)
	batch.wg.Wait()

	for _, run := range runs {
		outcome, done := batch.outcomes[run.invoice.ID]
		if !done {
			report.NotProcessed = append(report.NotProcessed, run.invoice.ID)
			continue
		}
		report.Invoices = append(report.Invoices, outcome)
		if !outcome.Persisted {
			report.PersistFailures = append(report.PersistFailures, outcome.InvoiceID)
		}
	}

	if batch.fatal != nil {
		return s.abort(span, logger, report, batch.fatal)
	}
	if err := ctx.Err(); err != nil {
		return s.abort(span, logger, report, fmt.Errorf("reconciliation interrupted: %w", err))
	}

	span.SetAttributes(
		attribute.Int("reconciliation.reconciled", len(report.Invoices)),
		attribute.Int("reconciliation.persist_failures", len(report.PersistFailures)),
	)
	logger.Info("Reconciliation batch completed",
		"reconciled", len(report.Invoices),
		"not_found", len(report.NotFound),
		"persist_failures", len(report.PersistFailures),
	)
	return report, nil
}

func (s *BatchService) abort(span trace.Span, logger *slog.Logger, report *BatchReport, err error) (*BatchReport, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("Reconciliation batch aborted",
		"error", err,
		"reconciled", len(report.Invoices),
		"not_processed", len(report.NotProcessed),
	)
	return report, err
}

// loadInvoices reads every requested invoice with its line items, skipping duplicates
func (s *BatchService) loadInvoices(ctx context.Context, invoiceIDs []string, report *BatchReport) ([]*invoiceRun, error) {
	seen := make(map[string]struct{}, len(invoiceIDs))
	runs := make([]*invoiceRun, 0, len(invoiceIDs))

	for _, id := range invoiceIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		inv, err := s.invoices.GetInvoice(ctx, id)
		if err != nil {
			if errors.As(err, &invoice.ErrInvoiceNotFound{}) {
				report.NotFound = append(report.NotFound, id)
				continue
			}
			return nil, fmt.Errorf("failed to load invoice %s: %w", id, err)
		}

		lineItems, err := s.invoices.GetLineItems(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load line items of invoice %s: %w", id, err)
		}

		run := &invoiceRun{
			invoice:   inv,
			lineItems: lineItems,
			results:   make([]*invoice.ValidationResult, len(lineItems)),
		}
		run.remaining.Store(int32(len(lineItems)))
		runs = append(runs, run)
	}
	return runs, nil
}

func vendorCodes(runs []*invoiceRun) []string {
	seen := make(map[string]struct{})
	var codes []string
	add := func(code string) {
		if _, ok := seen[code]; !ok {
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	for _, run := range runs {
		add(run.invoice.VendorCode)
		for _, li := range run.lineItems {
			add(li.VendorCode)
		}
	}
	return codes
}

// dispatch submits one task per line item; invoices without line items are finished directly
func (s *BatchService) dispatch(b *batchRun, runs []*invoiceRun) {
	for _, run := range runs {
		run := run
		if len(run.lineItems) == 0 {
			if !s.submit(b, func() { s.finishInvoice(b, run) }) {
				return
			}
			continue
		}
		for i := range run.lineItems {
			i := i
			if !s.submit(b, func() { s.evaluateLineItem(b, run, i) }) {
				return
			}
		}
	}
}

func (s *BatchService) submit(b *batchRun, task func()) bool {
	if b.stop.Err() != nil {
		return false
	}
	b.wg.Add(1)
	err := s.pool.Submit(func() {
		defer b.wg.Done()
		if b.stop.Err() != nil {
			return
		}
		task()
	})
	if err != nil {
		b.wg.Done()
		b.fail(fmt.Errorf("failed to submit task to worker pool: %w", err))
		return false
	}
	return true
}

func (s *BatchService) evaluateLineItem(b *batchRun, run *invoiceRun, i int) {
	li := run.lineItems[i]

	entity, err := engine.LineItemEntity(li)
	var result *invoice.ValidationResult
	if err != nil {
		b.logger.Error("Failed to build line item record", "line_item_id", li.ID, "error", err)
		result = engine.ErrorResult(engine.Entity{
			ID:         li.ID,
			InvoiceID:  li.InvoiceID,
			VendorCode: li.VendorCode,
			Type:       shared.EntityTypeLineItem,
		}, b.now, err.Error())
	} else {
		var ok bool
		result, ok = s.evaluate(b, entity)
		if !ok {
			return
		}
	}

	run.results[i] = result
	if run.remaining.Add(-1) == 0 {
		s.finishInvoice(b, run)
	}
}

// evaluate runs the engine for one entity. A panic or an unexpected error yields an ERROR result.
// It reports false when the entity could not be evaluated and the invoice must stay unprocessed.
func (s *BatchService) evaluate(b *batchRun, entity engine.Entity) (result *invoice.ValidationResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Entity evaluation panicked",
				"entity_id", entity.ID,
				"entity_type", entity.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result, ok = engine.ErrorResult(entity, b.now, fmt.Sprintf("evaluation panicked: %v", r)), true
		}
	}()

	rules := b.snapshot.rulesFor(entity.VendorCode, entity.Type)
	result, err := s.evaluator.Evaluate(b.ctx, entity, rules, b.now)
	switch {
	case err == nil:
		return result, true
	case hms.IsUnavailable(err):
		b.fail(fmt.Errorf("hms mapping source unavailable: %w", err))
		return nil, false
	default:
		b.logger.Error("Entity evaluation failed", "entity_id", entity.ID, "entity_type", entity.Type, "error", err)
		return engine.ErrorResult(entity, b.now, err.Error()), true
	}
}

// finishInvoice runs invoice level rules, aggregates and persists the invoice
func (s *BatchService) finishInvoice(b *batchRun, run *invoiceRun) {
	inv := run.invoice
	ctx, span := s.tracer.Start(b.ctx, "reconciliation.invoice", trace.WithAttributes(
		attribute.String("invoice.id", inv.ID),
		attribute.String("invoice.vendor_code", inv.VendorCode),
		attribute.Int("invoice.line_items", len(run.lineItems)),
	))
	defer span.End()

	var invoiceResult *invoice.ValidationResult
	if len(b.snapshot.rulesFor(inv.VendorCode, shared.EntityTypeInvoice)) > 0 {
		entity, err := engine.InvoiceEntity(inv)
		if err != nil {
			invoiceResult = engine.ErrorResult(engine.Entity{
				ID:         inv.ID,
				InvoiceID:  inv.ID,
				VendorCode: inv.VendorCode,
				Type:       shared.EntityTypeInvoice,
			}, b.now, err.Error())
		} else {
			var ok bool
			if invoiceResult, ok = s.evaluate(b, entity); !ok {
				return
			}
		}
	}

	status := engine.AggregateInvoice(inv, run.results, invoiceResult, b.now)
	span.SetAttributes(attribute.String("invoice.status", string(status.Status)))

	outcome := InvoiceOutcome{
		InvoiceID: inv.ID,
		Status:    status.Status,
		LineItems: len(run.results),
		Errors:    entityErrors(run.results, invoiceResult),
		Result:    status,
	}

	err := withRetry(ctx, s.cfg.PersistRetryAttempts, s.cfg.PersistRetryBackoff, func(ctx context.Context) error {
		return s.persist(ctx, run.results, invoiceResult, status)
	})
	if err != nil {
		span.RecordError(err)
		b.logger.Error("Failed to persist reconciliation results", "invoice_id", inv.ID, "error", err)
		outcome.Errors = append(outcome.Errors, err.Error())
	} else {
		outcome.Persisted = true
	}

	b.logger.Info("Invoice reconciled",
		"invoice_id", inv.ID,
		"status", status.Status,
		"dispute_type", status.DisputeType,
		"line_items", len(run.results),
		"persisted", outcome.Persisted,
	)
	b.record(outcome)
}

func (s *BatchService) persist(ctx context.Context, lineItems []*invoice.ValidationResult, invoiceResult *invoice.ValidationResult, status *invoice.ReconciliationStatus) error {
	for _, result := range lineItems {
		if err := s.sink.UpsertValidationResult(ctx, result); err != nil {
			return err
		}
	}
	if invoiceResult != nil {
		if err := s.sink.UpsertValidationResult(ctx, invoiceResult); err != nil {
			return err
		}
	}
	return s.sink.UpsertReconciliationStatus(ctx, status)
}

func entityErrors(lineItems []*invoice.ValidationResult, invoiceResult *invoice.ValidationResult) []string {
	var errs []string
	for _, r := range append(lineItems, invoiceResult) {
		if r != nil && r.Error != "" {
			errs = append(errs, r.EntityID+": "+r.Error)
		}
	}
	return errs
}

// Shutdown releases the worker pool
func (s *BatchService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}
