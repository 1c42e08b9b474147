package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
	"github.com/invoice-reconciliation/internal/reconciliation/matching"
)

// Outcome is the result of one condition
type Outcome struct {
	Passed      bool
	ConfigError bool
	Field       string
	Expected    string
	Actual      string
	Details     string
}

// Evaluator checks a single condition against an invoice-side and an OMS-side record
type Evaluator struct {
	logger *slog.Logger
	lookup hms.Lookup
}

// NewEvaluator creates an evaluator; lookup serves HMS_MAPPING booking strategies and may be nil
func NewEvaluator(logger *slog.Logger, lookup hms.Lookup) *Evaluator {
	return &Evaluator{logger: logger, lookup: lookup}
}

// Evaluate returns the condition outcome. The error is reserved for collaborators that could
// not answer; configuration problems and missing fields are reported as failed outcomes.
func (e *Evaluator) Evaluate(ctx context.Context, vendorCode string, c *rule.Condition, invoiceRecord, omsRecord interface{}) (Outcome, error) {
	switch cfg := c.Config.(type) {
	case rule.ExactMatchConfig:
		return e.exactMatch(c, invoiceRecord, omsRecord), nil
	case rule.StringMatchConfig:
		return e.stringMatch(c, cfg, invoiceRecord, omsRecord), nil
	case rule.NumericComparisonConfig:
		return e.numericComparison(c, cfg, invoiceRecord, omsRecord), nil
	case rule.FuzzyMatchConfig:
		return e.fuzzyMatch(c, cfg, invoiceRecord, omsRecord), nil
	case rule.BookingMatchConfig:
		return e.bookingMatch(ctx, vendorCode, c, cfg, invoiceRecord, omsRecord)
	case rule.StatusCheckConfig:
		return e.statusCheck(c, cfg, invoiceRecord, omsRecord), nil
	case rule.DateComparisonConfig:
		return e.dateComparison(c, cfg, invoiceRecord, omsRecord), nil
	default:
		e.logger.Warn("Condition has no parsed configuration", "type", c.Type, "operator", c.Operator)
		return Outcome{
			ConfigError: true,
			Field:       c.InvoiceField,
			Details:     fmt.Sprintf("condition %s has no usable configuration", c.Type),
		}, nil
	}
}

// resolvePair looks up both sides of a condition, failing when either is absent
func resolvePair(c *rule.Condition, invoiceRecord, omsRecord interface{}) (interface{}, interface{}, *Outcome) {
	inv, ok := Lookup(invoiceRecord, c.InvoiceField)
	if !ok {
		return nil, nil, &Outcome{Field: c.InvoiceField, Details: "field not found in invoice record: " + c.InvoiceField}
	}
	oms, ok := Lookup(omsRecord, c.OMSField)
	if !ok {
		return nil, nil, &Outcome{Field: c.InvoiceField, Actual: text(inv), Details: "field not found in oms record: " + c.OMSField}
	}
	return inv, oms, nil
}

func (e *Evaluator) exactMatch(c *rule.Condition, invoiceRecord, omsRecord interface{}) Outcome {
	inv, oms, missing := resolvePair(c, invoiceRecord, omsRecord)
	if missing != nil {
		return *missing
	}

	actual, expected := canonical(inv), canonical(oms)
	equal := actual == expected

	out := Outcome{Field: c.InvoiceField, Expected: expected, Actual: actual}
	out.Passed = equal
	if c.Operator == shared.OperatorNotEquals {
		out.Passed = !equal
	}
	out.Details = fmt.Sprintf("%s %s: invoice=%q oms=%q", c.InvoiceField, c.Operator, actual, expected)
	return out
}

func (e *Evaluator) stringMatch(c *rule.Condition, cfg rule.StringMatchConfig, invoiceRecord, omsRecord interface{}) Outcome {
	inv, oms, missing := resolvePair(c, invoiceRecord, omsRecord)
	if missing != nil {
		return *missing
	}

	actual, expected := text(inv), text(oms)
	out := Outcome{Field: c.InvoiceField, Expected: expected, Actual: actual}

	if cfg.TrimWhitespace {
		actual, expected = strings.TrimSpace(actual), strings.TrimSpace(expected)
	}
	if !cfg.CaseSensitive {
		actual, expected = strings.ToLower(actual), strings.ToLower(expected)
	}

	switch c.Operator {
	case shared.OperatorEquals:
		out.Passed = actual == expected
	case shared.OperatorNotEquals:
		out.Passed = actual != expected
	case shared.OperatorContains:
		out.Passed = strings.Contains(actual, expected)
	case shared.OperatorStartsWith:
		out.Passed = strings.HasPrefix(actual, expected)
	case shared.OperatorEndsWith:
		out.Passed = strings.HasSuffix(actual, expected)
	default:
		return unsupported(c)
	}
	out.Details = fmt.Sprintf("%s %s: invoice=%q oms=%q", c.InvoiceField, c.Operator, out.Actual, out.Expected)
	return out
}

func (e *Evaluator) numericComparison(c *rule.Condition, cfg rule.NumericComparisonConfig, invoiceRecord, omsRecord interface{}) Outcome {
	inv, oms, missing := resolvePair(c, invoiceRecord, omsRecord)
	if missing != nil {
		return *missing
	}

	out := Outcome{Field: c.InvoiceField, Actual: text(inv), Expected: text(oms)}
	invValue, ok := toDecimal(inv)
	if !ok {
		out.Details = fmt.Sprintf("invoice value of %s is not numeric: %q", c.InvoiceField, out.Actual)
		return out
	}
	omsValue, ok := toDecimal(oms)
	if !ok {
		out.Details = fmt.Sprintf("oms value of %s is not numeric: %q", c.OMSField, out.Expected)
		return out
	}
	out.Actual, out.Expected = invValue.String(), omsValue.String()

	if reason := currencyMismatch(cfg, invoiceRecord, omsRecord); reason != "" {
		out.Details = reason
		return out
	}

	passed, err := matching.CompareNumeric(c.Operator, cfg.Tolerance, invValue, omsValue)
	if err != nil {
		return unsupported(c)
	}
	out.Passed = passed
	out.Details = fmt.Sprintf("%s %s: invoice=%s oms=%s allowance=%s (%s)",
		c.InvoiceField, c.Operator, out.Actual, out.Expected,
		matching.Allowance(cfg.Tolerance, omsValue).String(), cfg.Tolerance.Mode)
	return out
}

// currencyMismatch compares the currency of both records and the tolerance currency
func currencyMismatch(cfg rule.NumericComparisonConfig, invoiceRecord, omsRecord interface{}) string {
	invCurrency, invOK := Lookup(invoiceRecord, cfg.CurrencyField)
	omsCurrency, omsOK := Lookup(omsRecord, cfg.CurrencyField)

	if invOK && omsOK && !strings.EqualFold(strings.TrimSpace(text(invCurrency)), strings.TrimSpace(text(omsCurrency))) {
		return fmt.Sprintf("currency mismatch: invoice=%s oms=%s", text(invCurrency), text(omsCurrency))
	}
	if cfg.Tolerance.Currency != "" && invOK && !strings.EqualFold(strings.TrimSpace(text(invCurrency)), cfg.Tolerance.Currency) {
		return fmt.Sprintf("currency mismatch: invoice=%s tolerance=%s", text(invCurrency), cfg.Tolerance.Currency)
	}
	return ""
}

func (e *Evaluator) fuzzyMatch(c *rule.Condition, cfg rule.FuzzyMatchConfig, invoiceRecord, omsRecord interface{}) Outcome {
	inv, oms, missing := resolvePair(c, invoiceRecord, omsRecord)
	if missing != nil {
		return *missing
	}

	result := matching.Similarity(cfg, text(inv), text(oms))
	return Outcome{
		Passed:   result.Passed(cfg.Threshold),
		Field:    c.InvoiceField,
		Actual:   text(inv),
		Expected: text(oms),
		Details: fmt.Sprintf("%s similarity %.2f (threshold %.2f): invoice=%q oms=%q",
			c.InvoiceField, result.Score, cfg.Threshold, result.Left, result.Right),
	}
}

func (e *Evaluator) bookingMatch(ctx context.Context, vendorCode string, c *rule.Condition, cfg rule.BookingMatchConfig, invoiceRecord, omsRecord interface{}) (Outcome, error) {
	inv, oms, missing := resolvePair(c, invoiceRecord, omsRecord)
	if missing != nil {
		return *missing, nil
	}

	result, err := matching.MatchBooking(ctx, cfg, e.lookup, vendorCode, text(inv), text(oms))
	if err != nil {
		e.logger.Error("HMS mapping lookup failed", "vendor_code", vendorCode, "field", c.InvoiceField, "error", err)
		return Outcome{}, fmt.Errorf("booking match on %s: %w", c.InvoiceField, err)
	}

	out := Outcome{Passed: result.Matched, Field: c.InvoiceField, Actual: text(inv), Expected: text(oms)}
	if result.Matched {
		out.Details = fmt.Sprintf("booking reference %q matched %q via %s", result.InvoiceRef, result.OMSRef, result.Strategy)
		if result.MappedRef != "" {
			out.Details += " (mapped to " + result.MappedRef + ")"
		}
	} else {
		out.Details = fmt.Sprintf("booking reference %q did not match %q (tried %v)", result.InvoiceRef, result.OMSRef, result.Attempted)
	}
	return out, nil
}

func (e *Evaluator) statusCheck(c *rule.Condition, cfg rule.StatusCheckConfig, invoiceRecord, omsRecord interface{}) Outcome {
	record, field := omsRecord, c.OMSField
	if cfg.Source == rule.SourceInvoice {
		record, field = invoiceRecord, c.InvoiceField
	}

	out := Outcome{Field: field, Expected: strings.Join(cfg.AllowedValues, ",")}
	value, ok := Lookup(record, field)
	if !ok || strings.TrimSpace(text(value)) == "" {
		out.Passed = cfg.AllowAbsent
		if c.Operator == shared.OperatorNotIn {
			out.Passed = !cfg.AllowAbsent
		}
		out.Details = fmt.Sprintf("%s is absent (absent allowed: %t)", field, cfg.AllowAbsent)
		return out
	}

	out.Actual = text(value)
	status := strings.TrimSpace(out.Actual)
	member := false
	for _, allowed := range cfg.AllowedValues {
		if status == allowed || (!cfg.CaseSensitive && strings.EqualFold(status, allowed)) {
			member = true
			break
		}
	}

	switch c.Operator {
	case shared.OperatorIn:
		out.Passed = member
	case shared.OperatorNotIn:
		out.Passed = !member
	default:
		return unsupported(c)
	}
	out.Details = fmt.Sprintf("%s=%q %s [%s]", field, out.Actual, c.Operator, out.Expected)
	return out
}

func (e *Evaluator) dateComparison(c *rule.Condition, cfg rule.DateComparisonConfig, invoiceRecord, omsRecord interface{}) Outcome {
	inv, oms, missing := resolvePair(c, invoiceRecord, omsRecord)
	if missing != nil {
		return *missing
	}

	out := Outcome{Field: c.InvoiceField, Actual: text(inv), Expected: text(oms)}
	invDate, ok := toTime(inv, cfg.Layout)
	if !ok {
		out.Details = fmt.Sprintf("invoice value of %s is not a date: %q", c.InvoiceField, out.Actual)
		return out
	}
	omsDate, ok := toTime(oms, cfg.Layout)
	if !ok {
		out.Details = fmt.Sprintf("oms value of %s is not a date: %q", c.OMSField, out.Expected)
		return out
	}
	if cfg.CompareDateOnly {
		invDate, omsDate = dateOnly(invDate), dateOnly(omsDate)
	}

	days := math.Abs(invDate.Sub(omsDate).Hours() / 24)
	switch c.Operator {
	case shared.OperatorEquals, shared.OperatorWithinDays:
		out.Passed = days <= float64(cfg.ToleranceDays)
	case shared.OperatorBefore:
		out.Passed = invDate.Before(omsDate)
	case shared.OperatorAfter:
		out.Passed = invDate.After(omsDate)
	case shared.OperatorOnOrBefore:
		out.Passed = !invDate.After(omsDate)
	case shared.OperatorOnOrAfter:
		out.Passed = !invDate.Before(omsDate)
	default:
		return unsupported(c)
	}
	out.Details = fmt.Sprintf("%s %s: invoice=%s oms=%s (%.1f days apart, tolerance %d)",
		c.InvoiceField, c.Operator, invDate.Format("2006-01-02T15:04:05Z07:00"), omsDate.Format("2006-01-02T15:04:05Z07:00"), days, cfg.ToleranceDays)
	return out
}

func unsupported(c *rule.Condition) Outcome {
	return Outcome{
		ConfigError: true,
		Field:       c.InvoiceField,
		Details:     fmt.Sprintf("%s does not support operator %s", c.Type, c.Operator),
	}
}
