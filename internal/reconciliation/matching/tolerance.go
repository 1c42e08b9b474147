package matching

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

var hundred = decimal.NewFromInt(100)

// Allowance returns the permitted absolute deviation from the OMS value
func Allowance(t rule.Tolerance, oms decimal.Decimal) decimal.Decimal {
	pct := oms.Abs().Mul(t.Percentage).Div(hundred)
	abs := t.AbsoluteValue

	switch t.Mode {
	case rule.TolerancePercentageOnly:
		return pct
	case rule.ToleranceHigherOf:
		return decimal.Max(pct, abs)
	case rule.ToleranceLowerOf:
		return decimal.Min(pct, abs)
	default:
		return abs
	}
}

// WithinTolerance reports whether |invoice - oms| <= allowance; the boundary is inclusive
func WithinTolerance(t rule.Tolerance, invoice, oms decimal.Decimal) bool {
	return invoice.Sub(oms).Abs().LessThanOrEqual(Allowance(t, oms))
}

// CompareNumeric applies a numeric operator. Tolerance only widens EQUALS and NOT_EQUALS.
func CompareNumeric(op shared.Operator, t rule.Tolerance, invoice, oms decimal.Decimal) (bool, error) {
	switch op {
	case shared.OperatorEquals:
		return WithinTolerance(t, invoice, oms), nil
	case shared.OperatorNotEquals:
		return !WithinTolerance(t, invoice, oms), nil
	case shared.OperatorGreaterThan:
		return invoice.GreaterThan(oms), nil
	case shared.OperatorGreaterThanOrEqual:
		return invoice.GreaterThanOrEqual(oms), nil
	case shared.OperatorLessThan:
		return invoice.LessThan(oms), nil
	case shared.OperatorLessThanOrEqual:
		return invoice.LessThanOrEqual(oms), nil
	}
	return false, fmt.Errorf("%w: %s", rule.ErrUnsupportedOperator, op)
}
