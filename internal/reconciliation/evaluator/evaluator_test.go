package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) Resolve(ctx context.Context, vendorCode, vendorBookingID string) (string, bool, error) {
	args := m.Called(ctx, vendorCode, vendorBookingID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func condition(t *testing.T, typ shared.ConditionType, op shared.Operator, invoiceField, omsField, configuration string) *rule.Condition {
	t.Helper()
	c := &rule.Condition{
		Type:          typ,
		Operator:      op,
		InvoiceField:  invoiceField,
		OMSField:      omsField,
		Configuration: json.RawMessage(configuration),
	}
	cfg, err := rule.ParseCondition(c)
	require.NoError(t, err)
	c.Config = cfg
	return c
}

func lineItemRecord(t *testing.T, total float64, currency, guest string) map[string]interface{} {
	t.Helper()
	li := &invoice.LineItem{
		ID:         "li-1",
		InvoiceID:  "inv-1",
		VendorCode: "ACME",
		Booking: invoice.Booking{
			ConfirmationNumber: "BK-12345",
			GuestName:          guest,
			Status:             "CONFIRMED",
		},
		Financial: invoice.Financial{Currency: currency, Total: invoice.Amount(total)},
	}
	record, err := li.Record()
	require.NoError(t, err)
	return record
}

func omsRecord(total float64, currency, guest string) map[string]interface{} {
	return map[string]interface{}{
		"booking": map[string]interface{}{
			"confirmation_number": "12345",
			"guest_name":          guest,
			"status":              "confirmed",
			"check_in":            time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC),
		},
		"financial": map[string]interface{}{
			"total":    total,
			"currency": currency,
		},
	}
}

func TestEvaluator_ExactMatch(t *testing.T) {
	e := NewEvaluator(slog.Default(), nil)
	ctx := context.Background()

	t.Run("CanonicalNumbersAreEqual", func(t *testing.T) {
		c := condition(t, shared.ConditionExactMatch, shared.OperatorEquals, "financial.total", "financial.total", "")

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 100, "EUR", "x"), omsRecord(100.00, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed)
		assert.Equal(t, "100", out.Actual)
	})

	t.Run("StringsAreStrict", func(t *testing.T) {
		c := condition(t, shared.ConditionExactMatch, shared.OperatorEquals, "booking.status", "booking.status", "")

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 100, "EUR", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.False(t, out.Passed)
	})

	t.Run("NotEquals", func(t *testing.T) {
		c := condition(t, shared.ConditionExactMatch, shared.OperatorNotEquals, "booking.status", "booking.status", "")

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 100, "EUR", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed)
	})
}

func TestEvaluator_StringMatch(t *testing.T) {
	e := NewEvaluator(slog.Default(), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		op     shared.Operator
		config string
		guest  string
		oms    string
		want   bool
	}{
		{"EqualsIgnoresCaseAndSpace", shared.OperatorEquals, "", " jane DOE ", "Jane Doe", true},
		{"EqualsCaseSensitive", shared.OperatorEquals, `{"case_sensitive": true}`, "jane doe", "Jane Doe", false},
		{"NoTrim", shared.OperatorEquals, `{"trim_whitespace": false}`, "Jane Doe ", "Jane Doe", false},
		{"Contains", shared.OperatorContains, "", "Mrs Jane Doe", "jane", true},
		{"StartsWith", shared.OperatorStartsWith, "", "Jane Doe", "JANE", true},
		{"EndsWith", shared.OperatorEndsWith, "", "Jane Doe", "Jane", false},
		{"NotEquals", shared.OperatorNotEquals, "", "Jane Doe", "John Doe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := condition(t, shared.ConditionStringMatch, tt.op, "booking.guest_name", "booking.guest_name", tt.config)

			out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", tt.guest), omsRecord(1, "EUR", tt.oms))

			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Passed, out.Details)
		})
	}
}

func TestEvaluator_NumericComparison(t *testing.T) {
	e := NewEvaluator(slog.Default(), nil)
	ctx := context.Background()
	twoPercent := `{"tolerance": {"percentage": 2, "mode": "PERCENTAGE_ONLY"}}`

	t.Run("WithinTolerance", func(t *testing.T) {
		c := condition(t, shared.ConditionNumericComparison, shared.OperatorEquals, "financial.total", "financial.total", twoPercent)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 102, "EUR", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed, out.Details)
		assert.Contains(t, out.Details, "allowance=2")
	})

	t.Run("OutsideTolerance", func(t *testing.T) {
		c := condition(t, shared.ConditionNumericComparison, shared.OperatorEquals, "financial.total", "financial.total", twoPercent)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 103, "EUR", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.False(t, out.Passed)
		assert.Equal(t, "103", out.Actual)
		assert.Equal(t, "100", out.Expected)
	})

	t.Run("CurrencyMismatchFails", func(t *testing.T) {
		c := condition(t, shared.ConditionNumericComparison, shared.OperatorEquals, "financial.total", "financial.total", twoPercent)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 100, "USD", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.False(t, out.Passed)
		assert.Contains(t, out.Details, "currency mismatch")
	})

	t.Run("ToleranceCurrencyMismatchFails", func(t *testing.T) {
		cfg := `{"tolerance": {"absolute_value": 5, "currency": "usd", "mode": "ABSOLUTE_ONLY"}}`
		c := condition(t, shared.ConditionNumericComparison, shared.OperatorEquals, "financial.total", "financial.total", cfg)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 100, "EUR", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.False(t, out.Passed)
	})

	t.Run("MissingFieldFailsWithoutConfigError", func(t *testing.T) {
		c := condition(t, shared.ConditionNumericComparison, shared.OperatorEquals, "financial.taxes", "financial.taxes", "")

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 100, "EUR", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.False(t, out.Passed)
		assert.False(t, out.ConfigError)
		assert.Contains(t, out.Details, "field not found")
	})

	t.Run("GreaterThan", func(t *testing.T) {
		c := condition(t, shared.ConditionNumericComparison, shared.OperatorGreaterThan, "financial.total", "financial.total", twoPercent)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 100.5, "EUR", "x"), omsRecord(100, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed)
	})
}

func TestEvaluator_FuzzyMatch(t *testing.T) {
	e := NewEvaluator(slog.Default(), nil)
	c := condition(t, shared.ConditionFuzzyMatch, shared.OperatorSimilar, "booking.guest_name", "booking.guest_name",
		`{"algorithms": ["Levenshtein"], "threshold": 90}`)

	out, err := e.Evaluate(context.Background(), "ACME", c, lineItemRecord(t, 1, "EUR", "JOHN SMITH"), omsRecord(1, "EUR", "JON SMITH"))

	require.NoError(t, err)
	assert.True(t, out.Passed, out.Details)
	assert.Contains(t, out.Details, "similarity 90.00")
}

func TestEvaluator_BookingMatch(t *testing.T) {
	ctx := context.Background()
	cfg := `{"prefix_handling": {"enabled": true, "prefixes": ["BK-"]}, "strategies": ["DIRECT_OMS", "HMS_MAPPING"]}`

	t.Run("PrefixStripped", func(t *testing.T) {
		e := NewEvaluator(slog.Default(), nil)
		c := condition(t, shared.ConditionBookingMatch, shared.OperatorMatches, "booking.confirmation_number", "booking.confirmation_number", cfg)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", "x"), omsRecord(1, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed, out.Details)
		assert.Contains(t, out.Details, "DIRECT_OMS")
	})

	t.Run("UnavailableLookupIsError", func(t *testing.T) {
		lookup := new(mockLookup)
		lookup.On("Resolve", ctx, "ACME", "12345").
			Return("", false, hms.ErrLookupUnavailable{VendorCode: "ACME", VendorBookingID: "12345", Err: errors.New("timeout")})
		e := NewEvaluator(slog.Default(), lookup)
		c := condition(t, shared.ConditionBookingMatch, shared.OperatorMatches, "booking.confirmation_number", "booking.confirmation_number", cfg)

		oms := omsRecord(1, "EUR", "x")
		oms["booking"].(map[string]interface{})["confirmation_number"] = "OMS-9"

		_, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", "x"), oms)

		require.Error(t, err)
		assert.True(t, hms.IsUnavailable(err))
	})
}

func TestEvaluator_StatusCheck(t *testing.T) {
	e := NewEvaluator(slog.Default(), nil)
	ctx := context.Background()
	allowed := `{"allowed_values": ["CONFIRMED", "CHECKED_OUT", null]}`

	t.Run("MemberCaseInsensitive", func(t *testing.T) {
		c := condition(t, shared.ConditionStatusCheck, shared.OperatorIn, "", "booking.status", allowed)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", "x"), omsRecord(1, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed)
	})

	t.Run("AbsentAllowedByNull", func(t *testing.T) {
		c := condition(t, shared.ConditionStatusCheck, shared.OperatorIn, "", "booking.cancellation_status", allowed)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", "x"), omsRecord(1, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed)
	})

	t.Run("AbsentNotAllowed", func(t *testing.T) {
		c := condition(t, shared.ConditionStatusCheck, shared.OperatorIn, "", "booking.cancellation_status", `{"allowed_values": ["CONFIRMED"]}`)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", "x"), omsRecord(1, "EUR", "x"))

		require.NoError(t, err)
		assert.False(t, out.Passed)
	})

	t.Run("NotInFromInvoiceSource", func(t *testing.T) {
		c := condition(t, shared.ConditionStatusCheck, shared.OperatorNotIn, "booking.status", "",
			`{"allowed_values": ["CANCELLED", "NO_SHOW"], "source": "INVOICE"}`)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", "x"), omsRecord(1, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed)
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		c := condition(t, shared.ConditionStatusCheck, shared.OperatorIn, "", "booking.status", `{"allowed_values": ["CONFIRMED"], "case_sensitive": true}`)

		out, err := e.Evaluate(ctx, "ACME", c, lineItemRecord(t, 1, "EUR", "x"), omsRecord(1, "EUR", "x"))

		require.NoError(t, err)
		assert.False(t, out.Passed)
	})
}

func TestEvaluator_DateComparison(t *testing.T) {
	e := NewEvaluator(slog.Default(), nil)
	ctx := context.Background()
	invoiceSide := map[string]interface{}{"booking": map[string]interface{}{"check_in": "2024-03-01"}}

	tests := []struct {
		name   string
		op     shared.Operator
		config string
		want   bool
	}{
		{"WithinDays", shared.OperatorWithinDays, `{"tolerance_days": 1}`, true},
		{"EqualsDateOnly", shared.OperatorEquals, "", false},
		{"EqualsWithTolerance", shared.OperatorEquals, `{"tolerance_days": 1}`, true},
		{"Before", shared.OperatorBefore, "", true},
		{"After", shared.OperatorAfter, "", false},
		{"OnOrBefore", shared.OperatorOnOrBefore, "", true},
		{"OnOrAfter", shared.OperatorOnOrAfter, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := condition(t, shared.ConditionDateComparison, tt.op, "booking.check_in", "booking.check_in", tt.config)

			out, err := e.Evaluate(ctx, "ACME", c, invoiceSide, omsRecord(1, "EUR", "x"))

			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Passed, out.Details)
		})
	}

	t.Run("CustomLayout", func(t *testing.T) {
		c := condition(t, shared.ConditionDateComparison, shared.OperatorEquals, "booking.check_in", "booking.check_in", `{"layout": "02/01/2006"}`)
		side := map[string]interface{}{"booking": map[string]interface{}{"check_in": "02/03/2024"}}

		out, err := e.Evaluate(ctx, "ACME", c, side, omsRecord(1, "EUR", "x"))

		require.NoError(t, err)
		assert.True(t, out.Passed, out.Details)
	})
}

func TestEvaluator_UnparsedConfigFailsClosed(t *testing.T) {
	e := NewEvaluator(slog.Default(), nil)
	c := &rule.Condition{Type: "REGEX_MATCH", Operator: shared.OperatorEquals, InvoiceField: "a", OMSField: "a"}

	out, err := e.Evaluate(context.Background(), "ACME", c, map[string]interface{}{"a": 1}, map[string]interface{}{"a": 1})

	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.True(t, out.ConfigError)
}
