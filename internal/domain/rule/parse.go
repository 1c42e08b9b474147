package rule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/invoice-reconciliation/internal/domain/shared"
)

var (
	ErrUnknownConditionType = errors.New("unknown condition type")
	ErrUnsupportedOperator  = errors.New("operator not supported for condition type")
	ErrMissingField         = errors.New("condition field reference is required")
	ErrInvalidTolerance     = errors.New("invalid tolerance")
	ErrInvalidWindow        = errors.New("effective_to must be after effective_from")
)

var validate = validator.New()

// operatorsByType lists the operators each condition type accepts
var operatorsByType = map[shared.ConditionType][]shared.Operator{
	shared.ConditionExactMatch: {shared.OperatorEquals, shared.OperatorNotEquals},
	shared.ConditionStringMatch: {
		shared.OperatorEquals, shared.OperatorNotEquals, shared.OperatorContains,
		shared.OperatorStartsWith, shared.OperatorEndsWith,
	},
	shared.ConditionNumericComparison: {
		shared.OperatorEquals, shared.OperatorNotEquals,
		shared.OperatorGreaterThan, shared.OperatorGreaterThanOrEqual,
		shared.OperatorLessThan, shared.OperatorLessThanOrEqual,
	},
	shared.ConditionFuzzyMatch:   {shared.OperatorSimilar},
	shared.ConditionBookingMatch: {shared.OperatorMatches},
	shared.ConditionStatusCheck:  {shared.OperatorIn, shared.OperatorNotIn},
	shared.ConditionDateComparison: {
		shared.OperatorEquals, shared.OperatorBefore, shared.OperatorAfter,
		shared.OperatorOnOrBefore, shared.OperatorOnOrAfter, shared.OperatorWithinDays,
	},
}

type rawStringMatch struct {
	CaseSensitive  bool  `json:"case_sensitive"`
	TrimWhitespace *bool `json:"trim_whitespace"`
}

type rawTolerance struct {
	Percentage    *decimal.Decimal `json:"percentage"`
	AbsoluteValue *decimal.Decimal `json:"absolute_value"`
	Currency      string           `json:"currency" validate:"omitempty,len=3"`
	Mode          ToleranceMode    `json:"mode" validate:"required,oneof=PERCENTAGE_ONLY ABSOLUTE_ONLY HIGHER_OF LOWER_OF"`
}

type rawNumericComparison struct {
	Tolerance     *rawTolerance `json:"tolerance"`
	CurrencyField string        `json:"currency_field"`
}

type rawFuzzyMatch struct {
	Algorithms           []FuzzyAlgorithm      `json:"algorithms" validate:"required,min=1,dive,oneof=Levenshtein Soundex Abbreviations Others"`
	Threshold            *float64              `json:"threshold" validate:"required,gte=0,lte=100"`
	AbbreviationMappings []AbbreviationMapping `json:"abbreviation_mappings" validate:"dive"`
}

type rawBookingMatch struct {
	PrefixHandling PrefixHandling    `json:"prefix_handling"`
	Strategies     []BookingStrategy `json:"strategies" validate:"required,min=1,dive,oneof=DIRECT_OMS HMS_MAPPING"`
}

type rawStatusCheck struct {
	AllowedValues []*string    `json:"allowed_values" validate:"required,min=1"`
	CaseSensitive bool         `json:"case_sensitive"`
	Source        RecordSource `json:"source" validate:"omitempty,oneof=OMS INVOICE"`
}

type rawDateComparison struct {
	ToleranceDays   int    `json:"tolerance_days" validate:"gte=0"`
	Layout          string `json:"layout"`
	CompareDateOnly *bool  `json:"compare_date_only"`
}

// DefaultCurrencyField is read from both records when a numeric condition does not name one
const DefaultCurrencyField = "financial.currency"

// Prepare validates the rule and parses every condition configuration into its typed form.
// An invalid rule keeps ConfigError set and is reported, not evaluated.
func (r *Rule) Prepare() error {
	var problems []string

	if err := validate.Struct(r); err != nil {
		problems = append(problems, describeValidationError(err)...)
	}
	if r.EffectiveTo != nil && !r.EffectiveTo.After(r.EffectiveFrom) {
		problems = append(problems, ErrInvalidWindow.Error())
	}

	for i := range r.Conditions {
		cfg, err := ParseCondition(&r.Conditions[i])
		if err != nil {
			r.Conditions[i].Config = nil
			problems = append(problems, fmt.Sprintf("condition %d (%s): %v", i, r.Conditions[i].Type, err))
			continue
		}
		r.Conditions[i].Config = cfg
	}

	if len(problems) > 0 {
		err := ErrInvalidRule{RuleID: r.RuleID, Problems: problems}
		r.ConfigError = err.Error()
		return err
	}

	r.ConfigError = ""
	return nil
}

// ParseCondition turns a condition's raw configuration into its typed form
func ParseCondition(c *Condition) (ConditionConfig, error) {
	allowed, known := operatorsByType[c.Type]
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConditionType, c.Type)
	}
	if !containsOperator(allowed, c.Operator) {
		return nil, fmt.Errorf("%w: %s does not accept %q", ErrUnsupportedOperator, c.Type, c.Operator)
	}

	switch c.Type {
	case shared.ConditionExactMatch:
		if err := requireBothFields(c); err != nil {
			return nil, err
		}
		return ExactMatchConfig{}, nil

	case shared.ConditionStringMatch:
		if err := requireBothFields(c); err != nil {
			return nil, err
		}
		var raw rawStringMatch
		if err := decodeConfiguration(c.Configuration, &raw); err != nil {
			return nil, err
		}
		trim := true
		if raw.TrimWhitespace != nil {
			trim = *raw.TrimWhitespace
		}
		return StringMatchConfig{CaseSensitive: raw.CaseSensitive, TrimWhitespace: trim}, nil

	case shared.ConditionNumericComparison:
		if err := requireBothFields(c); err != nil {
			return nil, err
		}
		var raw rawNumericComparison
		if err := decodeConfiguration(c.Configuration, &raw); err != nil {
			return nil, err
		}
		return parseNumericComparison(raw)

	case shared.ConditionFuzzyMatch:
		if err := requireBothFields(c); err != nil {
			return nil, err
		}
		var raw rawFuzzyMatch
		if err := decodeConfiguration(c.Configuration, &raw); err != nil {
			return nil, err
		}
		cfg := FuzzyMatchConfig{
			Algorithms:           raw.Algorithms,
			Threshold:            *raw.Threshold,
			AbbreviationMappings: raw.AbbreviationMappings,
		}
		if cfg.Enabled(AlgorithmAbbreviations) && len(cfg.AbbreviationMappings) == 0 {
			return nil, errors.New("abbreviation_mappings are required when Abbreviations is enabled")
		}
		return cfg, nil

	case shared.ConditionBookingMatch:
		if err := requireBothFields(c); err != nil {
			return nil, err
		}
		var raw rawBookingMatch
		if err := decodeConfiguration(c.Configuration, &raw); err != nil {
			return nil, err
		}
		if raw.PrefixHandling.Enabled && len(raw.PrefixHandling.Prefixes) == 0 {
			return nil, errors.New("prefix_handling.prefixes are required when prefix handling is enabled")
		}
		return BookingMatchConfig{PrefixHandling: raw.PrefixHandling, Strategies: raw.Strategies}, nil

	case shared.ConditionStatusCheck:
		var raw rawStatusCheck
		if err := decodeConfiguration(c.Configuration, &raw); err != nil {
			return nil, err
		}
		return parseStatusCheck(c, raw)

	case shared.ConditionDateComparison:
		if err := requireBothFields(c); err != nil {
			return nil, err
		}
		var raw rawDateComparison
		if err := decodeConfiguration(c.Configuration, &raw); err != nil {
			return nil, err
		}
		dateOnly := true
		if raw.CompareDateOnly != nil {
			dateOnly = *raw.CompareDateOnly
		}
		if c.Operator == shared.OperatorWithinDays && raw.ToleranceDays == 0 {
			return nil, errors.New("tolerance_days is required for WITHIN_DAYS")
		}
		return DateComparisonConfig{ToleranceDays: raw.ToleranceDays, Layout: raw.Layout, CompareDateOnly: dateOnly}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownConditionType, c.Type)
}

func parseNumericComparison(raw rawNumericComparison) (ConditionConfig, error) {
	cfg := NumericComparisonConfig{
		CurrencyField: raw.CurrencyField,
		Tolerance:     Tolerance{Mode: ToleranceAbsoluteOnly},
	}
	if cfg.CurrencyField == "" {
		cfg.CurrencyField = DefaultCurrencyField
	}
	if raw.Tolerance == nil {
		return cfg, nil
	}

	t := raw.Tolerance
	hasPercentage := t.Percentage != nil
	hasAbsolute := t.AbsoluteValue != nil

	switch t.Mode {
	case TolerancePercentageOnly:
		if !hasPercentage {
			return nil, fmt.Errorf("%w: PERCENTAGE_ONLY requires percentage", ErrInvalidTolerance)
		}
	case ToleranceAbsoluteOnly:
		if !hasAbsolute {
			return nil, fmt.Errorf("%w: ABSOLUTE_ONLY requires absolute_value", ErrInvalidTolerance)
		}
	case ToleranceHigherOf, ToleranceLowerOf:
		if !hasPercentage || !hasAbsolute {
			return nil, fmt.Errorf("%w: %s requires percentage and absolute_value", ErrInvalidTolerance, t.Mode)
		}
	}

	if hasPercentage {
		if t.Percentage.IsNegative() || t.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidTolerance)
		}
		cfg.Tolerance.Percentage = *t.Percentage
	}
	if hasAbsolute {
		if t.AbsoluteValue.IsNegative() {
			return nil, fmt.Errorf("%w: absolute_value cannot be negative", ErrInvalidTolerance)
		}
		cfg.Tolerance.AbsoluteValue = *t.AbsoluteValue
	}
	cfg.Tolerance.Mode = t.Mode
	cfg.Tolerance.Currency = strings.ToUpper(t.Currency)
	return cfg, nil
}

func parseStatusCheck(c *Condition, raw rawStatusCheck) (ConditionConfig, error) {
	cfg := StatusCheckConfig{CaseSensitive: raw.CaseSensitive, Source: raw.Source}
	if cfg.Source == "" {
		cfg.Source = SourceOMS
	}
	if cfg.Source == SourceOMS && c.OMSField == "" {
		return nil, fmt.Errorf("%w: oms_field", ErrMissingField)
	}
	if cfg.Source == SourceInvoice && c.InvoiceField == "" {
		return nil, fmt.Errorf("%w: invoice_field", ErrMissingField)
	}
	for _, v := range raw.AllowedValues {
		if v == nil {
			cfg.AllowAbsent = true
			continue
		}
		cfg.AllowedValues = append(cfg.AllowedValues, *v)
	}
	return cfg, nil
}

// decodeConfiguration strictly decodes raw into dst and runs struct validation
func decodeConfiguration(raw json.RawMessage, dst interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed configuration: %w", err)
	}

	if err := validate.Struct(dst); err != nil {
		return errors.New(strings.Join(describeValidationError(err), "; "))
	}
	return nil
}

func requireBothFields(c *Condition) error {
	if c.InvoiceField == "" {
		return fmt.Errorf("%w: invoice_field", ErrMissingField)
	}
	if c.OMSField == "" {
		return fmt.Errorf("%w: oms_field", ErrMissingField)
	}
	return nil
}

func containsOperator(ops []shared.Operator, op shared.Operator) bool {
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}

func describeValidationError(err error) []string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		problem := fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			problem += " (" + fe.Param() + ")"
		}
		problems = append(problems, problem)
	}
	return problems
}
