package rule

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/invoice-reconciliation/internal/domain/shared"
)

// Condition compares a field of the invoice-side record with a field of the OMS-side record
type Condition struct {
	Type          shared.ConditionType `json:"type" validate:"required"`
	Operator      shared.Operator      `json:"operator" validate:"required"`
	InvoiceField  string               `json:"invoice_field,omitempty"`
	OMSField      string               `json:"oms_field,omitempty"`
	Configuration json.RawMessage      `json:"configuration,omitempty"`

	// Config is the parsed form of Configuration, populated by Prepare.
	// Values are shared between snapshot copies and must not be mutated.
	Config ConditionConfig `json:"-"`
}

// ConditionConfig is the typed configuration of one condition kind.
// The set of implementations is closed to this package.
type ConditionConfig interface {
	Kind() shared.ConditionType
	sealed()
}

// ExactMatchConfig compares canonical values for strict equality
type ExactMatchConfig struct{}

// StringMatchConfig compares two strings with the condition's operator
type StringMatchConfig struct {
	CaseSensitive  bool
	TrimWhitespace bool
}

// ToleranceMode selects how the allowed numeric delta is derived
type ToleranceMode string

const (
	TolerancePercentageOnly ToleranceMode = "PERCENTAGE_ONLY"
	ToleranceAbsoluteOnly   ToleranceMode = "ABSOLUTE_ONLY"
	ToleranceHigherOf       ToleranceMode = "HIGHER_OF"
	ToleranceLowerOf        ToleranceMode = "LOWER_OF"
)

// Tolerance is the allowed deviation for numeric equality
type Tolerance struct {
	Percentage    decimal.Decimal
	AbsoluteValue decimal.Decimal
	Currency      string
	Mode          ToleranceMode
}

// NumericComparisonConfig compares numbers, using Tolerance for EQUALS and NOT_EQUALS
type NumericComparisonConfig struct {
	Tolerance     Tolerance
	CurrencyField string
}

// FuzzyAlgorithm names one of the similarity algorithms a fuzzy condition may enable
type FuzzyAlgorithm string

const (
	AlgorithmLevenshtein   FuzzyAlgorithm = "Levenshtein"
	AlgorithmSoundex       FuzzyAlgorithm = "Soundex"
	AlgorithmAbbreviations FuzzyAlgorithm = "Abbreviations"
	AlgorithmOthers        FuzzyAlgorithm = "Others"
)

// AbbreviationMapping links a full name to its accepted abbreviations
type AbbreviationMapping struct {
	FullName      string   `json:"full_name" validate:"required"`
	Abbreviations []string `json:"abbreviations" validate:"required,min=1,dive,required"`
}

// FuzzyMatchConfig scores string similarity on a 0-100 scale
type FuzzyMatchConfig struct {
	Algorithms           []FuzzyAlgorithm
	Threshold            float64
	AbbreviationMappings []AbbreviationMapping
}

// Enabled reports whether algorithm a is switched on
func (c FuzzyMatchConfig) Enabled(a FuzzyAlgorithm) bool {
	for _, enabled := range c.Algorithms {
		if enabled == a {
			return true
		}
	}
	return false
}

// BookingStrategy names a booking reference matching strategy
type BookingStrategy string

const (
	StrategyDirectOMS  BookingStrategy = "DIRECT_OMS"
	StrategyHMSMapping BookingStrategy = "HMS_MAPPING"
)

// PrefixHandling strips vendor prefixes from booking references before matching
type PrefixHandling struct {
	Enabled         bool     `json:"enabled"`
	Prefixes        []string `json:"prefixes" validate:"dive,required"`
	CaseInsensitive bool     `json:"case_insensitive"`
}

// BookingMatchConfig tries each strategy in order until one matches
type BookingMatchConfig struct {
	PrefixHandling PrefixHandling
	Strategies     []BookingStrategy
}

// RecordSource picks which record a status check reads
type RecordSource string

const (
	SourceOMS     RecordSource = "OMS"
	SourceInvoice RecordSource = "INVOICE"
)

// StatusCheckConfig tests a status field against a list of allowed values
type StatusCheckConfig struct {
	AllowedValues []string
	// AllowAbsent is true when the configured list contained null
	AllowAbsent   bool
	CaseSensitive bool
	Source        RecordSource
}

// DateComparisonConfig compares two dates
type DateComparisonConfig struct {
	ToleranceDays   int
	Layout          string
	CompareDateOnly bool
}

func (ExactMatchConfig) Kind() shared.ConditionType        { return shared.ConditionExactMatch }
func (StringMatchConfig) Kind() shared.ConditionType       { return shared.ConditionStringMatch }
func (NumericComparisonConfig) Kind() shared.ConditionType { return shared.ConditionNumericComparison }
func (FuzzyMatchConfig) Kind() shared.ConditionType        { return shared.ConditionFuzzyMatch }
func (BookingMatchConfig) Kind() shared.ConditionType      { return shared.ConditionBookingMatch }
func (StatusCheckConfig) Kind() shared.ConditionType       { return shared.ConditionStatusCheck }
func (DateComparisonConfig) Kind() shared.ConditionType    { return shared.ConditionDateComparison }

func (ExactMatchConfig) sealed()        {}
func (StringMatchConfig) sealed()       {}
func (NumericComparisonConfig) sealed() {}
func (FuzzyMatchConfig) sealed()        {}
func (BookingMatchConfig) sealed()      {}
func (StatusCheckConfig) sealed()       {}
func (DateComparisonConfig) sealed()    {}
