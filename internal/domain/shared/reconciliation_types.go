package shared

// EntityType defines which record a rule is evaluated against
type EntityType string

const (
	EntityTypeInvoice  EntityType = "INVOICE"
	EntityTypeLineItem EntityType = "LINE_ITEM"
)

// RuleType defines how a mismatch is weighted
type RuleType string

const (
	RuleTypeHard RuleType = "HARD"
	RuleTypeSoft RuleType = "SOFT"
)

// ActionType defines what a rule does when it matches or mismatches
type ActionType string

const (
	ActionContinue                     ActionType = "CONTINUE"
	ActionDisputed                     ActionType = "DISPUTED"
	ActionFlagWarning                  ActionType = "FLAG_WARNING"
	ActionFlagAsCancelledPendingRefund ActionType = "FLAG_AS_CANCELLED_PENDING_REFUND"
	ActionFlagForFutureProcessing      ActionType = "FLAG_FOR_FUTURE_PROCESSING"
	ActionBlockProcessing              ActionType = "BLOCK_PROCESSING"
)

// ConditionType selects the matcher used for a condition
type ConditionType string

const (
	ConditionExactMatch        ConditionType = "EXACT_MATCH"
	ConditionStringMatch       ConditionType = "STRING_MATCH"
	ConditionNumericComparison ConditionType = "NUMERIC_COMPARISON"
	ConditionFuzzyMatch        ConditionType = "FUZZY_MATCH"
	ConditionBookingMatch      ConditionType = "BOOKING_MATCH"
	ConditionStatusCheck       ConditionType = "STATUS_CHECK"
	ConditionDateComparison    ConditionType = "DATE_COMPARISON"
)

// Operator is the comparison applied by a condition. Valid values depend on the condition type.
type Operator string

const (
	OperatorEquals             Operator = "EQUALS"
	OperatorNotEquals          Operator = "NOT_EQUALS"
	OperatorContains           Operator = "CONTAINS"
	OperatorStartsWith         Operator = "STARTS_WITH"
	OperatorEndsWith           Operator = "ENDS_WITH"
	OperatorGreaterThan        Operator = "GREATER_THAN"
	OperatorGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OperatorLessThan           Operator = "LESS_THAN"
	OperatorLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OperatorSimilar            Operator = "SIMILAR"
	OperatorMatches            Operator = "MATCHES"
	OperatorIn                 Operator = "IN"
	OperatorNotIn              Operator = "NOT_IN"
	OperatorBefore             Operator = "BEFORE"
	OperatorAfter              Operator = "AFTER"
	OperatorOnOrBefore         Operator = "ON_OR_BEFORE"
	OperatorOnOrAfter          Operator = "ON_OR_AFTER"
	OperatorWithinDays         Operator = "WITHIN_DAYS"
)

// ResultStatus is the outcome of a single rule
type ResultStatus string

const (
	ResultPassed  ResultStatus = "PASSED"
	ResultFailed  ResultStatus = "FAILED"
	ResultWarning ResultStatus = "WARNING"
)

// ValidationStatus is the aggregated outcome for a line item or invoice
type ValidationStatus string

const (
	ValidationStatusPending                ValidationStatus = "PENDING"
	ValidationStatusPassed                 ValidationStatus = "PASSED"
	ValidationStatusWarning                ValidationStatus = "WARNING"
	ValidationStatusFutureProcessing       ValidationStatus = "FLAGGED_FOR_FUTURE_PROCESSING"
	ValidationStatusCancelledPendingRefund ValidationStatus = "CANCELLED_PENDING_REFUND"
	ValidationStatusFailed                 ValidationStatus = "FAILED"
	ValidationStatusDisputed               ValidationStatus = "DISPUTED"
	ValidationStatusBlocked                ValidationStatus = "BLOCKED"
	ValidationStatusError                  ValidationStatus = "ERROR"
)

// ApprovalStatus records the human decision on a reconciled invoice
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// EvidenceSeverity classifies the evidence attached to a rule result
type EvidenceSeverity string

const (
	SeverityInfo        EvidenceSeverity = "INFO"
	SeverityWarning     EvidenceSeverity = "WARNING"
	SeverityError       EvidenceSeverity = "ERROR"
	SeverityConfigError EvidenceSeverity = "CONFIG_ERROR"
)

// WildcardVendorCode makes a rule apply to every vendor
const WildcardVendorCode = "*"
