package models

import "time"

// ErrorType is the closed error taxonomy used to classify executor
// failures for retry reasoning.
type ErrorType string

const (
	ErrorTypeSyntax    ErrorType = "syntax_error"
	ErrorTypeSchema    ErrorType = "schema_error"
	ErrorTypeLogic     ErrorType = "logic_error"
	ErrorTypeExecution ErrorType = "execution_error"
	ErrorTypeUnknown   ErrorType = "unknown_error"
)

// SQLExecutionResult is the outcome of running final_sql against the
// target database. IsSuccessful holds iff ErrorText is empty and no
// timeout fired.
type SQLExecutionResult struct {
	SQL                  string
	Rows                 []map[string]any
	ErrorText            string
	ExceptionClass       string
	ExecutionTimeSeconds float64
	IsSuccessful         bool
}

// ErrorRecord is one failed attempt recorded in conversation history and
// surfaced to the decomposer on retry.
type ErrorRecord struct {
	AttemptNumber int
	FailedSQL     string
	ErrorMessage  string
	ErrorType     ErrorType
	Timestamp     time.Time
}

// RiskLevel is the safety validator's coarse risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// SafetyReport is the result of the refiner's mandatory pre-execution
// safety validation.
type SafetyReport struct {
	IsSafe          bool
	RiskLevel       RiskLevel
	DetectedPattern string
	Recommendations []string
}
