package errors

import (
	"strings"

	"queryresolve/internal/models"
)

// patternRule matches a substring (case-insensitive) of an executor error
// message to an ErrorType. Rules are tried in order; the first match wins.
// This is the "string-pattern classification" the spec requires, modeled
// after the teacher's own VerifySQLTool static checks.
type patternRule struct {
	errorType models.ErrorType
	needles   []string
}

var classificationRules = []patternRule{
	{
		errorType: models.ErrorTypeSyntax,
		needles: []string{
			"syntax error", "sql syntax", "parse error", "unexpected token",
			"you have an error in your sql syntax", "near \"", "unrecognized token",
		},
	},
	{
		errorType: models.ErrorTypeSchema,
		needles: []string{
			"no such table", "unknown table", "doesn't exist", "does not exist",
			"no such column", "unknown column", "undefined column",
			"foreign key constraint", "foreign key violation", "column not found",
			"table not found", "relation", // "relation \"x\" does not exist" (postgres)
		},
	},
	{
		errorType: models.ErrorTypeLogic,
		needles: []string{
			"group by", "having", "aggregate function", "not a group by expression",
			"not a single-group group function", "must appear in the group by clause",
		},
	},
	{
		errorType: models.ErrorTypeExecution,
		needles: []string{
			"timeout", "timed out", "connection refused", "connection reset",
			"permission denied", "access denied", "too many connections",
			"context deadline exceeded", "out of memory", "disk full",
		},
	},
}

// Classify assigns one of the closed taxonomy ErrorTypes to a raw executor
// error message via string-pattern matching, falling through to
// unknown_error. Matching is case-insensitive and independent of the
// underlying SQL engine's exact wording.
func Classify(errorMessage string) models.ErrorType {
	lower := strings.ToLower(errorMessage)
	for _, rule := range classificationRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.errorType
			}
		}
	}
	return models.ErrorTypeUnknown
}

// IsRepairable reports whether the refiner should attempt an LLM-driven
// repair for a given classified error. Only execution_error is
// non-repairable, and only in its pure timeout/permission form — the
// caller distinguishes that via isTimeoutOrPermission.
func IsRepairable(errorType models.ErrorType, isTimeoutOrPermission bool) bool {
	if errorType == models.ErrorTypeExecution && isTimeoutOrPermission {
		return false
	}
	return true
}

// IsTimeoutOrPermission reports whether an execution_error message
// specifically names a timeout or permission failure, the two
// execution_error sub-cases the spec calls out as non-repairable.
func IsTimeoutOrPermission(errorMessage string) bool {
	lower := strings.ToLower(errorMessage)
	for _, needle := range []string{"timeout", "timed out", "context deadline exceeded", "permission denied", "access denied"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
