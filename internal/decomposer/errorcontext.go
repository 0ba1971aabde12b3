package decomposer

import (
	"fmt"
	"strings"

	"queryresolve/internal/models"
)

// renderErrorBlock formats prior failed attempts into the
// "DO NOT repeat these mistakes" block the synthesis prompts accept,
// implementing the spec's error-aware regeneration steps 1-3: extract
// records, surface repeat error_type patterns, embed a do-not-repeat
// directive.
func renderErrorBlock(records []models.ErrorRecord) string {
	if len(records) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("Attempt %d (%s):\n  SQL: %s\n  Error: %s\n",
			rec.AttemptNumber, rec.ErrorType, rec.FailedSQL, rec.ErrorMessage))
	}

	if repeated := repeatedErrorTypes(records); len(repeated) > 0 {
		sb.WriteString(fmt.Sprintf("\nNote: the following error types recurred across attempts — address the root cause, not just the symptom: %s\n",
			strings.Join(repeated, ", ")))
	}

	return strings.TrimSpace(sb.String())
}

// repeatedErrorTypes returns, in first-seen order, every ErrorType that
// appears more than once across records.
func repeatedErrorTypes(records []models.ErrorRecord) []string {
	counts := make(map[models.ErrorType]int)
	var order []models.ErrorType
	for _, rec := range records {
		if counts[rec.ErrorType] == 0 {
			order = append(order, rec.ErrorType)
		}
		counts[rec.ErrorType]++
	}

	var repeated []string
	for _, t := range order {
		if counts[t] > 1 {
			repeated = append(repeated, string(t))
		}
	}
	return repeated
}
