package refiner

import (
	"context"
	"encoding/json"

	"queryresolve/internal/llmprovider"
	"queryresolve/internal/obslog"
	"queryresolve/internal/prompt"
)

// llmValidationReport is the refiner.sql_validation prompt's JSON shape.
type llmValidationReport struct {
	IsValid          bool     `json:"is_valid"`
	SyntaxErrors     []string `json:"syntax_errors"`
	LogicalIssues    []string `json:"logical_issues"`
	SecurityConcerns []string `json:"security_concerns"`
	Suggestions      []string `json:"suggestions"`
	CorrectedSQL     string   `json:"corrected_sql"`
}

// runAdvisoryValidation runs refiner.sql_validation when provider and
// registry are configured, logging the verdict but never blocking
// execution on it (spec §4.4: "does NOT block execution"). Any failure
// to run or parse the prompt is swallowed the same way.
func runAdvisoryValidation(ctx context.Context, provider llmprovider.Provider, registry *prompt.Registry, log *obslog.Logger, sql, schemaDescription, dbType string) {
	if provider == nil || registry == nil {
		return
	}

	rendered, err := registry.Format("refiner", "sql_validation", map[string]any{
		"sql":                sql,
		"schema_description": schemaDescription,
		"db_type":            dbType,
	})
	if err != nil {
		log.Warnw("refiner: advisory validation prompt formatting failed", "error", err)
		return
	}

	resp, err := provider.Generate(ctx, rendered.SystemPrompt, rendered.UserPrompt, 0.0, 0, 0)
	if err != nil || !resp.Success {
		log.Warnw("refiner: advisory validation LLM call failed", "error", err)
		return
	}

	var report llmValidationReport
	if err := json.Unmarshal([]byte(llmprovider.ExtractJSON(resp.Content)), &report); err != nil {
		log.Warnw("refiner: advisory validation response was not parseable JSON", "error", err)
		return
	}

	if !report.IsValid {
		log.Warnw("refiner: advisory LLM validation flagged issues (non-blocking)",
			"syntax_errors", report.SyntaxErrors,
			"logical_issues", report.LogicalIssues,
			"security_concerns", report.SecurityConcerns,
			"suggestions", report.Suggestions)
	}
}
