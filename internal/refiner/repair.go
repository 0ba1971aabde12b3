package refiner

import (
	"context"
	"strings"

	"queryresolve/internal/errors"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/prompt"
)

// MaxRefinementAttempts bounds the refiner's own internal repair loop,
// independent of the orchestrator's retry budget (spec §4.4).
const MaxRefinementAttempts = 3

// repairInput bundles everything refiner.sql_refinement needs.
type repairInput struct {
	question              string
	failedSQL             string
	errorMessage           string
	errorType              models.ErrorType
	schemaDescription      string
	foreignKeyDescription  string
	dbType                 string
}

// repairOnce asks refiner.sql_refinement for one corrected query.
func repairOnce(ctx context.Context, provider llmprovider.Provider, registry *prompt.Registry, in repairInput) (string, error) {
	rendered, err := registry.Format("refiner", "sql_refinement", map[string]any{
		"question":                in.question,
		"failed_sql":              in.failedSQL,
		"error_message":           in.errorMessage,
		"error_type":              string(in.errorType),
		"schema_description":      in.schemaDescription,
		"foreign_key_description": in.foreignKeyDescription,
		"db_type":                 in.dbType,
	})
	if err != nil {
		return "", err
	}

	resp, err := provider.Generate(ctx, rendered.SystemPrompt, rendered.UserPrompt, 0.1, 0, 0)
	if err != nil {
		return "", errors.Wrap(errors.CodeLLMUnavailable, "sql repair LLM call failed", err)
	}
	if !resp.Success {
		return "", errors.New(errors.CodeLLMUnavailable, "sql repair LLM call was unsuccessful: "+resp.Error)
	}

	sql := strings.TrimSpace(llmprovider.ExtractSQL(resp.Content))
	sql = strings.TrimSuffix(sql, ";")
	if sql == "" {
		return "", errors.New(errors.CodeNoSQL, "sql repair returned no extractable SQL")
	}
	return sql, nil
}
