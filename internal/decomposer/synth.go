package decomposer

import (
	"context"
	"fmt"
	"time"

	"queryresolve/internal/errors"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/prompt"
)

// synthesisBackoff mirrors the teacher's oneShotGeneration retry
// schedule (internal/inference/react.go): two retries on LLM call
// failure with increasing backoff, before giving up.
var synthesisBackoff = []time.Duration{1 * time.Second, 3 * time.Second}

// callWithBackoff issues provider.Generate with the teacher's
// retry-with-backoff pattern, returning the raw response content.
func callWithBackoff(ctx context.Context, provider llmprovider.Provider, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= len(synthesisBackoff); attempt++ {
		resp, err := provider.Generate(ctx, systemPrompt, userPrompt, 0.1, 0, 0)
		if err == nil && resp.Success {
			return resp.Content, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("llm call unsuccessful: %s", resp.Error)
		}
		if attempt < len(synthesisBackoff) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(synthesisBackoff[attempt]):
			}
		}
	}
	return "", errors.Wrap(errors.CodeLLMUnavailable, "sql synthesis LLM call failed after retries", lastErr)
}

// synthesisInput bundles everything the simple/cot templates need.
type synthesisInput struct {
	question              string
	subQuestions          []string
	schemaDescription     string
	foreignKeyDescription string
	dbType                string
	contextBlock          string
	errorBlock            string
}

// synthesizeSQL runs simple_sql_generation when there is exactly one
// sub-question, or cot_sql_generation otherwise, returning the extracted
// SQL string and which strategy was used.
func synthesizeSQL(ctx context.Context, provider llmprovider.Provider, registry *prompt.Registry, in synthesisInput) (string, string, error) {
	if len(in.subQuestions) <= 1 {
		rendered, err := registry.Format("decomposer", "simple_sql_generation", map[string]any{
			"question":                in.question,
			"schema_description":      in.schemaDescription,
			"foreign_key_description": in.foreignKeyDescription,
			"db_type":                 in.dbType,
			"context_block":           in.contextBlock,
			"error_block":             in.errorBlock,
		})
		if err != nil {
			return "", "", err
		}
		raw, err := callWithBackoff(ctx, provider, rendered.SystemPrompt, rendered.UserPrompt)
		if err != nil {
			return "", "", err
		}
		sql := normalizeSQL(llmprovider.ExtractSQL(raw))
		return sql, "simple", nil
	}

	rendered, err := registry.Format("decomposer", "cot_sql_generation", map[string]any{
		"question":                in.question,
		"sub_questions_block":     renderSubQuestionsBlock(in.subQuestions),
		"schema_description":      in.schemaDescription,
		"foreign_key_description": in.foreignKeyDescription,
		"db_type":                 in.dbType,
		"context_block":           in.contextBlock,
		"error_block":             in.errorBlock,
	})
	if err != nil {
		return "", "", err
	}
	raw, err := callWithBackoff(ctx, provider, rendered.SystemPrompt, rendered.UserPrompt)
	if err != nil {
		return "", "", err
	}
	sql := normalizeSQL(llmprovider.ExtractSQL(raw))
	return sql, "cot", nil
}
