package decomposer

import (
	"context"
	"encoding/json"
	"fmt"

	"queryresolve/internal/llmprovider"
	"queryresolve/internal/obslog"
	"queryresolve/internal/prompt"
)

// decompositionResponse is the query_decomposition prompt's required
// JSON shape (spec §4.3).
type decompositionResponse struct {
	SubQuestions []string `json:"sub_questions"`
	Reasoning    string   `json:"reasoning"`
}

// decompose asks the LLM to break question into an ordered sub-question
// list, truncated to maxSubQuestions. On any parse failure it falls back
// to the original question as a single-item list (spec: MALFORMED_DECOMPOSITION,
// non-terminal — synthesis proceeds as "simple").
func decompose(ctx context.Context, provider llmprovider.Provider, registry *prompt.Registry, log *obslog.Logger, question, schemaDescription string, maxSubQuestions int) ([]string, bool) {
	if maxSubQuestions <= 0 {
		maxSubQuestions = defaultMaxSubQs
	}

	rendered, err := registry.Format("decomposer", "query_decomposition", map[string]any{
		"question":          question,
		"schema_description": schemaDescription,
		"max_sub_questions":  maxSubQuestions,
	})
	if err != nil {
		log.Warnw("decomposer: prompt formatting failed, falling back to single question", "error", err)
		return []string{question}, false
	}

	resp, err := provider.Generate(ctx, rendered.SystemPrompt, rendered.UserPrompt, 0.2, 0, 0)
	if err != nil || !resp.Success {
		log.Warnw("decomposer: decomposition LLM call failed, falling back to single question", "error", err)
		return []string{question}, false
	}

	var parsed decompositionResponse
	if err := json.Unmarshal([]byte(llmprovider.ExtractJSON(resp.Content)), &parsed); err != nil || len(parsed.SubQuestions) == 0 {
		log.Warnw("decomposer: malformed decomposition response, falling back to single question", "error", err)
		return []string{question}, false
	}

	subQuestions := parsed.SubQuestions
	if len(subQuestions) > maxSubQuestions {
		subQuestions = subQuestions[:maxSubQuestions]
	}
	return subQuestions, true
}

// renderSubQuestionsBlock numbers sub-questions for the cot_sql_generation
// prompt's "Reasoning plan" block.
func renderSubQuestionsBlock(subQuestions []string) string {
	out := ""
	for i, q := range subQuestions {
		out += fmt.Sprintf("%d. %s\n", i+1, q)
	}
	return out
}
