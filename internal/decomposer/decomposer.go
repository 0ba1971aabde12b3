package decomposer

import (
	"context"
	"fmt"
	"strings"

	"queryresolve/internal/errors"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/obslog"
	"queryresolve/internal/prompt"
	"queryresolve/internal/retrieval"
)

// Input bundles everything the Decomposer needs for one call.
type Input struct {
	Question              string
	SchemaDescription      string
	ForeignKeyDescription string
	DatabaseID             string
	DBType                 string
	Profile                DatasetProfile
	MaxSubQuestions        int

	// Set when error_context_available on the Message (spec §4.3).
	ErrorContextAvailable bool
	ErrorHistory          []models.ErrorRecord

	// PriorContext carries a summary of earlier turns on the same
	// thread_id (spec §4.1 context propagation; scenario 6 "memory-aware
	// second call"), so a follow-up question like "count them" can be
	// resolved against what the prior turn established.
	PriorContext string
}

// Output is what the Decomposer writes back onto the Message (spec
// §4.3: final_sql, qa_pairs, sub_questions, decomposition_strategy).
type Output struct {
	FinalSQL              string
	QAPairs               string
	SubQuestions          []string
	DecompositionStrategy models.DecompositionStrategy
}

// Decomposer implements the Query Decomposer agent.
type Decomposer struct {
	provider  llmprovider.Provider
	prompts   *prompt.Registry
	retrieval *retrieval.Store
	log       *obslog.Logger
}

// New builds a Decomposer. retrievalStore may be nil, in which case no
// retrieved context is composed into the synthesis prompt.
func New(provider llmprovider.Provider, prompts *prompt.Registry, retrievalStore *retrieval.Store) *Decomposer {
	return &Decomposer{
		provider:  provider,
		prompts:   prompts,
		retrieval: retrievalStore,
		log:       obslog.New("decomposer"),
	}
}

// strategyForProfile implements the spec §4.3 profile-to-strategy mapping.
func strategyForProfile(profile DatasetProfile) models.RetrievalStrategy {
	switch profile {
	case ProfileBIRD:
		return models.StrategyContextFocused
	case ProfileSpider:
		return models.StrategySQLFocused
	default:
		return models.StrategyBalanced
	}
}

// Decompose runs the full decomposer policy: complexity scoring, optional
// LLM decomposition, retrieval-context composition, SQL synthesis, and
// (when error context is available) error-aware regeneration.
func (d *Decomposer) Decompose(ctx context.Context, in Input) (*Output, error) {
	effectiveQuestion := in.Question
	if in.PriorContext != "" {
		effectiveQuestion = in.PriorContext + "\n\nFollow-up question: " + in.Question
	}

	subQuestions := []string{effectiveQuestion}
	malformed := false

	if shouldDecompose(in.Question, in.Profile) {
		var ok bool
		subQuestions, ok = decompose(ctx, d.provider, d.prompts, d.log, effectiveQuestion, in.SchemaDescription, in.MaxSubQuestions)
		malformed = !ok
	}

	contextBlock := ""
	if d.retrieval != nil {
		rc, err := d.retrieval.RetrieveContext(ctx, in.Question, in.DatabaseID, strategyForProfile(in.Profile))
		if err != nil {
			d.log.Warnw("decomposer: retrieval failed, proceeding without context", "error", err)
		} else {
			contextBlock = retrieval.ComposePrompt(rc, retrieval.DefaultMaxContextLength)
		}
	}

	errorBlock := ""
	if in.ErrorContextAvailable {
		errorBlock = renderErrorBlock(in.ErrorHistory)
	}

	sql, strategy, err := synthesizeSQL(ctx, d.provider, d.prompts, synthesisInput{
		question:              effectiveQuestion,
		subQuestions:          subQuestions,
		schemaDescription:     in.SchemaDescription,
		foreignKeyDescription: in.ForeignKeyDescription,
		dbType:                in.DBType,
		contextBlock:          contextBlock,
		errorBlock:            errorBlock,
	})
	if err != nil {
		return nil, err
	}
	if !hasLeadingSQLKeyword(sql) {
		return nil, errors.New(errors.CodeEmptySQL, "decomposer: LLM response contained no extractable SQL")
	}

	out := &Output{
		FinalSQL:     sql,
		SubQuestions: subQuestions,
		QAPairs:      buildTrace(subQuestions, sql),
	}
	if strategy == "cot" {
		out.DecompositionStrategy = models.StrategyCoT
	} else {
		out.DecompositionStrategy = models.StrategySimple
	}

	if malformed {
		d.log.Warnw("decomposer: decomposition was malformed, proceeded with single-question fallback",
			"question", in.Question)
	}

	return out, nil
}

// hasLeadingSQLKeyword reports whether sql opens with a SQL statement
// keyword; an empty string or plain prose (e.g. a refusal) carries no
// extractable SQL. Mutating statements are accepted here so that the
// refiner's safety gate, not the decomposer, rejects them.
func hasLeadingSQLKeyword(sql string) bool {
	upper := strings.ToUpper(strings.TrimLeft(sql, "( \t\r\n"))
	for _, kw := range []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "REPLACE", "EXEC"} {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// buildTrace renders the human-readable qa_pairs audit trail interleaving
// sub-questions and the final SQL.
func buildTrace(subQuestions []string, finalSQL string) string {
	var sb strings.Builder
	for i, q := range subQuestions {
		sb.WriteString(fmt.Sprintf("Step %d: %s\n", i+1, q))
	}
	sb.WriteString("Final SQL: " + finalSQL)
	return sb.String()
}
