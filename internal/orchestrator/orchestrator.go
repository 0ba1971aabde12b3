// Package orchestrator implements the workflow orchestrator: the
// three-node state machine (selector -> decomposer -> refiner) that
// drives one natural-language question to a final SQL result, with
// retry-with-context on refiner failure and per-thread conversation
// history. Grounded on the teacher's internal/inference ReAct loop
// (react.go's step-and-route structure), generalized from a single
// dynamic-tool agent loop into the spec's fixed three-role state
// machine.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"queryresolve/internal/decomposer"
	"queryresolve/internal/errors"
	"queryresolve/internal/executor"
	"queryresolve/internal/models"
	"queryresolve/internal/obslog"
	"queryresolve/internal/refiner"
	"queryresolve/internal/retrieval"
	"queryresolve/internal/selector"
)

// Input is the orchestrator's public entry-point payload (spec §6).
type Input struct {
	DatabaseID string
	Question   string
	Evidence   string
	UserID     string
	ThreadID   string
}

// Result is the orchestrator's public entry-point outcome (spec §6).
type Result struct {
	Success        bool
	SQL            string
	Rows           []map[string]any
	ProcessingTime time.Duration
	RetryCount     int
	PerAgentTime   map[models.AgentName]time.Duration

	Error        string
	LastSQL      string
	ErrorHistory []models.ErrorRecord
}

// Stats is the orchestrator's running get_stats() snapshot.
type Stats struct {
	Total      int
	Successful int
	Failed     int
	TotalTime  time.Duration
	RetriedRuns int
}

// AvgLatency returns the mean processing time across all process_query
// calls, or 0 if none have run yet.
func (s Stats) AvgLatency() time.Duration {
	if s.Total == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Total)
}

// RetryRate returns the fraction of runs that required at least one
// refiner retry.
func (s Stats) RetryRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.RetriedRuns) / float64(s.Total)
}

// Orchestrator drives the Selector -> Decomposer -> Refiner state
// machine for one Message at a time, reentrant across distinct
// thread_ids (spec §4.1: "distinct thread_ids carry independent
// conversation histories").
type Orchestrator struct {
	selector                 *selector.Selector
	decomposer               *decomposer.Decomposer
	refiner                  *refiner.Refiner
	exec                     executor.Executor
	retrieval                *retrieval.Store
	history                  HistoryStore
	profile                  decomposer.DatasetProfile
	enableAdvisoryValidation bool
	log                      *obslog.Logger

	mu    sync.Mutex
	stats Stats
}

// Dependencies bundles everything an Orchestrator is built from.
type Dependencies struct {
	Selector   *selector.Selector
	Decomposer *decomposer.Decomposer
	Refiner    *refiner.Refiner
	Executor   executor.Executor

	// Retrieval, when non-nil, receives auto_train_from_successful_query
	// writes (spec §4.5). Optional.
	Retrieval *retrieval.Store
	// History, when nil, defaults to an in-memory store.
	History HistoryStore
	// Profile selects the decomposer's retrieval strategy mapping
	// (spec §4.3). Defaults to ProfileGeneric.
	Profile decomposer.DatasetProfile
	// EnableAdvisoryValidation turns on the refiner's optional,
	// non-blocking refiner.sql_validation LLM pre-check for every
	// refiner invocation (spec §4.4). Defaults to off.
	EnableAdvisoryValidation bool
}

// New builds an Orchestrator from deps.
func New(deps Dependencies) *Orchestrator {
	history := deps.History
	if history == nil {
		history = NewMemoryHistoryStore()
	}
	profile := deps.Profile
	if profile == "" {
		profile = decomposer.ProfileGeneric
	}
	return &Orchestrator{
		selector:                 deps.Selector,
		decomposer:               deps.Decomposer,
		refiner:                  deps.Refiner,
		exec:                     deps.Executor,
		retrieval:                deps.Retrieval,
		history:                  history,
		profile:                  profile,
		enableAdvisoryValidation: deps.EnableAdvisoryValidation,
		log:                      obslog.New("orchestrator"),
	}
}

// dbTypeFor resolves the SQL dialect name for databaseID via the
// optional executor.TypeResolver capability, falling back to a generic
// label when the configured Executor does not expose it.
func (o *Orchestrator) dbTypeFor(databaseID string) string {
	if resolver, ok := o.exec.(executor.TypeResolver); ok {
		if t, ok := resolver.DatabaseType(databaseID); ok {
			return string(t)
		}
	}
	return "sql"
}

// ProcessQuery runs the full state machine for one question (spec §4.1).
func (o *Orchestrator) ProcessQuery(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	threadID := in.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	msg := models.NewMessage(in.DatabaseID, in.Question, in.Evidence)
	msg.MessageID = uuid.NewString()
	msg.Sender = in.UserID

	state := models.NewWorkflowState(msg, threadID)

	if in.Question == "" {
		o.fail(state, errors.New(errors.CodeInvalidMessage, "question must not be empty"), "")
		result := buildResult(state, time.Since(start))
		o.recordStats(result, false)
		return result, nil
	}

	state.ConversationHistory = o.history.Get(threadID)
	initialHistoryLen := len(state.ConversationHistory)

	retried := false

	for !state.Finished {
		switch state.CurrentAgent {
		case models.AgentSelector:
			o.runSelector(ctx, state)
		case models.AgentDecomposer:
			o.runDecomposer(ctx, state)
		case models.AgentRefiner:
			if o.runRefiner(ctx, state) {
				retried = true
			}
		default:
			state.Finished = true
		}
	}

	state.EndTime = time.Now()
	o.history.Append(threadID, state.ConversationHistory[initialHistoryLen:]...)

	result := buildResult(state, time.Since(start))
	o.recordStats(result, retried)

	if state.Success && o.retrieval != nil {
		o.autoTrainAsync(msg.Question, msg.FinalSQL, msg.DatabaseID)
	}

	return result, nil
}

// autoTrainBackgroundTimeout bounds the detached auto-train write so it
// can never outlive the process by much, even if the vector store or
// embedder is slow/unreachable.
const autoTrainBackgroundTimeout = 30 * time.Second

// autoTrainAsync fires auto_train_from_successful_query on its own
// context, off the request path (spec §4.5/§5: auto-train writes "MUST
// NOT block the primary response path"), so a slow embedding call or
// vector-store write never adds to a caller's observed latency.
func (o *Orchestrator) autoTrainAsync(question, sql, databaseID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), autoTrainBackgroundTimeout)
		defer cancel()
		o.retrieval.AutoTrainFromSuccessfulQuery(ctx, question, sql, databaseID)
	}()
}

// runSelector executes the Selector node and routes to Decomposer
// unconditionally (spec §4.1 edge: selector -> decomposer).
func (o *Orchestrator) runSelector(ctx context.Context, state *models.WorkflowState) {
	o.appendSystemEntry(state, models.AgentSelector, fmt.Sprintf("selector: database_id=%s", state.DatabaseID))

	started := time.Now()
	out, err := o.selector.Select(ctx, state.DatabaseID, state.Question, state.Evidence)
	state.AgentExecutionTimes[models.AgentSelector] += time.Since(started)

	if err != nil {
		o.fail(state, err, "")
		return
	}

	state.ExtractedSchema = out.ExtractedSchema
	state.SchemaDescription = out.SchemaDescription
	state.ForeignKeyDescription = out.ForeignKeyDescription
	state.WasPruned = out.WasPruned
	state.SendTo = string(models.AgentDecomposer)
	state.CurrentAgent = models.AgentDecomposer
}

// runDecomposer executes the Decomposer node and routes to Refiner
// unconditionally (spec §4.1 edge: decomposer -> refiner).
func (o *Orchestrator) runDecomposer(ctx context.Context, state *models.WorkflowState) {
	records := state.ErrorRecordsFromHistory()
	state.ErrorHistory = records
	state.ErrorContextAvailable = len(records) > 0

	o.appendSystemEntry(state, models.AgentDecomposer, fmt.Sprintf("decomposer: question=%q error_context_available=%v", state.Question, state.ErrorContextAvailable))

	started := time.Now()
	out, err := o.decomposer.Decompose(ctx, decomposer.Input{
		Question:              state.Question,
		SchemaDescription:     state.SchemaDescription,
		ForeignKeyDescription: state.ForeignKeyDescription,
		DatabaseID:            state.DatabaseID,
		DBType:                o.dbTypeFor(state.DatabaseID),
		Profile:               o.profile,
		ErrorContextAvailable: state.ErrorContextAvailable,
		ErrorHistory:          records,
		PriorContext:          priorContext(state.ConversationHistory),
	})
	state.AgentExecutionTimes[models.AgentDecomposer] += time.Since(started)

	if err != nil {
		o.fail(state, err, "")
		return
	}

	state.FinalSQL = out.FinalSQL
	state.QAPairs = out.QAPairs
	state.SubQuestions = out.SubQuestions
	state.DecompositionStrategy = out.DecompositionStrategy
	state.SendTo = string(models.AgentRefiner)
	state.CurrentAgent = models.AgentRefiner
}

// runRefiner executes the Refiner node and applies the retry-with-context
// edge (spec §4.1: "refiner -> end if successful OR retry_count >=
// max_retries OR refiner faulted; refiner -> decomposer otherwise").
// Returns true iff this invocation triggered a retry back to decomposer.
func (o *Orchestrator) runRefiner(ctx context.Context, state *models.WorkflowState) bool {
	o.appendSystemEntry(state, models.AgentRefiner, fmt.Sprintf("refiner: sql=%q", state.FinalSQL))

	started := time.Now()
	out, err := o.refiner.Refine(ctx, refiner.Input{
		DatabaseID:               state.DatabaseID,
		Question:                 state.Question,
		SQL:                      state.FinalSQL,
		SchemaDescription:        state.SchemaDescription,
		ForeignKeyDescription:    state.ForeignKeyDescription,
		DBType:                   o.dbTypeFor(state.DatabaseID),
		EnableAdvisoryValidation: o.enableAdvisoryValidation,
	})
	state.AgentExecutionTimes[models.AgentRefiner] += time.Since(started)

	// A refiner node exception is terminal even if retry budget remains
	// (spec §4.1 tie-break), which includes SECURITY_VIOLATION.
	if err != nil {
		o.fail(state, err, state.FinalSQL)
		return false
	}

	state.WasFixed = out.WasFixed
	state.FinalSQL = out.FinalSQL
	state.ExecutionResult = out.ExecutionResult

	if out.ExecutionResult != nil && out.ExecutionResult.IsSuccessful {
		o.succeed(state)
		return false
	}

	if state.RetryCount >= state.MaxRetries {
		o.fail(state, fmt.Errorf("refiner: retry budget exhausted after %d attempts: %s", state.RetryCount, errorText(out.ExecutionResult)), state.FinalSQL)
		return false
	}

	errorType := models.ErrorTypeUnknown
	if out.ExecutionResult != nil {
		errorType = errors.Classify(out.ExecutionResult.ErrorText)
	}

	record := models.ErrorRecord{
		FailedSQL:    state.FinalSQL,
		ErrorMessage: errorText(out.ExecutionResult),
		ErrorType:    errorType,
		Timestamp:    time.Now(),
	}
	state.AppendHistory(models.HistoryEntry{
		Type:     models.HistoryErrorContext,
		Agent:    models.AgentRefiner,
		Content:  record.ErrorMessage,
		Metadata: map[string]any{"error_record": record},
	})

	state.RetryCount++
	state.CurrentAgent = models.AgentDecomposer
	return true
}

func errorText(res *models.SQLExecutionResult) string {
	if res == nil {
		return "refiner returned no execution result"
	}
	return res.ErrorText
}

func (o *Orchestrator) appendSystemEntry(state *models.WorkflowState, agent models.AgentName, content string) {
	state.AppendHistory(models.HistoryEntry{Type: models.HistorySystem, Agent: agent, Content: content})
}

func (o *Orchestrator) succeed(state *models.WorkflowState) {
	state.CurrentAgent = models.AgentCompleted
	state.Finished = true
	state.Success = true
	state.Result = map[string]any{
		"sql":             state.FinalSQL,
		"rows":            rowsOf(state.ExecutionResult),
		"total_time":      time.Since(state.StartTime).Seconds(),
		"per_agent_time":  state.AgentExecutionTimes,
	}
	state.AppendHistory(models.HistoryEntry{
		Type:    models.HistoryAgent,
		Agent:   models.AgentCompleted,
		Content: fmt.Sprintf("Q: %s\nSQL: %s", state.Question, state.FinalSQL),
	})
}

// priorContext summarises earlier completed turns on this thread so the
// decomposer can resolve follow-up references (spec §4.1 context
// propagation; scenario 6).
func priorContext(history []models.HistoryEntry) string {
	var parts []string
	for _, entry := range history {
		if entry.Type == models.HistoryAgent && entry.Agent == models.AgentCompleted {
			parts = append(parts, entry.Content)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}

func (o *Orchestrator) fail(state *models.WorkflowState, err error, lastSQL string) {
	state.CurrentAgent = models.AgentFailed
	state.Finished = true
	state.Success = false
	state.Result = map[string]any{
		"error":          err.Error(),
		"last_sql":       lastSQL,
		"per_agent_time": state.AgentExecutionTimes,
		"error_history":  state.ErrorRecordsFromHistory(),
	}
}

func rowsOf(res *models.SQLExecutionResult) []map[string]any {
	if res == nil {
		return nil
	}
	return res.Rows
}

func buildResult(state *models.WorkflowState, elapsed time.Duration) *Result {
	if state.Success {
		return &Result{
			Success:        true,
			SQL:            state.FinalSQL,
			Rows:           rowsOf(state.ExecutionResult),
			ProcessingTime: elapsed,
			RetryCount:     state.RetryCount,
			PerAgentTime:   state.AgentExecutionTimes,
		}
	}

	errMsg := ""
	if state.Result != nil {
		if v, ok := state.Result["error"].(string); ok {
			errMsg = v
		}
	}
	return &Result{
		Success:        false,
		ProcessingTime: elapsed,
		RetryCount:     state.RetryCount,
		PerAgentTime:   state.AgentExecutionTimes,
		Error:          errMsg,
		LastSQL:        state.FinalSQL,
		ErrorHistory:   state.ErrorRecordsFromHistory(),
	}
}

func (o *Orchestrator) recordStats(result *Result, retried bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.Total++
	o.stats.TotalTime += result.ProcessingTime
	if result.Success {
		o.stats.Successful++
	} else {
		o.stats.Failed++
	}
	if retried {
		o.stats.RetriedRuns++
	}
}

// GetStats returns a snapshot of the orchestrator's running counters
// (spec §4.1: "get_stats() -> {total, successful, failed, avg_latency, retry_rate}").
func (o *Orchestrator) GetStats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// HealthCheckResult is the outcome of HealthCheck.
type HealthCheckResult struct {
	Status string
	Checks map[string]string
}

// HealthCheck probes each wired dependency's trivial liveness (spec
// §4.1: "health_check() -> {status, checks}"). It never executes SQL
// against a live database; it reports wiring presence, matching the
// teacher's lightweight config-validation checks in internal/llm.
func (o *Orchestrator) HealthCheck() HealthCheckResult {
	checks := map[string]string{
		"selector":   presence(o.selector != nil),
		"decomposer": presence(o.decomposer != nil),
		"refiner":    presence(o.refiner != nil),
		"executor":   presence(o.exec != nil),
	}
	status := "ok"
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
		}
	}
	return HealthCheckResult{Status: status, Checks: checks}
}

func presence(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}
