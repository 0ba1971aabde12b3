package refiner

import (
	"context"
	"strings"
	"sync"
	"time"

	"queryresolve/internal/errors"
	"queryresolve/internal/executor"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/obslog"
	"queryresolve/internal/prompt"
)

// Stats tracks the refiner's running counters (spec §4.4: "validation
// count, execution count, refinement count, security-violation count,
// success rate").
type Stats struct {
	ValidationCount        int
	ExecutionCount         int
	RefinementCount        int
	SecurityViolationCount int
	SuccessCount           int
}

// SuccessRate returns ExecutionCount successes as a fraction of
// ExecutionCount attempts, or 0 when nothing has executed yet.
func (s Stats) SuccessRate() float64 {
	if s.ExecutionCount == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.ExecutionCount)
}

// Input bundles everything Refine needs for one invocation.
type Input struct {
	DatabaseID             string
	Question               string
	SQL                    string
	SchemaDescription      string
	ForeignKeyDescription  string
	DBType                 string
	// EnableAdvisoryValidation turns on the optional, non-blocking
	// refiner.sql_validation LLM pre-check (spec §4.4).
	EnableAdvisoryValidation bool
}

// Output is what the Refiner writes back (spec §4.4: "Updates
// execution_result, was_fixed, and final_sql").
type Output struct {
	SafetyReport    models.SafetyReport
	ExecutionResult *models.SQLExecutionResult
	WasFixed        bool
	FinalSQL        string
}

// Refiner implements the Execution Refiner agent.
type Refiner struct {
	exec     executor.Executor
	provider llmprovider.Provider
	prompts  *prompt.Registry
	log      *obslog.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a Refiner. provider/prompts may be left as zero values
// (nil interface, nil registry) to disable advisory LLM validation and
// repair; in that configuration a failed execution surfaces directly.
func New(exec executor.Executor, provider llmprovider.Provider, prompts *prompt.Registry) *Refiner {
	return &Refiner{
		exec:     exec,
		provider: provider,
		prompts:  prompts,
		log:      obslog.New("refiner"),
	}
}

// Stats returns a snapshot of the refiner's running counters.
func (r *Refiner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Refine validates in.SQL for safety, executes it, and if execution
// fails attempts up to MaxRefinementAttempts LLM-driven repairs (spec
// §4.4). A SECURITY_VIOLATION is terminal and returned as an error; any
// other failure is surfaced on Output.ExecutionResult with
// IsSuccessful=false, not as a Go error, so the orchestrator can route
// the retry.
func (r *Refiner) Refine(ctx context.Context, in Input) (*Output, error) {
	if strings.TrimSpace(in.SQL) == "" {
		return nil, errors.New(errors.CodeNoSQL, "refiner: no SQL to validate")
	}

	r.mu.Lock()
	r.stats.ValidationCount++
	r.mu.Unlock()

	report := ValidateSafety(in.SQL)
	if !report.IsSafe {
		r.mu.Lock()
		r.stats.SecurityViolationCount++
		r.mu.Unlock()
		return &Output{SafetyReport: report, FinalSQL: in.SQL}, errors.New(errors.CodeSecurityViolation,
			"refiner: rejected unsafe SQL ("+report.DetectedPattern+")")
	}

	if in.EnableAdvisoryValidation {
		runAdvisoryValidation(ctx, r.provider, r.prompts, r.log, in.SQL, in.SchemaDescription, in.DBType)
	}

	currentSQL := in.SQL
	result := r.execute(ctx, in.DatabaseID, currentSQL)
	wasFixed := false

	attempts := 0
	for !result.IsSuccessful && attempts < MaxRefinementAttempts && r.provider != nil && r.prompts != nil {
		errorType := errors.Classify(result.ErrorText)
		if !errors.IsRepairable(errorType, errors.IsTimeoutOrPermission(result.ErrorText)) {
			break
		}

		attempts++
		r.mu.Lock()
		r.stats.RefinementCount++
		r.mu.Unlock()

		repaired, err := repairOnce(ctx, r.provider, r.prompts, repairInput{
			question:              in.Question,
			failedSQL:             currentSQL,
			errorMessage:          result.ErrorText,
			errorType:             errorType,
			schemaDescription:     in.SchemaDescription,
			foreignKeyDescription: in.ForeignKeyDescription,
			dbType:                in.DBType,
		})
		if err != nil {
			r.log.Warnw("refiner: repair attempt failed to produce SQL", "attempt", attempts, "error", err)
			break
		}

		repairedReport := ValidateSafety(repaired)
		if !repairedReport.IsSafe {
			r.mu.Lock()
			r.stats.SecurityViolationCount++
			r.mu.Unlock()
			return &Output{SafetyReport: repairedReport, FinalSQL: repaired}, errors.New(errors.CodeSecurityViolation,
				"refiner: repaired SQL rejected by safety gate ("+repairedReport.DetectedPattern+")")
		}

		currentSQL = repaired
		result = r.execute(ctx, in.DatabaseID, currentSQL)
		if result.IsSuccessful {
			wasFixed = true
		}
	}

	return &Output{
		SafetyReport:    report,
		ExecutionResult: result,
		WasFixed:        wasFixed,
		FinalSQL:        currentSQL,
	}, nil
}

// execute runs sql against databaseID under the hard execution timeout,
// normalising the outcome into models.SQLExecutionResult regardless of
// success or failure.
func (r *Refiner) execute(ctx context.Context, databaseID, sql string) *models.SQLExecutionResult {
	r.mu.Lock()
	r.stats.ExecutionCount++
	r.mu.Unlock()

	start := time.Now()
	res, err := r.exec.Execute(ctx, databaseID, sql, executor.DefaultExecutionTimeout)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		errType := errors.Classify(err.Error())
		exceptionClass := string(errType)
		if errors.IsTimeoutOrPermission(err.Error()) {
			exceptionClass = string(models.ErrorTypeExecution)
		}
		return &models.SQLExecutionResult{
			SQL:                  sql,
			ErrorText:            err.Error(),
			ExceptionClass:       exceptionClass,
			ExecutionTimeSeconds: elapsed,
			IsSuccessful:         false,
		}
	}

	r.mu.Lock()
	r.stats.SuccessCount++
	r.mu.Unlock()

	return &models.SQLExecutionResult{
		SQL:                  sql,
		Rows:                 res.Rows,
		ExecutionTimeSeconds: elapsed,
		IsSuccessful:         true,
	}
}
