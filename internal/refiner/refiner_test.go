package refiner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryresolve/internal/executor"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/prompt"
)

func TestValidateSafetyRejectsNonSelectLeadingKeyword(t *testing.T) {
	report := ValidateSafety("DELETE FROM orders")
	assert.False(t, report.IsSafe)
	assert.Equal(t, models.RiskCritical, report.RiskLevel)
}

func TestValidateSafetyRejectsStackedMutation(t *testing.T) {
	report := ValidateSafety("SELECT * FROM orders; DROP TABLE orders")
	assert.False(t, report.IsSafe)
}

func TestValidateSafetyRejectsUnionSelect(t *testing.T) {
	report := ValidateSafety("SELECT id FROM orders UNION SELECT password FROM users")
	assert.False(t, report.IsSafe)
}

func TestValidateSafetyRejectsInjectionHeuristic(t *testing.T) {
	report := ValidateSafety("SELECT * FROM orders WHERE id = 1 OR 1=1")
	assert.False(t, report.IsSafe)
}

func TestValidateSafetyAcceptsPlainSelect(t *testing.T) {
	report := ValidateSafety("SELECT id, total FROM orders WHERE customer_id = 5")
	assert.True(t, report.IsSafe)
	assert.Equal(t, models.RiskLow, report.RiskLevel)
}

type fakeExecutor struct {
	results map[string]*executor.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeExecutor) Introspect(ctx context.Context, databaseID string) (*models.DatabaseInfo, error) {
	return nil, nil
}

func (f *fakeExecutor) Execute(ctx context.Context, databaseID, sql string, timeout time.Duration) (*executor.Result, error) {
	f.calls = append(f.calls, sql)
	if err, ok := f.errs[sql]; ok {
		return nil, err
	}
	if res, ok := f.results[sql]; ok {
		return res, nil
	}
	return &executor.Result{Columns: []string{"n"}, Rows: []map[string]any{{"n": 1}}, RowCount: 1}, nil
}

func (f *fakeExecutor) DryRun(ctx context.Context, databaseID, sql string) error { return nil }

type fakeProvider struct {
	response string
}

func (f *fakeProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int, timeout time.Duration) (*llmprovider.Response, error) {
	return &llmprovider.Response{Content: f.response, Success: true}, nil
}

func TestRefineRejectsUnsafeSQLAsTerminalError(t *testing.T) {
	exec := &fakeExecutor{}
	r := New(exec, nil, nil)

	out, err := r.Refine(context.Background(), Input{DatabaseID: "db1", SQL: "DELETE FROM orders"})
	require.Error(t, err)
	assert.False(t, out.SafetyReport.IsSafe)
	assert.Empty(t, exec.calls)
}

func TestRefineExecutesSafeSQLSuccessfully(t *testing.T) {
	exec := &fakeExecutor{}
	r := New(exec, nil, nil)

	out, err := r.Refine(context.Background(), Input{DatabaseID: "db1", SQL: "SELECT * FROM orders"})
	require.NoError(t, err)
	require.NotNil(t, out.ExecutionResult)
	assert.True(t, out.ExecutionResult.IsSuccessful)
	assert.False(t, out.WasFixed)
	assert.Equal(t, 1, r.Stats().ExecutionCount)
	assert.Equal(t, 1, r.Stats().SuccessCount)
}

func TestRefineRepairsFailedExecutionUntilSuccess(t *testing.T) {
	exec := &fakeExecutor{
		errs: map[string]error{
			"SELECT * FROM ordrs": assertErr("no such table: ordrs"),
		},
		results: map[string]*executor.Result{
			"SELECT * FROM orders": {Columns: []string{"id"}, Rows: []map[string]any{{"id": 1}}, RowCount: 1},
		},
	}
	provider := &fakeProvider{response: "SELECT * FROM orders"}
	r := New(exec, provider, prompt.NewRegistry())

	out, err := r.Refine(context.Background(), Input{
		DatabaseID: "db1",
		Question:   "how many orders",
		SQL:        "SELECT * FROM ordrs",
	})
	require.NoError(t, err)
	assert.True(t, out.WasFixed)
	assert.Equal(t, "SELECT * FROM orders", out.FinalSQL)
	assert.True(t, out.ExecutionResult.IsSuccessful)
	assert.Equal(t, 1, r.Stats().RefinementCount)
}

func TestRefineSurfacesLatestErrorWhenRepairNeverSucceeds(t *testing.T) {
	exec := &fakeExecutor{
		errs: map[string]error{
			"SELECT * FROM ordrs":  assertErr("no such table: ordrs"),
			"SELECT * FROM orders": assertErr("no such table: orders"),
		},
	}
	provider := &fakeProvider{response: "SELECT * FROM orders"}
	r := New(exec, provider, prompt.NewRegistry())

	out, err := r.Refine(context.Background(), Input{
		DatabaseID: "db1",
		Question:   "how many orders",
		SQL:        "SELECT * FROM ordrs",
	})
	require.NoError(t, err)
	assert.False(t, out.ExecutionResult.IsSuccessful)
	assert.False(t, out.WasFixed)
	assert.Equal(t, MaxRefinementAttempts, r.Stats().RefinementCount)
}

type assertErrType string

func (e assertErrType) Error() string { return string(e) }

func assertErr(msg string) error { return assertErrType(msg) }
