package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryresolve/internal/decomposer"
	"queryresolve/internal/executor"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/prompt"
	"queryresolve/internal/refiner"
	"queryresolve/internal/selector"
)

func smallSchema() *models.DatabaseInfo {
	return &models.DatabaseInfo{
		DatabaseID: "shop",
		Tables:     []string{"schools", "users"},
		DescriptionMap: map[string][]models.ColumnMeta{
			"schools": {{ColumnName: "id", IsPrimary: true}, {ColumnName: "city"}, {ColumnName: "sat_score"}},
			"users":   {{ColumnName: "id", IsPrimary: true}, {ColumnName: "name"}},
		},
		PrimaryKeyMap:  map[string][]string{"schools": {"id"}, "users": {"id"}},
		ForeignKeyMap:  map[string][]models.ForeignKeyEdge{},
		SampleValueMap: map[string][]models.SampleColumn{},
	}
}

type fakeExecutor struct {
	info           *models.DatabaseInfo
	failingSQL     map[string]string
	succeedingRows map[string][]map[string]any

	mu    sync.Mutex
	calls []string
}

func (f *fakeExecutor) Introspect(ctx context.Context, databaseID string) (*models.DatabaseInfo, error) {
	return f.info, nil
}

func (f *fakeExecutor) Execute(ctx context.Context, databaseID, sql string, timeout time.Duration) (*executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sql)
	f.mu.Unlock()

	if msg, ok := f.failingSQL[sql]; ok {
		return nil, fmt.Errorf("%s", msg)
	}
	rows := f.succeedingRows[sql]
	return &executor.Result{Rows: rows, RowCount: len(rows)}, nil
}

func (f *fakeExecutor) DryRun(ctx context.Context, databaseID, sql string) error { return nil }

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingProvider returns canned responses in call order, while
// recording every rendered user prompt so tests can assert on prior-turn
// context folded into it (scenario 6).
type recordingProvider struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	call      int
}

func (p *recordingProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int, timeout time.Duration) (*llmprovider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, userPrompt)
	i := p.call
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.call++
	return &llmprovider.Response{Content: p.responses[i], Success: true}, nil
}

func newOrchestrator(exec *fakeExecutor, provider *recordingProvider) *Orchestrator {
	registry := prompt.NewRegistry()
	sel := selector.New(exec, provider, registry)
	dec := decomposer.New(provider, registry, nil)
	ref := refiner.New(exec, nil, nil)
	return New(Dependencies{Selector: sel, Decomposer: dec, Refiner: ref, Executor: exec})
}

func TestProcessQuerySimpleSelectFirstTrySuccess(t *testing.T) {
	exec := &fakeExecutor{
		info: smallSchema(),
		succeedingRows: map[string][]map[string]any{
			"SELECT * FROM schools WHERE city = 'Los Angeles'": {{"id": 1, "city": "Los Angeles"}},
		},
	}
	provider := &recordingProvider{responses: []string{"SELECT * FROM schools WHERE city = 'Los Angeles'"}}
	orch := newOrchestrator(exec, provider)

	res, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "List all schools in Los Angeles"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "SELECT * FROM schools WHERE city = 'Los Angeles'", res.SQL)
	assert.Equal(t, 0, res.RetryCount)
	assert.Len(t, res.Rows, 1)
}

func TestProcessQueryRepairsAfterSchemaErrorViaDecomposerRetry(t *testing.T) {
	exec := &fakeExecutor{
		info:       smallSchema(),
		failingSQL: map[string]string{"SELECT * FROM user": "no such table: user"},
		succeedingRows: map[string][]map[string]any{
			"SELECT * FROM users": {{"id": 1, "name": "ada"}},
		},
	}
	provider := &recordingProvider{responses: []string{"SELECT * FROM user", "SELECT * FROM users"}}
	orch := newOrchestrator(exec, provider)

	res, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "list all users"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "SELECT * FROM users", res.SQL)
	assert.Equal(t, 1, res.RetryCount)
}

func TestProcessQuerySecurityViolationTerminatesImmediately(t *testing.T) {
	exec := &fakeExecutor{info: smallSchema()}
	provider := &recordingProvider{responses: []string{"SELECT * FROM users; DROP TABLE users;"}}
	orch := newOrchestrator(exec, provider)

	res, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "list all users then drop the table"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.RetryCount)
	assert.Equal(t, 0, exec.callCount())
}

func TestProcessQueryRetryExhaustionAfterThreeSyntaxFailures(t *testing.T) {
	exec := &fakeExecutor{
		info: smallSchema(),
		failingSQL: map[string]string{
			"SELECT * FROM bad1": "you have an error in your sql syntax near bad1",
			"SELECT * FROM bad2": "you have an error in your sql syntax near bad2",
			"SELECT * FROM bad3": "you have an error in your sql syntax near bad3",
			"SELECT * FROM bad4": "you have an error in your sql syntax near bad4",
		},
	}
	provider := &recordingProvider{responses: []string{
		"SELECT * FROM bad1", "SELECT * FROM bad2", "SELECT * FROM bad3", "SELECT * FROM bad4",
	}}
	orch := newOrchestrator(exec, provider)

	res, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "a persistently malformed question"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.RetryCount)
	assert.Len(t, res.ErrorHistory, 3)
	assert.Contains(t, res.Error, "bad4")
}

func TestProcessQuerySecondCallOnSameThreadSeesPriorContext(t *testing.T) {
	exec := &fakeExecutor{
		info: smallSchema(),
		succeedingRows: map[string][]map[string]any{
			"SELECT * FROM users":       {{"id": 1, "name": "ada"}},
			"SELECT count(*) FROM users": {{"count": 1}},
		},
	}
	provider := &recordingProvider{responses: []string{"SELECT * FROM users", "SELECT count(*) FROM users"}}
	orch := newOrchestrator(exec, provider)

	first, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "Show all users", ThreadID: "T1"})
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "Count them", ThreadID: "T1"})
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.Equal(t, "SELECT count(*) FROM users", second.SQL)

	require.Len(t, provider.prompts, 2)
	assert.Contains(t, provider.prompts[1], "Show all users")
	assert.Contains(t, provider.prompts[1], "SELECT * FROM users")
}

func TestProcessQueryDistinctThreadsDoNotShareContext(t *testing.T) {
	exec := &fakeExecutor{
		info: smallSchema(),
		succeedingRows: map[string][]map[string]any{
			"SELECT * FROM users":       {{"id": 1, "name": "ada"}},
			"SELECT count(*) FROM users": {{"count": 1}},
		},
	}
	provider := &recordingProvider{responses: []string{"SELECT * FROM users", "SELECT count(*) FROM users"}}
	orch := newOrchestrator(exec, provider)

	_, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "Show all users", ThreadID: "T1"})
	require.NoError(t, err)

	_, err = orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "Count them", ThreadID: "T2"})
	require.NoError(t, err)

	require.Len(t, provider.prompts, 2)
	assert.False(t, strings.Contains(provider.prompts[1], "Show all users"))
}

func TestGetStatsTracksTotalsAndRetryRate(t *testing.T) {
	exec := &fakeExecutor{
		info: smallSchema(),
		succeedingRows: map[string][]map[string]any{
			"SELECT * FROM schools WHERE city = 'Los Angeles'": {{"id": 1}},
		},
	}
	provider := &recordingProvider{responses: []string{"SELECT * FROM schools WHERE city = 'Los Angeles'"}}
	orch := newOrchestrator(exec, provider)

	_, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "List all schools in Los Angeles"})
	require.NoError(t, err)

	stats := orch.GetStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, float64(0), stats.RetryRate())
}

func largeSchoolsSchema() *models.DatabaseInfo {
	info := smallSchema()
	info.DescriptionMap["schools"] = append(info.DescriptionMap["schools"],
		models.ColumnMeta{ColumnName: "county"}, models.ColumnMeta{ColumnName: "district"},
		models.ColumnMeta{ColumnName: "zip"}, models.ColumnMeta{ColumnName: "phone"})
	for i := 0; i < 6; i++ {
		table := "t" + string(rune('a'+i))
		var cols []models.ColumnMeta
		for c := 0; c < 5; c++ {
			cols = append(cols, models.ColumnMeta{ColumnName: table + "_col" + string(rune('a'+c))})
		}
		info.Tables = append(info.Tables, table)
		info.DescriptionMap[table] = cols
		info.PrimaryKeyMap[table] = []string{table + "_cola"}
	}
	return info
}

// TestProcessQueryPrunesLargeSchemaForAggregationQuery covers the "large
// schema, pruned, aggregation" scenario: a schema big enough to require
// pruning, a pruning decision that keeps only schools(city, sat_score),
// and a final aggregation query over the retained columns.
func TestProcessQueryPrunesLargeSchemaForAggregationQuery(t *testing.T) {
	const finalSQL = "SELECT city, AVG(sat_score) FROM schools GROUP BY city"
	exec := &fakeExecutor{
		info: largeSchoolsSchema(),
		succeedingRows: map[string][]map[string]any{
			finalSQL: {{"city": "Los Angeles", "avg_sat_score": 1200}},
		},
	}
	pruningResponse := `{"schools": ["city", "sat_score"], "users": "drop", "ta": "drop", "tb": "drop", "tc": "drop", "td": "drop", "te": "drop", "tf": "drop"}`
	provider := &recordingProvider{responses: []string{pruningResponse, finalSQL}}
	orch := newOrchestrator(exec, provider)

	res, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: "What is the average SAT score per city"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, finalSQL, res.SQL)
	assert.Contains(t, res.SQL, "GROUP BY")
	assert.Contains(t, res.SQL, "AVG(")
}

func TestProcessQueryEmptyQuestionIsRejectedAsInvalidMessage(t *testing.T) {
	exec := &fakeExecutor{info: smallSchema()}
	provider := &recordingProvider{responses: []string{"SELECT 1"}}
	orch := newOrchestrator(exec, provider)

	res, err := orch.ProcessQuery(context.Background(), Input{DatabaseID: "shop", Question: ""})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "INVALID_MESSAGE")
	assert.Equal(t, 0, exec.callCount())
}

func TestHealthCheckReportsOKWhenFullyWired(t *testing.T) {
	exec := &fakeExecutor{info: smallSchema()}
	provider := &recordingProvider{responses: []string{"SELECT 1"}}
	orch := newOrchestrator(exec, provider)

	health := orch.HealthCheck()
	assert.Equal(t, "ok", health.Status)
}
