package selector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryresolve/internal/executor"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/prompt"
)

type fakeExecutor struct {
	info          *models.DatabaseInfo
	introspectErr error
	calls         int
}

func (f *fakeExecutor) Introspect(ctx context.Context, databaseID string) (*models.DatabaseInfo, error) {
	f.calls++
	if f.introspectErr != nil {
		return nil, f.introspectErr
	}
	return f.info, nil
}

func (f *fakeExecutor) Execute(ctx context.Context, databaseID, sql string, timeout time.Duration) (*executor.Result, error) {
	return nil, nil
}

func (f *fakeExecutor) DryRun(ctx context.Context, databaseID, sql string) error { return nil }

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int, timeout time.Duration) (*llmprovider.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llmprovider.Response{Content: f.response, Success: true}, nil
}

func smallSchema() *models.DatabaseInfo {
	return &models.DatabaseInfo{
		DatabaseID: "db1",
		Tables:     []string{"orders", "customers"},
		DescriptionMap: map[string][]models.ColumnMeta{
			"orders":    {{ColumnName: "id", IsPrimary: true}, {ColumnName: "customer_id"}, {ColumnName: "total"}},
			"customers": {{ColumnName: "id", IsPrimary: true}, {ColumnName: "name"}},
		},
		PrimaryKeyMap: map[string][]string{"orders": {"id"}, "customers": {"id"}},
		ForeignKeyMap: map[string][]models.ForeignKeyEdge{
			"orders": {{LocalColumn: "customer_id", ForeignTable: "customers", ForeignColumn: "id"}},
		},
		SampleValueMap: map[string][]models.SampleColumn{},
	}
}

func TestSelectReturnsFullSchemaWhenBelowComplexityThresholds(t *testing.T) {
	exec := &fakeExecutor{info: smallSchema()}
	sel := New(exec, &fakeProvider{}, prompt.NewRegistry())

	out, err := sel.Select(context.Background(), "db1", "how many orders", "")
	require.NoError(t, err)
	assert.False(t, out.WasPruned)
	assert.Contains(t, out.SchemaDescription, "orders")
	assert.Contains(t, out.SchemaDescription, "customers")
	assert.Equal(t, 1, exec.calls)
}

func TestSelectCachesIntrospectionAcrossCalls(t *testing.T) {
	exec := &fakeExecutor{info: smallSchema()}
	sel := New(exec, &fakeProvider{}, prompt.NewRegistry())

	_, err := sel.Select(context.Background(), "db1", "q1", "")
	require.NoError(t, err)
	_, err = sel.Select(context.Background(), "db1", "q2", "")
	require.NoError(t, err)

	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, 2, sel.Stats().QueryCount)
}

func TestSelectReturnsDatabaseNotFoundWhenIntrospectionReportsUnregistered(t *testing.T) {
	exec := &fakeExecutor{introspectErr: &executor.ErrDatabaseNotFound{DatabaseID: "missing"}}
	sel := New(exec, &fakeProvider{}, prompt.NewRegistry())

	_, err := sel.Select(context.Background(), "missing", "q", "")
	require.Error(t, err)
}

type fakeFallback struct {
	info   *models.DatabaseInfo
	err    error
	loaded string
}

func (f *fakeFallback) Load(databaseID string) (*models.DatabaseInfo, error) {
	f.loaded = databaseID
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func TestSelectFallsBackToJSONDescriptionWhenIntrospectionFails(t *testing.T) {
	exec := &fakeExecutor{introspectErr: fmt.Errorf("connection refused")}
	fallback := &fakeFallback{info: smallSchema()}
	sel := New(exec, &fakeProvider{}, prompt.NewRegistry()).WithSchemaFallback(fallback)

	out, err := sel.Select(context.Background(), "db1", "how many orders", "")
	require.NoError(t, err)
	assert.Equal(t, "db1", fallback.loaded)
	assert.Contains(t, out.SchemaDescription, "orders")
}

func TestSelectReturnsIntrospectionFailedWhenFallbackAlsoFails(t *testing.T) {
	exec := &fakeExecutor{introspectErr: fmt.Errorf("connection refused")}
	fallback := &fakeFallback{err: fmt.Errorf("no such file")}
	sel := New(exec, &fakeProvider{}, prompt.NewRegistry()).WithSchemaFallback(fallback)

	_, err := sel.Select(context.Background(), "db1", "q", "")
	require.Error(t, err)
	assert.Equal(t, "db1", fallback.loaded)
}

func TestApplyForeignKeyPreservationReinstatesReferencedTable(t *testing.T) {
	info := smallSchema()
	decisions := map[string]decision{
		"orders":    {keepAll: true},
		"customers": {drop: true},
	}

	kept := applyForeignKeyPreservation(info, decisions)
	assert.Contains(t, kept, "customers")
	assert.Equal(t, []string{"id"}, decisions["customers"].columns)
}

func TestParsePruningResponseHandlesKeywordsAndColumnLists(t *testing.T) {
	raw := `{"orders": "all", "customers": ["id", "name"], "logs": "drop"}`
	decisions, err := parsePruningResponse(raw)
	require.NoError(t, err)

	assert.True(t, decisions["orders"].keepAll)
	assert.True(t, decisions["logs"].drop)
	assert.Equal(t, []string{"id", "name"}, decisions["customers"].columns)
}

func TestParsePruningResponseRejectsMalformedJSON(t *testing.T) {
	_, err := parsePruningResponse("not json")
	assert.Error(t, err)
}

func largeSchoolsSchema() *models.DatabaseInfo {
	info := &models.DatabaseInfo{
		DatabaseID: "db1",
		Tables:     []string{"schools"},
		DescriptionMap: map[string][]models.ColumnMeta{
			"schools": {
				{ColumnName: "cds_code", IsPrimary: true},
				{ColumnName: "city"},
				{ColumnName: "sat_score"},
				{ColumnName: "county"},
				{ColumnName: "district"},
				{ColumnName: "zip"},
				{ColumnName: "phone"},
				{ColumnName: "website"},
			},
		},
		PrimaryKeyMap:  map[string][]string{"schools": {"cds_code"}},
		ForeignKeyMap:  map[string][]models.ForeignKeyEdge{},
		SampleValueMap: map[string][]models.SampleColumn{},
	}

	// Pad the schema with enough unrelated tables/columns to exceed the
	// total-column-count threshold, matching a "large schema" scenario.
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

func TestSelectPrunesLargeSchemaKeepingRelevantColumns(t *testing.T) {
	info := largeSchoolsSchema()
	exec := &fakeExecutor{info: info}

	pruning := `{"schools": ["city", "sat_score"], "ta": "drop", "tb": "drop", "tc": "drop", "td": "drop", "te": "drop", "tf": "drop"}`
	sel := New(exec, &fakeProvider{response: pruning}, prompt.NewRegistry())

	out, err := sel.Select(context.Background(), "db1", "what is the average SAT score by city", "")
	require.NoError(t, err)

	assert.True(t, out.WasPruned)
	require.Contains(t, out.ExtractedSchema, "schools")
	assert.ElementsMatch(t, []string{"city", "sat_score"}, out.ExtractedSchema["schools"].Columns)
	assert.NotContains(t, out.ExtractedSchema, "ta")
	assert.Contains(t, out.SchemaDescription, "city")
	assert.Contains(t, out.SchemaDescription, "sat_score")
	assert.NotContains(t, out.SchemaDescription, "ta_cola")
}

func TestSelectFallsBackToFullSchemaOnMalformedPruningResponse(t *testing.T) {
	big := smallSchema()
	for i := 0; i < 10; i++ {
		table := "t" + string(rune('a'+i))
		var cols []models.ColumnMeta
		for c := 0; c < 8; c++ {
			cols = append(cols, models.ColumnMeta{ColumnName: table + "_col" + string(rune('a'+c))})
		}
		big.Tables = append(big.Tables, table)
		big.DescriptionMap[table] = cols
	}

	exec := &fakeExecutor{info: big}
	sel := New(exec, &fakeProvider{response: "not valid json"}, prompt.NewRegistry())

	out, err := sel.Select(context.Background(), "db1", "q", "")
	require.NoError(t, err)
	assert.False(t, out.WasPruned)
}
