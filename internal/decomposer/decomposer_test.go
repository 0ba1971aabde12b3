package decomposer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryresolve/internal/embedding"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/prompt"
	"queryresolve/internal/retrieval"
	"queryresolve/internal/vectorstore"
)

type fakeProvider struct {
	responses []string
	call      int
	err       error
}

func (f *fakeProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int, timeout time.Duration) (*llmprovider.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.call
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.call++
	return &llmprovider.Response{Content: f.responses[i], Success: true}, nil
}

func newTestRetrievalStore(t *testing.T) *retrieval.Store {
	t.Helper()
	return retrieval.New(vectorstore.NewMemStore(), embedding.NewFake(8))
}

func TestDecomposeSimpleQuestionUsesSimpleSynthesis(t *testing.T) {
	provider := &fakeProvider{responses: []string{"SELECT count(*) FROM orders;"}}
	d := New(provider, prompt.NewRegistry(), nil)

	out, err := d.Decompose(context.Background(), Input{
		Question:          "how many orders are there",
		SchemaDescription: "Table orders, columns = [(id)]",
		DBType:            "sqlite",
		Profile:           ProfileGeneric,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM orders", out.FinalSQL)
	assert.Equal(t, models.StrategySimple, out.DecompositionStrategy)
	assert.Equal(t, []string{"how many orders are there"}, out.SubQuestions)
}

func TestDecomposeComplexQuestionDecomposesThenUsesCoTSynthesis(t *testing.T) {
	decompositionJSON := `{"sub_questions": ["find total per customer", "filter customers above average", "sort descending"], "reasoning": "three steps"}`
	provider := &fakeProvider{responses: []string{
		decompositionJSON,
		"Final SQL: SELECT customer_id, sum(total) FROM orders GROUP BY customer_id HAVING sum(total) > (SELECT avg(total) FROM orders) ORDER BY sum(total) DESC;",
	}}
	d := New(provider, prompt.NewRegistry(), nil)

	out, err := d.Decompose(context.Background(), Input{
		Question:          "which customers ordered above the average total, grouped and sorted by their total spend, joining their order history",
		SchemaDescription: "Table orders, columns = [(id), (customer_id), (total)]",
		DBType:            "sqlite",
		Profile:           ProfileBIRD,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StrategyCoT, out.DecompositionStrategy)
	assert.Len(t, out.SubQuestions, 3)
	assert.Contains(t, out.FinalSQL, "GROUP BY customer_id")
}

func TestDecomposeFallsBackToSingleQuestionOnMalformedDecomposition(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"not valid json",
		"SELECT 1;",
	}}
	d := New(provider, prompt.NewRegistry(), nil)

	out, err := d.Decompose(context.Background(), Input{
		Question:          "which customers ordered above the average total, grouped and sorted by their total spend, joining their order history",
		SchemaDescription: "Table orders, columns = [(id)]",
		DBType:            "sqlite",
		Profile:           ProfileBIRD,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"which customers ordered above the average total, grouped and sorted by their total spend, joining their order history"}, out.SubQuestions)
	assert.Equal(t, "SELECT 1", out.FinalSQL)
}

func TestDecomposeReturnsEmptySQLErrorWhenLLMYieldsNoSQL(t *testing.T) {
	provider := &fakeProvider{responses: []string{"I cannot help with that."}}
	d := New(provider, prompt.NewRegistry(), nil)

	_, err := d.Decompose(context.Background(), Input{
		Question:          "how many orders",
		SchemaDescription: "Table orders, columns = [(id)]",
		DBType:            "sqlite",
		Profile:           ProfileGeneric,
	})
	assert.Error(t, err)
}

func TestDecomposeIncludesErrorBlockWhenErrorContextAvailable(t *testing.T) {
	provider := &fakeProvider{responses: []string{"SELECT 1;"}}
	d := New(provider, prompt.NewRegistry(), nil)

	out, err := d.Decompose(context.Background(), Input{
		Question:              "how many orders",
		SchemaDescription:     "Table orders, columns = [(id)]",
		DBType:                "sqlite",
		Profile:               ProfileGeneric,
		ErrorContextAvailable: true,
		ErrorHistory: []models.ErrorRecord{
			{AttemptNumber: 1, FailedSQL: "SELECT * FROM ordrs", ErrorMessage: "no such table: ordrs", ErrorType: models.ErrorTypeSchema},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out.FinalSQL)
}

func TestDecomposeRetrievesContextWhenStoreConfigured(t *testing.T) {
	store := newTestRetrievalStore(t)
	require.NoError(t, store.TrainSQLExamples(context.Background(), []string{"SELECT count(*) FROM orders"}, "db1"))

	provider := &fakeProvider{responses: []string{"SELECT count(*) FROM orders;"}}
	d := New(provider, prompt.NewRegistry(), store)

	out, err := d.Decompose(context.Background(), Input{
		Question:          "how many orders",
		SchemaDescription: "Table orders, columns = [(id)]",
		DatabaseID:        "db1",
		DBType:            "sqlite",
		Profile:           ProfileGeneric,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM orders", out.FinalSQL)
}
