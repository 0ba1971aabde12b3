package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreSearchOrdersByScoreDescending(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	require.NoError(t, store.Insert(ctx, "a", []float32{1, 0, 0}, map[string]string{"database_id": "db1"}))
	require.NoError(t, store.Insert(ctx, "b", []float32{0.9, 0.1, 0}, map[string]string{"database_id": "db1"}))
	require.NoError(t, store.Insert(ctx, "c", []float32{0, 1, 0}, map[string]string{"database_id": "db1"}))

	results, err := store.Search(ctx, []float32{1, 0, 0}, map[string]string{"database_id": "db1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "c", results[2].ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestMemStoreSearchRespectsFilterWithNoCrossLeakage(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	require.NoError(t, store.Insert(ctx, "a", []float32{1, 0}, map[string]string{"database_id": "db1", "data_type": "ddl"}))
	require.NoError(t, store.Insert(ctx, "b", []float32{1, 0}, map[string]string{"database_id": "db2", "data_type": "ddl"}))

	results, err := store.Search(ctx, []float32{1, 0}, map[string]string{"database_id": "db1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestMemStoreSearchLimitsResultCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Insert(ctx, id, []float32{1, 0}, nil))
	}

	results, err := store.Search(ctx, []float32{1, 0}, nil, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemStoreInsertBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	err := store.InsertBatch(
		ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0}, {0, 1}},
		[]map[string]string{{"database_id": "db1"}, {"database_id": "db1"}},
	)
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVectors)
	assert.Equal(t, 2, stats.Dimension)
}

func TestMemStoreDeleteByFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	require.NoError(t, store.Insert(ctx, "a", []float32{1, 0}, map[string]string{"database_id": "db1"}))
	require.NoError(t, store.Insert(ctx, "b", []float32{1, 0}, map[string]string{"database_id": "db2"}))

	require.NoError(t, store.DeleteByFilter(ctx, map[string]string{"database_id": "db1"}))

	results, err := store.Search(ctx, []float32{1, 0}, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestMemStoreUpsertOverwritesExistingID(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	require.NoError(t, store.Insert(ctx, "a", []float32{1, 0}, map[string]string{"v": "1"}))
	require.NoError(t, store.Insert(ctx, "a", []float32{0, 1}, map[string]string{"v": "2"}))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)

	results, err := store.Search(ctx, []float32{0, 1}, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].Metadata["v"])
}
