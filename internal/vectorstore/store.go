// Package vectorstore defines the spec's narrow vector-store interface
// (§6): filtered top-k search with stable higher-is-more-similar score
// ordering and no cross-filter leakage, plus an in-process default
// implementation and a Qdrant-backed production implementation in the
// qdrantstore subpackage.
package vectorstore

import "context"

// Record is one stored vector with its metadata, as returned by Search.
type Record struct {
	ID       string
	Score    float64
	Vector   []float32
	Metadata map[string]string
}

// Stats is a coarse summary of store contents, exposed for health checks.
type Stats struct {
	TotalVectors int
	Dimension    int
}

// Store is the core's narrow view of a vector index. Implementations
// MUST NOT return records whose metadata fails the supplied filter
// (cross-filter leakage is forbidden by spec §4.5/§8), and MUST return
// results in descending score order.
type Store interface {
	Insert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	InsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadatas []map[string]string) error
	Search(ctx context.Context, vector []float32, filter map[string]string, limit int) ([]Record, error)
	DeleteByFilter(ctx context.Context, filter map[string]string) error
	GetStats(ctx context.Context) (Stats, error)
}
