package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// entry is one stored vector plus its metadata, kept in insertion order
// for deterministic tie-breaking in Search.
type entry struct {
	id       string
	vector   []float32
	metadata map[string]string
}

// memStore is an in-process cosine-similarity vector store. It is the
// zero-config default backend: no network dependency, adequate for a
// single-process deployment or for tests, with the same filter and
// ordering semantics the qdrantstore adapter provides.
type memStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewMemStore builds an empty in-memory Store.
func NewMemStore() Store {
	return &memStore{entries: make(map[string]entry)}
}

func (m *memStore) Insert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[id]; !exists {
		m.order = append(m.order, id)
	}
	m.entries[id] = entry{id: id, vector: append([]float32(nil), vector...), metadata: cloneMeta(metadata)}
	return nil
}

func (m *memStore) InsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadatas []map[string]string) error {
	for i, id := range ids {
		var meta map[string]string
		if i < len(metadatas) {
			meta = metadatas[i]
		}
		if err := m.Insert(ctx, id, vectors[i], meta); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Search(_ context.Context, vector []float32, filter map[string]string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matches := make([]Record, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		if !matchesFilter(e.metadata, filter) {
			continue
		}
		matches = append(matches, Record{
			ID:       e.id,
			Score:    cosineSimilarity(vector, e.vector),
			Vector:   e.vector,
			Metadata: e.metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *memStore) DeleteByFilter(_ context.Context, filter map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []string
	for _, id := range m.order {
		if matchesFilter(m.entries[id].metadata, filter) {
			delete(m.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

func (m *memStore) GetStats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dim := 0
	if len(m.order) > 0 {
		dim = len(m.entries[m.order[0]].vector)
	}
	return Stats{TotalVectors: len(m.order), Dimension: dim}, nil
}

// matchesFilter requires every key in filter to be present in metadata
// with an equal value. An empty filter matches everything.
func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cloneMeta(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
