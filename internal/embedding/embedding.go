// Package embedding wraps a langchaingo embeddings client behind the
// spec's narrow embed/embed_batch interface, with a fixed, store-wide
// vector dimension enforced on every call. Grounded on
// Tangerg-lynx/ai/core/embedding's Model abstraction, adapted to the
// langchaingo ecosystem the teacher already depends on instead of
// invoking a second, unrelated embeddings client.
package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder is the core's narrow view of an embedding backend.
type Embedder interface {
	// Embed returns the fixed-dimension vector for one piece of text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the fixed embedding dimension this Embedder produces.
	Dimension() int
}

// langchainEmbedder adapts langchaingo's embeddings.Embedder to Embedder,
// validating every returned vector against a fixed expected dimension so
// a misconfigured model fails loudly instead of silently corrupting the
// retrieval index.
type langchainEmbedder struct {
	inner     embeddings.Embedder
	dimension int
}

// New wraps an OpenAI-compatible embedding model (same base-URL/token
// configuration shape as the teacher's internal/llm.CreateLLM) into a
// dimension-checked Embedder. dimension must match the model's actual
// output size (1536 for text-embedding-3-small, 3072 for -large, etc.).
func New(client *openai.LLM, dimension int) (Embedder, error) {
	inner, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("embedding: failed to construct embedder: %w", err)
	}
	return &langchainEmbedder{inner: inner, dimension: dimension}, nil
}

func (e *langchainEmbedder) Dimension() int { return e.dimension }

func (e *langchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding: embed query failed: %w", err)
	}
	if err := e.validate(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *langchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding: embed batch failed: %w", err)
	}
	for _, vec := range vectors {
		if err := e.validate(vec); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func (e *langchainEmbedder) validate(vec []float32) error {
	if len(vec) != e.dimension {
		return fmt.Errorf("embedding: expected dimension %d, got %d", e.dimension, len(vec))
	}
	return nil
}
