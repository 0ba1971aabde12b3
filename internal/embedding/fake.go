package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Fake is a deterministic, dependency-free Embedder for tests and local
// development without a live embedding endpoint configured. It hashes
// each alphanumeric token into a fixed-dimension vector so that similar texts (by
// shared tokens) land closer together under cosine similarity — enough
// for retrieval-quality tests without a real model.
type Fake struct {
	dim int
}

// NewFake builds a Fake embedder producing vectors of the given dimension.
func NewFake(dim int) *Fake {
	if dim <= 0 {
		dim = 64
	}
	return &Fake{dim: dim}
}

func (f *Fake) Dimension() int { return f.dim }

func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *Fake) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *Fake) vector(text string) []float32 {
	vec := make([]float32, f.dim)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		tokens = []string{""}
	}
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		idx := int(h.Sum32()) % f.dim
		if idx < 0 {
			idx += f.dim
		}
		vec[idx]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

func tokenize(text string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cur = append(cur, r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
