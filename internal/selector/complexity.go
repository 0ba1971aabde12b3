package selector

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"queryresolve/internal/models"
)

const (
	avgColumnCountThreshold   = 6
	totalColumnCountThreshold = 30
	tokenCountThreshold       = 25000
)

// tokenizer wraps the teacher's cl100k_base tiktoken setup (pipeline.go)
// with a word-count fallback, since tiktoken-go's encoding tables are not
// guaranteed to be embedded/available in every build.
type tokenizer struct {
	enc *tiktoken.Tiktoken
}

func newTokenizer() *tokenizer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &tokenizer{}
	}
	return &tokenizer{enc: enc}
}

func (t *tokenizer) count(text string) int {
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// requiresPruning implements the spec's complexity evaluation: pruning is
// required when any threshold is exceeded.
func requiresPruning(stats models.DatabaseStats, renderedSchema string, tok *tokenizer) bool {
	if stats.AverageColumnCount > avgColumnCountThreshold {
		return true
	}
	if stats.TotalColumnCount > totalColumnCountThreshold {
		return true
	}
	return tok.count(renderedSchema) >= tokenCountThreshold
}
