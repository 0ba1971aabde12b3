package retrieval

import (
	"strings"

	"queryresolve/internal/vectorstore"
)

const (
	// DefaultSimilarityThreshold is the minimum search score a candidate
	// must clear to survive the quality filter (spec §4.5).
	DefaultSimilarityThreshold = 0.7

	minContentLength = 10
	maxContentLength = 2000
)

// scaffoldingNeedles catches the "obvious SQL syntax-error patterns" the
// spec leaves to implementer judgment: leftover LLM formatting noise that
// indicates a stored example was never cleaned up, rather than a genuine
// SQL syntax defect.
var scaffoldingNeedles = []string{"```", "Final SQL:", "Final Answer:", "<|", "|>"}

// qualityFilter drops results below the similarity threshold, outside the
// content-length bounds, or containing leftover LLM formatting noise.
func qualityFilter(records []vectorstore.Record, threshold float64) []vectorstore.Record {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	kept := make([]vectorstore.Record, 0, len(records))
	for _, r := range records {
		if r.Score < threshold {
			continue
		}
		content := r.Metadata["content"]
		if len(content) < minContentLength || len(content) > maxContentLength {
			continue
		}
		if hasScaffolding(content) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func hasScaffolding(content string) bool {
	for _, needle := range scaffoldingNeedles {
		if strings.Contains(content, needle) {
			return true
		}
	}
	return !isBalanced(content, '(', ')') || !isBalanced(content, '`', '`')
}

func isBalanced(s string, open, close rune) bool {
	if open == close {
		return strings.Count(s, string(open))%2 == 0
	}
	depth := 0
	for _, r := range s {
		switch r {
		case open:
			depth++
		case close:
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}

// diversityFilter drops a candidate whose Jaccard similarity over
// whitespace-token sets is >= 0.5 with any already-kept candidate,
// applied within one data type (spec §4.5).
func diversityFilter(records []vectorstore.Record, maxJaccard float64) []vectorstore.Record {
	if maxJaccard <= 0 {
		maxJaccard = 0.5
	}
	var kept []vectorstore.Record
	var keptTokens []map[string]struct{}

	for _, r := range records {
		tokens := tokenSet(r.Metadata["content"])
		distinct := true
		for _, kt := range keptTokens {
			if jaccard(tokens, kt) >= maxJaccard {
				distinct = false
				break
			}
		}
		if distinct {
			kept = append(kept, r)
			keptTokens = append(keptTokens, tokens)
		}
	}
	return kept
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func capAt(records []vectorstore.Record, max int) []vectorstore.Record {
	if max <= 0 || len(records) <= max {
		return records
	}
	return records[:max]
}
