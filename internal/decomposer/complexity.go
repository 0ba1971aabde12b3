// Package decomposer implements the Query Decomposer: complexity
// scoring, optional LLM-driven sub-question decomposition, retrieval
// context selection by dataset profile, and SQL synthesis (simple or
// chain-of-thought), with error-aware regeneration when prior attempts
// failed. Grounded on the teacher's internal/inference.Pipeline
// (oneShotGeneration's retry-with-backoff call pattern, extractSQL),
// replacing its langchaingo agents.Executor ReAct loop with a direct
// bounded llmprovider.Provider call per the architectural note in
// SPEC_FULL.md §9.
package decomposer

import "strings"

// DatasetProfile selects the retrieval strategy bias and the tie-break
// behaviour for a complexity score of exactly 3 (spec §4.3).
type DatasetProfile string

const (
	ProfileBIRD    DatasetProfile = "bird"
	ProfileSpider  DatasetProfile = "spider"
	ProfileGeneric DatasetProfile = "generic"
)

const (
	simpleThreshold     = 2
	decomposeThreshold  = 4
	defaultMaxSubQs     = 5
)

// complexityIndicators are the eight lowercase-question signals the spec
// names; score is the count of indicators present.
var complexityIndicators = []struct {
	name    string
	needles []string
}{
	{"aggregation", []string{"count", "sum", "average", "avg", "total", "maximum", "minimum", "max(", "min("}},
	{"grouping", []string{"each", "per ", "group by", "by category", "by type"}},
	{"filtering", []string{"where", "only", "excluding", "filter", "that have", "with a"}},
	{"sorting", []string{"order", "sort", "top ", "highest", "lowest", "rank"}},
	{"joining", []string{"along with", "together with", "associated", "related to", "belongs to"}},
	{"comparison", []string{"more than", "less than", "greater", "fewer", "at least", "at most", "compared to"}},
	{"temporal", []string{"before", "after", "between", "since", "year", "month", "date", "last week", "last month"}},
	{"multiple_entities", []string{" and ", " as well as", " both "}},
}

// score computes the complexity score: the count of indicators whose
// needle set matches somewhere in the lowercased question.
func score(question string) int {
	lowered := strings.ToLower(question)
	count := 0
	for _, ind := range complexityIndicators {
		for _, needle := range ind.needles {
			if strings.Contains(lowered, needle) {
				count++
				break
			}
		}
	}
	return count
}

// shouldDecompose applies the spec's score thresholds and the
// profile-dependent tie-break at score == 3.
func shouldDecompose(question string, profile DatasetProfile) bool {
	s := score(question)
	switch {
	case s <= simpleThreshold:
		return false
	case s >= decomposeThreshold:
		return true
	default: // s == 3
		return profile == ProfileBIRD || profile == ProfileSpider
	}
}
