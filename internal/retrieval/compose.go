package retrieval

import (
	"strings"

	"queryresolve/internal/models"
)

// DefaultMaxContextLength is the composed-prompt character cap (spec §4.5).
const DefaultMaxContextLength = 8000

const highQualityQAScore = 0.8

// section is one named, priority-ordered slice of the composed context
// block. Lower-priority sections are truncated first when the total
// exceeds DefaultMaxContextLength.
type section struct {
	title string
	lines []string
}

// ComposePrompt assembles the decomposer's context block in the spec's
// fixed priority order: similar SQL examples (up to 2), then high-quality
// QA pairs (score >= 0.8, up to 2), then business documentation (up to
// 2), truncating the lowest-priority section first if the total exceeds
// maxLength.
func ComposePrompt(rc *models.RetrievedContext, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxContextLength
	}

	sqlLines := make([]string, 0, 2)
	for _, rec := range capRecords(rc.SQLExamples, 2) {
		sqlLines = append(sqlLines, "- "+strings.TrimSpace(rec.Content))
	}

	qaLines := make([]string, 0, 2)
	for _, rec := range rc.QAPairs {
		if Score(rec) < highQualityQAScore {
			continue
		}
		if len(qaLines) >= 2 {
			break
		}
		qaLines = append(qaLines, "Q: "+rec.Question+"\nA: "+rec.SQL)
	}

	docLines := make([]string, 0, 2)
	for _, rec := range capRecords(rc.Documentation, 2) {
		docLines = append(docLines, "- "+strings.TrimSpace(rec.Content))
	}

	sections := []section{
		{title: "Similar SQL examples", lines: sqlLines},
		{title: "High-quality Q&A pairs", lines: qaLines},
		{title: "Business documentation", lines: docLines},
	}

	return renderWithBudget(sections, maxLength)
}

func capRecords(records []models.TrainingRecord, max int) []models.TrainingRecord {
	if len(records) <= max {
		return records
	}
	return records[:max]
}

// renderWithBudget renders sections highest-priority first, dropping
// trailing lines from the LAST non-empty section (lowest priority) when
// the running total would exceed maxLength.
func renderWithBudget(sections []section, maxLength int) string {
	rendered := make([]string, 0, len(sections))
	for _, s := range sections {
		if len(s.lines) == 0 {
			continue
		}
		rendered = append(rendered, s.title+":\n"+strings.Join(s.lines, "\n"))
	}

	for joined := strings.Join(rendered, "\n\n"); len(joined) > maxLength; joined = strings.Join(rendered, "\n\n") {
		if len(rendered) == 0 {
			return joined[:maxLength]
		}
		last := len(rendered) - 1
		lines := strings.Split(rendered[last], "\n")
		if len(lines) <= 1 {
			rendered = rendered[:last]
			continue
		}
		rendered[last] = strings.Join(lines[:len(lines)-1], "\n")
	}

	return strings.Join(rendered, "\n\n")
}
