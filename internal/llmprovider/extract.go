package llmprovider

import (
	"regexp"
	"strings"
)

// ExtractSQL strips code-fence markers, "Final Answer:"/"Final SQL:"
// preambles, and a trailing semicolon from a raw LLM response, following
// the teacher's react.go extractSQL, generalized to also recognise the
// chain-of-thought "Final SQL:" marker the cot_sql_generation template
// asks for.
func ExtractSQL(response string) string {
	text := response

	for _, marker := range []string{"Final SQL:", "Final Answer:"} {
		if idx := strings.LastIndex(text, marker); idx >= 0 {
			text = text[idx+len(marker):]
		}
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```sql")
	text = strings.TrimPrefix(text, "```SQL")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if strings.Contains(text, "`SELECT") || strings.Contains(text, "`select") || strings.Contains(text, "`WITH") {
		if start := strings.Index(text, "`"); start >= 0 {
			if end := strings.Index(text[start+1:], "`"); end >= 0 {
				text = text[start+1 : start+1+end]
			}
		}
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 1 {
		first := strings.TrimSpace(lines[0])
		upper := strings.ToUpper(first)
		if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") ||
			strings.HasPrefix(upper, "INSERT") || strings.HasPrefix(upper, "UPDATE") || strings.HasPrefix(upper, "DELETE") {
			var kept []string
			for _, line := range lines {
				trimmed := strings.TrimSpace(line)
				if strings.HasPrefix(trimmed, "This ") || strings.HasPrefix(trimmed, "The ") ||
					strings.HasPrefix(trimmed, "Since ") || strings.HasPrefix(trimmed, "Note:") {
					break
				}
				kept = append(kept, line)
			}
			text = strings.Join(kept, "\n")
		}
	}

	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, ";")
	return strings.TrimSpace(text)
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON finds the first balanced-looking top-level JSON object in a
// possibly noisy LLM response (code fences, explanatory prose around it)
// by taking the widest substring from the first '{' to the last '}'. The
// caller is responsible for unmarshalling and handling malformed JSON —
// this only strips prose, it does not validate.
func ExtractJSON(response string) string {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if match := jsonObjectPattern.FindString(text); match != "" {
		return match
	}
	return text
}
