package decomposer

import "strings"

// normalizeSQL strips code-fence markers and normalises trailing
// semicolons, following llmprovider.ExtractSQL's stripping rules applied
// a second time after synthesis-specific prefixes are removed.
func normalizeSQL(sql string) string {
	s := strings.TrimSpace(sql)
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```SQL")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}
