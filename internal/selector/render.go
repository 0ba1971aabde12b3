package selector

import (
	"fmt"
	"strings"

	"queryresolve/internal/models"
)

// RenderSchema emits the stable schema-description format the spec
// prescribes: one block per table with a bracketed column list of
// "(column, display_name. Value examples: [...]. comment)," entries,
// following exporter.go's strings.Builder-based table rendering style.
func RenderSchema(info *models.DatabaseInfo, tables []string) string {
	var sb strings.Builder
	for _, table := range tables {
		cols := info.DescriptionMap[table]
		if len(cols) == 0 {
			continue
		}
		samples := sampleIndex(info.SampleValueMap[table])

		sb.WriteString(fmt.Sprintf("Table %s, columns = [\n", table))
		for i, col := range cols {
			displayName := col.DisplayName
			if displayName == "" {
				displayName = col.ColumnName
			}
			comment := col.Comment
			if comment == "" {
				comment = "-"
			}
			examples := strings.Join(samples[col.ColumnName], ", ")
			sb.WriteString(fmt.Sprintf("  (%s, %s. Value examples: [%s]. %s)", col.ColumnName, displayName, examples, comment))
			if i < len(cols)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("]\n\n")
	}
	return strings.TrimSpace(sb.String())
}

// RenderForeignKeys emits one "local_table.local_col = foreign_table.foreign_col"
// line per retained FK edge.
func RenderForeignKeys(info *models.DatabaseInfo, tables []string) string {
	kept := make(map[string]bool, len(tables))
	for _, t := range tables {
		kept[t] = true
	}

	var sb strings.Builder
	for _, table := range tables {
		for _, fk := range info.ForeignKeyMap[table] {
			if !kept[fk.ForeignTable] {
				continue
			}
			sb.WriteString(fmt.Sprintf("%s.%s = %s.%s\n", table, fk.LocalColumn, fk.ForeignTable, fk.ForeignColumn))
		}
	}
	return strings.TrimSpace(sb.String())
}

func sampleIndex(samples []models.SampleColumn) map[string][]string {
	idx := make(map[string][]string, len(samples))
	for _, s := range samples {
		idx[s.ColumnName] = s.ExampleValues
	}
	return idx
}
