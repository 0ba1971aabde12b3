package models

// ColumnMeta describes one column of a table as introspected from the
// live database (or a pre-exported JSON description file).
type ColumnMeta struct {
	ColumnName  string
	DisplayName string
	Comment     string
	DataType    string
	IsPrimary   bool
}

// SampleColumn pairs a column with up to three example values drawn from
// the table, used to render "Value examples: [...]" in schema descriptions.
type SampleColumn struct {
	ColumnName     string
	ExampleValues  []string
}

// ForeignKeyEdge is one FK relationship: LocalColumn in the owning table
// references ForeignTable.ForeignColumn.
type ForeignKeyEdge struct {
	LocalColumn   string
	ForeignTable  string
	ForeignColumn string
}

// DatabaseInfo is the introspected metadata for one database, cached by
// the Selector and invalidated only on explicit refresh.
type DatabaseInfo struct {
	DatabaseID string

	// DescriptionMap: table -> ordered column metadata.
	DescriptionMap map[string][]ColumnMeta

	// SampleValueMap: table -> ordered list of column/sample-value pairs
	// (first three rows only).
	SampleValueMap map[string][]SampleColumn

	// PrimaryKeyMap: table -> primary key column names.
	PrimaryKeyMap map[string][]string

	// ForeignKeyMap: table -> outgoing FK edges.
	ForeignKeyMap map[string][]ForeignKeyEdge

	// Tables preserves introspection order for stable rendering.
	Tables []string
}

// DatabaseStats is a scalar summary derived from a DatabaseInfo, used by
// the Selector's complexity evaluation.
type DatabaseStats struct {
	TableCount         int
	MaxColumnCount     int
	TotalColumnCount   int
	AverageColumnCount float64
}

// ComputeStats derives a DatabaseStats snapshot from a DatabaseInfo.
func ComputeStats(info *DatabaseInfo) DatabaseStats {
	stats := DatabaseStats{TableCount: len(info.Tables)}
	for _, table := range info.Tables {
		cols := len(info.DescriptionMap[table])
		stats.TotalColumnCount += cols
		if cols > stats.MaxColumnCount {
			stats.MaxColumnCount = cols
		}
	}
	if stats.TableCount > 0 {
		stats.AverageColumnCount = float64(stats.TotalColumnCount) / float64(stats.TableCount)
	}
	return stats
}
