package selector

import (
	"context"
	"encoding/json"
	"fmt"

	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/obslog"
	"queryresolve/internal/prompt"
)

// decision is the per-table pruning verdict the LLM returns: either a
// literal "all"/"drop" keyword, or a named column subset.
type decision struct {
	keepAll bool
	drop    bool
	columns []string
}

// parsePruningResponse decodes the schema_pruning prompt's JSON object
// (one key per table, value "all"/"drop"/array of column names) into a
// per-table decision map. Any malformed entry makes the whole response
// unusable, triggering the spec's retain-everything fallback.
func parsePruningResponse(raw string) (map[string]decision, error) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("selector: malformed pruning response: %w", err)
	}

	decisions := make(map[string]decision, len(parsed))
	for table, value := range parsed {
		var keyword string
		if err := json.Unmarshal(value, &keyword); err == nil {
			switch keyword {
			case "all":
				decisions[table] = decision{keepAll: true}
			case "drop":
				decisions[table] = decision{drop: true}
			default:
				return nil, fmt.Errorf("selector: unrecognised pruning keyword %q for table %q", keyword, table)
			}
			continue
		}

		var columns []string
		if err := json.Unmarshal(value, &columns); err != nil {
			return nil, fmt.Errorf("selector: table %q value is neither a keyword nor a column list: %w", table, err)
		}
		decisions[table] = decision{columns: columns}
	}
	return decisions, nil
}

// applyForeignKeyPreservation post-processes raw per-table decisions so
// that (a) a table referenced by a retained foreign key is kept, at
// least key-only, and (b) primary-key columns are always retained when a
// table is kept (spec §4.2).
func applyForeignKeyPreservation(info *models.DatabaseInfo, decisions map[string]decision) []string {
	kept := make(map[string]bool)
	for table, d := range decisions {
		if !d.drop {
			kept[table] = true
		}
	}

	// Tables that a kept table's FK points to must also be kept.
	changed := true
	for changed {
		changed = false
		for table := range kept {
			for _, fk := range info.ForeignKeyMap[table] {
				if !kept[fk.ForeignTable] {
					kept[fk.ForeignTable] = true
					if d, ok := decisions[fk.ForeignTable]; ok && d.drop {
						decisions[fk.ForeignTable] = decision{columns: info.PrimaryKeyMap[fk.ForeignTable]}
					} else if !ok {
						decisions[fk.ForeignTable] = decision{columns: info.PrimaryKeyMap[fk.ForeignTable]}
					}
					changed = true
				}
			}
		}
	}

	result := make([]string, 0, len(kept))
	for _, table := range info.Tables {
		if kept[table] {
			result = append(result, table)
		}
	}
	return result
}

// pruneSchema runs the LLM-driven pruning policy, returning the retained
// table list, a filtered DatabaseInfo ready for rendering, and the
// per-table decisions (for Message.ExtractedSchema). On any failure to
// obtain a usable decision set, it falls back to retaining everything
// with wasPruned=false (spec: PRUNING_FALLBACK, warning only).
func pruneSchema(ctx context.Context, provider llmprovider.Provider, registry *prompt.Registry, log *obslog.Logger, info *models.DatabaseInfo, schemaDesc, fkDesc, question, evidence string) (*models.DatabaseInfo, []string, map[string]decision, bool) {
	rendered, err := registry.Format("selector", "schema_pruning", map[string]any{
		"schema_description":      schemaDesc,
		"foreign_key_description": fkDesc,
		"question":                question,
		"evidence":                evidence,
	})
	if err != nil {
		log.Warnw("selector: prompt formatting failed, retaining everything", "error", err)
		return info, info.Tables, nil, false
	}

	resp, err := provider.Generate(ctx, rendered.SystemPrompt, rendered.UserPrompt, 0, 0, 0)
	if err != nil || !resp.Success {
		log.Warnw("selector: pruning LLM call failed, retaining everything", "error", err)
		return info, info.Tables, nil, false
	}

	decisions, err := parsePruningResponse(llmprovider.ExtractJSON(resp.Content))
	if err != nil {
		log.Warnw("selector: pruning response unusable, retaining everything", "error", err)
		return info, info.Tables, nil, false
	}

	keptTables := applyForeignKeyPreservation(info, decisions)
	pruned := filterDatabaseInfo(info, keptTables, decisions)
	return pruned, keptTables, decisions, true
}

// toColumnSelections converts the internal per-table decision map to the
// Message-facing models.ColumnSelection map, defaulting every table not
// present in decisions (never dropped, never explicitly judged) to "all".
func toColumnSelections(tables []string, decisions map[string]decision) map[string]models.ColumnSelection {
	out := make(map[string]models.ColumnSelection, len(tables))
	for _, table := range tables {
		d, ok := decisions[table]
		switch {
		case !ok || d.keepAll:
			out[table] = models.ColumnSelection{Mode: models.ColumnSelectionAll}
		case d.drop:
			out[table] = models.ColumnSelection{Mode: models.ColumnSelectionDrop}
		default:
			out[table] = models.ColumnSelection{Mode: models.ColumnSelectionKeep, Columns: d.columns}
		}
	}
	return out
}

// filterDatabaseInfo applies per-table column decisions, always
// retaining primary-key columns on kept tables.
func filterDatabaseInfo(info *models.DatabaseInfo, keptTables []string, decisions map[string]decision) *models.DatabaseInfo {
	out := &models.DatabaseInfo{
		DatabaseID:     info.DatabaseID,
		Tables:         keptTables,
		DescriptionMap: make(map[string][]models.ColumnMeta),
		SampleValueMap: make(map[string][]models.SampleColumn),
		PrimaryKeyMap:  info.PrimaryKeyMap,
		ForeignKeyMap:  info.ForeignKeyMap,
	}

	for _, table := range keptTables {
		d := decisions[table]
		allCols := info.DescriptionMap[table]

		if d.keepAll || (len(d.columns) == 0 && !d.drop) {
			out.DescriptionMap[table] = allCols
			out.SampleValueMap[table] = info.SampleValueMap[table]
			continue
		}

		keepNames := make(map[string]bool, len(d.columns)+len(info.PrimaryKeyMap[table]))
		for _, c := range d.columns {
			keepNames[c] = true
		}
		for _, pk := range info.PrimaryKeyMap[table] {
			keepNames[pk] = true
		}

		for _, col := range allCols {
			if keepNames[col.ColumnName] {
				out.DescriptionMap[table] = append(out.DescriptionMap[table], col)
			}
		}
		for _, sample := range info.SampleValueMap[table] {
			if keepNames[sample.ColumnName] {
				out.SampleValueMap[table] = append(out.SampleValueMap[table], sample)
			}
		}
	}

	return out
}
