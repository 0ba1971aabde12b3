package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"queryresolve/internal/models"
)

type sqliteAdapter struct {
	db  *sql.DB
	cfg Config
}

func newSQLiteAdapter(cfg Config) *sqliteAdapter {
	return &sqliteAdapter{cfg: cfg}
}

func (a *sqliteAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", a.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	a.db = db
	return nil
}

func (a *sqliteAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *sqliteAdapter) DatabaseType() DatabaseType { return SQLite }

func (a *sqliteAdapter) ExecuteQuery(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanRows(rows, start)
}

func (a *sqliteAdapter) DryRun(ctx context.Context, sql string) error {
	_, err := a.ExecuteQuery(ctx, "EXPLAIN QUERY PLAN "+sql)
	return err
}

func (a *sqliteAdapter) Introspect(ctx context.Context) (*models.DatabaseInfo, error) {
	info := &models.DatabaseInfo{
		DatabaseID:     a.cfg.Database,
		DescriptionMap: make(map[string][]models.ColumnMeta),
		SampleValueMap: make(map[string][]models.SampleColumn),
		PrimaryKeyMap:  make(map[string][]string),
		ForeignKeyMap:  make(map[string][]models.ForeignKeyEdge),
	}
	if info.DatabaseID == "" {
		info.DatabaseID = a.cfg.FilePath
	}

	tableRows, err := a.ExecuteQuery(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for _, row := range tableRows.Rows {
		table := stringCell(row, "name")
		if table == "" {
			continue
		}
		info.Tables = append(info.Tables, table)

		cols, err := a.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			continue
		}
		for _, col := range cols.Rows {
			name := stringCell(col, "name")
			if name == "" {
				continue
			}
			isPK := false
			if pk, ok := col["pk"].(int64); ok && pk > 0 {
				isPK = true
			}
			info.DescriptionMap[table] = append(info.DescriptionMap[table], models.ColumnMeta{
				ColumnName: name,
				DataType:   stringCell(col, "type"),
				IsPrimary:  isPK,
			})
			if isPK {
				info.PrimaryKeyMap[table] = append(info.PrimaryKeyMap[table], name)
			}
		}

		fks, err := a.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", table))
		if err == nil {
			for _, fk := range fks.Rows {
				info.ForeignKeyMap[table] = append(info.ForeignKeyMap[table], models.ForeignKeyEdge{
					LocalColumn:   stringCell(fk, "from"),
					ForeignTable:  stringCell(fk, "table"),
					ForeignColumn: stringCell(fk, "to"),
				})
			}
		}

		sampleRows, err := a.ExecuteQuery(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 3", table))
		if err == nil {
			info.SampleValueMap[table] = buildSampleColumns(sampleRows)
		}
	}

	return info, nil
}
