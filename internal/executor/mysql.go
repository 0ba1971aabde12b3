package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"queryresolve/internal/models"
)

type mysqlAdapter struct {
	db  *sql.DB
	cfg Config
}

func newMySQLAdapter(cfg Config) *mysqlAdapter {
	return &mysqlAdapter{cfg: cfg}
}

func (a *mysqlAdapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.cfg.User, a.cfg.Password, a.cfg.Host, a.cfg.Port, a.cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if a.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(a.cfg.MaxOpenConns)
	}
	if a.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(a.cfg.MaxIdleConns)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	a.db = db
	return nil
}

func (a *mysqlAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *mysqlAdapter) DatabaseType() DatabaseType { return MySQL }

func (a *mysqlAdapter) ExecuteQuery(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanRows(rows, start)
}

func (a *mysqlAdapter) DryRun(ctx context.Context, sql string) error {
	_, err := a.ExecuteQuery(ctx, "EXPLAIN "+sql)
	return err
}

func (a *mysqlAdapter) Introspect(ctx context.Context) (*models.DatabaseInfo, error) {
	info := &models.DatabaseInfo{
		DatabaseID:     a.cfg.Database,
		DescriptionMap: make(map[string][]models.ColumnMeta),
		SampleValueMap: make(map[string][]models.SampleColumn),
		PrimaryKeyMap:  make(map[string][]string),
		ForeignKeyMap:  make(map[string][]models.ForeignKeyEdge),
	}

	tableRows, err := a.ExecuteQuery(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("show tables: %w", err)
	}
	for _, row := range tableRows.Rows {
		var table string
		for _, v := range row {
			if s, ok := v.(string); ok {
				table = s
				break
			}
		}
		if table == "" {
			continue
		}
		info.Tables = append(info.Tables, table)

		cols, err := a.ExecuteQuery(ctx, fmt.Sprintf("DESCRIBE `%s`", table))
		if err != nil {
			continue
		}
		for _, col := range cols.Rows {
			name := stringCell(col, "Field")
			if name == "" {
				continue
			}
			isPK := stringCell(col, "Key") == "PRI"
			info.DescriptionMap[table] = append(info.DescriptionMap[table], models.ColumnMeta{
				ColumnName: name,
				DataType:   stringCell(col, "Type"),
				IsPrimary:  isPK,
			})
			if isPK {
				info.PrimaryKeyMap[table] = append(info.PrimaryKeyMap[table], name)
			}
		}

		fks, err := a.ExecuteQuery(ctx, fmt.Sprintf(
			`SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
			 FROM information_schema.KEY_COLUMN_USAGE
			 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = '%s' AND REFERENCED_TABLE_NAME IS NOT NULL`, table))
		if err == nil {
			for _, fk := range fks.Rows {
				info.ForeignKeyMap[table] = append(info.ForeignKeyMap[table], models.ForeignKeyEdge{
					LocalColumn:   stringCell(fk, "COLUMN_NAME"),
					ForeignTable:  stringCell(fk, "REFERENCED_TABLE_NAME"),
					ForeignColumn: stringCell(fk, "REFERENCED_COLUMN_NAME"),
				})
			}
		}

		sampleRows, err := a.ExecuteQuery(ctx, fmt.Sprintf("SELECT * FROM `%s` LIMIT 3", table))
		if err == nil {
			info.SampleValueMap[table] = buildSampleColumns(sampleRows)
		}
	}

	return info, nil
}

// buildSampleColumns transposes up to three sample rows into one
// SampleColumn per column, shared across adapter implementations.
func buildSampleColumns(result *Result) []models.SampleColumn {
	samples := make([]models.SampleColumn, 0, len(result.Columns))
	for _, col := range result.Columns {
		sc := models.SampleColumn{ColumnName: col}
		for _, row := range result.Rows {
			if v := row[col]; v != nil {
				sc.ExampleValues = append(sc.ExampleValues, fmt.Sprintf("%v", v))
			}
		}
		samples = append(samples, sc)
	}
	return samples
}
