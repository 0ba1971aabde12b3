package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"queryresolve/internal/models"
)

type postgresAdapter struct {
	db  *sql.DB
	cfg Config
}

func newPostgreSQLAdapter(cfg Config) *postgresAdapter {
	return &postgresAdapter{cfg: cfg}
}

func (a *postgresAdapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		a.cfg.Host, a.cfg.Port, a.cfg.User, a.cfg.Password, a.cfg.Database)

	db, err := sql.Open("postgres", dsn)
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

func (a *postgresAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *postgresAdapter) DatabaseType() DatabaseType { return PostgreSQL }

func (a *postgresAdapter) ExecuteQuery(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanRows(rows, start)
}

func (a *postgresAdapter) DryRun(ctx context.Context, sql string) error {
	_, err := a.ExecuteQuery(ctx, "EXPLAIN "+sql)
	return err
}

func (a *postgresAdapter) Introspect(ctx context.Context) (*models.DatabaseInfo, error) {
	info := &models.DatabaseInfo{
		DatabaseID:     a.cfg.Database,
		DescriptionMap: make(map[string][]models.ColumnMeta),
		SampleValueMap: make(map[string][]models.SampleColumn),
		PrimaryKeyMap:  make(map[string][]string),
		ForeignKeyMap:  make(map[string][]models.ForeignKeyEdge),
	}

	tableRows, err := a.ExecuteQuery(ctx, "SELECT tablename FROM pg_tables WHERE schemaname='public'")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for _, row := range tableRows.Rows {
		table := stringCell(row, "tablename")
		if table == "" {
			continue
		}
		info.Tables = append(info.Tables, table)

		cols, err := a.ExecuteQuery(ctx, fmt.Sprintf(
			"SELECT column_name, data_type FROM information_schema.columns WHERE table_name='%s' ORDER BY ordinal_position", table))
		if err != nil {
			continue
		}

		pkRows, _ := a.ExecuteQuery(ctx, fmt.Sprintf(`
			SELECT a.attname FROM pg_index i
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
			WHERE i.indrelid = '%s'::regclass AND i.indisprimary`, table))
		pkSet := make(map[string]bool)
		if pkRows != nil {
			for _, pk := range pkRows.Rows {
				pkSet[stringCell(pk, "attname")] = true
			}
		}

		for _, col := range cols.Rows {
			name := stringCell(col, "column_name")
			if name == "" {
				continue
			}
			isPK := pkSet[name]
			info.DescriptionMap[table] = append(info.DescriptionMap[table], models.ColumnMeta{
				ColumnName: name,
				DataType:   stringCell(col, "data_type"),
				IsPrimary:  isPK,
			})
			if isPK {
				info.PrimaryKeyMap[table] = append(info.PrimaryKeyMap[table], name)
			}
		}

		fks, err := a.ExecuteQuery(ctx, fmt.Sprintf(`
			SELECT kcu.column_name, ccu.table_name AS foreign_table, ccu.column_name AS foreign_column
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
			JOIN information_schema.constraint_column_usage ccu ON tc.constraint_name = ccu.constraint_name
			WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_name = '%s'`, table))
		if err == nil {
			for _, fk := range fks.Rows {
				info.ForeignKeyMap[table] = append(info.ForeignKeyMap[table], models.ForeignKeyEdge{
					LocalColumn:   stringCell(fk, "column_name"),
					ForeignTable:  stringCell(fk, "foreign_table"),
					ForeignColumn: stringCell(fk, "foreign_column"),
				})
			}
		}

		sampleRows, err := a.ExecuteQuery(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT 3`, table))
		if err == nil {
			info.SampleValueMap[table] = buildSampleColumns(sampleRows)
		}
	}

	return info, nil
}
