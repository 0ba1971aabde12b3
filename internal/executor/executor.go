// Package executor generalizes the teacher's internal/adapter package
// (a per-database-type connection + query wrapper) into the spec's
// database_id-addressed introspection and execution surface: resolve a
// database_id to a live connection, introspect its schema into
// models.DatabaseInfo, and execute bounded SQL against it.
package executor

import (
	"context"
	"fmt"
	"time"

	"queryresolve/internal/models"
)

// DatabaseType mirrors the teacher's adapter.DatabaseType enum.
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite"
)

// Config is the generic connection config for one registered database,
// equivalent to the teacher's adapter.DBConfig.
type Config struct {
	Type     DatabaseType
	Host     string
	Port     int
	Database string
	User     string
	Password string
	FilePath string // SQLite only

	MaxOpenConns int
	MaxIdleConns int
}

// Result is the unified query result shape, equivalent to the teacher's
// adapter.QueryResult.
type Result struct {
	Columns       []string
	Rows          []map[string]any
	RowCount      int
	ExecutionTime time.Duration
}

// DefaultExecutionTimeout is the hard SQL execution cap from spec §5.
const DefaultExecutionTimeout = 120 * time.Second

// Adapter is the per-connection surface the teacher's DBAdapter exposed,
// kept as the low-level building block each DatabaseType implements.
type Adapter interface {
	Connect(ctx context.Context) error
	Close() error
	ExecuteQuery(ctx context.Context, query string) (*Result, error)
	DatabaseType() DatabaseType
	Introspect(ctx context.Context) (*models.DatabaseInfo, error)
	DryRun(ctx context.Context, sql string) error
}

// Executor is the core's database_id-addressed view over a pool of
// registered connections: one per logical database, resolved lazily.
type Executor interface {
	// Introspect returns the schema (tables/columns/keys) for a
	// registered database_id, used by the Selector.
	Introspect(ctx context.Context, databaseID string) (*models.DatabaseInfo, error)
	// Execute runs sql against databaseID with a hard timeout, returning
	// the unified Result or a classifiable error.
	Execute(ctx context.Context, databaseID, sql string, timeout time.Duration) (*Result, error)
	// DryRun validates sql syntactically without materializing rows.
	DryRun(ctx context.Context, databaseID, sql string) error
}

// TypeResolver is an optional capability an Executor implementation may
// expose so callers that need the SQL dialect name (e.g. the refiner's
// repair prompt) can look it up without widening the core Executor
// interface every adapter must satisfy.
type TypeResolver interface {
	DatabaseType(databaseID string) (DatabaseType, bool)
}

// Registry is an Executor backed by a static map of named Configs,
// connecting lazily and caching the resulting Adapter per database_id.
type Registry struct {
	configs map[string]Config
	pool    map[string]Adapter
}

// NewRegistry builds a Registry from a map of database_id -> Config.
func NewRegistry(configs map[string]Config) *Registry {
	return &Registry{
		configs: configs,
		pool:    make(map[string]Adapter),
	}
}

// ErrDatabaseNotFound is returned when a database_id has no registered Config.
type ErrDatabaseNotFound struct{ DatabaseID string }

func (e *ErrDatabaseNotFound) Error() string {
	return fmt.Sprintf("executor: database_id %q is not registered", e.DatabaseID)
}

func (r *Registry) resolve(ctx context.Context, databaseID string) (Adapter, error) {
	if a, ok := r.pool[databaseID]; ok {
		return a, nil
	}
	cfg, ok := r.configs[databaseID]
	if !ok {
		return nil, &ErrDatabaseNotFound{DatabaseID: databaseID}
	}
	adapter, err := NewAdapter(cfg)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, fmt.Errorf("executor: connect to %q failed: %w", databaseID, err)
	}
	r.pool[databaseID] = adapter
	return adapter, nil
}

func (r *Registry) Introspect(ctx context.Context, databaseID string) (*models.DatabaseInfo, error) {
	adapter, err := r.resolve(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	return adapter.Introspect(ctx)
}

func (r *Registry) Execute(ctx context.Context, databaseID, sql string, timeout time.Duration) (*Result, error) {
	adapter, err := r.resolve(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return adapter.ExecuteQuery(ctx, sql)
}

func (r *Registry) DryRun(ctx context.Context, databaseID, sql string) error {
	adapter, err := r.resolve(ctx, databaseID)
	if err != nil {
		return err
	}
	return adapter.DryRun(ctx, sql)
}

// DatabaseType reports the configured engine for a registered
// database_id, implementing TypeResolver.
func (r *Registry) DatabaseType(databaseID string) (DatabaseType, bool) {
	cfg, ok := r.configs[databaseID]
	if !ok {
		return "", false
	}
	return cfg.Type, true
}

// Close closes every connection the Registry has opened so far.
func (r *Registry) Close() error {
	var firstErr error
	for id, adapter := range r.pool {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("executor: close %q failed: %w", id, err)
		}
	}
	return firstErr
}

// NewAdapter constructs the right Adapter implementation for cfg.Type,
// equivalent to the teacher's adapter.NewAdapter factory.
func NewAdapter(cfg Config) (Adapter, error) {
	switch cfg.Type {
	case MySQL:
		return newMySQLAdapter(cfg), nil
	case PostgreSQL:
		return newPostgreSQLAdapter(cfg), nil
	case SQLite:
		return newSQLiteAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("executor: unsupported database type %q", cfg.Type)
	}
}
