package selector

import (
	"context"
	"sync"

	"queryresolve/internal/executor"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/models"
	"queryresolve/internal/obslog"
	"queryresolve/internal/prompt"
)

// Stats is the selector's observable running counters (spec §4.2:
// "query count, prune count, average reduction ratio").
type Stats struct {
	QueryCount          int
	PruneCount          int
	TotalReductionRatio float64
}

// Average returns the mean column-reduction ratio across pruned queries,
// or 0 if none have pruned yet.
func (s Stats) Average() float64 {
	if s.PruneCount == 0 {
		return 0
	}
	return s.TotalReductionRatio / float64(s.PruneCount)
}

// Output is what the Selector writes back onto the workflow Message
// (spec §4.2: extracted_schema, schema_description, foreign_key_description, was_pruned).
type Output struct {
	ExtractedSchema       map[string]models.ColumnSelection
	SchemaDescription     string
	ForeignKeyDescription string
	WasPruned             bool

	// DatabaseInfo is the resolved (possibly pruned) schema metadata,
	// kept for internal consumers (e.g. the decomposer's FK-aware
	// synthesis) beyond what the Message carries.
	DatabaseInfo *models.DatabaseInfo
}

// Selector implements the Schema Selector agent.
type Selector struct {
	exec     executor.Executor
	provider llmprovider.Provider
	prompts  *prompt.Registry
	fallback SchemaFallbackLoader
	log      *obslog.Logger
	tok      *tokenizer
	cache    *cache

	mu    sync.Mutex
	stats Stats
}

// New builds a Selector backed by exec for introspection and provider
// for LLM-driven pruning decisions.
func New(exec executor.Executor, provider llmprovider.Provider, prompts *prompt.Registry) *Selector {
	return &Selector{
		exec:     exec,
		provider: provider,
		prompts:  prompts,
		log:      obslog.New("selector"),
		tok:      newTokenizer(),
		cache:    newCache(),
	}
}

// WithSchemaFallback attaches a SchemaFallbackLoader consulted when live
// introspection fails (spec §4.2), and returns the Selector for chaining.
func (s *Selector) WithSchemaFallback(fallback SchemaFallbackLoader) *Selector {
	s.fallback = fallback
	return s
}

// Select runs the full schema-selection policy for one query: resolve
// the cached (or freshly introspected) DatabaseInfo, decide whether
// pruning is required, prune via LLM when it is, and render the
// resulting schema/FK descriptions.
func (s *Selector) Select(ctx context.Context, databaseID, question, evidence string) (*Output, error) {
	entry, err := s.cache.resolve(ctx, databaseID, s.exec, s.fallback)
	if err != nil {
		return nil, err
	}

	s.recordQuery()

	fullDescription := RenderSchema(entry.info, entry.info.Tables)
	if !requiresPruning(entry.stats, fullDescription, s.tok) {
		return &Output{
			ExtractedSchema:       toColumnSelections(entry.info.Tables, nil),
			SchemaDescription:     fullDescription,
			ForeignKeyDescription: RenderForeignKeys(entry.info, entry.info.Tables),
			WasPruned:             false,
			DatabaseInfo:          entry.info,
		}, nil
	}

	pruned, keptTables, decisions, wasPruned := pruneSchema(
		ctx, s.provider, s.prompts, s.log,
		entry.info, fullDescription, RenderForeignKeys(entry.info, entry.info.Tables),
		question, evidence,
	)

	if wasPruned {
		s.recordPrune(entry.stats.TotalColumnCount, models.ComputeStats(pruned).TotalColumnCount)
	}

	return &Output{
		ExtractedSchema:       toColumnSelections(keptTables, decisions),
		SchemaDescription:     RenderSchema(pruned, keptTables),
		ForeignKeyDescription: RenderForeignKeys(pruned, keptTables),
		WasPruned:             wasPruned,
		DatabaseInfo:          pruned,
	}, nil
}

// InvalidateCache forces the next Select call for databaseID to
// re-introspect (spec §5: "explicit invalidation only").
func (s *Selector) InvalidateCache(databaseID string) {
	s.cache.invalidate(databaseID)
}

// Stats returns a snapshot of the selector's running counters.
func (s *Selector) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Selector) recordQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.QueryCount++
}

func (s *Selector) recordPrune(before, after int) {
	if before == 0 {
		return
	}
	ratio := 1 - float64(after)/float64(before)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.PruneCount++
	s.stats.TotalReductionRatio += ratio
}
