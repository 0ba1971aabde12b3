// Package selector implements the Schema Selector: introspection caching,
// token-budget-aware complexity evaluation, LLM-driven pruning with
// foreign-key preservation, and schema description rendering. Grounded on
// the teacher's internal/inference.Pipeline (tokenizer setup,
// extractTableInfoFromDB) and internal/context (rendering style),
// generalized from a single in-process database to the spec's
// database_id-keyed, concurrency-safe cache.
package selector

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"queryresolve/internal/errors"
	"queryresolve/internal/executor"
	"queryresolve/internal/models"
)

// SchemaFallbackLoader resolves a pre-exported JSON schema description for
// databaseID when the live database is unavailable (spec §4.2: "If the
// live source is unavailable, fall back to a pre-exported JSON
// description file for database_id"). Implementations may read from disk,
// object storage, or any other out-of-band source.
type SchemaFallbackLoader interface {
	Load(databaseID string) (*models.DatabaseInfo, error)
}

// cacheEntry is the three-layer per-database cache the spec requires
// (database_info, description_json, stats), populated together on a
// single introspection (or fallback load).
type cacheEntry struct {
	info            *models.DatabaseInfo
	descriptionJSON []byte
	stats           models.DatabaseStats
}

func newCacheEntry(info *models.DatabaseInfo) cacheEntry {
	descriptionJSON, err := json.Marshal(info)
	if err != nil {
		descriptionJSON = nil
	}
	return cacheEntry{
		info:            info,
		descriptionJSON: descriptionJSON,
		stats:           models.ComputeStats(info),
	}
}

// cache is a concurrency-safe, exclusive-init-per-key store of
// cacheEntry, never evicted implicitly within a process lifetime (spec
// §5). singleflight collapses concurrent misses for the same
// database_id into one introspection call.
type cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

func newCache() *cache {
	return &cache{entries: make(map[string]cacheEntry)}
}

func (c *cache) get(databaseID string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[databaseID]
	return e, ok
}

func (c *cache) set(databaseID string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[databaseID] = e
}

// invalidate drops the cached entry for databaseID, the only permitted
// way to force a re-introspection (spec §5: "explicit invalidation only").
func (c *cache) invalidate(databaseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, databaseID)
}

// resolve returns the cached entry for databaseID, introspecting via exec
// on a miss. When live introspection fails and fallback is non-nil, it
// tries fallback.Load(databaseID) before giving up; only when both the
// live source and the fallback fail to resolve does this return
// DATABASE_NOT_FOUND (or INTROSPECTION_FAILED, when the live failure was
// a transient/connection error rather than an unregistered database_id
// and no fallback resolved it). Concurrent misses for the same key share
// one in-flight resolution.
func (c *cache) resolve(ctx context.Context, databaseID string, exec executor.Executor, fallback SchemaFallbackLoader) (cacheEntry, error) {
	if e, ok := c.get(databaseID); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(databaseID, func() (any, error) {
		if e, ok := c.get(databaseID); ok {
			return e, nil
		}

		info, err := exec.Introspect(ctx, databaseID)
		if err == nil {
			entry := newCacheEntry(info)
			c.set(databaseID, entry)
			return entry, nil
		}

		if fallback != nil {
			if fbInfo, fbErr := fallback.Load(databaseID); fbErr == nil && fbInfo != nil {
				entry := newCacheEntry(fbInfo)
				c.set(databaseID, entry)
				return entry, nil
			}
		}

		var notFound *executor.ErrDatabaseNotFound
		if stderrors.As(err, &notFound) {
			return nil, errors.New(errors.CodeDatabaseNotFound, fmt.Sprintf("database %q not found", databaseID))
		}
		return nil, errors.Wrap(errors.CodeIntrospectionFailed, "schema introspection failed", err)
	})
	if err != nil {
		return cacheEntry{}, err
	}
	return v.(cacheEntry), nil
}
