package cli

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// defaultMetadataTTL is how long a published snapshot stays fresh.
const defaultMetadataTTL = 60 * time.Second

// MetadataSource is the slice of the query executor that the cache needs.
type MetadataSource interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	ListColumns(ctx context.Context, schema, table string) ([]string, error)
	ListFunctions(ctx context.Context) (map[string][]string, error)
}

// MetadataSnapshot is an immutable view of the database catalog. Column
// lists are keyed by both the bare and the schema-qualified table name,
// lower-cased.
type MetadataSnapshot struct {
	Schemas           []string
	TablesBySchema    map[string][]string
	ColumnsByTable    map[string][]string
	FunctionsBySchema map[string][]string
	LastRefreshedAt   time.Time
}

func emptySnapshot() *MetadataSnapshot {
	return &MetadataSnapshot{
		TablesBySchema:    map[string][]string{},
		ColumnsByTable:    map[string][]string{},
		FunctionsBySchema: map[string][]string{},
	}
}

// Columns returns the column list for a bare or schema-qualified table name.
func (s *MetadataSnapshot) Columns(table string) []string {
	return s.ColumnsByTable[strings.ToLower(table)]
}

// MetadataCache publishes catalog snapshots for the completion engine. A
// refresh builds a complete new snapshot and swaps it in atomically, so
// readers always see either fully old or fully new data.
type MetadataCache struct {
	source MetadataSource
	logger *slog.Logger

	snap atomic.Pointer[MetadataSnapshot]
	gen  atomic.Uint64

	mu         sync.Mutex
	refreshing bool
}

func NewMetadataCache(source MetadataSource, logger *slog.Logger) *MetadataCache {
	c := &MetadataCache{source: source, logger: logger}
	c.snap.Store(emptySnapshot())
	return c
}

// Snapshot returns the last published snapshot. Never nil, never blocks.
func (c *MetadataCache) Snapshot() *MetadataSnapshot {
	return c.snap.Load()
}

// Invalidate drops all cached data so the next RefreshIfStale repopulates.
// A refresh already in flight is discarded when it completes, so data
// fetched over a previous connection can never be published afterwards.
func (c *MetadataCache) Invalidate() {
	c.gen.Add(1)
	c.snap.Store(emptySnapshot())
}

// RefreshIfStale kicks off a background refresh when the published snapshot
// is older than ttl. It returns immediately; while the refresh is in flight
// readers keep being served from the previous snapshot.
func (c *MetadataCache) RefreshIfStale(ctx context.Context, ttl time.Duration) {
	if time.Since(c.Snapshot().LastRefreshedAt) <= ttl {
		return
	}
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.refreshing = false
			c.mu.Unlock()
		}()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("metadata refresh failed, keeping cached snapshot", "error", err)
		}
	}()
}

// Refresh fetches a complete snapshot and publishes it. On any fetch error
// the previous snapshot is left untouched. A snapshot superseded by an
// Invalidate during the fetch is silently dropped.
func (c *MetadataCache) Refresh(ctx context.Context) error {
	gen := c.gen.Load()
	next := emptySnapshot()

	schemas, err := c.source.ListSchemas(ctx)
	if err != nil {
		return err
	}
	next.Schemas = schemas

	for _, schema := range schemas {
		tables, err := c.source.ListTables(ctx, schema)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			continue
		}
		next.TablesBySchema[schema] = tables

		for _, table := range tables {
			columns, err := c.source.ListColumns(ctx, schema, table)
			if err != nil {
				return err
			}
			if len(columns) == 0 {
				continue
			}
			next.ColumnsByTable[strings.ToLower(table)] = columns
			next.ColumnsByTable[strings.ToLower(schema+"."+table)] = columns
		}
	}

	functions, err := c.source.ListFunctions(ctx)
	if err != nil {
		return err
	}
	next.FunctionsBySchema = functions
	if next.FunctionsBySchema == nil {
		next.FunctionsBySchema = map[string][]string{}
	}

	next.LastRefreshedAt = time.Now()
	if c.gen.Load() != gen {
		return nil
	}
	c.snap.Store(next)
	return nil
}
