package sheets

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kina2711/subscription-analytics/internal/cache"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/table"
)

// sharedFetchTimeout bounds an upstream fetch once no single caller owns it.
const sharedFetchTimeout = 2 * time.Minute

// Cached wraps a source and reuses its last table until the TTL runs out.
// Concurrent misses share one upstream fetch.
type Cached struct {
	src     TransactionSource
	cache   *cache.LRUCache[cachedTable]
	group   singleflight.Group
	version atomic.Uint64
	logger  *log.Logger
}

// cachedTable pairs a table with the version it was fetched as.
type cachedTable struct {
	table   table.Table
	version uint64
}

var (
	_ TransactionSource = (*Cached)(nil)
	_ Versioned         = (*Cached)(nil)
	_ Invalidator       = (*Cached)(nil)
)

// NewCached caches src for ttl. A zero ttl caches until Invalidate.
func NewCached(src TransactionSource, ttl time.Duration, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.Nop()
	}
	return &Cached{
		src:     src,
		cache:   cache.NewLRUCache[cachedTable](1, ttl),
		logger:  logger.WithComponent(log.ComponentCache),
	}
}

func (c *Cached) Name() string { return c.src.Name() }

// Cache exposes the underlying cache so a cache.Manager can clean it.
func (c *Cached) Cache() cache.Cleaner { return c.cache }

func (c *Cached) Fetch(ctx context.Context) (table.Table, error) {
	t, _, err := c.FetchVersion(ctx)
	return t, err
}

// FetchVersion returns the table and a version that changes only when the
// table was fetched upstream again. The shared fetch outlives a caller
// that gives up; that caller gets its own context error.
func (c *Cached) FetchVersion(ctx context.Context) (table.Table, uint64, error) {
	key := c.src.Name()
	if e, age, ok := c.cache.GetWithAge(key); ok {
		c.logger.DebugContext(ctx, "Source cache hit", log.FieldSource, key, "age", age.String())
		return e.table, e.version, nil
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		t, err := c.src.Fetch(fctx)
		if err != nil {
			return cachedTable{}, err
		}
		e := cachedTable{table: t, version: c.version.Add(1)}
		c.cache.Set(key, e)
		return e, nil
	})
	select {
	case <-ctx.Done():
		return table.Table{}, 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return table.Table{}, 0, res.Err
		}
		e := res.Val.(cachedTable)
		c.logger.InfoContext(ctx, "Source fetched", log.FieldSource, key, "rows", e.table.Len(), "shared", res.Shared)
		return e.table, e.version, nil
	}
}

// Invalidate forces the next Fetch to go upstream.
func (c *Cached) Invalidate() {
	c.cache.Clear()
}
