// Package cache serves UI-facing queries through live handles: each
// query returns a handle whose data is refreshed in place when a
// confirmed write touches matching records, when a change notification
// arrives, or when the entry's TTL lapses. TTL is a staleness bound,
// not a hard invalidation - stale data is served immediately while a
// background refresh runs.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/taskrail/internal/record"
	"github.com/roach88/taskrail/internal/store"
)

// DefaultTTL bounds how stale a cached result may get before a read
// triggers a background refresh.
const DefaultTTL = 5 * time.Minute

// Reader is the store surface the cache reads through.
type Reader interface {
	GetRecord(ctx context.Context, id string) (*record.Record, error)
	Siblings(ctx context.Context, scopeID, parentID string) ([]record.Record, error)
	AllInScope(ctx context.Context, scopeID string) ([]record.Record, error)
}

// Cache is the reactive read view. It owns every live handle and
// subscribes once to the store's change feed; per-handle subscriptions
// die with the handle.
type Cache struct {
	reader Reader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	handles map[*Handle]struct{}
	unsub   func()
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithNow injects a clock for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a cache over reader and subscribes to the change feed.
// subscribe is the store's Subscribe method; pass nil for a cache that
// only refreshes on TTL expiry.
func New(reader Reader, subscribe func(func(store.Change)) func(), opts ...Option) *Cache {
	c := &Cache{
		reader:  reader,
		ttl:     DefaultTTL,
		now:     time.Now,
		handles: make(map[*Handle]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if subscribe != nil {
		c.unsub = subscribe(c.onChange)
	}
	return c
}

// Close tears down the change subscription and every live handle.
func (c *Cache) Close() {
	if c.unsub != nil {
		c.unsub()
	}
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.handles))
	for h := range c.handles {
		handles = append(handles, h)
	}
	c.mu.Unlock()
	for _, h := range handles {
		h.Close()
	}
}

// Find returns a live handle over one record.
func (c *Cache) Find(ctx context.Context, id string) *Handle {
	return c.open(ctx, querySpec{kind: queryFind, id: id})
}

// Where returns a live handle over the non-discarded siblings of
// (scope, parent), in position order.
func (c *Cache) Where(ctx context.Context, scopeID, parentID string) *Handle {
	return c.open(ctx, querySpec{kind: queryWhere, scopeID: scopeID, parentID: parentID})
}

// All returns a live handle over every non-discarded record in a scope.
func (c *Cache) All(ctx context.Context, scopeID string) *Handle {
	return c.open(ctx, querySpec{kind: queryAll, scopeID: scopeID})
}

func (c *Cache) open(ctx context.Context, spec querySpec) *Handle {
	h := newHandle(c, spec)

	c.mu.Lock()
	c.handles[h] = struct{}{}
	c.mu.Unlock()

	h.refresh(ctx)
	return h
}

// onChange routes a committed write to the handles it may affect.
// Find handles match on id; list handles refresh on any record change,
// trading precision for never serving a stale list.
func (c *Cache) onChange(ch store.Change) {
	if ch.Table != store.TableRecords {
		return
	}

	c.mu.Lock()
	var affected []*Handle
	for h := range c.handles {
		if h.spec.kind == queryFind && h.spec.id != ch.ID {
			continue
		}
		affected = append(affected, h)
	}
	c.mu.Unlock()

	for _, h := range affected {
		h.refresh(context.Background())
	}
}

func (c *Cache) drop(h *Handle) {
	c.mu.Lock()
	delete(c.handles, h)
	c.mu.Unlock()
}

// Live returns the number of open handles. Used by tests to verify
// teardown.
func (c *Cache) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

func (c *Cache) fetch(ctx context.Context, spec querySpec) ([]record.Record, error) {
	switch spec.kind {
	case queryFind:
		rec, err := c.reader.GetRecord(ctx, spec.id)
		if err != nil {
			return nil, err
		}
		return []record.Record{*rec}, nil
	case queryWhere:
		return c.reader.Siblings(ctx, spec.scopeID, spec.parentID)
	default:
		return c.reader.AllInScope(ctx, spec.scopeID)
	}
}

func logRefreshError(spec querySpec, err error) {
	slog.Warn("query refresh failed",
		"query", spec.kind,
		"id", spec.id,
		"scope", spec.scopeID,
		"error", err,
	)
}
