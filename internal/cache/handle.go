package cache

import (
	"context"
	"sync"

	"github.com/roach88/taskrail/internal/record"
)

type queryKind string

const (
	queryFind  queryKind = "find"
	queryWhere queryKind = "where"
	queryAll   queryKind = "all"
)

type querySpec struct {
	kind     queryKind
	id       string
	scopeID  string
	parentID string
}

// Handle is a live query result. Data updates in place as confirmed
// writes land; Updates signals each change so an owner can re-render.
//
// A handle torn down with Close stops listening; refetches already in
// flight are discarded on arrival, never applied.
type Handle struct {
	cache *Cache
	spec  querySpec

	mu         sync.Mutex
	data       []record.Record
	err        error
	loading    bool
	closed     bool
	fetchedAt  int64 // unix nanos of last successful apply
	nextGen    int64
	appliedGen int64

	// updates signals data availability; buffered size 1 coalesces
	// bursts the same way the engine's queue signal does.
	updates chan struct{}
}

func newHandle(c *Cache, spec querySpec) *Handle {
	return &Handle{
		cache:   c,
		spec:    spec,
		loading: true,
		updates: make(chan struct{}, 1),
	}
}

// Snapshot returns the current data, whether the first load is still in
// flight, and the last fetch error. A stale-but-present result is
// returned immediately while a background refresh is issued; callers
// never block on the TTL.
func (h *Handle) Snapshot() (data []record.Record, loading bool, err error) {
	h.mu.Lock()
	stale := !h.loading && !h.closed && h.isStaleLocked()
	data, loading, err = h.data, h.loading, h.err
	h.mu.Unlock()

	if stale {
		go h.refresh(context.Background())
	}
	return data, loading, err
}

// One returns the single record of a find-handle, or nil while loading,
// after an error, or if the handle holds a list.
func (h *Handle) One() *record.Record {
	data, _, _ := h.Snapshot()
	if len(data) != 1 || h.spec.kind != queryFind {
		return nil
	}
	rec := data[0]
	return &rec
}

// Updates returns the change-signal channel. It is closed when the
// handle is closed.
func (h *Handle) Updates() <-chan struct{} {
	return h.updates
}

// Close unsubscribes the handle from future refreshes. Idempotent.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.updates)
	h.mu.Unlock()

	h.cache.drop(h)
}

// refresh fetches the query and applies the result unless the handle
// was closed or a newer refresh already applied.
func (h *Handle) refresh(ctx context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.nextGen++
	gen := h.nextGen
	h.mu.Unlock()

	data, err := h.cache.fetch(ctx, h.spec)
	h.apply(gen, data, err)
}

func (h *Handle) apply(gen int64, data []record.Record, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Discard results for torn-down handles and out-of-date fetches.
	if h.closed || gen <= h.appliedGen {
		return
	}
	h.appliedGen = gen

	if err != nil {
		h.err = err
		h.loading = false
		logRefreshError(h.spec, err)
	} else {
		h.data = data
		h.err = nil
		h.loading = false
		h.fetchedAt = h.cache.now().UnixNano()
	}

	// Coalescing signal: a full buffer already implies "changed".
	select {
	case h.updates <- struct{}{}:
	default:
	}
}

func (h *Handle) isStaleLocked() bool {
	age := h.cache.now().UnixNano() - h.fetchedAt
	return age > h.cache.ttl.Nanoseconds()
}
