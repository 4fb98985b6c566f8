// Package testutil provides deterministic fixtures shared by tests:
// a frozen wall clock, a fixed-sequence ID generator, and stock actors.
package testutil

import (
	"sync"
	"time"

	"github.com/roach88/taskrail/internal/record"
)

// Epoch is the frozen base time used across tests.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock is a controllable time source. Unlike the production clock it
// can be advanced explicitly, which makes time-window permission tests
// and TTL tests deterministic.
//
// Thread-safe via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FixedIDs returns predetermined identifiers in order.
//
// Panics when exhausted - a fail-fast signal that a test consumed more
// IDs than it declared.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator returning ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("testutil: fixed IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Stock actors for tests.
var (
	Tech  = record.Actor{ID: "tech-1", Role: record.RoleTechnician}
	Tech2 = record.Actor{ID: "tech-2", Role: record.RoleTechnician}
	Admin = record.Actor{ID: "admin-1", Role: record.RoleAdmin}
)
