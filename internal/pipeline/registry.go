package pipeline

import (
	"fmt"

	"github.com/roach88/taskrail/internal/record"
)

// Registry resolves the mutator chain for a record kind.
//
// The kind set is closed, so the registry is populated once at startup
// and never mutated afterwards. Lookups for unregistered kinds return a
// shared pass-through chain: unknown scopes flow through unchanged
// rather than failing.
type Registry struct {
	chains      map[record.Kind]*Chain
	passThrough *Chain
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chains:      make(map[record.Kind]*Chain),
		passThrough: PassThrough(),
	}
}

// Register binds a chain to a kind. Registering the same kind twice is
// a wiring bug and returns an error rather than silently replacing.
func (r *Registry) Register(kind record.Kind, chain *Chain) error {
	if !kind.Valid() {
		return fmt.Errorf("register chain: unknown kind %q", kind)
	}
	if _, dup := r.chains[kind]; dup {
		return fmt.Errorf("register chain: duplicate kind %q", kind)
	}
	r.chains[kind] = chain
	return nil
}

// Lookup returns the chain for kind, or the pass-through chain when
// none is registered.
func (r *Registry) Lookup(kind record.Kind) *Chain {
	if c, ok := r.chains[kind]; ok {
		return c
	}
	return r.passThrough
}

// Default wires the canonical registry: tasks get positioning →
// attribution → audit; activity records get a pass-through so audit
// writes are never themselves audited.
func Default(ids IDGenerator) *Registry {
	r := NewRegistry()
	// Registration over a closed kind set cannot collide.
	_ = r.Register(record.KindTask, NewChain(
		Positioning{},
		Attribution{},
		Audit{IDs: ids},
	))
	_ = r.Register(record.KindActivity, PassThrough())
	return r
}

// IDGenerator mints identifiers for records produced by the pipeline.
// The engine supplies a UUIDv7 implementation; tests use a fixed
// sequence for deterministic output.
type IDGenerator interface {
	Generate() string
}
