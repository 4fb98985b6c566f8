package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/roach88/taskrail/internal/record"
)

// Mutator is one composable transform over a write payload.
//
// Apply must treat its input as immutable: transforms clone before
// changing fields. A mutator that returns an error aborts the rest of
// the chain; partial output is discarded by the caller.
type Mutator interface {
	Name() string
	Apply(fields record.Fields, mctx *record.MutationContext) (record.Fields, error)
}

// Chain executes mutators sequentially, each receiving the previous
// mutator's output. Chains are built once at startup and are safe for
// reuse across mutations because mutators hold no per-call state.
type Chain struct {
	mutators []Mutator
}

// NewChain builds a chain from mutators in execution order.
func NewChain(mutators ...Mutator) *Chain {
	return &Chain{mutators: mutators}
}

// PassThrough returns a chain with no mutators. Unknown kinds resolve
// to this: the payload flows through unchanged, by design not an error.
func PassThrough() *Chain {
	return &Chain{}
}

// Apply runs the chain. Errors are wrapped with the failing mutator's
// name so callers can log which stage rejected the write.
func (c *Chain) Apply(fields record.Fields, mctx *record.MutationContext) (record.Fields, error) {
	out := fields
	for _, m := range c.mutators {
		next, err := m.Apply(out, mctx)
		if err != nil {
			slog.Debug("mutator rejected write",
				"mutator", m.Name(),
				"op", string(mctx.Op),
				"kind", string(mctx.SubjectKind),
				"error", err,
			)
			return nil, fmt.Errorf("mutator %s: %w", m.Name(), err)
		}
		out = next
	}
	return out, nil
}

// Len returns the number of mutators in the chain.
func (c *Chain) Len() int {
	return len(c.mutators)
}
