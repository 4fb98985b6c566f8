// Package pipeline composes write-time transforms into per-kind mutator
// chains. A chain runs positioning, attribution, and audit logging in
// that order; each mutator receives the previous mutator's output and
// the shared mutation context. The first error aborts the remaining
// stages, and the engine rolls back any optimistic state.
package pipeline
