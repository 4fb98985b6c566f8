// Package harness runs yaml-defined conformance scenarios against the
// full stack: SQLite store, permission guard, mutator pipeline, and the
// sync engine's single-writer loop. A scenario dispatches a sequence of
// mutations, states which of them must fail and why, and asserts on the
// final sibling order and task state. The resulting activity trace can
// be golden-compared so ordering regressions show up as a readable
// diff.
package harness
