// Package policy is the permission guard: a data-driven predicate
// evaluated before the mutator pipeline runs. Policies map actions to
// rules (allowed roles, optional creator time-window grant) and can be
// authored in CUE and compiled at startup, or taken from the built-in
// default.
//
// Reads are never gated here; visibility is a query-scoping concern
// upstream of the guard.
package policy
