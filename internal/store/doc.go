// Package store is the durable half of the mutation pipeline: records
// and their activity log in SQLite, written through transactions that
// match the engine's atomicity contract. A batch of position updates is
// one transaction; a mutation and the activity entries it produced are
// one transaction; observers never see either half-applied.
//
// In the deployed system this role is played by a remote backend; the
// store implements the same contract locally, so the engine treats it
// as the remote side and keeps its own optimistic overlay in front.
//
// Change notifications fire after commit via an in-process subscriber
// registry, feeding the reactive query cache.
package store
