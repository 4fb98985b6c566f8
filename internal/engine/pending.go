package engine

import (
	"context"
	"sync"
)

// State is the lifecycle of one pending mutation.
//
// Pending -> Confirmed on remote acceptance.
// Pending -> Rejected -> RolledBack on denial, pipeline failure, or
// exhausted retries; the optimistic overlay is reverted between the two.
type State int

const (
	StatePending State = iota
	StateConfirmed
	StateRejected
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRolledBack
}

// Pending is the handle returned to the caller of a mutation. The done
// channel closes when the mutation reaches a terminal state; Err holds
// the failure for rejected mutations.
type Pending struct {
	mu       sync.Mutex
	state    State
	err      error
	recordID string
	done     chan struct{}
}

func newPending(recordID string) *Pending {
	return &Pending{
		recordID: recordID,
		done:     make(chan struct{}),
	}
}

// RecordID returns the subject record's id. For creates the id is
// minted at dispatch, so it is available before confirmation.
func (p *Pending) RecordID() string {
	return p.recordID
}

// Done returns a channel that closes when the mutation is terminal.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// State returns the current lifecycle state.
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the failure for a rejected mutation, nil otherwise.
func (p *Pending) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the mutation is terminal or ctx is cancelled, and
// returns the final state and error.
func (p *Pending) Wait(ctx context.Context) (State, error) {
	select {
	case <-p.done:
		return p.State(), p.Err()
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}
}

func (p *Pending) confirm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return
	}
	p.state = StateConfirmed
	close(p.done)
}

// reject records the failure. The overlay is reverted by the caller
// before rolledBack finalizes the handle.
func (p *Pending) reject(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return
	}
	p.state = StateRejected
	p.err = err
}

func (p *Pending) rolledBack() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return
	}
	p.state = StateRolledBack
	close(p.done)
}
