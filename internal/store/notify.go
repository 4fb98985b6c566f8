package store

import (
	"sync"
)

// Tables carried in change notifications.
const (
	TableRecords  = "records"
	TableActivity = "activity_log"
)

// Change ops.
const (
	ChangeInsert = "insert"
	ChangeUpdate = "update"
)

// Change identifies one committed write.
type Change struct {
	Table string
	ID    string
	Op    string
}

// Notifier fans committed changes out to subscribers (the reactive
// query cache, primarily). Publication happens strictly after commit,
// so a subscriber refetching on notification always sees the new state.
//
// Delivery is synchronous and in subscription order; subscribers must
// not block.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Change))}
}

// Subscribe registers fn and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (n *Notifier) Subscribe(fn func(Change)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// Publish delivers a change to every current subscriber.
func (n *Notifier) Publish(c Change) {
	n.mu.Lock()
	fns := make([]func(Change), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Len returns the current subscriber count. Used by tests to verify
// teardown.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
