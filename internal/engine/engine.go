package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/taskrail/internal/pipeline"
	"github.com/roach88/taskrail/internal/policy"
	"github.com/roach88/taskrail/internal/position"
	"github.com/roach88/taskrail/internal/record"
	"github.com/roach88/taskrail/internal/store"
)

// ErrStopped is returned by mutations dispatched after Stop.
var ErrStopped = errors.New("sync engine stopped")

// Retry defaults for transient remote failures. Permission, attribution,
// and validation failures are never retried.
const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 50 * time.Millisecond
)

// Remote is the store surface the engine writes through. *store.Store
// satisfies it; tests substitute in-memory or fault-injecting fakes.
type Remote interface {
	GetRecord(ctx context.Context, id string) (*record.Record, error)
	Siblings(ctx context.Context, scopeID, parentID string) ([]record.Record, error)
	InsertRecord(ctx context.Context, rec *record.Record, activity []record.ActivityEntry) error
	UpdateRecord(ctx context.Context, id string, fields record.Fields, updatedAt time.Time, activity []record.ActivityEntry) error
	ApplyBatch(ctx context.Context, updates []store.FieldUpdate, reorderedAt time.Time, activity []record.ActivityEntry) error
}

// PositionUpdate is one member of an explicit batch renumbering.
type PositionUpdate struct {
	ID       string
	Position float64
}

type mutationKind int

const (
	kindWrite mutationKind = iota + 1
	kindBatch
	kindRenormalize
)

// mutation is one queued unit of work for the Run loop.
type mutation struct {
	kind   mutationKind
	op     record.Op
	action policy.Action
	actor  record.Actor

	id     string
	fields record.Fields

	// Move target: neighbor ids the subject lands between.
	beforeID, afterID string
	isMove            bool

	batch []PositionUpdate

	// Renormalization target scope.
	scopeID, parentID string

	pending *Pending
}

// renormJob tracks one scheduled renormalization for a sibling scope.
// A second reorder arriving while the job is queued attaches to it
// instead of enqueuing again, which serializes reorders per scope.
type renormJob struct {
	actor    record.Actor
	stamp    time.Time
	pendings []*Pending
}

// Engine is the optimistic sync client.
type Engine struct {
	remote   Remote
	guard    *policy.Guard
	registry *pipeline.Registry
	ids      pipeline.IDGenerator
	queue    *mutationQueue
	overlay  *overlay

	now      func() time.Time
	attempts int
	backoff  time.Duration
	sleep    func(time.Duration)

	renormMu sync.Mutex
	renorms  map[string]*renormJob
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow injects a clock for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetry overrides the transient-failure retry budget.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.attempts = attempts
		e.backoff = backoff
	}
}

// WithSleep injects the backoff sleeper. Tests pass a no-op to keep
// retry cases fast.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// New builds an engine over the remote store and permission guard. ids
// mints record and activity identifiers; production passes
// UUIDv7Generator.
func New(remote Remote, guard *policy.Guard, ids pipeline.IDGenerator, opts ...Option) *Engine {
	e := &Engine{
		remote:   remote,
		guard:    guard,
		registry: pipeline.Default(ids),
		ids:      ids,
		queue:    newMutationQueue(),
		overlay:  newOverlay(),
		now:      time.Now,
		attempts: DefaultRetryAttempts,
		backoff:  DefaultRetryBackoff,
		sleep:    time.Sleep,
		renorms:  make(map[string]*renormJob),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the single-writer mutation loop. Blocks until ctx is
// cancelled or Stop is called. Must run on exactly one goroutine; all
// guard checks, pipeline execution, and remote writes happen here.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("sync engine starting")

	for {
		m, ok := e.queue.TryDequeue()
		if ok {
			e.process(ctx, m)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("sync engine stopping", "reason", "context cancelled")
			e.queue.Close()
			e.failQueued(ctx.Err())
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue; an empty closed
			// queue means drain is complete.
			if e.queue.Len() == 0 {
				slog.Info("sync engine stopping", "reason", "queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run drains what was already accepted, then
// returns; later dispatches fail with ErrStopped.
func (e *Engine) Stop() {
	e.queue.Close()
}

// QueueLen returns the number of mutations awaiting processing.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Create dispatches a task creation. The record id is minted
// immediately so the optimistic UI can reference it before
// confirmation; fields may carry an explicit position to bypass the
// allocator.
func (e *Engine) Create(actor record.Actor, fields record.Fields) *Pending {
	payload := fields.Clone()
	id := payload.String(record.FieldID)
	if id == "" {
		id = e.ids.Generate()
		payload[record.FieldID] = id
	}
	payload[record.FieldKind] = string(record.KindTask)
	if payload.String(record.FieldStatus) == "" {
		payload[record.FieldStatus] = string(record.StatusOpen)
	}

	p := newPending(id)
	e.dispatch(mutation{
		kind: kindWrite, op: record.OpCreate, action: policy.ActionCreate,
		actor: actor, id: id, fields: payload, pending: p,
	})
	return p
}

// Update dispatches a content edit of one record.
func (e *Engine) Update(actor record.Actor, id string, fields record.Fields) *Pending {
	p := newPending(id)
	e.dispatch(mutation{
		kind: kindWrite, op: record.OpUpdate, action: policy.ActionEdit,
		actor: actor, id: id, fields: fields.Clone(), pending: p,
	})
	return p
}

// ChangeStatus dispatches a workflow-state change.
func (e *Engine) ChangeStatus(actor record.Actor, id string, status record.Status) *Pending {
	p := newPending(id)
	if !status.Valid() {
		e.finalize(p, fmt.Errorf("change status: unknown status %q", status))
		return p
	}
	e.dispatch(mutation{
		kind: kindWrite, op: record.OpUpdate, action: policy.ActionChangeStatus,
		actor: actor, id: id,
		fields:  record.Fields{record.FieldStatus: string(status)},
		pending: p,
	})
	return p
}

// AssignUser dispatches an assignee change. An empty assigneeID clears
// the assignment.
func (e *Engine) AssignUser(actor record.Actor, id, assigneeID string) *Pending {
	p := newPending(id)
	e.dispatch(mutation{
		kind: kindWrite, op: record.OpUpdate, action: policy.ActionAssignUser,
		actor: actor, id: id,
		fields:  record.Fields{record.FieldAssigneeID: assigneeID},
		pending: p,
	})
	return p
}

// Discard dispatches a soft delete. The record keeps its position but
// leaves the ordering invariants; survivors are renormalized after
// confirmation.
func (e *Engine) Discard(actor record.Actor, id string) *Pending {
	p := newPending(id)
	e.dispatch(mutation{
		kind: kindWrite, op: record.OpDiscard, action: policy.ActionDelete,
		actor: actor, id: id, fields: record.Fields{}, pending: p,
	})
	return p
}

// Move dispatches a reorder: the record lands between the two named
// neighbors. Either neighbor id may be empty for a list end; neighbors
// in a different parent reparent the record. Both empty means "append
// to the end of the current sibling list".
func (e *Engine) Move(actor record.Actor, id, beforeID, afterID string) *Pending {
	p := newPending(id)
	e.dispatch(mutation{
		kind: kindWrite, op: record.OpUpdate, action: policy.ActionMove,
		actor: actor, id: id, fields: record.Fields{},
		beforeID: beforeID, afterID: afterID, isMove: true,
		pending: p,
	})
	return p
}

// UpdatePositions dispatches an explicit batch renumbering: every
// member is written in one remote transaction sharing one reordered_at,
// and on failure every member rolls back together.
func (e *Engine) UpdatePositions(actor record.Actor, updates []PositionUpdate) *Pending {
	p := newPending("")
	if len(updates) == 0 {
		e.finalize(p, errors.New("update positions: empty batch"))
		return p
	}
	batch := make([]PositionUpdate, len(updates))
	copy(batch, updates)
	e.dispatch(mutation{
		kind: kindBatch, op: record.OpUpdate, action: policy.ActionMove,
		actor: actor, batch: batch, pending: p,
	})
	return p
}

// Renormalize schedules dense renumbering for a sibling scope. If a
// renormalization for the scope is already queued, this one rides along
// with it rather than racing it.
func (e *Engine) Renormalize(actor record.Actor, scopeID, parentID string) *Pending {
	p := newPending("")
	e.scheduleRenorm(actor, scopeID, parentID, e.now(), p)
	return p
}

// HasPermission reports whether the actor may perform action on the
// record. Pure policy evaluation: identical triples always produce
// identical answers. recordID may be empty for record-independent
// actions.
func (e *Engine) HasPermission(ctx context.Context, action policy.Action, actor record.Actor, recordID string) bool {
	return e.PermissionDenialReason(ctx, action, actor, recordID) == ""
}

// PermissionDenialReason returns "" when allowed, otherwise the
// guard's human-readable reason.
func (e *Engine) PermissionDenialReason(ctx context.Context, action policy.Action, actor record.Actor, recordID string) string {
	var rec *record.Record
	if recordID != "" {
		if r, err := e.Get(ctx, recordID); err == nil {
			rec = r
		}
	}
	return e.guard.DenialReason(action, actor, rec)
}

// Get returns one record with pending optimistic writes layered over
// the confirmed base. Reads are never permission-gated.
func (e *Engine) Get(ctx context.Context, id string) (*record.Record, error) {
	base, err := e.remote.GetRecord(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	merged := e.overlay.merge(id, base)
	if merged == nil {
		return nil, err
	}
	return merged, nil
}

// Siblings returns the non-discarded siblings of (scope, parent) in
// position order, with optimistic state layered in.
func (e *Engine) Siblings(ctx context.Context, scopeID, parentID string) ([]record.Record, error) {
	base, err := e.remote.Siblings(ctx, scopeID, parentID)
	if err != nil {
		return nil, err
	}
	return e.overlay.mergeList(scopeID, parentID, base), nil
}

func (e *Engine) dispatch(m mutation) {
	if !e.queue.Enqueue(m) {
		e.finalize(m.pending, ErrStopped)
	}
}

// finalize walks a pending through Rejected to RolledBack when there is
// no optimistic state to revert.
func (e *Engine) finalize(p *Pending, err error) {
	if p == nil {
		return
	}
	p.reject(err)
	p.rolledBack()
}

func (e *Engine) failQueued(err error) {
	for {
		m, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		e.finalize(m.pending, err)
	}
}

func (e *Engine) process(ctx context.Context, m mutation) {
	switch m.kind {
	case kindWrite:
		e.processWrite(ctx, m)
	case kindBatch:
		e.processBatch(ctx, m)
	case kindRenormalize:
		e.processRenormalize(ctx, m)
	}
}

func (e *Engine) processWrite(ctx context.Context, m mutation) {
	var current *record.Record
	if m.op != record.OpCreate {
		rec, err := e.Get(ctx, m.id)
		if err != nil {
			e.finalize(m.pending, fmt.Errorf("load %s: %w", m.id, err))
			return
		}
		current = rec
	}

	// A missing actor is an attribution failure, not a policy decision:
	// the guard only evaluates authenticated actors and the pipeline's
	// attribution mutator owns the unauthenticated case.
	if !m.actor.IsZero() {
		if err := e.guard.Check(m.action, m.actor, current); err != nil {
			slog.Debug("mutation denied",
				"action", string(m.action), "actor", m.actor.ID, "id", m.id, "error", err)
			e.finalize(m.pending, err)
			return
		}
	}

	mctx := record.NewMutationContext(m.actor, m.op, record.KindTask, e.now())
	mctx.SubjectID = m.id

	fields := m.fields.Clone()
	switch m.op {
	case record.OpCreate:
		if fields.String(record.FieldScopeID) == "" {
			e.finalize(m.pending, errors.New("create: scope_id is required"))
			return
		}
		if _, explicit := fields.Float(record.FieldPosition); !explicit {
			if err := e.resolveAppend(ctx, fields, mctx); err != nil {
				e.finalize(m.pending, err)
				return
			}
		}
	case record.OpDiscard:
		fields[record.FieldDiscardedAt] = mctx.Now
	}

	if m.isMove {
		if err := e.resolveNeighbors(ctx, m, current, fields, mctx); err != nil {
			e.finalize(m.pending, err)
			return
		}
	}
	if current != nil {
		trackChanges(current, fields, mctx)
		mctx.Meta[record.FieldTitle] = current.Title
	}

	out, err := e.registry.Lookup(record.KindTask).Apply(fields, mctx)
	if err != nil {
		e.finalize(m.pending, err)
		return
	}

	if m.isMove {
		// The reorder stamp is shared with any follow-on renormalization
		// so both read as one atomic move.
		out = out.Clone()
		out[record.FieldReorderedAt] = mctx.Now
	}

	seq := e.overlay.begin(m.id, m.op, out)

	err = e.withRetry(string(m.op), func() error {
		if m.op == record.OpCreate {
			rec, buildErr := buildRecord(out, mctx.Now)
			if buildErr != nil {
				return buildErr
			}
			return e.remote.InsertRecord(ctx, rec, mctx.Activity)
		}
		return e.remote.UpdateRecord(ctx, m.id, writePayload(out), mctx.Now, mctx.Activity)
	})
	if err != nil {
		e.overlay.rollback(m.id, seq)
		slog.Error("mutation rolled back",
			"op", string(m.op), "id", m.id, "actor", m.actor.ID, "error", err)
		e.finalize(m.pending, err)
		return
	}

	e.overlay.confirm(m.id, seq)
	m.pending.confirm()
	slog.Info("mutation confirmed",
		"op", string(m.op), "action", string(m.action), "id", m.id, "actor", m.actor.ID)

	switch {
	case m.op == record.OpDiscard:
		// Gap elimination: survivors get dense positions sharing this
		// mutation's stamp.
		e.scheduleRenorm(m.actor, current.ScopeID, current.ParentID, mctx.Now, nil)
	case m.isMove && position.NeedsRenormalize(mctx.BeforePos, mctx.AfterPos):
		parent := current.ParentID
		if p, ok := out[record.FieldParentID]; ok {
			parent, _ = p.(string)
		}
		e.scheduleRenorm(m.actor, current.ScopeID, parent, mctx.Now, nil)
	}
}

func (e *Engine) processBatch(ctx context.Context, m mutation) {
	type member struct {
		id  string
		seq int64
	}

	var (
		updates  []store.FieldUpdate
		activity []record.ActivityEntry
		members  []member
		scopeID  string
	)
	stamp := e.now()

	for _, u := range m.batch {
		current, err := e.Get(ctx, u.ID)
		if err != nil {
			e.finalize(m.pending, fmt.Errorf("load %s: %w", u.ID, err))
			return
		}
		if scopeID == "" {
			scopeID = current.ScopeID
		}

		if !m.actor.IsZero() {
			if err := e.guard.Check(m.action, m.actor, current); err != nil {
				e.finalize(m.pending, err)
				return
			}
		}

		mctx := record.NewMutationContext(m.actor, record.OpUpdate, record.KindTask, stamp)
		mctx.SubjectID = u.ID
		mctx.Meta[record.FieldTitle] = current.Title

		fields := record.Fields{record.FieldPosition: u.Position}
		trackChanges(current, fields, mctx)

		out, err := e.registry.Lookup(record.KindTask).Apply(fields, mctx)
		if err != nil {
			e.finalize(m.pending, err)
			return
		}

		updates = append(updates, store.FieldUpdate{ID: u.ID, Fields: writePayload(out)})
		activity = append(activity, mctx.Activity...)
		members = append(members, member{id: u.ID})
	}

	// Optimistic apply for every member; the batch is all-or-nothing so
	// the rollback path reverts them together.
	for i := range members {
		members[i].seq = e.overlay.begin(members[i].id, record.OpUpdate, updates[i].Fields)
	}

	err := e.withRetry("batch", func() error {
		return e.remote.ApplyBatch(ctx, updates, stamp, activity)
	})
	if err != nil {
		for _, mem := range members {
			e.overlay.rollback(mem.id, mem.seq)
		}
		failure := &record.BatchFailure{ScopeID: scopeID, Size: len(updates), Err: err}
		slog.Error("batch rolled back",
			"scope", scopeID, "size", len(updates), "actor", m.actor.ID, "error", err)
		e.finalize(m.pending, failure)
		return
	}

	for _, mem := range members {
		e.overlay.confirm(mem.id, mem.seq)
	}
	m.pending.confirm()
	slog.Info("batch confirmed", "scope", scopeID, "size", len(updates), "actor", m.actor.ID)
}

// scheduleRenorm queues a renormalization for (scope, parent). Only one
// job per scope may be in flight; a second request attaches its pending
// to the existing job, serializing reorders instead of merging them.
func (e *Engine) scheduleRenorm(actor record.Actor, scopeID, parentID string, stamp time.Time, p *Pending) {
	key := scopeID + "\x00" + parentID

	e.renormMu.Lock()
	if job, queued := e.renorms[key]; queued {
		if p != nil {
			job.pendings = append(job.pendings, p)
		}
		e.renormMu.Unlock()
		conflict := &record.PositionConflict{ScopeID: scopeID, ParentID: parentID}
		slog.Debug("reorder serialized behind in-flight renormalization", "detail", conflict.Error())
		return
	}
	job := &renormJob{actor: actor, stamp: stamp}
	if p != nil {
		job.pendings = append(job.pendings, p)
	}
	e.renorms[key] = job
	e.renormMu.Unlock()

	if !e.queue.Enqueue(mutation{kind: kindRenormalize, scopeID: scopeID, parentID: parentID}) {
		e.renormMu.Lock()
		delete(e.renorms, key)
		e.renormMu.Unlock()
		for _, pending := range job.pendings {
			e.finalize(pending, ErrStopped)
		}
	}
}

func (e *Engine) processRenormalize(ctx context.Context, m mutation) {
	key := m.scopeID + "\x00" + m.parentID

	e.renormMu.Lock()
	job := e.renorms[key]
	delete(e.renorms, key)
	e.renormMu.Unlock()
	if job == nil {
		return
	}

	fail := func(err error) {
		slog.Error("renormalization failed",
			"scope", m.scopeID, "parent", m.parentID, "error", err)
		for _, p := range job.pendings {
			e.finalize(p, err)
		}
	}
	confirm := func() {
		for _, p := range job.pendings {
			p.confirm()
		}
	}

	sibs, err := e.remote.Siblings(ctx, m.scopeID, m.parentID)
	if err != nil {
		fail(fmt.Errorf("snapshot scope: %w", err))
		return
	}

	// One consistent snapshot drives the whole renumbering; positions
	// are never recomputed per removed item.
	slots := make([]position.Slot, len(sibs))
	finalized := make(map[string]bool, len(sibs))
	for i, s := range sibs {
		slots[i] = position.Slot{ID: s.ID, Position: s.Position}
		finalized[s.ID] = s.PositionFinalized
	}

	var updates []store.FieldUpdate
	for _, r := range position.Renormalize(slots) {
		if !r.Changed && finalized[r.ID] {
			continue
		}
		updates = append(updates, store.FieldUpdate{ID: r.ID, Fields: record.Fields{
			record.FieldPosition:          r.Position,
			record.FieldPositionFinalized: true,
		}})
	}
	if len(updates) == 0 {
		confirm()
		return
	}

	entry := record.ActivityEntry{
		ID:          e.ids.Generate(),
		ActorID:     job.actor.ID,
		Action:      "task.reorder",
		SubjectKind: record.KindTask,
		SubjectID:   m.scopeID,
		Meta: map[string]any{
			record.FieldScopeID:  m.scopeID,
			record.FieldParentID: m.parentID,
			"count":              len(updates),
		},
		RecordedAt: job.stamp,
	}

	err = e.withRetry("renormalize", func() error {
		return e.remote.ApplyBatch(ctx, updates, job.stamp, []record.ActivityEntry{entry})
	})
	if err != nil {
		fail(&record.BatchFailure{ScopeID: m.scopeID, Size: len(updates), Err: err})
		return
	}

	confirm()
	slog.Info("scope renormalized",
		"scope", m.scopeID, "parent", m.parentID, "count", len(updates))
}

// resolveAppend places a new record at the end of its sibling list.
func (e *Engine) resolveAppend(ctx context.Context, fields record.Fields, mctx *record.MutationContext) error {
	sibs, err := e.Siblings(ctx, fields.String(record.FieldScopeID), fields.String(record.FieldParentID))
	if err != nil {
		return fmt.Errorf("resolve siblings: %w", err)
	}
	if len(sibs) > 0 {
		last := sibs[len(sibs)-1].Position
		mctx.BeforePos = &last
	}
	return nil
}

// resolveNeighbors loads the move's neighbor records, validates they
// share the subject's scope and one parent, and records their positions
// in the mutation context for the positioning mutator. A neighbor in a
// different parent reparents the subject.
func (e *Engine) resolveNeighbors(ctx context.Context, m mutation, current *record.Record, fields record.Fields, mctx *record.MutationContext) error {
	targetParent := current.ParentID
	parentResolved := false

	if m.beforeID != "" {
		n, err := e.Get(ctx, m.beforeID)
		if err != nil {
			return fmt.Errorf("before neighbor: %w", err)
		}
		if n.ScopeID != current.ScopeID {
			return fmt.Errorf("before neighbor %s is in scope %s, subject is in %s", n.ID, n.ScopeID, current.ScopeID)
		}
		pos := n.Position
		mctx.BeforePos = &pos
		targetParent = n.ParentID
		parentResolved = true
	}
	if m.afterID != "" {
		n, err := e.Get(ctx, m.afterID)
		if err != nil {
			return fmt.Errorf("after neighbor: %w", err)
		}
		if n.ScopeID != current.ScopeID {
			return fmt.Errorf("after neighbor %s is in scope %s, subject is in %s", n.ID, n.ScopeID, current.ScopeID)
		}
		if parentResolved && n.ParentID != targetParent {
			return fmt.Errorf("neighbors %s and %s have different parents", m.beforeID, m.afterID)
		}
		pos := n.Position
		mctx.AfterPos = &pos
		targetParent = n.ParentID
	}

	if m.beforeID == "" && m.afterID == "" {
		// No neighbors named: append to the end of the current list.
		sibs, err := e.Siblings(ctx, current.ScopeID, targetParent)
		if err != nil {
			return fmt.Errorf("resolve siblings: %w", err)
		}
		for i := len(sibs) - 1; i >= 0; i-- {
			if sibs[i].ID != m.id {
				last := sibs[i].Position
				mctx.BeforePos = &last
				break
			}
		}
	}

	if targetParent != current.ParentID {
		fields[record.FieldParentID] = targetParent
	}
	return nil
}

// withRetry runs fn, retrying transient failures with exponential
// backoff up to the configured attempt budget. Non-transient errors
// return immediately; an exhausted budget escalates the last error.
func (e *Engine) withRetry(op string, fn func() error) error {
	delay := e.backoff
	var err error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		err = fn()
		if err == nil || !record.IsTransient(err) {
			return err
		}
		if attempt < e.attempts {
			slog.Warn("transient remote failure, retrying",
				"op", op, "attempt", attempt, "backoff", delay, "error", err)
			e.sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", op, e.attempts, err)
}

// trackChanges records [old, new] transitions for the audit mutator.
func trackChanges(current *record.Record, fields record.Fields, mctx *record.MutationContext) {
	for name, newVal := range fields {
		var old any
		switch name {
		case record.FieldTitle:
			old = current.Title
		case record.FieldStatus:
			old = string(current.Status)
		case record.FieldAssigneeID:
			old = current.AssigneeID
		case record.FieldParentID:
			old = current.ParentID
		case record.FieldPosition:
			old = current.Position
		default:
			continue
		}
		if newVal != old {
			mctx.RecordChange(name, old, newVal)
		}
	}
}

// writePayload strips identity and creation-only columns from a
// pipeline output before an update write; the store whitelists writable
// columns and would reject them.
func writePayload(fields record.Fields) record.Fields {
	out := fields.Clone()
	delete(out, record.FieldID)
	delete(out, record.FieldKind)
	delete(out, record.FieldScopeID)
	delete(out, record.FieldCreatedByID)
	return out
}

// buildRecord materializes a Record from a create pipeline's output.
func buildRecord(fields record.Fields, now time.Time) (*record.Record, error) {
	rec := &record.Record{CreatedAt: now, UpdatedAt: now}
	applyFields(rec, fields)
	if rec.ID == "" {
		return nil, errors.New("create: missing id")
	}
	if rec.Status == "" {
		rec.Status = record.StatusOpen
	}
	return rec, nil
}
