package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/taskrail/internal/engine"
	"github.com/roach88/taskrail/internal/policy"
	"github.com/roach88/taskrail/internal/record"
	"github.com/roach88/taskrail/internal/store"
	"github.com/roach88/taskrail/internal/testutil"
)

// stepTimeout bounds how long one mutation may stay pending before the
// scenario fails.
const stepTimeout = 5 * time.Second

// Run holds a scenario mid- or post-execution.
type Run struct {
	T        *testing.T
	Scenario *Scenario
	Store    *store.Store
	Engine   *engine.Engine
	Clock    *testutil.Clock
}

// paddedIDs mints zero-padded sequential ids so the activity log's
// (recorded_at, id) ordering stays lexicographic under a frozen clock.
type paddedIDs struct{ n int }

func (g *paddedIDs) Generate() string {
	g.n++
	return fmt.Sprintf("gen-%02d", g.n)
}

// Execute loads the scenario at path, runs every step against a fresh
// SQLite store and engine, and checks the final-state assertions.
func Execute(t *testing.T, path string) *Run {
	t.Helper()

	sc, err := LoadScenario(path)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "scenario.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewClock()
	guard := policy.NewGuard(policy.Default(), clock.Now)
	eng := engine.New(st, guard, &paddedIDs{},
		engine.WithNow(clock.Now),
		engine.WithSleep(func(time.Duration) {}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		eng.Stop()
		<-done
		cancel()
	})

	r := &Run{T: t, Scenario: sc, Store: st, Engine: eng, Clock: clock}
	for i, step := range sc.Steps {
		r.runStep(i, step)
	}
	r.assertFinal()
	return r
}

func (r *Run) runStep(i int, step Step) {
	r.T.Helper()
	ctx := context.Background()
	actor := r.resolveActor(step)

	// A confirmed discard triggers gap elimination asynchronously; the
	// subject's scope is captured up front so the step can wait for the
	// renumbering to land before the next step dispatches.
	var settleScope, settleParent string
	settle := false
	if step.Op == "discard" && step.ExpectError == "" {
		if rec, err := r.Engine.Get(ctx, step.ID); err == nil {
			settleScope, settleParent = rec.ScopeID, rec.ParentID
			settle = true
		}
	}

	p := r.dispatch(step, actor)
	waitCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	state, err := p.Wait(waitCtx)

	label := fmt.Sprintf("steps[%d] %s %s", i, step.Op, step.ID)
	if step.ExpectError != "" {
		require.Errorf(r.T, err, "%s: expected %s", label, step.ExpectError)
		require.Equalf(r.T, step.ExpectError, failureCode(err), "%s: %v", label, err)
		require.Equal(r.T, engine.StateRolledBack, state, label)
		return
	}
	require.NoErrorf(r.T, err, label)
	require.Equal(r.T, engine.StateConfirmed, state, label)

	if settle {
		sp := r.Engine.Renormalize(actor, settleScope, settleParent)
		settleCtx, cancelSettle := context.WithTimeout(ctx, stepTimeout)
		defer cancelSettle()
		_, err := sp.Wait(settleCtx)
		require.NoErrorf(r.T, err, "%s: renumbering after discard", label)
	}
}

func (r *Run) dispatch(step Step, actor record.Actor) *engine.Pending {
	switch step.Op {
	case "add":
		fields := record.Fields{
			record.FieldTitle:   step.Title,
			record.FieldScopeID: step.Scope,
		}
		if step.ID != "" {
			fields[record.FieldID] = step.ID
		}
		if step.Parent != "" {
			fields[record.FieldParentID] = step.Parent
		}
		if step.Status != "" {
			fields[record.FieldStatus] = step.Status
		}
		return r.Engine.Create(actor, fields)
	case "move":
		return r.Engine.Move(actor, step.ID, step.After, step.Before)
	case "discard":
		return r.Engine.Discard(actor, step.ID)
	case "status":
		return r.Engine.ChangeStatus(actor, step.ID, record.Status(step.Status))
	case "assign":
		return r.Engine.AssignUser(actor, step.ID, step.Assignee)
	default: // renormalize; LoadScenario rejects anything else
		return r.Engine.Renormalize(actor, step.Scope, step.Parent)
	}
}

func (r *Run) resolveActor(step Step) record.Actor {
	id := r.Scenario.Actor
	if step.Actor != "" {
		id = step.Actor
	}
	if id == "" || id == "none" {
		return record.Actor{}
	}
	role := r.Scenario.Role
	if step.Role != "" {
		role = step.Role
	}
	if role == "" {
		role = string(record.RoleTechnician)
	}
	return record.Actor{ID: id, Role: record.Role(role)}
}

func (r *Run) assertFinal() {
	r.T.Helper()
	ctx := context.Background()

	for _, l := range r.Scenario.Final.Lists {
		require.Eventuallyf(r.T, func() bool {
			sibs, err := r.Store.Siblings(ctx, l.Scope, l.Parent)
			if err != nil {
				return false
			}
			return matchesList(sibs, l)
		}, 2*time.Second, 10*time.Millisecond,
			"final list for scope=%s parent=%q never reached %v", l.Scope, l.Parent, l.Order)
	}

	for _, ta := range r.Scenario.Final.Tasks {
		rec, err := r.Store.GetRecord(ctx, ta.ID)
		require.NoErrorf(r.T, err, "final task %s", ta.ID)

		if ta.Status != "" {
			require.Equal(r.T, record.Status(ta.Status), rec.Status, ta.ID)
		}
		if ta.Assignee != "" {
			require.Equal(r.T, ta.Assignee, rec.AssigneeID, ta.ID)
		}
		if ta.Parent != "" {
			require.Equal(r.T, ta.Parent, rec.ParentID, ta.ID)
		}
		require.Equalf(r.T, ta.Discarded, rec.Discarded(), "%s discarded", ta.ID)
	}
}

func matchesList(sibs []record.Record, l ListExpectation) bool {
	if len(sibs) != len(l.Order) {
		return false
	}
	for i, s := range sibs {
		if s.ID != l.Order[i] {
			return false
		}
		if l.Dense && (s.Position != float64(i+1) || !s.PositionFinalized) {
			return false
		}
	}
	return true
}

// failureCode maps a rollback error to the code scenarios name in
// expect_error.
func failureCode(err error) string {
	switch {
	case record.IsPermissionDenied(err):
		return "permission_denied"
	case record.IsAttributionError(err):
		return "attribution_missing"
	case record.IsBatchFailure(err):
		return "batch_failed"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	}
	return "error"
}
