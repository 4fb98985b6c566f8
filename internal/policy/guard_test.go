package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskrail/internal/record"
	"github.com/roach88/taskrail/internal/testutil"
)

func defaultGuard(clock *testutil.Clock) *Guard {
	return NewGuard(Default(), clock.Now)
}

func TestGuard_RoleGrants(t *testing.T) {
	g := defaultGuard(testutil.NewClock())

	tests := []struct {
		action Action
		actor  record.Actor
		want   bool
	}{
		{ActionCreate, testutil.Tech, true},
		{ActionCreate, testutil.Admin, true},
		{ActionEdit, testutil.Tech, true},
		{ActionMove, testutil.Tech, true},
		{ActionChangeStatus, testutil.Tech, true},
		{ActionAssignUser, testutil.Tech, false},
		{ActionAssignUser, testutil.Admin, true},
		{ActionDelete, testutil.Tech, false},
		{ActionDelete, testutil.Admin, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.action)+"/"+string(tt.actor.Role), func(t *testing.T) {
			assert.Equal(t, tt.want, g.Can(tt.action, tt.actor, nil))
		})
	}
}

func TestGuard_CreatorDeleteWindow(t *testing.T) {
	clock := testutil.NewClock()
	g := defaultGuard(clock)

	rec := &record.Record{
		ID:          "t1",
		CreatedByID: testutil.Tech.ID,
		CreatedAt:   clock.Now(),
	}

	// Inside the window the creator may delete their own record.
	clock.Advance(10 * time.Minute)
	assert.True(t, g.Can(ActionDelete, testutil.Tech, rec))

	// A different technician never may.
	assert.False(t, g.Can(ActionDelete, testutil.Tech2, rec))

	// After the window the grant lapses.
	clock.Advance(10 * time.Minute)
	assert.False(t, g.Can(ActionDelete, testutil.Tech, rec))
	assert.Contains(t, g.DenialReason(ActionDelete, testutil.Tech, rec), "window for creator elapsed")

	// Admins are unaffected by the window.
	assert.True(t, g.Can(ActionDelete, testutil.Admin, rec))
}

func TestGuard_NoActor(t *testing.T) {
	g := defaultGuard(testutil.NewClock())
	assert.False(t, g.Can(ActionCreate, record.Actor{}, nil))
	assert.Equal(t, "no authenticated actor", g.DenialReason(ActionCreate, record.Actor{}, nil))
}

func TestGuard_UnknownAction(t *testing.T) {
	g := defaultGuard(testutil.NewClock())
	assert.False(t, g.Can(Action("explode"), testutil.Admin, nil))
}

func TestGuard_Idempotent(t *testing.T) {
	clock := testutil.NewClock()
	g := defaultGuard(clock)
	rec := &record.Record{ID: "t1", CreatedByID: "tech-1", CreatedAt: clock.Now()}

	first := g.Can(ActionDelete, testutil.Tech, rec)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, g.Can(ActionDelete, testutil.Tech, rec),
			"repeated evaluation of the same triple diverged at call %d", i)
	}
}

func TestGuard_CheckReturnsTypedError(t *testing.T) {
	g := defaultGuard(testutil.NewClock())

	err := g.Check(ActionAssignUser, testutil.Tech, nil)
	require.Error(t, err)
	assert.True(t, record.IsPermissionDenied(err))

	var pe *record.PermissionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "assignUser", pe.Action)
	assert.Equal(t, "tech-1", pe.ActorID)
	assert.NotEmpty(t, pe.Reason)

	assert.NoError(t, g.Check(ActionCreate, testutil.Tech, nil))
}

func TestNewPolicy_RejectsUnknowns(t *testing.T) {
	_, err := NewPolicy(map[Action]Rule{Action("bogus"): {Roles: []record.Role{record.RoleAdmin}}})
	assert.Error(t, err)

	_, err = NewPolicy(map[Action]Rule{ActionEdit: {Roles: []record.Role{record.Role("owner")}}})
	assert.Error(t, err)
}
