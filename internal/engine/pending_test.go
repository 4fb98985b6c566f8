package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending_ConfirmLifecycle(t *testing.T) {
	p := newPending("t1")
	assert.Equal(t, StatePending, p.State())
	assert.Equal(t, "t1", p.RecordID())

	p.confirm()
	assert.Equal(t, StateConfirmed, p.State())
	assert.NoError(t, p.Err())

	select {
	case <-p.Done():
	default:
		t.Fatal("done channel must be closed after confirm")
	}

	// Terminal states are sticky.
	p.reject(errors.New("late"))
	p.rolledBack()
	assert.Equal(t, StateConfirmed, p.State())
	assert.NoError(t, p.Err())
}

func TestPending_RejectThenRolledBack(t *testing.T) {
	p := newPending("t1")
	boom := errors.New("boom")

	p.reject(boom)
	assert.Equal(t, StateRejected, p.State())
	select {
	case <-p.Done():
		t.Fatal("rejected is not terminal until the rollback lands")
	default:
	}

	p.rolledBack()
	assert.Equal(t, StateRolledBack, p.State())
	assert.ErrorIs(t, p.Err(), boom)

	st, err := p.Wait(context.Background())
	assert.Equal(t, StateRolledBack, st)
	assert.ErrorIs(t, err, boom)
}

func TestPending_WaitHonorsContext(t *testing.T) {
	p := newPending("t1")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	st, err := p.Wait(ctx)
	assert.Equal(t, StatePending, st)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestState_Strings(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "confirmed", StateConfirmed.String())
	assert.Equal(t, "rejected", StateRejected.String())
	assert.Equal(t, "rolled_back", StateRolledBack.String())
	assert.False(t, StateRejected.Terminal())
	assert.True(t, StateConfirmed.Terminal())
}
