package record

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates_MatchWrapped(t *testing.T) {
	perm := &PermissionError{Action: "delete", ActorID: "u1", Reason: "technicians may not delete"}
	attr := &AttributionError{Reason: "no authenticated user for attribution"}
	batch := &BatchFailure{ScopeID: "job-1", Size: 3, Err: errors.New("remote rejected")}
	transient := &TransientError{Err: errors.New("connection reset")}
	conflict := &PositionConflict{ScopeID: "job-1"}

	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"permission", perm, IsPermissionDenied},
		{"attribution", attr, IsAttributionError},
		{"batch", batch, IsBatchFailure},
		{"transient", transient, IsTransient},
		{"conflict", conflict, IsPositionConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
			assert.True(t, tt.pred(fmt.Errorf("op failed: %w", tt.err)))
			assert.False(t, tt.pred(errors.New("unrelated")))
		})
	}
}

func TestBatchFailure_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	bf := &BatchFailure{Size: 2, Err: inner}
	assert.ErrorIs(t, bf, inner)
	assert.Contains(t, bf.Error(), "batch of 2")
}

func TestTransientError_EscalationChain(t *testing.T) {
	// A transient error wrapped into a batch failure keeps both
	// identities visible to callers.
	te := &TransientError{Err: errors.New("timeout")}
	bf := &BatchFailure{ScopeID: "s", Size: 1, Err: te}
	assert.True(t, IsBatchFailure(bf))
	assert.True(t, IsTransient(bf))
}

func TestPermissionError_Message(t *testing.T) {
	e := &PermissionError{Action: "delete", Reason: "window elapsed"}
	assert.Equal(t, "permission denied: delete: window elapsed", e.Error())

	e.ActorID = "u9"
	assert.Contains(t, e.Error(), "actor=u9")
}
