package record

import (
	"errors"
	"fmt"
)

// PermissionError reports that the guard denied an action before the
// pipeline ran. It is surfaced verbatim to the caller and never retried.
type PermissionError struct {
	Action  string
	ActorID string
	Reason  string
}

func (e *PermissionError) Error() string {
	if e.ActorID == "" {
		return fmt.Sprintf("permission denied: %s: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("permission denied: %s (actor=%s): %s", e.Action, e.ActorID, e.Reason)
}

// AttributionError reports a missing authenticated actor or an attempt
// to assert attribution fields that differ from the actor. Fatal: the
// pipeline aborts before any write.
type AttributionError struct {
	Reason string
}

func (e *AttributionError) Error() string {
	return "attribution: " + e.Reason
}

// BatchFailure reports that the remote store rejected a batch. Every
// member update is rolled back together.
type BatchFailure struct {
	ScopeID string
	Size    int
	Err     error
}

func (e *BatchFailure) Error() string {
	return fmt.Sprintf("batch of %d rejected (scope=%s): %v", e.Size, e.ScopeID, e.Err)
}

func (e *BatchFailure) Unwrap() error { return e.Err }

// TransientError wraps a remote failure that is safe to retry with
// backoff. Once attempts are exhausted the engine escalates it to a
// BatchFailure or plain mutation failure.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// PositionConflict reports two renormalizations racing on one sibling
// scope. Resolution is always serialization, never a merge.
type PositionConflict struct {
	ScopeID  string
	ParentID string
}

func (e *PositionConflict) Error() string {
	return fmt.Sprintf("position conflict: renormalization already in flight for scope=%s parent=%q", e.ScopeID, e.ParentID)
}

// IsPermissionDenied reports whether err is (or wraps) a PermissionError.
func IsPermissionDenied(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsAttributionError reports whether err is (or wraps) an AttributionError.
func IsAttributionError(err error) bool {
	var ae *AttributionError
	return errors.As(err, &ae)
}

// IsBatchFailure reports whether err is (or wraps) a BatchFailure.
func IsBatchFailure(err error) bool {
	var bf *BatchFailure
	return errors.As(err, &bf)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPositionConflict reports whether err is (or wraps) a PositionConflict.
func IsPositionConflict(err error) bool {
	var pc *PositionConflict
	return errors.As(err, &pc)
}
