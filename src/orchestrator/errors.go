package orchestrator

import (
	"errors"
	"fmt"

	"github.com/elee1766/gauntletfuse/src/storage"
)

// Reason is the failure code recorded on a failed run.
type Reason string

const (
	ReasonRoundFailed       Reason = "RoundFailed"
	ReasonFusionFailed      Reason = "FusionFailed"
	ReasonCancelled         Reason = "Cancelled"
	ReasonInternal          Reason = "Internal"
	ReasonNoParticipants    Reason = "NoParticipants"
	ReasonDanglingReference Reason = "DanglingReference"
)

var (
	// ErrCancelled is returned by Execute when the run was cancelled
	ErrCancelled = errors.New("run cancelled")

	// ErrRoundFailed is returned by Execute when every participant in a
	// round failed
	ErrRoundFailed = errors.New("every participant in the round failed")

	// ErrFusionFailed is returned by Execute when the fused answer could not
	// be produced
	ErrFusionFailed = errors.New("fusion failed")
)

// InvalidTransitionError reports a status change the state machine does
// not allow.
type InvalidTransitionError struct {
	RunID string
	From  storage.RunStatus
	To    storage.RunStatus
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("run %s: invalid transition %s -> %s", e.RunID, e.From, e.To)
}

// DanglingReferenceError reports a run participant whose provider or
// persona no longer exists.
type DanglingReferenceError struct {
	RunParticipantID string
	// Field is "provider" or "persona"
	Field string
	// RefID is empty when the reference was cleared by a delete
	RefID string
}

// Error implements the error interface.
func (e *DanglingReferenceError) Error() string {
	if e.RefID == "" {
		return fmt.Sprintf("run participant %s: %s was deleted", e.RunParticipantID, e.Field)
	}
	return fmt.Sprintf("run participant %s: %s %s does not exist", e.RunParticipantID, e.Field, e.RefID)
}

// NoParticipantsError reports a run with nothing to dispatch. It matches
// storage.ErrNotFound.
type NoParticipantsError struct {
	RunID string
}

// Error implements the error interface.
func (e *NoParticipantsError) Error() string {
	return fmt.Sprintf("run %s has no participants", e.RunID)
}

// Is implements error matching.
func (e *NoParticipantsError) Is(target error) bool {
	return target == storage.ErrNotFound
}

// reasonFor maps an Execute error to the run's failure code.
func reasonFor(err error) Reason {
	var dangling *DanglingReferenceError
	var none *NoParticipantsError
	switch {
	case errors.Is(err, ErrCancelled):
		return ReasonCancelled
	case errors.Is(err, ErrRoundFailed):
		return ReasonRoundFailed
	case errors.Is(err, ErrFusionFailed):
		return ReasonFusionFailed
	case errors.As(err, &dangling):
		return ReasonDanglingReference
	case errors.As(err, &none):
		return ReasonNoParticipants
	}
	return ReasonInternal
}
