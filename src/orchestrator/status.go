package orchestrator

import (
	"context"
	"errors"

	"github.com/elee1766/gauntletfuse/src/storage"
)

// Tracker owns a run's lifecycle: pending -> running -> completed|failed.
// Every transition is a single conditional update, so a concurrent writer
// can never move a terminal run.
type Tracker struct {
	store  *storage.Store
	events *Hub
}

// NewTracker creates a status tracker. events may be nil.
func NewTracker(store *storage.Store, events *Hub) *Tracker {
	return &Tracker{store: store, events: events}
}

// Start moves a pending run to running.
func (t *Tracker) Start(ctx context.Context, runID string) (*storage.Run, error) {
	return t.transition(ctx, runID, []storage.RunStatus{storage.RunPending}, storage.RunRunning, "")
}

// Complete moves a running run to completed and stamps completed_at.
func (t *Tracker) Complete(ctx context.Context, runID string) (*storage.Run, error) {
	return t.transition(ctx, runID, []storage.RunStatus{storage.RunRunning}, storage.RunCompleted, "")
}

// Fail moves a pending or running run to failed with the given reason and
// stamps completed_at.
func (t *Tracker) Fail(ctx context.Context, runID string, reason Reason) (*storage.Run, error) {
	return t.transition(ctx, runID,
		[]storage.RunStatus{storage.RunPending, storage.RunRunning}, storage.RunFailed, string(reason))
}

func (t *Tracker) transition(ctx context.Context, runID string, from []storage.RunStatus, to storage.RunStatus, reason string) (*storage.Run, error) {
	run, err := t.store.TransitionRun(ctx, runID, from, to, reason)
	if errors.Is(err, storage.ErrStatusMismatch) {
		return nil, &InvalidTransitionError{RunID: runID, From: run.Status, To: to}
	}
	if err != nil {
		return nil, err
	}
	t.events.Publish(Event{
		RunID:  runID,
		Type:   EventStatus,
		Status: run.Status,
		Reason: run.FailureReason,
	})
	return run, nil
}
