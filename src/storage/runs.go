package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrStatusMismatch is returned by TransitionRun when the run is not in any
// of the expected source states.
var ErrStatusMismatch = errors.New("run status does not allow transition")

// TransitionRun moves the run to status `to` if it is currently in one of
// `from`. The check and the write happen in one UPDATE. Terminal targets
// stamp completed_at. On ErrStatusMismatch the run is returned as it
// currently stands.
func (s *Store) TransitionRun(ctx context.Context, id string, from []RunStatus, to RunStatus, reason string) (*Run, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("transition to %s: no source states", to)
	}
	var completedAt *time.Time
	if to.Terminal() {
		completedAt = Ptr(time.Now().UTC())
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	query := `UPDATE arena_runs SET status = ?, failure_reason = ?, completed_at = ?
		WHERE id = ? AND status IN (` + placeholders + `)`
	args := []any{to, reason, completedAt, id}
	for _, st := range from {
		args = append(args, st)
	}

	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classifyConstraint("run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	run, err := s.Runs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return run, fmt.Errorf("%w: %s -> %s", ErrStatusMismatch, run.Status, to)
	}
	return run, nil
}

// RequestCancel flags a running run for cooperative cancellation. It
// reports false when the run was not running.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE arena_runs SET cancel_requested = 1 WHERE id = ? AND status = ?`, id, RunRunning)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelRequested reports whether cancellation was requested for the run.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	run, err := s.Runs.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return run.CancelRequested, nil
}

// AcquireRunLock records holder as the only orchestration task allowed to
// act on the run. A second acquirer gets ErrRunLocked.
func (s *Store) AcquireRunLock(ctx context.Context, runID, holder string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO run_locks (run_id, holder, acquired_at) VALUES (?, ?, ?)`,
		runID, holder, time.Now().UTC())
	if err == nil {
		return nil
	}
	err = classifyConstraint("run lock", err)
	switch {
	case errors.Is(err, ErrConflict):
		return fmt.Errorf("run %s: %w", runID, ErrRunLocked)
	case IsValidation(err):
		return &NotFoundError{Entity: "run", ID: runID}
	}
	return err
}

// ReleaseRunLock drops the lock if holder still owns it.
func (s *Store) ReleaseRunLock(ctx context.Context, runID, holder string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM run_locks WHERE run_id = ? AND holder = ?`, runID, holder)
	return err
}

// ClearRunLocks removes every lock. Only safe when no orchestration task is
// alive, i.e. at process start.
func (s *Store) ClearRunLocks(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM run_locks`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateRound appends a round to the run. The round number is computed in
// the same statement as the insert, so numbers stay gapless and increasing
// even if two writers race.
func (s *Store) CreateRound(ctx context.Context, runID string, phase Phase, metadata JSONMap) (*Round, error) {
	if metadata == nil {
		metadata = JSONMap{}
	}
	round := Round{
		ID:          uuid.New().String(),
		RunID:       runID,
		RoundNumber: 1,
		Phase:       phase,
		Status:      RoundOpen,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Rounds.check(&round); err != nil {
		return nil, err
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO arena_run_rounds (id, run_id, round_number, phase, status, metadata, created_at)
		SELECT ?, ?, COALESCE(MAX(round_number), 0) + 1, ?, ?, ?, ?
		FROM arena_run_rounds WHERE run_id = ?`,
		round.ID, round.RunID, round.Phase, round.Status, round.Metadata, round.CreatedAt, runID)
	if err != nil {
		return nil, classifyConstraint("round", err)
	}
	return s.Rounds.Get(ctx, round.ID)
}

// FinalizeRound closes an open round as completed or failed.
func (s *Store) FinalizeRound(ctx context.Context, roundID string, status RoundStatus) error {
	if status != RoundCompleted && status != RoundFailed {
		return &ValidationError{Entity: "round", Field: "status", Message: "must be completed or failed"}
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE arena_run_rounds SET status = ? WHERE id = ? AND status = ?`, status, roundID, RoundOpen)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Rounds.Get(ctx, roundID); err != nil {
			return err
		}
		return &ValidationError{Entity: "round", Field: "status", Message: "round is already finalized"}
	}
	return nil
}

// ListRounds returns the run's rounds by round number.
func (s *Store) ListRounds(ctx context.Context, runID string) ([]Round, error) {
	return s.Rounds.List(ctx, Filter{"run_id": runID})
}

// ListRoundMessages returns a round's messages in completion order.
func (s *Store) ListRoundMessages(ctx context.Context, roundID string) ([]Message, error) {
	return s.Messages.List(ctx, Filter{"round_id": roundID})
}

// ListRunParticipants returns the run's participants in binding order.
func (s *Store) ListRunParticipants(ctx context.Context, runID string) ([]RunParticipant, error) {
	return s.RunParticipants.List(ctx, Filter{"run_id": runID})
}

// GetFusedOutput returns the run's fused output or a NotFoundError.
func (s *Store) GetFusedOutput(ctx context.Context, runID string) (*FusedOutput, error) {
	outs, err := s.FusedOutputs.List(ctx, Filter{"run_id": runID})
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return nil, &NotFoundError{Entity: "fused output", ID: runID}
	}
	return &outs[0], nil
}
