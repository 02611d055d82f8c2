package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/elee1766/gauntletfuse/src/invoke"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// Scheduler runs one round at a time: it creates the round, invokes every
// participant concurrently, and waits for all of them before finalizing.
type Scheduler struct {
	store          *storage.Store
	invoker        invoke.Invoker
	policy         invoke.Policy
	events         *Hub
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler creates a round scheduler. maxConcurrency <= 0 dispatches
// every participant at once.
func NewScheduler(store *storage.Store, inv invoke.Invoker, policy invoke.Policy, events *Hub, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:          store,
		invoker:        inv,
		policy:         policy,
		events:         events,
		logger:         logger.With("component", "scheduler"),
		maxConcurrency: maxConcurrency,
	}
}

type outcome struct {
	index  int
	failed bool
	// err is a store failure, not an invocation failure
	err error
}

// RunRound executes phase for run. It returns the finalized round with its
// messages. When every participant failed the round is finalized as failed
// and the error wraps ErrRoundFailed.
func (s *Scheduler) RunRound(ctx context.Context, run *storage.Run, phase storage.Phase, participants []Participant, history []roundRecord) (roundRecord, error) {
	role, ok := phaseRoles[phase]
	if !ok {
		return roundRecord{}, fmt.Errorf("unknown phase %q", phase)
	}

	round, err := s.store.CreateRound(ctx, run.ID, phase, storage.JSONMap{
		"temperature":  run.Temperature,
		"participants": len(participants),
	})
	if err != nil {
		return roundRecord{}, fmt.Errorf("failed to create %s round: %w", phase, err)
	}
	s.events.Publish(Event{
		RunID:       run.ID,
		Type:        EventRoundStarted,
		RoundNumber: round.RoundNumber,
		Phase:       phase,
		RoundStatus: storage.RoundOpen,
	})
	log := s.logger.With("run_id", run.ID, "round", round.RoundNumber, "phase", phase)
	log.Info("round started", "participants", len(participants))

	prompt := phasePrompt(phase, run.InputPrompt, history)
	base := storage.Settings{Temperature: storage.Ptr(run.Temperature)}

	p := pool.NewWithResults[outcome]()
	if s.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(s.maxConcurrency)
	}
	for i, part := range participants {
		p.Go(func() outcome {
			return s.dispatch(ctx, log, round, role, part, prompt, base, i)
		})
	}
	// barrier
	results := p.Wait()

	succeeded := 0
	var storeErr error
	for _, r := range results {
		if r.err != nil {
			storeErr = errors.Join(storeErr, r.err)
			continue
		}
		if !r.failed {
			succeeded++
		}
	}

	// finalize even if the caller went away; the round's outcome is known
	wctx := context.WithoutCancel(ctx)
	if storeErr != nil {
		_ = s.store.FinalizeRound(wctx, round.ID, storage.RoundFailed)
		return roundRecord{}, fmt.Errorf("failed to record round %d: %w", round.RoundNumber, storeErr)
	}

	status := storage.RoundCompleted
	if succeeded == 0 {
		status = storage.RoundFailed
	}
	if err := s.store.FinalizeRound(wctx, round.ID, status); err != nil {
		return roundRecord{}, fmt.Errorf("failed to finalize round %d: %w", round.RoundNumber, err)
	}
	round.Status = status
	s.events.Publish(Event{
		RunID:       run.ID,
		Type:        EventRoundFinished,
		RoundNumber: round.RoundNumber,
		Phase:       phase,
		RoundStatus: status,
	})
	log.Info("round finished", "status", status, "succeeded", succeeded, "failed", len(participants)-succeeded)

	msgs, err := s.store.ListRoundMessages(wctx, round.ID)
	if err != nil {
		return roundRecord{}, fmt.Errorf("failed to list round messages: %w", err)
	}
	rec := roundRecord{Round: *round, Messages: msgs}
	if succeeded == 0 {
		return rec, fmt.Errorf("round %d (%s): %w", round.RoundNumber, phase, ErrRoundFailed)
	}
	return rec, nil
}

// dispatch invokes one participant and records its message.
func (s *Scheduler) dispatch(ctx context.Context, log *slog.Logger, round *storage.Round, role storage.MessageRole, part Participant, prompt string, base storage.Settings, index int) outcome {
	settings := base.Merge(part.Settings)
	req := invoke.Request{
		Provider:   part.Provider,
		SystemText: part.Persona.SystemPrompt,
		Prompt:     participantPrompt(part, prompt),
		Settings:   settings,
	}

	text, attempts, err := s.policy.Do(ctx, s.invoker, req)

	msg := &storage.Message{
		RoundID:       round.ID,
		ParticipantID: storage.Ptr(part.ID),
		Role:          role,
		Content:       text,
		Metadata: storage.JSONMap{
			metaSpeaker:  part.Label(),
			metaRole:     part.Role,
			metaAttempts: len(attempts) + 1,
		},
	}
	if settings.Model != "" {
		msg.Metadata[metaModel] = settings.Model
	}
	if err != nil {
		kind := invoke.KindOf(err)
		msg.Role = storage.RoleSystem
		msg.Content = fmt.Sprintf("%s failed after %d attempt(s): %s: %v", part.Label(), len(attempts), kind, err)
		msg.Metadata[metaAttempts] = len(attempts)
		msg.Metadata[metaErrorKind] = string(kind)
		log.Warn("participant failed", "speaker", part.Label(), "kind", kind, "attempts", len(attempts), "error", err)
	}

	if werr := s.store.Messages.Create(context.WithoutCancel(ctx), msg); werr != nil {
		return outcome{index: index, err: fmt.Errorf("failed to save message for %s: %w", part.Label(), werr)}
	}
	s.events.Publish(Event{
		RunID:       round.RunID,
		Type:        EventMessage,
		RoundNumber: round.RoundNumber,
		Phase:       round.Phase,
		Speaker:     part.Label(),
		Role:        msg.Role,
		Content:     msg.Content,
	})
	return outcome{index: index, failed: err != nil}
}
