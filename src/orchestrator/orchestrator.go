// Package orchestrator drives arena runs: it binds participants, walks the
// debate phases round by round, fuses the result and tracks run status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/invoke"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// Config configures an Orchestrator.
type Config struct {
	Store   *storage.Store
	Invoker invoke.Invoker
	// Events receives progress events; nil disables them
	Events *Hub
	Logger *slog.Logger

	// InvocationTimeout bounds one invocation attempt
	InvocationTimeout time.Duration
	// MaxRetries is the number of extra attempts for transient failures
	MaxRetries int
	// RetryDelay is multiplied by the attempt number
	RetryDelay time.Duration
	// MaxConcurrency caps invocations in flight per round; 0 means no cap
	MaxConcurrency int
	// DefaultTemperature applies when an arena has none
	DefaultTemperature float64
	// Sleep replaces the retry timer, mostly for tests
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default settings.
const (
	DefaultInvocationTimeout = 60 * time.Second
	DefaultMaxRetries        = 2
	DefaultRetryDelay        = time.Second
	DefaultTemperature       = 0.3
)

// ParticipantSpec binds a participant to a new run. Either ParticipantID
// names a saved participant, or ProviderID and PersonaID are given
// directly. Settings, when set, override the saved participant's.
type ParticipantSpec struct {
	ParticipantID string            `json:"participant_id,omitempty"`
	ProviderID    string            `json:"provider_id,omitempty"`
	PersonaID     string            `json:"persona_id,omitempty"`
	Role          string            `json:"role"`
	Settings      *storage.Settings `json:"settings,omitempty"`
}

// RoundState is a round with its messages.
type RoundState struct {
	storage.Round
	Messages []storage.Message `json:"messages"`
}

// RunState is everything recorded for a run so far.
type RunState struct {
	Run          storage.Run              `json:"run"`
	Participants []storage.RunParticipant `json:"participants"`
	Rounds       []RoundState             `json:"rounds"`
	FusedOutput  *storage.FusedOutput     `json:"fused_output,omitempty"`
}

// Orchestrator is the entry point for creating, executing, inspecting and
// cancelling runs.
type Orchestrator struct {
	store     *storage.Store
	events    *Hub
	logger    *slog.Logger
	tracker   *Tracker
	resolver  *Resolver
	scheduler *Scheduler
	synth     *Synthesizer

	defaultTemperature float64

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.InvocationTimeout <= 0 {
		cfg.InvocationTimeout = DefaultInvocationTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	policy := invoke.Policy{
		MaxRetries: cfg.MaxRetries,
		Delay:      cfg.RetryDelay,
		Timeout:    cfg.InvocationTimeout,
		Sleep:      cfg.Sleep,
	}
	logger := cfg.Logger.With("component", "orchestrator")
	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		store:              cfg.Store,
		events:             cfg.Events,
		logger:             logger,
		tracker:            NewTracker(cfg.Store, cfg.Events),
		resolver:           NewResolver(cfg.Store),
		scheduler:          NewScheduler(cfg.Store, cfg.Invoker, policy, cfg.Events, cfg.Logger, cfg.MaxConcurrency),
		synth:              NewSynthesizer(cfg.Store, cfg.Invoker, policy, cfg.Events, cfg.Logger),
		defaultTemperature: cfg.DefaultTemperature,
		baseCtx:            ctx,
		stop:               stop,
	}
}

// Events returns the hub runs publish to, possibly nil.
func (o *Orchestrator) Events() *Hub {
	return o.events
}

// CreateRun stores a pending run of the user's arena. With no specs the
// arena's saved participants are bound under their slot roles.
func (o *Orchestrator) CreateRun(ctx context.Context, user auth.UserID, arenaID, inputPrompt string, specs []ParticipantSpec) (*storage.Run, error) {
	if strings.TrimSpace(inputPrompt) == "" {
		return nil, &storage.ValidationError{Entity: "run", Field: "input_prompt", Message: "must not be empty"}
	}
	arena, err := o.store.Arenas.Get(ctx, arenaID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(user, arena.OwnerID); err != nil {
		return nil, err
	}

	if len(specs) == 0 {
		specs, err = o.arenaSpecs(ctx, arena.ID)
		if err != nil {
			return nil, err
		}
	}
	if len(specs) == 0 {
		return nil, &storage.ValidationError{Entity: "run", Field: "participants", Message: "arena has no participants"}
	}

	bound := make([]storage.RunParticipant, 0, len(specs))
	for i, spec := range specs {
		rp, err := o.bind(ctx, user, spec)
		if err != nil {
			return nil, fmt.Errorf("participant %d: %w", i+1, err)
		}
		bound = append(bound, rp)
	}

	temperature := arena.Temperature
	if temperature == 0 {
		temperature = o.defaultTemperature
	}
	run := &storage.Run{
		ArenaID:     arena.ID,
		OwnerID:     string(user),
		InputPrompt: inputPrompt,
		Status:      storage.RunPending,
		Temperature: temperature,
	}
	err = o.store.WithTx(ctx, func(tx *storage.Store) error {
		if err := tx.Runs.Create(ctx, run); err != nil {
			return err
		}
		for i := range bound {
			bound[i].RunID = run.ID
			if err := tx.RunParticipants.Create(ctx, &bound[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.events.Publish(Event{RunID: run.ID, Type: EventStatus, Status: run.Status})
	o.logger.Info("run created", "run_id", run.ID, "arena_id", arena.ID, "participants", len(bound))
	return run, nil
}

func (o *Orchestrator) arenaSpecs(ctx context.Context, arenaID string) ([]ParticipantSpec, error) {
	slots, err := o.store.ArenaSlots.List(ctx, storage.Filter{"arena_id": arenaID})
	if err != nil {
		return nil, err
	}
	specs := make([]ParticipantSpec, 0, len(slots))
	for _, slot := range slots {
		specs = append(specs, ParticipantSpec{ParticipantID: slot.ParticipantID, Role: slot.Role})
	}
	return specs, nil
}

// bind checks a spec against the catalog and returns the row to insert.
func (o *Orchestrator) bind(ctx context.Context, user auth.UserID, spec ParticipantSpec) (storage.RunParticipant, error) {
	rp := storage.RunParticipant{Role: strings.TrimSpace(spec.Role)}
	if rp.Role == "" {
		return rp, &storage.ValidationError{Entity: "run participant", Field: "role", Message: "is required"}
	}

	providerID, personaID := spec.ProviderID, spec.PersonaID
	if spec.ParticipantID != "" {
		saved, err := o.store.Participants.Get(ctx, spec.ParticipantID)
		if err != nil {
			return rp, err
		}
		if err := auth.RequireOwner(user, saved.OwnerID); err != nil {
			return rp, err
		}
		rp.ParticipantID = storage.Ptr(saved.ID)
		rp.Settings = saved.Settings
		if providerID == "" {
			providerID = saved.ProviderID
		}
		if personaID == "" {
			personaID = saved.PersonaID
		}
	}
	if spec.Settings != nil {
		rp.Settings = rp.Settings.Merge(*spec.Settings)
	}
	if err := o.store.Validator().Struct(rp.Settings); err != nil {
		return rp, &storage.ValidationError{Entity: "run participant", Field: "settings", Message: err.Error()}
	}

	if providerID == "" {
		return rp, &storage.ValidationError{Entity: "run participant", Field: "provider_id", Message: "is required"}
	}
	prov, err := o.store.Providers.Get(ctx, providerID)
	if err != nil {
		return rp, err
	}
	if !prov.IsShared {
		if err := auth.RequireOwner(user, prov.OwnerID); err != nil {
			return rp, err
		}
	}

	if personaID == "" {
		return rp, &storage.ValidationError{Entity: "run participant", Field: "persona_id", Message: "is required"}
	}
	pers, err := o.store.Personas.Get(ctx, personaID)
	if err != nil {
		return rp, err
	}
	if !auth.CanRead(user, pers.OwnerID) {
		return rp, auth.ErrForbidden
	}

	rp.ProviderID = storage.Ptr(prov.ID)
	rp.PersonaID = storage.Ptr(pers.ID)
	return rp, nil
}

// Execute runs a pending run to a terminal status. It holds the run's lock
// for the whole execution. The returned error explains a failed run; the
// run's status has already been recorded when Execute returns.
func (o *Orchestrator) Execute(ctx context.Context, runID string) (err error) {
	holder := uuid.NewString()
	if err := o.store.AcquireRunLock(ctx, runID, holder); err != nil {
		return err
	}
	log := o.logger.With("run_id", runID)
	defer func() {
		if rerr := o.store.ReleaseRunLock(context.WithoutCancel(ctx), runID, holder); rerr != nil {
			log.Error("failed to release run lock", "error", rerr)
		}
	}()

	run, err := o.tracker.Start(ctx, runID)
	if err != nil {
		return err
	}
	log.Info("run started")
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while executing run: %v", r)
		}
		if err == nil {
			return
		}
		reason := reasonFor(err)
		if ctx.Err() != nil {
			// an interrupted run fails as Internal whatever error the
			// in-flight round surfaced
			reason = ReasonInternal
		}
		if _, ferr := o.tracker.Fail(context.WithoutCancel(ctx), runID, reason); ferr != nil {
			log.Error("failed to record run failure", "reason", reason, "error", ferr)
		}
		log.Warn("run failed", "reason", reason, "error", err, "elapsed", time.Since(started))
	}()

	if err := o.drive(ctx, run); err != nil {
		return err
	}
	if _, err := o.tracker.Complete(ctx, runID); err != nil {
		return err
	}
	log.Info("run completed", "elapsed", time.Since(started))
	return nil
}

func (o *Orchestrator) drive(ctx context.Context, run *storage.Run) error {
	participants, err := o.resolver.Resolve(ctx, run.ID)
	if err != nil {
		return err
	}

	var history []roundRecord
	for _, phase := range Phases {
		if err := o.checkpoint(ctx, run.ID); err != nil {
			return err
		}
		rec, err := o.scheduler.RunRound(ctx, run, phase, participants, history)
		if err != nil {
			return err
		}
		history = append(history, rec)
	}
	if err := o.checkpoint(ctx, run.ID); err != nil {
		return err
	}
	_, err = o.synth.Synthesize(ctx, run, participants, history)
	return err
}

// checkpoint is the only place a run stops between rounds.
func (o *Orchestrator) checkpoint(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	cancelled, err := o.store.CancelRequested(ctx, runID)
	if err != nil {
		return err
	}
	if cancelled {
		return ErrCancelled
	}
	return nil
}

// Launch checks the user may start the run and executes it in the
// background. Use Wait or Close to join it. runID is copied, so callers may
// pass strings backed by a reused request buffer.
func (o *Orchestrator) Launch(ctx context.Context, user auth.UserID, runID string) error {
	runID = strings.Clone(runID)
	run, err := o.store.Runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwner(user, run.OwnerID); err != nil {
		return err
	}
	if run.Status != storage.RunPending {
		return &InvalidTransitionError{RunID: runID, From: run.Status, To: storage.RunRunning}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.Execute(o.baseCtx, runID); err != nil {
			o.logger.Debug("background run ended with error", "run_id", runID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every launched run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close interrupts launched runs and waits for them. Interrupted runs end
// failed with reason Internal.
func (o *Orchestrator) Close() {
	o.stop()
	o.wg.Wait()
}

// GetRunState returns the run with everything recorded so far, including
// partial progress of a failed run.
func (o *Orchestrator) GetRunState(ctx context.Context, user auth.UserID, runID string) (*RunState, error) {
	run, err := o.store.Runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(user, run.OwnerID); err != nil {
		return nil, err
	}

	state := &RunState{Run: *run, Rounds: []RoundState{}}
	state.Participants, err = o.store.ListRunParticipants(ctx, runID)
	if err != nil {
		return nil, err
	}
	rounds, err := o.store.ListRounds(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, r := range rounds {
		msgs, err := o.store.ListRoundMessages(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		state.Rounds = append(state.Rounds, RoundState{Round: r, Messages: msgs})
	}
	fused, err := o.store.GetFusedOutput(ctx, runID)
	switch {
	case err == nil:
		state.FusedOutput = fused
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	return state, nil
}

// ListRuns returns the user's runs, newest first. An empty arenaID lists
// runs of every arena.
func (o *Orchestrator) ListRuns(ctx context.Context, user auth.UserID, arenaID string) ([]storage.Run, error) {
	filter := storage.Filter{"owner_id": string(user)}
	if arenaID != "" {
		filter["arena_id"] = arenaID
	}
	return o.store.Runs.List(ctx, filter)
}

// CancelRun fails a pending run at once. A running run is flagged and stops
// at its next round boundary; invocations in flight finish first.
func (o *Orchestrator) CancelRun(ctx context.Context, user auth.UserID, runID string) error {
	run, err := o.store.Runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwner(user, run.OwnerID); err != nil {
		return err
	}

	// only a pending run fails here; Fail would also accept running
	_, err = o.tracker.transition(ctx, runID, []storage.RunStatus{storage.RunPending}, storage.RunFailed, string(ReasonCancelled))
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		if err == nil {
			o.logger.Info("pending run cancelled", "run_id", runID)
		}
		return err
	}
	if invalid.From != storage.RunRunning {
		return &InvalidTransitionError{RunID: runID, From: invalid.From, To: storage.RunFailed}
	}

	flagged, err := o.store.RequestCancel(ctx, runID)
	if err != nil {
		return err
	}
	if !flagged {
		// finished between the two updates
		current, err := o.store.Runs.Get(ctx, runID)
		if err != nil {
			return err
		}
		return &InvalidTransitionError{RunID: runID, From: current.Status, To: storage.RunFailed}
	}
	o.logger.Info("cancellation requested", "run_id", runID)
	return nil
}

// RecoverInterrupted fails runs left running by a previous process and
// clears stale locks. Call it once at startup before launching runs.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) (int, error) {
	cleared, err := o.store.ClearRunLocks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear run locks: %w", err)
	}
	running, err := o.store.Runs.List(ctx, storage.Filter{"status": string(storage.RunRunning)})
	if err != nil {
		return 0, err
	}
	for _, run := range running {
		if _, err := o.tracker.Fail(ctx, run.ID, ReasonInternal); err != nil {
			return 0, err
		}
	}
	if cleared > 0 || len(running) > 0 {
		o.logger.Warn("recovered interrupted runs", "runs", len(running), "locks", cleared)
	}
	return len(running), nil
}
