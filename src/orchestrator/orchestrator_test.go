package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/invoke"
	"github.com/elee1766/gauntletfuse/src/storage"
)

const alice auth.UserID = "alice"

type fixture struct {
	store    *storage.Store
	orch     *Orchestrator
	events   *Hub
	arena    *storage.Arena
	provider *storage.Provider
	red      *storage.Persona
	blue     *storage.Persona
	judge    *storage.Persona

	mu     sync.Mutex
	sleeps []time.Duration
}

func newFixture(t *testing.T, inv invoke.Invoker) *fixture {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{store: storage.NewStore(db), events: NewHub()}
	ctx := context.Background()

	f.provider = &storage.Provider{OwnerID: string(alice), Name: "openrouter", KeyAlias: "OPENROUTER_API_KEY"}
	require.NoError(t, f.store.Providers.Create(ctx, f.provider))
	f.red = &storage.Persona{Name: "Logic Auditor", SystemPrompt: "persona:red"}
	f.blue = &storage.Persona{Name: "Red Team", SystemPrompt: "persona:blue"}
	f.judge = &storage.Persona{Name: "Arbiter", SystemPrompt: "persona:judge"}
	for _, p := range []*storage.Persona{f.red, f.blue, f.judge} {
		require.NoError(t, f.store.Personas.Create(ctx, p))
	}
	f.arena = &storage.Arena{OwnerID: string(alice), Title: "Debate", Temperature: 0.3}
	require.NoError(t, f.store.Arenas.Create(ctx, f.arena))

	f.orch = New(Config{
		Store:      f.store,
		Invoker:    inv,
		Events:     f.events,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			f.mu.Lock()
			f.sleeps = append(f.sleeps, d)
			f.mu.Unlock()
			return ctx.Err()
		},
	})
	t.Cleanup(f.orch.Close)
	return f
}

func (f *fixture) spec(role string, p *storage.Persona) ParticipantSpec {
	return ParticipantSpec{ProviderID: f.provider.ID, PersonaID: p.ID, Role: role}
}

func (f *fixture) createRun(t *testing.T, specs ...ParticipantSpec) *storage.Run {
	t.Helper()
	run, err := f.orch.CreateRun(context.Background(), alice, f.arena.ID, "Explain X", specs)
	require.NoError(t, err)
	return run
}

func (f *fixture) state(t *testing.T, runID string) *RunState {
	t.Helper()
	st, err := f.orch.GetRunState(context.Background(), alice, runID)
	require.NoError(t, err)
	return st
}

// phaseOf guesses the phase a prompt was built for.
func phaseOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "final answer of a structured"):
		return "synthesis"
	case strings.Contains(prompt, "Debate so far:"):
		return "fusion"
	case strings.Contains(prompt, "Previous round (critique)"):
		return "defense"
	case strings.Contains(prompt, "Previous round (initial)"):
		return "critique"
	}
	return "initial"
}

// recorder answers every prompt and remembers what it was asked.
type recorder struct {
	mu    sync.Mutex
	calls []invoke.Request
	fn    func(req invoke.Request) (string, error)
}

func (r *recorder) Invoke(ctx context.Context, req invoke.Request) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(req)
	}
	return "From " + req.SystemText + ": the answer to X is Y in every case.", nil
}

func (r *recorder) count(phase string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if phaseOf(c.Prompt) == phase {
			n++
		}
	}
	return n
}

func TestExecuteFullDebate(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, rec)
	run := f.createRun(t, f.spec(storage.DebateRed, f.red), f.spec(storage.DebateBlue, f.blue))

	events, unsubscribe := f.events.Subscribe(run.ID)
	defer unsubscribe()

	require.NoError(t, f.orch.Execute(context.Background(), run.ID))

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunCompleted, st.Run.Status)
	assert.NotNil(t, st.Run.CompletedAt)
	assert.Empty(t, st.Run.FailureReason)

	require.Len(t, st.Rounds, 4)
	wantRoles := []storage.MessageRole{storage.RoleAssistant, storage.RoleCritic, storage.RoleAssistant, storage.RoleJudge}
	for i, r := range st.Rounds {
		assert.Equal(t, i+1, r.RoundNumber)
		assert.Equal(t, Phases[i], r.Phase)
		assert.Equal(t, storage.RoundCompleted, r.Status)
		assert.InDelta(t, 0.3, r.Metadata["temperature"], 1e-9)
		require.Len(t, r.Messages, 2, "round %d", r.RoundNumber)
		for _, m := range r.Messages {
			assert.Equal(t, wantRoles[i], m.Role)
			assert.NotNil(t, m.ParticipantID)
			assert.Equal(t, float64(1), m.Metadata[metaAttempts])
		}
	}

	require.NotNil(t, st.FusedOutput)
	assert.Contains(t, st.FusedOutput.FusedAnswer, "From persona:red")
	assert.Contains(t, st.FusedOutput.ReasoningSummary, "Consensus:")
	assert.Equal(t, run.ID, st.FusedOutput.ExportJSON["run"].(map[string]any)["id"])

	// 2 participants x 4 rounds, plus the synthesis call
	assert.Len(t, rec.calls, 9)
	assert.Equal(t, 1, rec.count("synthesis"))

	// critique prompts carry the initial round's transcript
	for _, c := range rec.calls {
		if phaseOf(c.Prompt) == "critique" {
			assert.Contains(t, c.Prompt, "[Red/Logic Auditor]: From persona:red")
			assert.Contains(t, c.Prompt, "[Blue/Red Team]: From persona:blue")
			assert.InDelta(t, 0.3, *c.Settings.Temperature, 1e-9)
		}
	}

	var last Event
	for len(events) > 0 {
		last = <-events
	}
	assert.True(t, last.Terminal())
	assert.Equal(t, storage.RunCompleted, last.Status)
}

func TestExecuteParticipantAlwaysTimesOut(t *testing.T) {
	rec := &recorder{fn: func(req invoke.Request) (string, error) {
		return "", &invoke.Error{Kind: invoke.KindTimeout, Provider: req.Provider.Name, Err: context.DeadlineExceeded}
	}}
	f := newFixture(t, rec)
	run := f.createRun(t, f.spec(storage.DebateRed, f.red))

	err := f.orch.Execute(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrRoundFailed)

	assert.Len(t, rec.calls, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunFailed, st.Run.Status)
	assert.Equal(t, string(ReasonRoundFailed), st.Run.FailureReason)
	assert.NotNil(t, st.Run.CompletedAt)

	require.Len(t, st.Rounds, 1)
	assert.Equal(t, storage.RoundFailed, st.Rounds[0].Status)
	require.Len(t, st.Rounds[0].Messages, 1)
	msg := st.Rounds[0].Messages[0]
	assert.Equal(t, storage.RoleSystem, msg.Role)
	assert.Contains(t, msg.Content, "Timeout")
	assert.Equal(t, float64(3), msg.Metadata[metaAttempts])
	assert.Nil(t, st.FusedOutput)
}

func TestExecutePartialFailure(t *testing.T) {
	rec := &recorder{}
	rec.fn = func(req invoke.Request) (string, error) {
		if req.SystemText == "persona:blue" {
			return "", &invoke.Error{Kind: invoke.KindAuthFailed, Provider: req.Provider.Name, Err: errors.New("bad key")}
		}
		return "Red says the answer is Y.", nil
	}
	f := newFixture(t, rec)
	run := f.createRun(t, f.spec(storage.DebateRed, f.red), f.spec(storage.DebateBlue, f.blue))

	require.NoError(t, f.orch.Execute(context.Background(), run.ID))

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunCompleted, st.Run.Status)
	require.Len(t, st.Rounds, 4)
	for _, r := range st.Rounds {
		require.Len(t, r.Messages, 2)
		roles := []storage.MessageRole{r.Messages[0].Role, r.Messages[1].Role}
		assert.Contains(t, roles, storage.RoleSystem)
	}
	// auth failures are not retried
	assert.Empty(t, f.sleeps)
	// the failure notice stays out of later prompts
	for _, c := range rec.calls {
		assert.NotContains(t, c.Prompt, "bad key")
	}
}

func TestCancelBetweenRounds(t *testing.T) {
	var f *fixture
	var runID string
	var once sync.Once
	rec := &recorder{}
	rec.fn = func(req invoke.Request) (string, error) {
		if phaseOf(req.Prompt) == "critique" {
			once.Do(func() {
				assert.NoError(t, f.orch.CancelRun(context.Background(), alice, runID))
			})
		}
		return "A reply.", nil
	}
	f = newFixture(t, rec)
	run := f.createRun(t, f.spec(storage.DebateRed, f.red), f.spec(storage.DebateBlue, f.blue))
	runID = run.ID

	err := f.orch.Execute(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrCancelled)

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunFailed, st.Run.Status)
	assert.Equal(t, string(ReasonCancelled), st.Run.FailureReason)

	// the critique round finished; the defense round never started
	require.Len(t, st.Rounds, 2)
	assert.Equal(t, storage.RoundCompleted, st.Rounds[1].Status)
	assert.Len(t, st.Rounds[1].Messages, 2)
	assert.Zero(t, rec.count("defense"))
	assert.Nil(t, st.FusedOutput)
}

func TestCancelRun(t *testing.T) {
	f := newFixture(t, &recorder{})
	ctx := context.Background()

	t.Run("pending fails immediately", func(t *testing.T) {
		run := f.createRun(t, f.spec(storage.DebateRed, f.red))
		require.NoError(t, f.orch.CancelRun(ctx, alice, run.ID))

		st := f.state(t, run.ID)
		assert.Equal(t, storage.RunFailed, st.Run.Status)
		assert.Equal(t, string(ReasonCancelled), st.Run.FailureReason)

		var invalid *InvalidTransitionError
		assert.ErrorAs(t, f.orch.Execute(ctx, run.ID), &invalid)
		assert.ErrorAs(t, f.orch.CancelRun(ctx, alice, run.ID), &invalid)
		assert.Equal(t, storage.RunFailed, invalid.From)
	})

	t.Run("completed run rejects", func(t *testing.T) {
		run := f.createRun(t, f.spec(storage.DebateRed, f.red))
		require.NoError(t, f.orch.Execute(ctx, run.ID))

		var invalid *InvalidTransitionError
		require.ErrorAs(t, f.orch.CancelRun(ctx, alice, run.ID), &invalid)
		assert.Equal(t, storage.RunCompleted, invalid.From)
	})

	t.Run("other user", func(t *testing.T) {
		run := f.createRun(t, f.spec(storage.DebateRed, f.red))
		assert.ErrorIs(t, f.orch.CancelRun(ctx, "mallory", run.ID), auth.ErrForbidden)
	})

	t.Run("missing run", func(t *testing.T) {
		assert.ErrorIs(t, f.orch.CancelRun(ctx, alice, "missing"), storage.ErrNotFound)
	})
}

func TestExecuteFusionFailed(t *testing.T) {
	rec := &recorder{}
	rec.fn = func(req invoke.Request) (string, error) {
		if phaseOf(req.Prompt) == "synthesis" {
			return "", &invoke.Error{Kind: invoke.KindRateLimited, Provider: req.Provider.Name, Err: errors.New("429")}
		}
		return "Fine.", nil
	}
	f := newFixture(t, rec)
	run := f.createRun(t, f.spec(storage.DebateRed, f.red), f.spec(storage.DebateJudge, f.judge))

	err := f.orch.Execute(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrFusionFailed)
	assert.Equal(t, 3, rec.count("synthesis"))

	st := f.state(t, run.ID)
	assert.Equal(t, string(ReasonFusionFailed), st.Run.FailureReason)
	assert.Len(t, st.Rounds, 4)
	assert.Nil(t, st.FusedOutput)

	// the judge synthesizes
	for _, c := range rec.calls {
		if phaseOf(c.Prompt) == "synthesis" {
			assert.Equal(t, "persona:judge", c.SystemText)
		}
	}
}

func TestExecuteDanglingPersona(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, rec)
	run := f.createRun(t, f.spec(storage.DebateRed, f.red), f.spec(storage.DebateBlue, f.blue))

	require.NoError(t, f.store.Personas.Delete(context.Background(), f.blue.ID))

	err := f.orch.Execute(context.Background(), run.ID)
	var dangling *DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "persona", dangling.Field)

	st := f.state(t, run.ID)
	assert.Equal(t, string(ReasonDanglingReference), st.Run.FailureReason)
	assert.Empty(t, st.Rounds)
	assert.Empty(t, rec.calls)
}

func TestExecutePanicFailsRun(t *testing.T) {
	f := newFixture(t, invoke.InvokerFunc(func(context.Context, invoke.Request) (string, error) {
		panic("provider exploded")
	}))
	run := f.createRun(t, f.spec(storage.DebateRed, f.red))

	err := f.orch.Execute(context.Background(), run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider exploded")

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunFailed, st.Run.Status)
	assert.Equal(t, string(ReasonInternal), st.Run.FailureReason)

	// the lock was released
	require.NoError(t, f.store.AcquireRunLock(context.Background(), run.ID, "after"))
}

func TestExecuteLocked(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, rec)
	run := f.createRun(t, f.spec(storage.DebateRed, f.red))

	require.NoError(t, f.store.AcquireRunLock(context.Background(), run.ID, "other-task"))
	assert.ErrorIs(t, f.orch.Execute(context.Background(), run.ID), storage.ErrRunLocked)

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunPending, st.Run.Status)
	assert.Empty(t, rec.calls)
}

func TestCreateRun(t *testing.T) {
	f := newFixture(t, &recorder{})
	ctx := context.Background()

	t.Run("arena slots by default", func(t *testing.T) {
		saved := &storage.Participant{OwnerID: string(alice), ProviderID: f.provider.ID, PersonaID: f.red.ID,
			Settings: storage.Settings{Model: "openai/gpt-4o", Temperature: storage.Ptr(0.9)}}
		require.NoError(t, f.store.Participants.Create(ctx, saved))
		arena := &storage.Arena{OwnerID: string(alice), Title: "Slots", Temperature: 0.5}
		require.NoError(t, f.store.Arenas.Create(ctx, arena))
		require.NoError(t, f.store.ArenaSlots.Create(ctx, &storage.ArenaSlot{ArenaID: arena.ID, Role: storage.DebatePurple, ParticipantID: saved.ID}))

		run, err := f.orch.CreateRun(ctx, alice, arena.ID, "Explain X", nil)
		require.NoError(t, err)
		assert.Equal(t, storage.RunPending, run.Status)
		assert.InDelta(t, 0.5, run.Temperature, 1e-9)

		parts, err := f.store.ListRunParticipants(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Equal(t, storage.DebatePurple, parts[0].Role)
		assert.Equal(t, saved.ID, *parts[0].ParticipantID)
		assert.Equal(t, "openai/gpt-4o", parts[0].Settings.Model)
	})

	t.Run("spec settings override", func(t *testing.T) {
		spec := f.spec(storage.DebateRed, f.red)
		spec.Settings = &storage.Settings{MaxTokens: storage.Ptr(100)}
		run := f.createRun(t, spec)
		parts, err := f.store.ListRunParticipants(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Equal(t, 100, *parts[0].Settings.MaxTokens)
	})

	tests := []struct {
		name    string
		user    auth.UserID
		arenaID string
		prompt  string
		specs   []ParticipantSpec
		check   func(t *testing.T, err error)
	}{
		{
			name:    "empty prompt",
			user:    alice,
			arenaID: f.arena.ID,
			prompt:  "   ",
			specs:   []ParticipantSpec{f.spec(storage.DebateRed, f.red)},
			check:   func(t *testing.T, err error) { assert.True(t, storage.IsValidation(err)) },
		},
		{
			name:    "missing arena",
			user:    alice,
			arenaID: "missing",
			prompt:  "Explain X",
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, storage.ErrNotFound) },
		},
		{
			name:    "arena of another user",
			user:    "mallory",
			arenaID: f.arena.ID,
			prompt:  "Explain X",
			specs:   []ParticipantSpec{f.spec(storage.DebateRed, f.red)},
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, auth.ErrForbidden) },
		},
		{
			name:    "no participants",
			user:    alice,
			arenaID: f.arena.ID,
			prompt:  "Explain X",
			check:   func(t *testing.T, err error) { assert.True(t, storage.IsValidation(err)) },
		},
		{
			name:    "missing role",
			user:    alice,
			arenaID: f.arena.ID,
			prompt:  "Explain X",
			specs:   []ParticipantSpec{f.spec("", f.red)},
			check:   func(t *testing.T, err error) { assert.True(t, storage.IsValidation(err)) },
		},
		{
			name:    "unknown persona",
			user:    alice,
			arenaID: f.arena.ID,
			prompt:  "Explain X",
			specs:   []ParticipantSpec{{ProviderID: f.provider.ID, PersonaID: "ghost", Role: "Red"}},
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, storage.ErrNotFound) },
		},
		{
			name:    "out of range settings",
			user:    alice,
			arenaID: f.arena.ID,
			prompt:  "Explain X",
			specs: []ParticipantSpec{{ProviderID: f.provider.ID, PersonaID: f.red.ID, Role: "Red",
				Settings: &storage.Settings{Temperature: storage.Ptr(5.0)}}},
			check: func(t *testing.T, err error) { assert.True(t, storage.IsValidation(err)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.CreateRun(ctx, tt.user, tt.arenaID, tt.prompt, tt.specs)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	t.Run("private persona of another user", func(t *testing.T) {
		private := &storage.Persona{OwnerID: storage.Ptr("mallory"), Name: "Secret"}
		require.NoError(t, f.store.Personas.Create(ctx, private))
		_, err := f.orch.CreateRun(ctx, alice, f.arena.ID, "Explain X", []ParticipantSpec{f.spec("Red", private)})
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})
}

func TestLaunchAndWait(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, invoke.InvokerFunc(func(context.Context, invoke.Request) (string, error) {
		calls.Add(1)
		return "ok then", nil
	}))
	ctx := context.Background()
	run := f.createRun(t, f.spec(storage.DebateRed, f.red))

	assert.ErrorIs(t, f.orch.Launch(ctx, "mallory", run.ID), auth.ErrForbidden)
	require.NoError(t, f.orch.Launch(ctx, alice, run.ID))
	f.orch.Wait()

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunCompleted, st.Run.Status)
	assert.Equal(t, int32(5), calls.Load())

	var invalid *InvalidTransitionError
	assert.ErrorAs(t, f.orch.Launch(ctx, alice, run.ID), &invalid)
}

func TestCloseInterruptsLaunchedRun(t *testing.T) {
	entered := make(chan struct{}, 8)
	f := newFixture(t, invoke.InvokerFunc(func(ctx context.Context, req invoke.Request) (string, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	}))
	run := f.createRun(t, f.spec(storage.DebateRed, f.red), f.spec(storage.DebateBlue, f.blue))

	require.NoError(t, f.orch.Launch(context.Background(), alice, run.ID))
	<-entered
	f.orch.Close()

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunFailed, st.Run.Status)
	assert.Equal(t, string(ReasonInternal), st.Run.FailureReason)
	assert.NotNil(t, st.Run.CompletedAt)
}

func TestGetRunStateAndList(t *testing.T) {
	f := newFixture(t, &recorder{})
	ctx := context.Background()
	run := f.createRun(t, f.spec(storage.DebateRed, f.red))

	st := f.state(t, run.ID)
	assert.Equal(t, storage.RunPending, st.Run.Status)
	assert.Empty(t, st.Rounds)
	assert.Nil(t, st.FusedOutput)
	assert.Len(t, st.Participants, 1)

	_, err := f.orch.GetRunState(ctx, "mallory", run.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	_, err = f.orch.GetRunState(ctx, alice, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	runs, err := f.orch.ListRuns(ctx, alice, f.arena.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	none, err := f.orch.ListRuns(ctx, "mallory", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecoverInterrupted(t *testing.T) {
	f := newFixture(t, &recorder{})
	ctx := context.Background()
	stuck := f.createRun(t, f.spec(storage.DebateRed, f.red))
	waiting := f.createRun(t, f.spec(storage.DebateRed, f.red))

	_, err := f.store.TransitionRun(ctx, stuck.ID, []storage.RunStatus{storage.RunPending}, storage.RunRunning, "")
	require.NoError(t, err)
	require.NoError(t, f.store.AcquireRunLock(ctx, stuck.ID, "dead-process"))

	n, err := f.orch.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, string(ReasonInternal), f.state(t, stuck.ID).Run.FailureReason)
	assert.Equal(t, storage.RunPending, f.state(t, waiting.ID).Run.Status)
	assert.NoError(t, f.store.AcquireRunLock(ctx, stuck.ID, "fresh"))
}
