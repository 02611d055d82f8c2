package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gauntletfuse/src/storage"
)

func TestResolve(t *testing.T) {
	f := newFixture(t, &recorder{})
	ctx := context.Background()
	r := NewResolver(f.store)

	run := f.createRun(t, f.spec(storage.DebateRed, f.red), f.spec(storage.DebateBlue, f.blue), f.spec(storage.DebateJudge, f.judge))

	parts, err := r.Resolve(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, "Red/Logic Auditor", parts[0].Label())
	assert.Equal(t, "Blue/Red Team", parts[1].Label())
	assert.Equal(t, "Judge/Arbiter", parts[2].Label())
	assert.Equal(t, f.provider.ID, parts[0].Provider.ID)
	assert.Equal(t, "persona:blue", parts[1].Persona.SystemPrompt)

	again, err := r.Resolve(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, parts, again)

	assert.Equal(t, "Judge/Arbiter", pickSynthesizer(parts).Label())
	assert.Equal(t, "Red/Logic Auditor", pickSynthesizer(parts[:2]).Label())
}

func TestResolveFailures(t *testing.T) {
	f := newFixture(t, &recorder{})
	ctx := context.Background()
	r := NewResolver(f.store)

	t.Run("missing run", func(t *testing.T) {
		_, err := r.Resolve(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("no participants", func(t *testing.T) {
		run := &storage.Run{ArenaID: f.arena.ID, OwnerID: string(alice), InputPrompt: "x", Status: storage.RunPending, Temperature: 0.3}
		require.NoError(t, f.store.Runs.Create(ctx, run))

		_, err := r.Resolve(ctx, run.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		var none *NoParticipantsError
		assert.ErrorAs(t, err, &none)
	})

	t.Run("deleted provider", func(t *testing.T) {
		prov := &storage.Provider{OwnerID: string(alice), Name: "temporary"}
		require.NoError(t, f.store.Providers.Create(ctx, prov))
		run := f.createRun(t, ParticipantSpec{ProviderID: prov.ID, PersonaID: f.red.ID, Role: "Red"})
		require.NoError(t, f.store.Providers.Delete(ctx, prov.ID))

		_, err := r.Resolve(ctx, run.ID)
		var dangling *DanglingReferenceError
		require.ErrorAs(t, err, &dangling)
		assert.Equal(t, "provider", dangling.Field)
	})
}
