package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Store groups one repository per entity over a shared connection.
type Store struct {
	conn     ExecQuerier
	sqlDB    *sql.DB
	validate *validator.Validate

	Users           *Repository[User]
	Providers       *Repository[Provider]
	Personas        *Repository[Persona]
	Participants    *Repository[Participant]
	Arenas          *Repository[Arena]
	ArenaSlots      *Repository[ArenaSlot]
	Runs            *Repository[Run]
	RunParticipants *Repository[RunParticipant]
	Rounds          *Repository[Round]
	Messages        *Repository[Message]
	FusedOutputs    *Repository[FusedOutput]
}

var (
	usersTable = Table{Entity: "user", Name: "users", Mutable: []string{"name"}}

	providersTable = Table{
		Entity:  "provider",
		Name:    "model_providers",
		Mutable: []string{"name", "api_base_url", "api_key_alias", "is_shared"},
	}

	personasTable = Table{
		Entity:  "persona",
		Name:    "personas",
		Mutable: []string{"name", "description", "system_prompt"},
	}

	participantsTable = Table{
		Entity:  "participant",
		Name:    "user_participants",
		Mutable: []string{"provider_id", "persona_id", "settings"},
	}

	arenasTable = Table{
		Entity:  "arena",
		Name:    "arenas",
		Mutable: []string{"title", "description", "temperature"},
	}

	arenaSlotsTable = Table{
		Entity:  "arena participant",
		Name:    "arena_participants",
		OrderBy: "created_at ASC, rowid ASC",
		Mutable: []string{"role", "participant_id"},
	}

	// status, completed_at and cancel_requested only move through the
	// conditional updates in runs.go
	runsTable = Table{
		Entity:      "run",
		Name:        "arena_runs",
		DeleteGuard: "status <> 'running'",
	}

	runParticipantsTable = Table{
		Entity:  "run participant",
		Name:    "arena_run_participants",
		OrderBy: "created_at ASC, rowid ASC",
	}

	roundsTable = Table{
		Entity:  "round",
		Name:    "arena_run_rounds",
		OrderBy: "round_number ASC",
	}

	messagesTable = Table{
		Entity:  "message",
		Name:    "arena_run_messages",
		OrderBy: "created_at ASC, rowid ASC",
	}

	fusedOutputsTable = Table{
		Entity: "fused output",
		Name:   "arena_run_fused_outputs",
	}
)

// NewStore builds the repositories on top of an opened database.
func NewStore(db *DB) *Store {
	s := newStore(db.DB(), NewValidator())
	s.sqlDB = db.DB()
	return s
}

func newStore(conn ExecQuerier, v *validator.Validate) *Store {
	return &Store{
		conn:            conn,
		validate:        v,
		Users:           NewRepository[User](conn, usersTable, v),
		Providers:       NewRepository[Provider](conn, providersTable, v),
		Personas:        NewRepository[Persona](conn, personasTable, v),
		Participants:    NewRepository[Participant](conn, participantsTable, v),
		Arenas:          NewRepository[Arena](conn, arenasTable, v),
		ArenaSlots:      NewRepository[ArenaSlot](conn, arenaSlotsTable, v),
		Runs:            NewRepository[Run](conn, runsTable, v),
		RunParticipants: NewRepository[RunParticipant](conn, runParticipantsTable, v),
		Rounds:          NewRepository[Round](conn, roundsTable, v),
		Messages:        NewRepository[Message](conn, messagesTable, v),
		FusedOutputs:    NewRepository[FusedOutput](conn, fusedOutputsTable, v),
	}
}

// Validator returns the validator shared by every repository.
func (s *Store) Validator() *validator.Validate {
	return s.validate
}

// WithTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. fn must
// only use the store it is handed; the database has one connection and the
// outer store would block until the transaction ends.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.sqlDB == nil {
		// already inside a transaction
		return fn(s)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(newStore(tx, s.validate)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
