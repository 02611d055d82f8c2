package storage

import "time"

// RunStatus is the lifecycle state of a run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Phase is the stage a round belongs to
type Phase string

const (
	PhaseInitial  Phase = "initial"
	PhaseCritique Phase = "critique"
	PhaseDefense  Phase = "defense"
	PhaseFusion   Phase = "fusion"
)

// RoundStatus is set to completed or failed once a round's barrier clears
type RoundStatus string

const (
	RoundOpen      RoundStatus = "open"
	RoundCompleted RoundStatus = "completed"
	RoundFailed    RoundStatus = "failed"
)

// MessageRole is the speaker label attached to a message
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleAssistant MessageRole = "assistant"
	RoleUser      MessageRole = "user"
	RoleCritic    MessageRole = "critic"
	RoleJudge     MessageRole = "judge"
)

// Debate roles offered by the arena builder. Any other non-empty role is
// accepted as a custom role.
const (
	DebateRed    = "Red"
	DebateBlue   = "Blue"
	DebatePurple = "Purple"
	DebateJudge  = "Judge"
)

type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email" validate:"required,email"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    string    `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Provider is a model endpoint. KeyAlias names the environment variable that
// holds the API key; the key itself is never stored.
type Provider struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id" validate:"required"`
	Name      string    `json:"name" db:"name" validate:"required"`
	BaseURL   string    `json:"api_base_url" db:"api_base_url" validate:"omitempty,url"`
	KeyAlias  string    `json:"api_key_alias" db:"api_key_alias" validate:"omitempty,key_alias"`
	IsShared  bool      `json:"is_shared" db:"is_shared"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Persona is a reusable system prompt. A nil OwnerID marks a shared persona.
type Persona struct {
	ID           string    `json:"id" db:"id"`
	OwnerID      *string   `json:"owner_id" db:"owner_id"`
	Name         string    `json:"name" db:"name" validate:"required"`
	Description  string    `json:"description" db:"description"`
	SystemPrompt string    `json:"system_prompt" db:"system_prompt"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Participant is a saved (provider, persona, settings) bundle
type Participant struct {
	ID         string    `json:"id" db:"id"`
	OwnerID    string    `json:"owner_id" db:"owner_id" validate:"required"`
	ProviderID string    `json:"provider_id" db:"provider_id" validate:"required"`
	PersonaID  string    `json:"persona_id" db:"persona_id" validate:"required"`
	Settings   Settings  `json:"settings" db:"settings"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Arena struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id" validate:"required"`
	Title       string    `json:"title" db:"title" validate:"required"`
	Description string    `json:"description" db:"description"`
	Temperature float64   `json:"temperature" db:"temperature" validate:"gte=0,lte=2"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ArenaSlot binds a saved participant to a debate role within an arena
type ArenaSlot struct {
	ID            string    `json:"id" db:"id"`
	ArenaID       string    `json:"arena_id" db:"arena_id" validate:"required"`
	Role          string    `json:"role" db:"role" validate:"required"`
	ParticipantID string    `json:"participant_id" db:"participant_id" validate:"required"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Run struct {
	ID              string     `json:"id" db:"id"`
	ArenaID         string     `json:"arena_id" db:"arena_id" validate:"required"`
	OwnerID         string     `json:"owner_id" db:"owner_id" validate:"required"`
	InputPrompt     string     `json:"input_prompt" db:"input_prompt" validate:"required"`
	Status          RunStatus  `json:"status" db:"status" validate:"oneof=pending running completed failed"`
	FailureReason   string     `json:"failure_reason,omitempty" db:"failure_reason"`
	CancelRequested bool       `json:"cancel_requested" db:"cancel_requested"`
	Temperature     float64    `json:"temperature" db:"temperature" validate:"gte=0,lte=2"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	CompletedAt     *time.Time `json:"completed_at" db:"completed_at"`
}

// RunParticipant is a participant bound to one run with a debate role.
// Provider and persona become nil when the referenced row is deleted.
type RunParticipant struct {
	ID            string    `json:"id" db:"id"`
	RunID         string    `json:"run_id" db:"run_id" validate:"required"`
	ParticipantID *string   `json:"participant_id,omitempty" db:"participant_id"`
	ProviderID    *string   `json:"provider_id" db:"provider_id" validate:"required"`
	PersonaID     *string   `json:"persona_id" db:"persona_id" validate:"required"`
	Role          string    `json:"role" db:"role" validate:"required"`
	Settings      Settings  `json:"settings" db:"settings"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Round struct {
	ID          string      `json:"id" db:"id"`
	RunID       string      `json:"run_id" db:"run_id" validate:"required"`
	RoundNumber int         `json:"round_number" db:"round_number" validate:"gte=1"`
	Phase       Phase       `json:"phase" db:"phase" validate:"oneof=initial critique defense fusion"`
	Status      RoundStatus `json:"status" db:"status" validate:"oneof=open completed failed"`
	Metadata    JSONMap     `json:"metadata" db:"metadata"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

type Message struct {
	ID            string      `json:"id" db:"id"`
	RoundID       string      `json:"round_id" db:"round_id" validate:"required"`
	ParticipantID *string     `json:"participant_id" db:"participant_id"`
	Role          MessageRole `json:"role" db:"role" validate:"oneof=system assistant user critic judge"`
	Content       string      `json:"content" db:"content"`
	Metadata      JSONMap     `json:"metadata" db:"metadata"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

type FusedOutput struct {
	ID               string    `json:"id" db:"id"`
	RunID            string    `json:"run_id" db:"run_id" validate:"required"`
	FusedAnswer      string    `json:"fused_answer" db:"fused_answer" validate:"required"`
	ReasoningSummary string    `json:"reasoning_summary" db:"reasoning_summary"`
	ExportJSON       JSONMap   `json:"export_json" db:"export_json"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
