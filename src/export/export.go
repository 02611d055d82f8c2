// Package export builds the self-contained JSON document of a run and
// writes it to disk.
package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/elee1766/gauntletfuse/src/fusion"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// Version is bumped when the document shape changes incompatibly.
const Version = 1

// Document is the exported form of a run.
type Document struct {
	Version      int           `json:"version" required:"true"`
	ExportedAt   time.Time     `json:"exported_at" required:"true"`
	Run          Run           `json:"run" required:"true"`
	Participants []Participant `json:"participants" required:"true"`
	Rounds       []Round       `json:"rounds" required:"true"`
	Fusion       *Fusion       `json:"fusion,omitempty"`
}

type Run struct {
	ID            string     `json:"id" required:"true"`
	ArenaID       string     `json:"arena_id" required:"true"`
	InputPrompt   string     `json:"input_prompt" required:"true"`
	Status        string     `json:"status" enum:"pending,running,completed,failed" required:"true"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Temperature   float64    `json:"temperature" minimum:"0" maximum:"2"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type Participant struct {
	ID         string         `json:"id" required:"true"`
	Role       string         `json:"role" required:"true"`
	ProviderID *string        `json:"provider_id"`
	PersonaID  *string        `json:"persona_id"`
	Settings   map[string]any `json:"settings,omitempty"`
}

type Round struct {
	Number   int            `json:"number" minimum:"1" required:"true"`
	Phase    string         `json:"phase" enum:"initial,critique,defense,fusion" required:"true"`
	Status   string         `json:"status" enum:"open,completed,failed" required:"true"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Messages []Message      `json:"messages" required:"true"`
}

type Message struct {
	Speaker       string         `json:"speaker"`
	Role          string         `json:"role" enum:"system,assistant,user,critic,judge" required:"true"`
	ParticipantID *string        `json:"participant_id"`
	Content       string         `json:"content"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Fusion is the synthesis result.
type Fusion struct {
	Answer           string         `json:"answer" required:"true"`
	ReasoningSummary string         `json:"reasoning_summary"`
	Synthesizer      string         `json:"synthesizer,omitempty"`
	Consensus        []fusion.Claim `json:"consensus"`
	Contention       []fusion.Claim `json:"contention"`
}

// RoundInput is a stored round and its messages.
type RoundInput struct {
	Round    storage.Round
	Messages []storage.Message
}

// Build assembles a document from stored rows. fused may be nil for runs
// that never reached synthesis.
func Build(run storage.Run, participants []storage.RunParticipant, rounds []RoundInput, fused *Fusion, now time.Time) *Document {
	doc := &Document{
		Version:    Version,
		ExportedAt: now.UTC(),
		Run: Run{
			ID:            run.ID,
			ArenaID:       run.ArenaID,
			InputPrompt:   run.InputPrompt,
			Status:        string(run.Status),
			FailureReason: run.FailureReason,
			Temperature:   run.Temperature,
			CreatedAt:     run.CreatedAt,
			CompletedAt:   run.CompletedAt,
		},
		Participants: make([]Participant, 0, len(participants)),
		Rounds:       make([]Round, 0, len(rounds)),
		Fusion:       fused,
	}
	for _, p := range participants {
		doc.Participants = append(doc.Participants, Participant{
			ID:         p.ID,
			Role:       p.Role,
			ProviderID: p.ProviderID,
			PersonaID:  p.PersonaID,
			Settings:   settingsMap(p.Settings),
		})
	}
	for _, r := range rounds {
		out := Round{
			Number:   r.Round.RoundNumber,
			Phase:    string(r.Round.Phase),
			Status:   string(r.Round.Status),
			Metadata: r.Round.Metadata,
			Messages: make([]Message, 0, len(r.Messages)),
		}
		for _, m := range r.Messages {
			speaker, _ := m.Metadata["speaker"].(string)
			out.Messages = append(out.Messages, Message{
				Speaker:       speaker,
				Role:          string(m.Role),
				ParticipantID: m.ParticipantID,
				Content:       m.Content,
				Metadata:      m.Metadata,
				CreatedAt:     m.CreatedAt,
			})
		}
		doc.Rounds = append(doc.Rounds, out)
	}
	return doc
}

func settingsMap(s storage.Settings) map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

// Map converts the document to the generic form stored in export_json.
func (d *Document) Map() (storage.JSONMap, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	var m storage.JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	return m, nil
}

// FromMap decodes a document stored in export_json.
func FromMap(m storage.JSONMap) (*Document, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	return &doc, nil
}

// Writer writes documents as indented JSON files under a directory.
type Writer struct {
	fs  afero.Fs
	dir string
}

// NewWriter creates a writer rooted at dir on fs.
func NewWriter(fs afero.Fs, dir string) *Writer {
	return &Writer{fs: fs, dir: dir}
}

// Write stores doc as <dir>/run-<id>.json and returns the path.
func (w *Writer) Write(doc *Document) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	path := filepath.Join(w.dir, "run-"+doc.Run.ID+".json")
	if err := afero.WriteFile(w.fs, path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// Schema returns the JSON Schema of Document.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{}
	s, err := r.Reflect(Document{})
	if err != nil {
		return nil, fmt.Errorf("failed to reflect export schema: %w", err)
	}
	title := "Gauntlet run export"
	s.Title = &title
	return json.MarshalIndent(s, "", "  ")
}
