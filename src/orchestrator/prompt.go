package orchestrator

import (
	"fmt"
	"strings"

	"github.com/elee1766/gauntletfuse/src/storage"
)

// Message metadata keys.
const (
	metaSpeaker   = "speaker"
	metaRole      = "participant_role"
	metaAttempts  = "attempts"
	metaErrorKind = "error_kind"
	metaModel     = "model"
)

// roundRecord is a finalized round and its messages in completion order.
type roundRecord struct {
	Round    storage.Round
	Messages []storage.Message
}

var phaseRoles = map[storage.Phase]storage.MessageRole{
	storage.PhaseInitial:  storage.RoleAssistant,
	storage.PhaseCritique: storage.RoleCritic,
	storage.PhaseDefense:  storage.RoleAssistant,
	storage.PhaseFusion:   storage.RoleJudge,
}

// Phases is the fixed order every run walks through.
var Phases = []storage.Phase{
	storage.PhaseInitial,
	storage.PhaseCritique,
	storage.PhaseDefense,
	storage.PhaseFusion,
}

var phaseInstructions = map[storage.Phase]string{
	storage.PhaseCritique: "Critique the answers above. Point out factual errors, weak reasoning and anything that was missed. Say plainly where you disagree.",
	storage.PhaseDefense:  "Respond to the critiques above. Defend what holds up, concede what does not, and give your revised answer.",
	storage.PhaseFusion:   "Weigh the whole debate above and give your judgement: what the participants agree on, where they still disagree, and the best supported answer.",
}

// speaker returns the transcript tag stored with a message.
func speaker(m storage.Message) string {
	if s, ok := m.Metadata[metaSpeaker].(string); ok && s != "" {
		return s
	}
	return string(m.Role)
}

// transcript renders messages as "[Role/Persona]: content" lines. Failure
// notices are left out.
func transcript(msgs []storage.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Role == storage.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "[%s]: %s\n", speaker(m), strings.TrimSpace(m.Content))
	}
	return b.String()
}

// fullTranscript renders every round under a heading.
func fullTranscript(history []roundRecord) string {
	var b strings.Builder
	for _, r := range history {
		fmt.Fprintf(&b, "## Round %d (%s)\n", r.Round.RoundNumber, r.Round.Phase)
		b.WriteString(transcript(r.Messages))
		b.WriteString("\n")
	}
	return b.String()
}

// phasePrompt builds the prompt every participant receives for phase.
// Critique and defense see the previous round; fusion sees all of them.
func phasePrompt(phase storage.Phase, input string, history []roundRecord) string {
	input = strings.TrimSpace(input)
	if phase == storage.PhaseInitial || len(history) == 0 {
		return input
	}

	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(input)
	b.WriteString("\n\n")
	if phase == storage.PhaseFusion {
		b.WriteString("Debate so far:\n")
		b.WriteString(fullTranscript(history))
	} else {
		prev := history[len(history)-1]
		fmt.Fprintf(&b, "Previous round (%s):\n", prev.Round.Phase)
		b.WriteString(transcript(prev.Messages))
		b.WriteString("\n")
	}
	b.WriteString(phaseInstructions[phase])
	return b.String()
}

// participantPrompt prefixes the phase prompt with who is speaking.
func participantPrompt(p Participant, phasePrompt string) string {
	return fmt.Sprintf("You are %s in this debate.\n\n%s", p.Label(), phasePrompt)
}
