// Package render prints runs for a terminal.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/aymanbagabas/go-udiff"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/elee1766/gauntletfuse/src/orchestrator"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// Options control run rendering
type Options struct {
	// Width wraps message bodies; 0 disables wrapping
	Width int
	// MaxLines truncates each message body; 0 prints everything
	MaxLines int
	// Diff appends each participant's initial to defense diff
	Diff  bool
	Theme *Theme
}

// Run writes a readable report of st to w.
func Run(w io.Writer, st *orchestrator.RunState, opts Options) error {
	theme := DefaultTheme
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	s := newStyles(lipgloss.NewRenderer(w), theme, opts.Width)

	var b strings.Builder
	run := st.Run
	fmt.Fprintf(&b, "%s %s\n", s.title.Render("Run "+run.ID), statusBadge(s, run.Status))
	fmt.Fprintf(&b, "%s %s\n", s.muted.Render("Prompt:"), Truncate(oneLine(run.InputPrompt), lineWidth(opts.Width)))
	fmt.Fprintf(&b, "%s %s", s.muted.Render("Created:"), run.CreatedAt.Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		fmt.Fprintf(&b, "  %s %s", s.muted.Render("Finished:"), run.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n")
	if run.FailureReason != "" {
		fmt.Fprintf(&b, "%s %s\n", s.bad.Render("Failure:"), run.FailureReason)
	}

	b.WriteString(s.heading.Render("Participants") + "\n")
	for _, p := range st.Participants {
		fmt.Fprintf(&b, "%s %s\n", s.role(p.Role).Render(p.Role), s.muted.Render(participantRefs(p)))
	}

	for _, r := range st.Rounds {
		heading := fmt.Sprintf("Round %d · %s · %s", r.RoundNumber, r.Phase, r.Status)
		b.WriteString(s.heading.Render(heading) + "\n")
		for _, m := range r.Messages {
			label, _ := m.Metadata["speaker"].(string)
			role, _ := m.Metadata["participant_role"].(string)
			if label == "" {
				label = string(m.Role)
			}
			tag := s.role(role).Render("[" + label + "]")
			if m.Role == storage.RoleSystem {
				tag = s.warn.PaddingLeft(2).Render("[" + label + "] failed")
			}
			b.WriteString(tag + "\n")
			b.WriteString(s.body.Render(clip(m.Content, opts.MaxLines)) + "\n")
		}
	}

	if st.FusedOutput != nil {
		b.WriteString(s.heading.Render("Fused answer") + "\n")
		b.WriteString(s.body.Render(st.FusedOutput.FusedAnswer) + "\n")
		if st.FusedOutput.ReasoningSummary != "" {
			b.WriteString(s.heading.Render("Reasoning") + "\n")
			b.WriteString(s.body.Render(st.FusedOutput.ReasoningSummary) + "\n")
		}
	}

	if opts.Diff {
		for _, d := range AnswerDiffs(st) {
			b.WriteString(s.heading.Render("Revisions by "+d.Speaker) + "\n")
			b.WriteString(d.Diff)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusBadge(s styles, status storage.RunStatus) string {
	label := "[" + string(status) + "]"
	switch status {
	case storage.RunCompleted:
		return s.ok.Render(label)
	case storage.RunFailed:
		return s.bad.Render(label)
	case storage.RunRunning:
		return s.warn.Render(label)
	}
	return s.muted.Render(label)
}

func participantRefs(p storage.RunParticipant) string {
	ref := func(id *string) string {
		if id == nil {
			return "(deleted)"
		}
		return *id
	}
	out := "provider " + ref(p.ProviderID) + "  persona " + ref(p.PersonaID)
	if p.Settings.Model != "" {
		out += "  model " + p.Settings.Model
	}
	return out
}

func lineWidth(width int) int {
	if width <= 0 {
		return 120
	}
	return width
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clip keeps at most n lines of s.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n… %d more lines", len(lines)-n)
}

// Truncate shortens s to width visible columns, keeping ANSI escapes intact.
func Truncate(s string, width int) string {
	if width <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "...")
}

// AnswerDiff is one participant's change between two phases.
type AnswerDiff struct {
	Speaker string
	Diff    string
}

// AnswerDiffs diffs each participant's initial answer against its defense.
// Participants without both answers, or who changed nothing, are skipped.
func AnswerDiffs(st *orchestrator.RunState) []AnswerDiff {
	initial := answersByParticipant(st, storage.PhaseInitial)
	defense := answersByParticipant(st, storage.PhaseDefense)

	var out []AnswerDiff
	for _, p := range st.Participants {
		before, ok1 := initial[p.ID]
		after, ok2 := defense[p.ID]
		if !ok1 || !ok2 {
			continue
		}
		diff := udiff.Unified("initial", "defense", ensureNewline(before.Content), ensureNewline(after.Content))
		if diff == "" {
			continue
		}
		speaker, _ := after.Metadata["speaker"].(string)
		if speaker == "" {
			speaker = p.Role
		}
		out = append(out, AnswerDiff{Speaker: speaker, Diff: diff})
	}
	return out
}

func answersByParticipant(st *orchestrator.RunState, phase storage.Phase) map[string]storage.Message {
	out := make(map[string]storage.Message)
	for _, r := range st.Rounds {
		if r.Phase != phase {
			continue
		}
		for _, m := range r.Messages {
			if m.Role == storage.RoleSystem || m.ParticipantID == nil {
				continue
			}
			out[*m.ParticipantID] = m
		}
	}
	return out
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// JSON writes data pretty-printed, highlighted when color is set.
func JSON(w io.Writer, data []byte, color bool) error {
	var buf bytes.Buffer
	if err := jsonIndent(&buf, data); err != nil {
		return err
	}
	buf.WriteByte('\n')
	if !color {
		_, err := w.Write(buf.Bytes())
		return err
	}
	return quick.Highlight(w, buf.String(), "json", "terminal256", "monokai")
}
