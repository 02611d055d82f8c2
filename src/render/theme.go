package render

import "github.com/charmbracelet/lipgloss"

// Theme is the palette used for terminal output
type Theme struct {
	Primary   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

// DefaultTheme is used unless SetTheme replaces it
var DefaultTheme = Theme{
	Primary:   lipgloss.Color("#7aa2f7"),
	Text:      lipgloss.Color("#c0caf5"),
	TextMuted: lipgloss.Color("#808080"),
	Success:   lipgloss.Color("#9ece6a"),
	Warning:   lipgloss.Color("#e0af68"),
	Error:     lipgloss.Color("#f7768e"),
}

// roleColors tints speaker labels by debate role
var roleColors = map[string]lipgloss.Color{
	"Red":    lipgloss.Color("#f7768e"),
	"Blue":   lipgloss.Color("#7aa2f7"),
	"Purple": lipgloss.Color("#bb9af7"),
	"Judge":  lipgloss.Color("#e0af68"),
}

type styles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
	body    lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	role    func(role string) lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, t Theme, width int) styles {
	s := styles{
		title:   r.NewStyle().Bold(true).Foreground(t.Primary),
		heading: r.NewStyle().Bold(true).Foreground(t.Text).MarginTop(1),
		muted:   r.NewStyle().Foreground(t.TextMuted),
		body:    r.NewStyle().Foreground(t.Text).PaddingLeft(4),
		ok:      r.NewStyle().Bold(true).Foreground(t.Success),
		warn:    r.NewStyle().Bold(true).Foreground(t.Warning),
		bad:     r.NewStyle().Bold(true).Foreground(t.Error),
	}
	if width > 0 {
		s.body = s.body.Width(width)
	}
	s.role = func(role string) lipgloss.Style {
		c, ok := roleColors[role]
		if !ok {
			c = t.Primary
		}
		return r.NewStyle().Bold(true).Foreground(c).PaddingLeft(2)
	}
	return s
}
