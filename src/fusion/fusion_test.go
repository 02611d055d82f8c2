package fusion

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "punctuation",
			in:   "Water boils at 100 degrees. Really? Yes!",
			want: []string{"Water boils at 100 degrees.", "Really?", "Yes!"},
		},
		{
			name: "decimals stay together",
			in:   "Pi is about 3.14 in most uses.",
			want: []string{"Pi is about 3.14 in most uses."},
		},
		{
			name: "list markers",
			in:   "- first point here\n2. second point here\n* third",
			want: []string{"first point here", "second point here", "third"},
		},
		{
			name: "empty",
			in:   "  \n ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentences(tt.in))
		})
	}
}

func TestDistance(t *testing.T) {
	dmp := diffmatchpatch.New()
	assert.Equal(t, 0.0, Distance(dmp, "same text", "same text"))
	assert.Equal(t, 1.0, Distance(dmp, "abc", "xyz"))
	near := Distance(dmp, "the earth orbits the sun", "the earth orbits around the sun")
	assert.Less(t, near, SimilarityThreshold)
}

func TestAnalyze(t *testing.T) {
	stmts := []Statement{
		{Speaker: "Red/Logic Auditor", Phase: "initial", Content: "The earth orbits the sun once a year. Tides come from the moon."},
		{Speaker: "Blue/Red Team", Phase: "initial", Content: "The earth orbits the sun once per year. Seasons come from distance."},
		{Speaker: "Red/Logic Auditor", Phase: "critique", Content: "Blue is wrong that seasons come from distance. Axial tilt causes seasons."},
		{Speaker: "Blue/Red Team", Phase: "initial", Content: "Short."},
	}

	a := Analyze(stmts)
	require.Len(t, a.Consensus, 1)
	assert.Equal(t, "The earth orbits the sun once a year.", a.Consensus[0].Text)
	assert.Equal(t, []string{"Red/Logic Auditor", "Blue/Red Team"}, a.Consensus[0].Speakers)

	require.Len(t, a.Contention, 1)
	assert.Contains(t, a.Contention[0].Text, "wrong")
	assert.Equal(t, []string{"Red/Logic Auditor"}, a.Contention[0].Speakers)
}

func TestAnalyzeIgnoresInitialDisagreement(t *testing.T) {
	a := Analyze([]Statement{
		{Speaker: "A", Phase: "initial", Content: "However this claim is wrong on its face."},
	})
	assert.Empty(t, a.Contention)
	assert.Empty(t, a.Consensus)
}

func TestSummary(t *testing.T) {
	empty := Analysis{}.Summary()
	assert.Equal(t, "Consensus:\n- none identified\n\nContention:\n- none identified", empty)

	s := Analysis{
		Consensus:  []Claim{{Text: "X is true.", Speakers: []string{"A", "B"}}},
		Contention: []Claim{{Text: "B is wrong about Y.", Speakers: []string{"A"}}},
	}.Summary()
	assert.Contains(t, s, "- X is true. (A, B)")
	assert.Contains(t, s, "- B is wrong about Y. (A)")
}

func TestPrompt(t *testing.T) {
	p := Prompt("  Explain X  ", Analysis{}, "[Red/A]: x\n")
	assert.Contains(t, p, "Question:\nExplain X\n")
	assert.Contains(t, p, "Points of agreement:\n- none identified")
	assert.Contains(t, p, "Full debate transcript:\n[Red/A]: x")
}
