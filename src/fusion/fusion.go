// Package fusion finds agreement and disagreement across a debate's
// messages and builds the prompt that asks a model for the fused answer.
package fusion

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// SimilarityThreshold is the largest normalized edit distance at which two
// sentences count as the same claim.
const SimilarityThreshold = 0.35

// maxClaims caps each list so the synthesis prompt stays bounded.
const maxClaims = 20

// minClaimWords drops fragments too short to be a claim.
const minClaimWords = 4

// Phases whose messages can carry contention.
var contentiousPhases = []string{"critique", "defense"}

var disagreementMarkers = []string{
	"disagree", "incorrect", "however", "but ", "wrong", "flawed",
	"overlooks", "fails to", "not true", "misleading", "inaccurate",
}

// Statement is one successful message in the debate.
type Statement struct {
	Speaker string
	Phase   string
	Content string
}

// Claim is a sentence and the speakers who made it (or something close to it).
type Claim struct {
	Text     string   `json:"text"`
	Speakers []string `json:"speakers"`
}

// Analysis splits a debate's claims into agreement and disagreement.
type Analysis struct {
	Consensus  []Claim `json:"consensus"`
	Contention []Claim `json:"contention"`
}

type cluster struct {
	claim Claim
	norm  string
}

// Analyze clusters every sentence of every statement by similarity. A
// cluster with two or more distinct speakers is consensus. A critique or
// defense sentence that carries a disagreement marker is contention.
func Analyze(stmts []Statement) Analysis {
	dmp := diffmatchpatch.New()
	var agree, contest []*cluster

	for _, st := range stmts {
		for _, sentence := range Sentences(st.Content) {
			norm := normalize(sentence)
			if len(strings.Fields(norm)) < minClaimWords {
				continue
			}
			merge(dmp, &agree, sentence, norm, st.Speaker)
			if slices.Contains(contentiousPhases, st.Phase) && disagrees(norm) {
				merge(dmp, &contest, sentence, norm, st.Speaker)
			}
		}
	}

	var a Analysis
	for _, c := range agree {
		if len(c.claim.Speakers) >= 2 && len(a.Consensus) < maxClaims {
			a.Consensus = append(a.Consensus, c.claim)
		}
	}
	for _, c := range contest {
		if len(a.Contention) < maxClaims {
			a.Contention = append(a.Contention, c.claim)
		}
	}
	return a
}

func merge(dmp *diffmatchpatch.DiffMatchPatch, clusters *[]*cluster, text, norm, speaker string) {
	for _, c := range *clusters {
		if Distance(dmp, c.norm, norm) <= SimilarityThreshold {
			if !slices.Contains(c.claim.Speakers, speaker) {
				c.claim.Speakers = append(c.claim.Speakers, speaker)
			}
			return
		}
	}
	*clusters = append(*clusters, &cluster{
		claim: Claim{Text: text, Speakers: []string{speaker}},
		norm:  norm,
	})
}

// Distance is the Levenshtein distance between a and b divided by the
// longer length, so 0 means identical and 1 means nothing in common.
func Distance(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	if a == b {
		return 0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	diffs := dmp.DiffMain(a, b, false)
	return float64(dmp.DiffLevenshtein(diffs)) / float64(longest)
}

func disagrees(norm string) bool {
	padded := " " + norm + " "
	for _, m := range disagreementMarkers {
		if strings.Contains(padded, " "+m) {
			return true
		}
	}
	return false
}

// Sentences splits text on sentence punctuation and line breaks and strips
// list markers.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		s = strings.TrimLeft(s, "-*•#> ")
		s = trimNumbering(s)
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r == '\n':
			flush()
		case r == '.' || r == '!' || r == '?':
			b.WriteRune(r)
			// keep decimals like 3.14 together
			if r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

func trimNumbering(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if !space && b.Len() > 0 {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Summary renders the analysis as the run's reasoning summary.
func (a Analysis) Summary() string {
	var b strings.Builder
	writeClaims(&b, "Consensus", a.Consensus)
	b.WriteString("\n")
	writeClaims(&b, "Contention", a.Contention)
	return strings.TrimRight(b.String(), "\n")
}

func writeClaims(b *strings.Builder, title string, claims []Claim) {
	b.WriteString(title + ":\n")
	if len(claims) == 0 {
		b.WriteString("- none identified\n")
		return
	}
	for _, c := range claims {
		fmt.Fprintf(b, "- %s (%s)\n", c.Text, strings.Join(c.Speakers, ", "))
	}
}

// Prompt asks the synthesizer for one fused answer.
func Prompt(question string, a Analysis, transcript string) string {
	var b strings.Builder
	b.WriteString("You are writing the final answer of a structured multi-model debate.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\n")
	writeClaims(&b, "Points of agreement", a.Consensus)
	b.WriteString("\n")
	writeClaims(&b, "Points of contention", a.Contention)
	b.WriteString("\nFull debate transcript:\n")
	b.WriteString(strings.TrimSpace(transcript))
	b.WriteString("\n\nWrite one fused answer. Lead with what the participants agreed on. ")
	b.WriteString("Then address each point of contention and say which position is better supported.")
	return b.String()
}
