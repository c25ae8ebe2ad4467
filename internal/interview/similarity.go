package interview

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// TranscriptSimilarity scores how closely two transcripts of the same clip
// agree, as a Jaro-Winkler similarity in [0, 1] over the normalized text.
// Two empty transcripts score 1; one empty transcript scores 0.
//
// The score is recorded for observability only. A low score flags a clip
// where the primary and secondary transcribers disagree; it never changes
// which transcript is used.
func TranscriptSimilarity(primary, secondary string) float64 {
	a := normalizeTranscript(primary)
	b := normalizeTranscript(secondary)
	switch {
	case a == "" && b == "":
		return 1
	case a == "" || b == "":
		return 0
	}
	return matchr.JaroWinkler(a, b, false)
}

// normalizeTranscript lowercases s, drops punctuation, and collapses runs of
// whitespace, so the comparison measures word agreement rather than the
// transcribers' casing and punctuation habits.
func normalizeTranscript(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
