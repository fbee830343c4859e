// Package transcript assembles concatenated chunk text and applies the
// deterministic, idempotent cleanup pass from the transcription pipeline.
package transcript

import "strings"

// hallucinationPhrases are known filler phrases cloud ASR models sometimes
// emit on silence or near-silence input.
var hallucinationPhrases = []string{
	"Thanks for watching.",
	"Thank you for watching.",
	"Subtitles by",
	"Please subscribe",
}

// Assemble concatenates chunk texts with a single space, matching the
// pipeline's per-chunk execution contract.
func Assemble(chunks []string) string {
	return strings.Join(chunks, " ")
}

// Cleanup applies the fixed-pattern post-concatenation pass: collapse
// newlines and run of spaces, strip known hallucination phrases, apply
// user replacements, and trim. Cleanup is idempotent: Cleanup(Cleanup(t))
// == Cleanup(t).
func Cleanup(text string, replacements map[string]string) string {
	out := strings.ReplaceAll(text, "\n", " ")
	out = collapseSpaces(out)

	for _, phrase := range hallucinationPhrases {
		out = strings.ReplaceAll(out, phrase, "")
	}

	out = collapseSpaces(out)

	for from, to := range replacements {
		if from == "" {
			continue
		}
		out = strings.ReplaceAll(out, from, to)
	}

	return strings.TrimSpace(out)
}

// collapseSpaces collapses runs of two or more spaces down to one.
func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
