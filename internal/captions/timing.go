package captions

import (
	"math"
	"strings"
)

// Word is one caption placed on the final timeline.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Scene is the timing input for one rendered scene.
type Scene struct {
	Voiceover        string
	NarrationSeconds float64
	DurationSeconds  float64
}

// Estimate spreads each scene's narration across its words, weighted by
// word length, and offsets them onto the combined timeline. Scene i starts
// at the sum of earlier durations minus i transition overlaps.
//
// The timings are estimates derived from the text alone. Speech synthesis
// reports only the total narration length, not per-word alignment, so
// captions follow an even pace and can lead or trail the spoken words.
func Estimate(scenes []Scene, overlap float64) []Word {
	var words []Word
	elapsed := 0.0
	for i, scene := range scenes {
		start := elapsed - float64(i)*overlap
		if start < 0 {
			start = 0
		}
		elapsed += scene.DurationSeconds

		tokens := tokenize(scene.Voiceover)
		if len(tokens) == 0 {
			continue
		}
		speech := scene.NarrationSeconds
		if speech <= 0 || (scene.DurationSeconds > 0 && speech > scene.DurationSeconds) {
			speech = scene.DurationSeconds
		}
		if speech <= 0 {
			continue
		}
		total := 0
		for _, tok := range tokens {
			total += len(tok)
		}
		cursor := start
		for _, tok := range tokens {
			span := speech * float64(len(tok)) / float64(total)
			words = append(words, Word{Text: tok, Start: round3(cursor), End: round3(cursor + span)})
			cursor += span
		}
	}
	return words
}

func tokenize(voiceover string) []string {
	var out []string
	for _, field := range strings.Fields(voiceover) {
		if tok := Sanitize(field); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
