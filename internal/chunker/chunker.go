package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/voxread/voxread/internal/shared"
)

// hardSplitLookback bounds how far back from the length limit Split searches
// for a whitespace boundary before cutting a sentence mid-token.
const hardSplitLookback = 30

// Normalize collapses every whitespace run to a single space and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split breaks text into chunks of at most maxChars characters each,
// preferring sentence boundaries and hard-splitting sentences that are
// longer than the limit on their own. Joining the returned chunks with
// single spaces reproduces the normalized text, except that a single
// unbroken token longer than maxChars is cut mid-token.
func Split(text string, maxChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max chunk chars must be positive, got %d", shared.ErrConfiguration, maxChars)
	}

	cleaned := Normalize(text)
	if cleaned == "" {
		return nil, nil
	}
	if len(cleaned) <= maxChars {
		return []string{cleaned}, nil
	}

	var chunks []string
	current := ""
	for _, sentence := range splitSentences(cleaned) {
		if current != "" {
			pending := current + " " + sentence
			if len(pending) <= maxChars {
				current = pending
				continue
			}
			chunks = append(chunks, current)
			current = ""
		}
		if len(sentence) <= maxChars {
			current = sentence
			continue
		}
		for len(sentence) > maxChars {
			cut, skip := cutPoint(sentence, maxChars)
			chunks = append(chunks, sentence[:cut])
			sentence = sentence[cut+skip:]
		}
		if sentence != "" {
			chunks = append(chunks, sentence)
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks, nil
}

// splitSentences cuts normalized text after every run of terminal
// punctuation that is followed by a space. The separating space is
// consumed. Text with no such boundary comes back as one sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if isTerminal(text[i]) && text[i+1] == ' ' {
			sentences = append(sentences, text[start:i+1])
			start = i + 2
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// cutPoint picks where to cut an oversized sentence: the last space within
// the lookback window ending at maxChars, else the nearest rune boundary at
// or below maxChars. skip is 1 when the cut lands on a space that should be
// dropped from the remainder.
func cutPoint(sentence string, maxChars int) (cut, skip int) {
	lo := maxChars - hardSplitLookback
	if lo < 0 {
		lo = 0
	}
	if i := strings.LastIndexByte(sentence[lo:maxChars+1], ' '); i >= 0 {
		return lo + i, 1
	}
	cut = maxChars
	for cut > 1 && !utf8.RuneStart(sentence[cut]) {
		cut--
	}
	return cut, 0
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
