package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/agritriples/internal/model"
)

// terminators always end a sentence
const terminators = "!?。！？"

// numberUnitPattern matches a digit followed by horizontal whitespace and a unit.
// Longer units come first so "mm" is not read as "m".
var numberUnitPattern = regexp.MustCompile(`([0-9])[ \t\x{3000}]+(ppm|mg|kg|mL|ml|mm|cm|km|ha|°C|℃|‰|%|g|L|m)([^A-Za-z]|$)`)

// Split breaks raw text into sentence units. It is pure: the same text
// always yields the same sequence, and empty text yields an empty slice.
func Split(text string) []model.Sentence {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	runes := []rune(text)

	sentences := make([]model.Sentence, 0)
	var current strings.Builder

	flush := func() {
		s := normalize(current.String())
		current.Reset()
		if s != "" {
			sentences = append(sentences, model.NewSentence(s))
		}
	}

	for i, r := range runes {
		if r == '\n' && opensStructure(runes[i+1:]) {
			flush()
			continue
		}

		current.WriteRune(r)

		switch {
		case strings.ContainsRune(terminators, r):
			flush()
		case r == '.' && endsWithPeriod(runes, i):
			flush()
		}
	}
	flush()

	return sentences
}

// endsWithPeriod reports whether the ASCII period at i closes a sentence:
// it must be followed by whitespace or the end of text and must not follow
// a digit, which keeps decimals and "1." markers intact
func endsWithPeriod(runes []rune, i int) bool {
	if i > 0 && unicode.IsDigit(runes[i-1]) {
		return false
	}
	return i+1 == len(runes) || unicode.IsSpace(runes[i+1])
}

// opensStructure reports whether the line starting at rest begins with a
// section header or list marker
func opensStructure(rest []rune) bool {
	end := len(rest)
	for j, r := range rest {
		if r == '\n' {
			end = j
			break
		}
	}
	line := strings.TrimSpace(string(rest[:end]))
	return model.Classify(line) != model.KindNormal
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := numberUnitPattern.ReplaceAllString(s, "${1}${2}${3}")
		if next == s {
			return s
		}
		s = next
	}
}

// Texts returns the text of each sentence
func Texts(sentences []model.Sentence) []string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Text
	}
	return out
}
