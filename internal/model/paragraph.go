package model

import "strings"

// Paragraph is an ordered run of sentences grouped by the segmenter.
// It has no identity beyond its position in the output sequence.
type Paragraph struct {
	Sentences []string `json:"sentences"`
}

// Text returns the sentences joined with a single space
func (p Paragraph) Text() string {
	return strings.Join(p.Sentences, " ")
}

// ParagraphTexts flattens paragraphs into their joined texts
func ParagraphTexts(paragraphs []Paragraph) []string {
	texts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		texts[i] = p.Text()
	}
	return texts
}
