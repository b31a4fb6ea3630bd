package segment

import (
	"context"
	"fmt"
	"log"

	"github.com/ppiankov/agritriples/internal/model"
)

// Segmenter groups sentences into paragraphs. Sentences are visited in
// order and each verdict depends on the paragraph built so far, so the
// judge is never called concurrently.
type Segmenter struct {
	judge Judge

	// Logf receives progress lines; defaults to log.Printf
	Logf func(format string, args ...any)
}

// NewSegmenter creates a segmenter backed by judge
func NewSegmenter(judge Judge) *Segmenter {
	return &Segmenter{judge: judge, Logf: log.Printf}
}

// Segment groups sentences into paragraphs. Section headers and list items
// always open a new paragraph without consulting the judge. A judge error
// aborts segmentation.
func (s *Segmenter) Segment(ctx context.Context, sentences []model.Sentence) ([]model.Paragraph, error) {
	paragraphs := make([]model.Paragraph, 0)
	if len(sentences) == 0 {
		return paragraphs, nil
	}

	open := model.Paragraph{Sentences: []string{sentences[0].Text}}
	calls := 0

	for i, sentence := range sentences[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if sentence.ForcesBreak() {
			paragraphs = append(paragraphs, open)
			open = model.Paragraph{Sentences: []string{sentence.Text}}
			continue
		}

		calls++
		continues, err := s.judge.Continues(ctx, open.Text(), sentence.Text)
		if err != nil {
			return nil, fmt.Errorf("segment sentence %d: %w", i+1, err)
		}

		if continues {
			open.Sentences = append(open.Sentences, sentence.Text)
		} else {
			paragraphs = append(paragraphs, open)
			open = model.Paragraph{Sentences: []string{sentence.Text}}
		}
	}
	paragraphs = append(paragraphs, open)

	s.logf("segment.Segmenter: %d sentences -> %d paragraphs (%d judge calls)", len(sentences), len(paragraphs), calls)
	return paragraphs, nil
}

// SegmentText splits text and segments the result
func (s *Segmenter) SegmentText(ctx context.Context, text string) ([]model.Paragraph, error) {
	return s.Segment(ctx, Split(text))
}

func (s *Segmenter) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
	}
}
