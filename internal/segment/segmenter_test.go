package segment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/agritriples/internal/model"
)

// scriptedJudge answers from a fixed script and counts calls
type scriptedJudge struct {
	answers []bool
	calls   int
	err     error
	failAt  int
}

func (j *scriptedJudge) Continues(ctx context.Context, paragraphText, sentenceText string) (bool, error) {
	j.calls++
	if j.err != nil && j.calls == j.failAt {
		return false, j.err
	}
	if len(j.answers) == 0 {
		return true, nil
	}
	a := j.answers[0]
	j.answers = j.answers[1:]
	return a, nil
}

func quietSegmenter(j Judge) *Segmenter {
	s := NewSegmenter(j)
	s.Logf = nil
	return s
}

func sentences(texts ...string) []model.Sentence {
	out := make([]model.Sentence, len(texts))
	for i, t := range texts {
		out[i] = model.NewSentence(t)
	}
	return out
}

func flatten(paragraphs []model.Paragraph) []string {
	var out []string
	for _, p := range paragraphs {
		out = append(out, p.Sentences...)
	}
	return out
}

func TestSegment_Empty(t *testing.T) {
	judge := &scriptedJudge{}
	paragraphs, err := quietSegmenter(judge).Segment(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, paragraphs)
	assert.Equal(t, 0, judge.calls)
}

func TestSegment_SingleSentence(t *testing.T) {
	judge := &scriptedJudge{}
	paragraphs, err := quietSegmenter(judge).Segment(context.Background(), sentences("稻瘟病危害叶片。"))
	require.NoError(t, err)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, "稻瘟病危害叶片。", paragraphs[0].Text())
	assert.Equal(t, 0, judge.calls)
}

func TestSegment_JudgeVerdicts(t *testing.T) {
	judge := &scriptedJudge{answers: []bool{true, false, true}}
	in := sentences("甲。", "乙。", "丙。", "丁。")

	paragraphs, err := quietSegmenter(judge).Segment(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, paragraphs, 2)
	assert.Equal(t, "甲。 乙。", paragraphs[0].Text())
	assert.Equal(t, "丙。 丁。", paragraphs[1].Text())
	assert.Equal(t, 3, judge.calls)
}

func TestSegment_ForcedBreaks(t *testing.T) {
	judge := &scriptedJudge{}
	in := sentences("稻瘟病危害叶片。", "一、防治方法", "1. 选用抗病品种。", "播种前晒种。", "● 合理施肥。")

	paragraphs, err := quietSegmenter(judge).Segment(context.Background(), in)
	require.NoError(t, err)

	// every header or list item opens a paragraph
	for _, s := range in {
		if !s.ForcesBreak() {
			continue
		}
		found := false
		for _, p := range paragraphs {
			if p.Sentences[0] == s.Text {
				found = true
			}
		}
		assert.True(t, found, "%q should open a paragraph", s.Text)
	}

	// only "播种前晒种。" needed a verdict
	assert.Equal(t, 1, judge.calls)
	assert.Len(t, paragraphs, 4)
}

func TestSegment_Reconstruction(t *testing.T) {
	in := Split(riceBlastDoc)
	require.NotEmpty(t, in)

	for _, answers := range [][]bool{
		{true, true, true, true, true, true, true, true, true, true},
		{false, false, false, false, false, false, false, false, false, false},
		{true, false, true, false, true, false, true, false, true, false},
	} {
		judge := &scriptedJudge{answers: answers}
		paragraphs, err := quietSegmenter(judge).Segment(context.Background(), in)
		require.NoError(t, err)
		require.NotEmpty(t, paragraphs)
		assert.Equal(t, Texts(in), flatten(paragraphs))
	}
}

func TestSegment_JudgeErrorAborts(t *testing.T) {
	boom := errors.New("quota exceeded")
	judge := &scriptedJudge{err: boom, failAt: 2}

	paragraphs, err := quietSegmenter(judge).Segment(context.Background(), sentences("甲。", "乙。", "丙。", "丁。"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, paragraphs)
	assert.Equal(t, 2, judge.calls)
}

func TestSegment_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietSegmenter(&scriptedJudge{}).Segment(ctx, sentences("甲。", "乙。"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSegmentText_Logs(t *testing.T) {
	var lines []string
	s := NewSegmenter(JudgeFunc(func(ctx context.Context, p, q string) (bool, error) { return true, nil }))
	s.Logf = func(format string, args ...any) { lines = append(lines, format) }

	paragraphs, err := s.SegmentText(context.Background(), "稻瘟病侵染叶片导致褐斑。苯醚甲环唑可有效防治。")
	require.NoError(t, err)
	assert.Len(t, paragraphs, 1)
	assert.Len(t, lines, 1)
}
