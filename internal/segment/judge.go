package segment

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ppiankov/agritriples/internal/llm"
	"github.com/ppiankov/agritriples/internal/model"
)

// Judge decides whether a sentence continues the open paragraph
type Judge interface {
	Continues(ctx context.Context, paragraphText, sentenceText string) (bool, error)
}

// JudgeFunc adapts a function to Judge
type JudgeFunc func(ctx context.Context, paragraphText, sentenceText string) (bool, error)

// Continues calls f
func (f JudgeFunc) Continues(ctx context.Context, paragraphText, sentenceText string) (bool, error) {
	return f(ctx, paragraphText, sentenceText)
}

// LLMJudge asks a completion model for a one-word continuation verdict
type LLMJudge struct {
	completer llm.Completer
	model     string
	options   model.CompletionOptions
}

// NewLLMJudge creates a judge. Zero options fall back to deterministic
// sampling with a tiny output cap stopped at the first newline.
func NewLLMJudge(completer llm.Completer, modelName string, options model.CompletionOptions) *LLMJudge {
	if options.MaxTokens <= 0 {
		options.MaxTokens = 3
	}
	options.Stop = nonEmpty(options.Stop)
	if len(options.Stop) == 0 {
		options.Stop = []string{"\n"}
	}
	return &LLMJudge{
		completer: completer,
		model:     modelName,
		options:   options,
	}
}

func nonEmpty(stops []string) []string {
	var out []string
	for _, s := range stops {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Continues implements Judge
func (j *LLMJudge) Continues(ctx context.Context, paragraphText, sentenceText string) (bool, error) {
	resp, err := j.completer.Complete(ctx, llm.Request{
		Model:   j.model,
		System:  judgeSystemPrompt,
		Prompt:  fmt.Sprintf(judgePromptTemplate, paragraphText, sentenceText),
		Options: j.options,
	})
	if err != nil {
		return false, fmt.Errorf("continuation judge: %w", err)
	}
	return IsAffirmative(resp.Content), nil
}

// IsAffirmative accepts only a recognisable yes. Case, surrounding quotes
// and punctuation are ignored; anything else, including an empty reply,
// is a no.
func IsAffirmative(reply string) bool {
	word := strings.TrimFunc(reply, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	switch strings.ToLower(word) {
	case "true", "yes", "是":
		return true
	default:
		return false
	}
}
