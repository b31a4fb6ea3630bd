package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/agritriples/internal/llm"
	"github.com/ppiankov/agritriples/internal/model"
)

func replying(content string, seen *llm.Request) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		if seen != nil {
			*seen = req
		}
		return &llm.Response{Content: content}, nil
	})
}

func TestLLMExtractor_Extract(t *testing.T) {
	var seen llm.Request
	e := NewLLMExtractor(replying(`[["稻瘟病","侵染","叶片"]]`, &seen), "Qwen/Qwen2.5-7B-Instruct", model.CompletionOptions{})

	got, err := e.Extract(context.Background(), "稻瘟病侵染叶片导致褐斑。")
	require.NoError(t, err)
	assert.Equal(t, []model.Triplet{{"稻瘟病", "侵染", "叶片"}}, got)

	assert.Equal(t, "Qwen/Qwen2.5-7B-Instruct", seen.Model)
	assert.Equal(t, DefaultOptions, seen.Options)
	assert.True(t, strings.Contains(seen.Prompt, "稻瘟病侵染叶片导致褐斑。"))
	assert.NotEmpty(t, seen.System)
}

func TestLLMExtractor_ParseFailureIsContained(t *testing.T) {
	var logged []string
	e := NewLLMExtractor(replying("抱歉，我无法完成该任务。", nil), "m", model.CompletionOptions{})
	e.Logf = func(format string, args ...any) { logged = append(logged, format) }

	got, err := e.Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Len(t, logged, 1)
}

func TestLLMExtractor_CompletionErrorPropagates(t *testing.T) {
	compErr := &llm.CompletionError{Provider: "openai", Model: "m", StatusCode: 500, Err: errors.New("down")}
	e := NewLLMExtractor(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return nil, compErr
	}), "m", model.CompletionOptions{})

	_, err := e.Extract(context.Background(), "text")
	require.Error(t, err)

	var target *llm.CompletionError
	assert.True(t, errors.As(err, &target))
}

func TestLLMExtractor_CustomOptions(t *testing.T) {
	var seen llm.Request
	opts := model.CompletionOptions{Temperature: 0.1, MaxTokens: 500}
	e := NewLLMExtractor(replying("[]", &seen), "m", opts)

	_, err := e.Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, opts, seen.Options)
}
