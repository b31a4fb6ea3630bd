package consensus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/agritriples/internal/model"
)

func output(name string, texts ...string) model.BackendOutput {
	out := model.BackendOutput{Name: name}
	for _, t := range texts {
		out.Results = append(out.Results, model.BackendResult{Text: t})
	}
	return out
}

func TestValidate_Success(t *testing.T) {
	texts, err := Validate([]model.BackendOutput{
		output("Qwen", "甲", "乙"),
		output("Llama", "甲", "乙"),
		output("Gemma", "甲", "乙"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"甲", "乙"}, texts)
}

func TestValidate_SingleBackend(t *testing.T) {
	texts, err := Validate([]model.BackendOutput{output("Qwen", "甲")})
	require.NoError(t, err)
	assert.Equal(t, []string{"甲"}, texts)
}

func TestValidate_CountMismatch(t *testing.T) {
	_, err := Validate([]model.BackendOutput{
		output("Qwen", "甲", "乙"),
		output("Llama", "甲"),
	})
	require.Error(t, err)

	var alignErr *AlignmentError
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, CountMismatch, alignErr.Kind)
	assert.Equal(t, []int{2, 1}, alignErr.Counts)
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestValidate_TextMismatch(t *testing.T) {
	_, err := Validate([]model.BackendOutput{
		output("Qwen", "甲", "乙", "丙"),
		output("Llama", "甲", "乙", "丙"),
		output("Gemma", "甲", "乙 ", "丙"),
	})
	require.Error(t, err)

	var alignErr *AlignmentError
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, TextMismatch, alignErr.Kind)
	assert.Equal(t, 1, alignErr.Index)
	assert.Equal(t, "Gemma", alignErr.Backend)
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestValidate_CountCheckedBeforeText(t *testing.T) {
	_, err := Validate([]model.BackendOutput{
		output("Qwen", "甲", "乙"),
		output("Llama", "丁"),
	})

	var alignErr *AlignmentError
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, CountMismatch, alignErr.Kind)
}

func TestValidate_NoBackends(t *testing.T) {
	_, err := Validate(nil)
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestValidate_DuplicateNames(t *testing.T) {
	_, err := Validate([]model.BackendOutput{output("Qwen", "甲"), output("Qwen", "甲")})
	assert.ErrorIs(t, err, ErrDuplicateBackend)
}

func TestMismatchKind_String(t *testing.T) {
	assert.Equal(t, "count_mismatch", CountMismatch.String())
	assert.Equal(t, "text_mismatch", TextMismatch.String())
}
