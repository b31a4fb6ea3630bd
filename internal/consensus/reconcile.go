package consensus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ppiankov/agritriples/internal/extract"
	"github.com/ppiankov/agritriples/internal/llm"
	"github.com/ppiankov/agritriples/internal/model"
)

// Merger produces the consensus triplets for one paragraph from the text
// and the formatted per-backend candidates
type Merger interface {
	Merge(ctx context.Context, text, candidates string) ([]model.Triplet, error)
}

// MergerFunc adapts a function to Merger
type MergerFunc func(ctx context.Context, text, candidates string) ([]model.Triplet, error)

// Merge calls f
func (f MergerFunc) Merge(ctx context.Context, text, candidates string) ([]model.Triplet, error) {
	return f(ctx, text, candidates)
}

// DefaultOptions are the sampling settings used for reconciliation
var DefaultOptions = model.CompletionOptions{
	Temperature: 0.3,
	MaxTokens:   2000,
}

// LLMMerger asks a completion model to reconcile the candidates
type LLMMerger struct {
	completer llm.Completer
	model     string
	options   model.CompletionOptions

	// Logf receives parse failures; defaults to log.Printf
	Logf func(format string, args ...any)
}

// NewLLMMerger creates a merger for modelName. A zero MaxTokens selects
// DefaultOptions.
func NewLLMMerger(completer llm.Completer, modelName string, options model.CompletionOptions) *LLMMerger {
	if options.MaxTokens <= 0 {
		options = DefaultOptions
	}
	return &LLMMerger{
		completer: completer,
		model:     modelName,
		options:   options,
		Logf:      log.Printf,
	}
}

// Merge implements Merger. Unparseable content yields an empty consensus.
func (m *LLMMerger) Merge(ctx context.Context, text, candidates string) ([]model.Triplet, error) {
	resp, err := m.completer.Complete(ctx, llm.Request{
		Model:   m.model,
		System:  mergeSystemPrompt,
		Prompt:  fmt.Sprintf(mergePromptTemplate, text, candidates),
		Options: m.options,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile with %s: %w", m.model, err)
	}

	triplets, err := extract.ParseTriplets(resp.Content)
	if err != nil {
		var parseErr *extract.ParseError
		if errors.As(err, &parseErr) {
			if m.Logf != nil {
				m.Logf("consensus.LLMMerger: %s: %v", m.model, err)
			}
			return []model.Triplet{}, nil
		}
		return nil, err
	}

	return triplets, nil
}

// FormatCandidates renders one numbered line per backend, in order:
// "N. <name>模型: <JSON triplets>", or the empty marker when a backend
// found nothing
func FormatCandidates(sources model.SourceModels) string {
	lines := make([]string, len(sources))
	for i, src := range sources {
		body := emptyCandidatesMarker
		if len(src.Triplets) > 0 {
			body = encodeTriplets(src.Triplets)
		}
		lines[i] = fmt.Sprintf("%d. %s模型: %s", i+1, src.Name, body)
	}
	return strings.Join(lines, "\n")
}

func encodeTriplets(triplets []model.Triplet) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(triplets); err != nil {
		return fmt.Sprint(triplets)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Reconcile formats the candidates and hands them to the merger. The
// merger's answer is used as-is.
func Reconcile(ctx context.Context, text string, sources model.SourceModels, merger Merger) ([]model.Triplet, error) {
	triplets, err := merger.Merge(ctx, text, FormatCandidates(sources))
	if err != nil {
		return nil, err
	}
	return model.NonNil(triplets), nil
}
