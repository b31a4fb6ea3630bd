package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ppiankov/agritriples/internal/llm"
	"github.com/ppiankov/agritriples/internal/model"
)

// Extractor turns one paragraph into candidate triplets
type Extractor interface {
	Extract(ctx context.Context, text string) ([]model.Triplet, error)
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(ctx context.Context, text string) ([]model.Triplet, error)

// Extract calls f
func (f ExtractorFunc) Extract(ctx context.Context, text string) ([]model.Triplet, error) {
	return f(ctx, text)
}

// DefaultOptions are the sampling settings used for extraction
var DefaultOptions = model.CompletionOptions{
	Temperature: 0.35,
	MaxTokens:   2000,
	TopP:        0.9,
}

// LLMExtractor prompts one model for disease-domain triplets
type LLMExtractor struct {
	completer llm.Completer
	model     string
	options   model.CompletionOptions

	// Logf receives parse failures; defaults to log.Printf
	Logf func(format string, args ...any)
}

// NewLLMExtractor creates an extractor for modelName. A zero MaxTokens
// selects DefaultOptions.
func NewLLMExtractor(completer llm.Completer, modelName string, options model.CompletionOptions) *LLMExtractor {
	if options.MaxTokens <= 0 {
		options = DefaultOptions
	}
	return &LLMExtractor{
		completer: completer,
		model:     modelName,
		options:   options,
		Logf:      log.Printf,
	}
}

// Extract implements Extractor. Unparseable content yields an empty list;
// completion failures are returned.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]model.Triplet, error) {
	resp, err := e.completer.Complete(ctx, llm.Request{
		Model:   e.model,
		System:  extractionSystemPrompt,
		Prompt:  fmt.Sprintf(extractionPromptTemplate, text),
		Options: e.options,
	})
	if err != nil {
		return nil, fmt.Errorf("extract with %s: %w", e.model, err)
	}

	triplets, err := ParseTriplets(resp.Content)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			if e.Logf != nil {
				e.Logf("extract.LLMExtractor: %s: %v", e.model, err)
			}
			return []model.Triplet{}, nil
		}
		return nil, err
	}

	return triplets, nil
}
