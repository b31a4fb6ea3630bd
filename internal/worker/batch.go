package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Processor handles one input (a file path or URL) end to end
type Processor interface {
	Process(ctx context.Context, input string) error
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, input string) error

// Process calls f
func (f ProcessorFunc) Process(ctx context.Context, input string) error {
	return f(ctx, input)
}

// InputJob runs a Processor over one input
type InputJob struct {
	Input     string
	Processor Processor
}

// Execute executes the job
func (j *InputJob) Execute(ctx context.Context) Result {
	start := time.Now()
	err := j.Processor.Process(ctx, j.Input)
	return &InputResult{
		Input:    j.Input,
		Error:    err,
		Duration: time.Since(start),
	}
}

// InputResult is the outcome of one batch input
type InputResult struct {
	Input    string
	Error    error
	Duration time.Duration
}

// GetError returns the error from the result
func (r *InputResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many inputs concurrently. One failing input
// does not stop the others.
type BatchProcessor struct {
	processor   Processor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessInputs processes inputs concurrently and returns one result per
// input, in input order. Inputs skipped because ctx was cancelled carry
// ctx.Err().
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []string) []*InputResult {
	if len(inputs) == 0 {
		return []*InputResult{}
	}

	jobs := make([]Job, len(inputs))
	for i, input := range inputs {
		jobs[i] = &InputJob{Input: input, Processor: b.processor}
	}

	results := Run(ctx, b.concurrency, jobs)

	done := make(map[string]*InputResult, len(results))
	for _, r := range results {
		ir := r.(*InputResult)
		done[ir.Input] = ir
	}

	out := make([]*InputResult, len(inputs))
	for i, input := range inputs {
		if r, ok := done[input]; ok {
			out[i] = r
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &InputResult{Input: input, Error: err}
	}

	return out
}

// ProcessFile reads an input list and processes it
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*InputResult, error) {
	inputs, err := ReadInputList(listPath)
	if err != nil {
		return nil, fmt.Errorf("read input list: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

// ReadInputList reads one path or URL per line, skipping blanks, comments
// and duplicates
func ReadInputList(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			inputs = append(inputs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
