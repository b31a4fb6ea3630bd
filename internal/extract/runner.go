package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ppiankov/agritriples/internal/model"
	"github.com/ppiankov/agritriples/internal/worker"
)

// ErrInvalidBackends is returned when backend names are empty or repeated
var ErrInvalidBackends = errors.New("invalid backend set")

// Backend is a named extractor
type Backend struct {
	Name      string
	Extractor Extractor
}

// Runner applies every backend to every paragraph
type Runner struct {
	// Workers bounds concurrent extraction calls; 1 or less runs sequentially
	Workers int

	// Logf receives progress lines; defaults to log.Printf
	Logf func(format string, args ...any)
}

// NewRunner creates a runner with the given worker count
func NewRunner(workers int) *Runner {
	return &Runner{Workers: workers, Logf: log.Printf}
}

type extractJob struct {
	backend   int
	paragraph int
	text      string
	extractor Extractor
	abort     context.CancelFunc
}

type extractResult struct {
	backend   int
	paragraph int
	triplets  []model.Triplet
	err       error
}

func (r *extractResult) GetError() error {
	return r.err
}

func (j *extractJob) Execute(ctx context.Context) worker.Result {
	triplets, err := j.extractor.Extract(ctx, j.text)
	if err != nil {
		j.abort()
	}
	return &extractResult{
		backend:   j.backend,
		paragraph: j.paragraph,
		triplets:  model.NonNil(triplets),
		err:       err,
	}
}

// RunAll returns one output per backend, in backend order, each holding one
// result per paragraph in paragraph order. Any extractor error aborts the run.
func (r *Runner) RunAll(ctx context.Context, paragraphs []string, backends []Backend) ([]model.BackendOutput, error) {
	if err := ValidateBackends(backends); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outputs := make([]model.BackendOutput, len(backends))
	jobs := make([]worker.Job, 0, len(backends)*len(paragraphs))
	for b, backend := range backends {
		outputs[b] = model.BackendOutput{
			Name:    backend.Name,
			Results: make([]model.BackendResult, len(paragraphs)),
		}
		for p, text := range paragraphs {
			jobs = append(jobs, &extractJob{
				backend:   b,
				paragraph: p,
				text:      text,
				extractor: backend.Extractor,
				abort:     cancel,
			})
		}
	}

	results := worker.Run(ctx, r.Workers, jobs)
	if err := firstFailure(results, backends); err != nil {
		return nil, err
	}
	if len(results) != len(jobs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("extraction incomplete: %d of %d jobs ran", len(results), len(jobs))
	}

	for _, res := range results {
		er := res.(*extractResult)
		outputs[er.backend].Results[er.paragraph] = model.BackendResult{
			Text:     paragraphs[er.paragraph],
			Triplets: er.triplets,
		}
	}

	for _, out := range outputs {
		r.logf("extract.Runner: %s: %d paragraphs, %d triplets", out.Name, len(out.Results), countResults(out.Results))
	}
	return outputs, nil
}

// firstFailure picks the error that aborted the run. Jobs cut short by that
// abort report context.Canceled, so a real failure is preferred over them.
func firstFailure(results []worker.Result, backends []Backend) error {
	var cancelled error
	for _, res := range results {
		er := res.(*extractResult)
		if er.err == nil {
			continue
		}
		wrapped := fmt.Errorf("backend %s, paragraph %d: %w", backends[er.backend].Name, er.paragraph, er.err)
		if !errors.Is(er.err, context.Canceled) {
			return wrapped
		}
		if cancelled == nil {
			cancelled = wrapped
		}
	}
	return cancelled
}

// ValidateBackends rejects empty, reserved and duplicate names
func ValidateBackends(backends []Backend) error {
	seen := make(map[string]bool, len(backends))
	for i, b := range backends {
		if b.Name == "" {
			return fmt.Errorf("%w: backend %d has no name", ErrInvalidBackends, i)
		}
		if model.IsReservedBackendName(b.Name) {
			return fmt.Errorf("%w: backend name %q is reserved", ErrInvalidBackends, b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate backend name %q", ErrInvalidBackends, b.Name)
		}
		if b.Extractor == nil {
			return fmt.Errorf("%w: backend %q has no extractor", ErrInvalidBackends, b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}

func countResults(results []model.BackendResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Triplets)
	}
	return n
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}
