package consensus

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/agritriples/internal/model"
)

// Options tunes Process
type Options struct {
	// Workers bounds concurrent merges; 1 or less runs sequentially
	Workers int

	// Logf receives progress lines; nil discards them
	Logf func(format string, args ...any)
}

// Process validates alignment, then reconciles every paragraph. Records come
// back in paragraph order with source models in backend order. Any merger
// error aborts the run and no records are returned.
func Process(ctx context.Context, outputs []model.BackendOutput, merger Merger, opts Options) ([]model.ConsensusRecord, error) {
	texts, err := Validate(outputs)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	records := make([]model.ConsensusRecord, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			sources := SourcesAt(outputs, i)
			triplets, err := Reconcile(gctx, text, sources, merger)
			if err != nil {
				return fmt.Errorf("paragraph %d: %w", i, err)
			}

			records[i] = model.ConsensusRecord{
				Text:              text,
				ConsensusTriplets: triplets,
				SourceModels:      sources,
			}
			logf(opts.Logf, "consensus: paragraph %d/%d: %d candidates -> %d triplets", i+1, len(texts), countSources(sources), len(triplets))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// SourcesAt gathers each backend's triplets for paragraph i, in backend order
func SourcesAt(outputs []model.BackendOutput, i int) model.SourceModels {
	sources := make(model.SourceModels, len(outputs))
	for b, out := range outputs {
		sources[b] = model.SourceModel{
			Name:     out.Name,
			Triplets: model.NonNil(out.Results[i].Triplets),
		}
	}
	return sources
}

func countSources(sources model.SourceModels) int {
	n := 0
	for _, s := range sources {
		n += len(s.Triplets)
	}
	return n
}

func logf(fn func(string, ...any), format string, args ...any) {
	if fn != nil {
		fn(format, args...)
	}
}
