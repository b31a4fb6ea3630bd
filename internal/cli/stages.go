package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/agritriples/internal/consensus"
	"github.com/ppiankov/agritriples/internal/model"
	"github.com/ppiankov/agritriples/internal/pipeline"
	"github.com/ppiankov/agritriples/internal/store"
)

var (
	stageTimeout   time.Duration
	paragraphsJSON string
	paragraphsIn   string
	backendInputs  []string
	consensusOut   string
	saveRun        bool
)

// segmentCmd represents the segment command
var segmentCmd = &cobra.Command{
	Use:   "segment <file|url>",
	Short: "Split a document into sentences and group them into paragraphs",
	Long: `Segment splits the input into sentences and asks the continuation judge,
sentence by sentence, whether each one extends the current paragraph.
Section headers and list items always start a new paragraph.

Example:
  agritriples segment docs/rice_blast.txt
  agritriples segment https://example.org/rice-blast --json paragraphs.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [file|url]",
	Short: "Extract candidate triplets with every configured backend",
	Long: `Extract segments the input once, then asks every configured backend for
subject-predicate-object triplets per paragraph. One triplets_<backend>.json
file is written per backend, all aligned on the same paragraphs.

Example:
  agritriples extract docs/rice_blast.txt --output-dir out/
  agritriples extract --paragraphs out/paragraphs.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

// consensusCmd represents the consensus command
var consensusCmd = &cobra.Command{
	Use:   "consensus",
	Short: "Reconcile per-backend triplet files into consensus triplets",
	Long: `Consensus validates that the backend files describe the same paragraphs
in the same order, then asks the consensus model to merge the candidates
of each paragraph. The first --input is the alignment reference.

Example:
  agritriples consensus --input Qwen=out/triplets_Qwen.json --input Llama=out/triplets_Llama.json
  agritriples consensus --input out/triplets_Qwen.json --input out/triplets_Gemma.json --save`,
	Args: cobra.NoArgs,
	RunE: runConsensus,
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <file|url>",
	Short: "Segment, extract and reconcile one document",
	Long: `Run executes every stage on one input and writes paragraphs.json, one
triplets_<backend>.json per backend and the consensus file to the output
directory. Nothing is written if any stage fails.

Example:
  agritriples run docs/rice_blast.txt
  agritriples run docs/rice_blast.html --output-dir out/ --save`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(segmentCmd, extractCmd, consensusCmd, runCmd)

	for _, cmd := range []*cobra.Command{segmentCmd, extractCmd, consensusCmd, runCmd} {
		cmd.Flags().DurationVar(&stageTimeout, "timeout", 30*time.Minute, "overall timeout")
	}

	segmentCmd.Flags().StringVar(&paragraphsJSON, "json", "", "also write the paragraphs as a JSON list to this path")
	extractCmd.Flags().StringVar(&paragraphsIn, "paragraphs", "", "read paragraphs from a JSON list instead of segmenting an input")
	consensusCmd.Flags().StringArrayVar(&backendInputs, "input", nil, "backend triplet file as name=path (repeatable, reference first)")
	consensusCmd.Flags().StringVar(&consensusOut, "output", "", "consensus output path (default: <output-dir>/<consensus_file>)")
	_ = consensusCmd.MarkFlagRequired("input")

	for _, cmd := range []*cobra.Command{consensusCmd, runCmd} {
		cmd.Flags().BoolVar(&saveRun, "save", false, "record the consensus in the knowledge base")
	}
}

func runSegment(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(stageTimeout)
	defer cancel()

	p, _, err := newPipeline()
	if err != nil {
		return err
	}

	doc, err := p.Load(ctx, args[0])
	if err != nil {
		return err
	}

	paragraphs, err := p.Segment(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("segment failed: %w", err)
	}

	for i, paragraph := range paragraphs {
		fmt.Printf("Paragraph %d: %s\n", i+1, paragraph.Text())
	}

	if paragraphsJSON != "" {
		if err := store.WriteParagraphs(paragraphsJSON, paragraphs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %d paragraphs: %s\n", len(paragraphs), paragraphsJSON)
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (paragraphsIn == "") {
		return fmt.Errorf("give either an input document or --paragraphs")
	}

	ctx, cancel := commandContext(stageTimeout)
	defer cancel()

	p, cfg, err := newPipeline()
	if err != nil {
		return err
	}

	var texts []string
	if paragraphsIn != "" {
		if texts, err = store.ReadParagraphs(paragraphsIn); err != nil {
			return err
		}
	} else {
		doc, err := p.Load(ctx, args[0])
		if err != nil {
			return err
		}
		paragraphs, err := p.Segment(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("segment failed: %w", err)
		}
		texts = model.ParagraphTexts(paragraphs)

		path := filepath.Join(cfg.Output.Dir, pipeline.ParagraphsFile)
		if err := store.WriteParagraphs(path, paragraphs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %d paragraphs: %s\n", len(paragraphs), path)
	}

	outputs, err := p.Extract(ctx, texts)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	for _, out := range outputs {
		path, err := store.WriteBackendOutput(cfg.Output.Dir, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d triplets -> %s\n", out.Name, countBackendTriplets(out), path)
	}
	return nil
}

func runConsensus(cmd *cobra.Command, args []string) error {
	outputs, err := readBackendInputs(backendInputs)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(stageTimeout)
	defer cancel()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	merger, err := pipeline.BuildMerger(cfg)
	if err != nil {
		return fmt.Errorf("build merger: %w", err)
	}
	var logf func(format string, args ...any)
	if cfg.Output.Verbose {
		logf = progress
	}
	merger.Logf = logf

	records, err := consensus.Process(ctx, outputs, merger, consensus.Options{
		Workers: cfg.Concurrency.ConsensusWorkers,
		Logf:    logf,
	})
	if err != nil {
		return fmt.Errorf("consensus failed: %w", err)
	}

	path := consensusOut
	if path == "" {
		path = filepath.Join(cfg.Output.Dir, cfg.Output.ConsensusFile)
	}
	if err := store.WriteConsensus(path, records); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ %d paragraphs, %d consensus triplets -> %s\n", len(records), model.CountTriplets(records), path)

	if saveRun {
		return saveRecords(ctx, path, records)
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(stageTimeout)
	defer cancel()

	p, cfg, err := newPipeline()
	if err != nil {
		return err
	}

	if saveRun {
		kb, err := store.OpenKnowledgeBase(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = kb.Close() }()
		p.AttachKnowledgeBase(kb)
	}

	result, err := p.Run(ctx, args[0], cfg.Output.Dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ %d paragraphs, %d consensus triplets in %s\n",
		len(result.Paragraphs), model.CountTriplets(result.Records), result.Duration.Round(time.Millisecond))
	for _, path := range result.Artifacts {
		fmt.Fprintf(os.Stderr, "  %s\n", path)
	}
	if result.RunID != "" {
		fmt.Fprintf(os.Stderr, "✓ Saved run %s to %s\n", result.RunID, cfg.Store.Path)
	}
	return nil
}

func saveRecords(ctx context.Context, source string, records []model.ConsensusRecord) error {
	kb, err := openKnowledgeBase()
	if err != nil {
		return err
	}
	defer func() { _ = kb.Close() }()

	runID, err := kb.SaveRun(ctx, source, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Saved run %s\n", runID)
	return nil
}

// readBackendInputs loads name=path specs in order. A bare path is named
// after its file, without the triplets_ prefix.
func readBackendInputs(specs []string) ([]model.BackendOutput, error) {
	outputs := make([]model.BackendOutput, 0, len(specs))
	for _, arg := range specs {
		name, path := parseBackendInput(arg)
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid --input %q (want name=path)", arg)
		}
		out, err := store.ReadBackendOutput(name, path)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func parseBackendInput(arg string) (name, path string) {
	if name, path, ok := strings.Cut(arg, "="); ok {
		return strings.TrimSpace(name), strings.TrimSpace(path)
	}
	base := filepath.Base(arg)
	name = strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimPrefix(name, "triplets_")
	return name, arg
}

func countBackendTriplets(out model.BackendOutput) int {
	n := 0
	for _, r := range out.Results {
		n += len(r.Triplets)
	}
	return n
}
