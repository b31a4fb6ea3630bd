package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/agritriples/internal/cache"
	"github.com/ppiankov/agritriples/internal/consensus"
	"github.com/ppiankov/agritriples/internal/extract"
	"github.com/ppiankov/agritriples/internal/llm"
	"github.com/ppiankov/agritriples/internal/model"
	"github.com/ppiankov/agritriples/internal/segment"
	"github.com/ppiankov/agritriples/internal/store"
	"github.com/ppiankov/agritriples/internal/worker"
)

// ParagraphsFile is the artifact holding the segmented paragraph texts
const ParagraphsFile = "paragraphs.json"

// Components are the three judgment capabilities a pipeline drives
type Components struct {
	Judge    segment.Judge
	Backends []extract.Backend
	Merger   consensus.Merger
}

// Pipeline orchestrates load -> segment -> extract -> reconcile -> persist
type Pipeline struct {
	cfg       *model.Config
	loader    *Loader
	segmenter *segment.Segmenter
	backends  []extract.Backend
	runner    *extract.Runner
	merger    consensus.Merger
	kb        *store.KnowledgeBase
	logf      func(format string, args ...any)
}

// New builds a pipeline whose judge, extractors and merger call the
// completion endpoints named in cfg
func New(cfg *model.Config) (*Pipeline, error) {
	components, err := BuildComponents(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithComponents(cfg, components)
}

// NewWithComponents builds a pipeline around caller-supplied capabilities
func NewWithComponents(cfg *model.Config, c Components) (*Pipeline, error) {
	if err := extract.ValidateBackends(c.Backends); err != nil {
		return nil, err
	}
	if c.Judge == nil || c.Merger == nil {
		return nil, fmt.Errorf("pipeline needs a continuation judge and a merger")
	}

	fetcher := NewFetcher(
		cfg.HTTP.Timeout,
		cfg.HTTP.UserAgent,
		cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.RespectRobots,
		cfg.HTTP.HTTPProxy,
		cfg.HTTP.HTTPSProxy,
		cfg.HTTP.NoProxy,
	).WithLimiter(worker.NewLimiter(1, 2))

	p := &Pipeline{
		cfg:       cfg,
		loader:    NewLoader(fetcher),
		segmenter: segment.NewSegmenter(c.Judge),
		backends:  c.Backends,
		runner:    extract.NewRunner(cfg.Concurrency.ExtractionWorkers),
		merger:    c.Merger,
	}
	p.SetLogf(log.Printf)
	return p, nil
}

// SetLogf routes progress lines and parse failures from every stage to fn;
// nil silences them
func (p *Pipeline) SetLogf(fn func(format string, args ...any)) {
	p.logf = fn
	p.segmenter.Logf = fn
	p.runner.Logf = fn
	for _, b := range p.backends {
		if e, ok := b.Extractor.(*extract.LLMExtractor); ok {
			e.Logf = fn
		}
	}
	if m, ok := p.merger.(*consensus.LLMMerger); ok {
		m.Logf = fn
	}
}

// AttachKnowledgeBase records every successful run in kb
func (p *Pipeline) AttachKnowledgeBase(kb *store.KnowledgeBase) {
	p.kb = kb
}

// Backends returns the extraction backends in reference order
func (p *Pipeline) Backends() []extract.Backend {
	return p.backends
}

// Load reads one input file or URL
func (p *Pipeline) Load(ctx context.Context, input string) (*Document, error) {
	return p.loader.Load(ctx, input)
}

// Segment splits text into sentences and groups them into paragraphs
func (p *Pipeline) Segment(ctx context.Context, text string) ([]model.Paragraph, error) {
	return p.segmenter.SegmentText(ctx, text)
}

// Extract runs every backend over the paragraphs
func (p *Pipeline) Extract(ctx context.Context, paragraphs []string) ([]model.BackendOutput, error) {
	return p.runner.RunAll(ctx, paragraphs, p.backends)
}

// Reconcile validates backend alignment and merges candidates per paragraph
func (p *Pipeline) Reconcile(ctx context.Context, outputs []model.BackendOutput) ([]model.ConsensusRecord, error) {
	return consensus.Process(ctx, outputs, p.merger, consensus.Options{
		Workers: p.cfg.Concurrency.ConsensusWorkers,
		Logf:    p.logf,
	})
}

// Result is everything one end-to-end run produced
type Result struct {
	Document   *Document
	Paragraphs []model.Paragraph
	Outputs    []model.BackendOutput
	Records    []model.ConsensusRecord
	Artifacts  []string
	RunID      string
	Duration   time.Duration
}

// Run processes one input through every stage and writes its artifacts
// into outDir. Nothing is written unless all stages succeed.
func (p *Pipeline) Run(ctx context.Context, input, outDir string) (*Result, error) {
	start := time.Now()

	// 1. Load
	doc, err := p.Load(ctx, input)
	if err != nil {
		return nil, err
	}

	// 2. Segment (sequential, one judge call per sentence boundary)
	paragraphs, err := p.Segment(ctx, doc.Text)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", input, err)
	}

	// 3. Extract with every backend over the same paragraphs
	outputs, err := p.Extract(ctx, model.ParagraphTexts(paragraphs))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", input, err)
	}

	// 4. Reconcile
	records, err := p.Reconcile(ctx, outputs)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", input, err)
	}

	result := &Result{
		Document:   doc,
		Paragraphs: paragraphs,
		Outputs:    outputs,
		Records:    records,
	}

	// 5. Persist
	if err := p.writeArtifacts(result, outDir); err != nil {
		return nil, err
	}

	if p.kb != nil {
		runID, err := p.kb.SaveRun(ctx, doc.Source, records)
		if err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		result.RunID = runID
	}

	result.Duration = time.Since(start)
	p.log("pipeline: %s: %d paragraphs, %d consensus triplets in %s",
		doc.Source, len(paragraphs), model.CountTriplets(records), result.Duration.Round(time.Millisecond))
	return result, nil
}

func (p *Pipeline) writeArtifacts(result *Result, outDir string) error {
	path := filepath.Join(outDir, ParagraphsFile)
	if err := store.WriteParagraphs(path, result.Paragraphs); err != nil {
		return err
	}
	result.Artifacts = append(result.Artifacts, path)

	for _, out := range result.Outputs {
		path, err := store.WriteBackendOutput(outDir, out)
		if err != nil {
			return err
		}
		result.Artifacts = append(result.Artifacts, path)
	}

	path = filepath.Join(outDir, p.consensusFile())
	if err := store.WriteConsensus(path, result.Records); err != nil {
		return err
	}
	result.Artifacts = append(result.Artifacts, path)
	return nil
}

func (p *Pipeline) consensusFile() string {
	if p.cfg.Output.ConsensusFile != "" {
		return p.cfg.Output.ConsensusFile
	}
	return model.DefaultConfig().Output.ConsensusFile
}

// Process implements worker.Processor: each batch input gets its own
// directory under the configured output dir
func (p *Pipeline) Process(ctx context.Context, input string) error {
	_, err := p.Run(ctx, input, filepath.Join(p.cfg.Output.Dir, OutputDirName(input)))
	return err
}

var unsafeDirChars = regexp.MustCompile(`[\s/\\:*?"<>|]+`)

// OutputDirName derives a per-input directory name from a path or URL
func OutputDirName(input string) string {
	var name string
	if IsURL(input) {
		name = extractSubject(input)
	} else {
		base := filepath.Base(input)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	name = strings.Trim(unsafeDirChars.ReplaceAllString(name, "_"), "_.")
	if name == "" {
		return "input"
	}
	return name
}

func (p *Pipeline) log(format string, args ...any) {
	if p.logf != nil {
		p.logf(format, args...)
	}
}

// BuildComponents wires the judge, one extractor per configured backend
// and the merger to their completion endpoints. Every endpoint shares one
// rate limiter (bucketed per model) and one response cache.
func BuildComponents(cfg *model.Config) (Components, error) {
	completer := newCompleterFactory(cfg)

	shared, err := completer("", "")
	if err != nil {
		return Components{}, err
	}

	components := Components{
		Judge:  segment.NewLLMJudge(shared, cfg.Segmentation.Model, cfg.Segmentation.Options),
		Merger: consensus.NewLLMMerger(shared, cfg.Consensus.Model, cfg.Consensus.Options),
	}

	for _, b := range cfg.Extraction.Backends {
		c, err := completer(b.Provider, b.BaseURL)
		if err != nil {
			return Components{}, fmt.Errorf("backend %s: %w", b.Name, err)
		}
		components.Backends = append(components.Backends, extract.Backend{
			Name:      b.Name,
			Extractor: extract.NewLLMExtractor(c, b.Model, cfg.Extraction.Options),
		})
	}

	return components, nil
}

// BuildMerger wires only the consensus merger, so reconciling saved backend
// files needs credentials for the shared endpoint alone
func BuildMerger(cfg *model.Config) (*consensus.LLMMerger, error) {
	shared, err := newCompleterFactory(cfg)("", "")
	if err != nil {
		return nil, err
	}
	return consensus.NewLLMMerger(shared, cfg.Consensus.Model, cfg.Consensus.Options), nil
}

// newCompleterFactory returns a constructor of wrapped completers, one per
// provider and base URL, all sharing a limiter and a response cache
func newCompleterFactory(cfg *model.Config) func(provider, baseURL string) (llm.Completer, error) {
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	responses := cache.New(cfg.Cache)

	providers := make(map[string]llm.Completer)
	return func(provider, baseURL string) (llm.Completer, error) {
		key := provider + "|" + baseURL
		if c, ok := providers[key]; ok {
			return c, nil
		}

		llmCfg := llm.ConfigFromModel(cfg)
		if provider != "" {
			llmCfg.Provider = provider
		}
		if baseURL != "" {
			llmCfg.BaseURL = baseURL
		}
		if llmCfg.APIKey == "" {
			llmCfg.APIKey = apiKeyFromEnv(llmCfg.Provider)
		}

		p, err := llm.NewProvider(llmCfg)
		if err != nil {
			return nil, fmt.Errorf("create %s provider: %w", llmCfg.Provider, err)
		}

		var c llm.Completer = p
		c = llm.WithRateLimit(c, limiter)
		c = llm.WithRetry(c, cfg.LLM.MaxRetries, time.Second)
		c = llm.WithCache(c, responses, cfg.Cache.DiskTTL, llmCfg.Provider+"|"+llmCfg.BaseURL)

		providers[key] = c
		return c, nil
	}
}

func apiKeyFromEnv(provider string) string {
	for _, name := range llm.APIKeyEnvVars(provider) {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
