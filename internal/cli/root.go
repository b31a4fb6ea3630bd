package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/agritriples/internal/model"
	"github.com/ppiankov/agritriples/internal/pipeline"
	"github.com/ppiankov/agritriples/internal/store"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agritriples",
	Short: "agritriples - crop disease knowledge triplets from free text",
	Long: `agritriples turns agricultural disease documents into vetted
subject-predicate-object triplets in three stages:

  1. segment   split text into sentences and group them into paragraphs
  2. extract   ask several language models for candidate triplets per paragraph
  3. consensus reconcile the candidates into one list per paragraph

Every judgment is made by a completion endpoint (DeepInfra by default).
Results are written as JSON and can be collected in a SQLite knowledge base.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agritriples %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.agritriples/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.String("provider", "", "LLM provider (openai, anthropic, ollama)")
	flags.String("base-url", "", "completion endpoint base URL")
	flags.String("output-dir", "", "directory for JSON artifacts")
	flags.String("kb", "", "SQLite knowledge base path")
	flags.Int("max-retries", 0, "retry 429/5xx completion failures this many times")
	flags.Float64("rps", 0, "completion requests per second per model (0 keeps the configured value)")
	flags.Bool("no-cache", false, "disable the completion cache")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("llm.provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("llm.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("output.dir", flags.Lookup("output-dir"))
	_ = viper.BindPFlag("store.path", flags.Lookup("kb"))
	_ = viper.BindPFlag("llm.max_retries", flags.Lookup("max-retries"))
	_ = viper.BindPFlag("rate_limiting.requests_per_second", flags.Lookup("rps"))
	_ = viper.BindPFlag("no-cache", flags.Lookup("no-cache"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".agritriples"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// AGRITRIPLES_LLM_BASE_URL overrides llm.base_url, and so on
	viper.SetEnvPrefix("AGRITRIPLES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig resolves flags > env > config file > defaults into a Config
func loadConfig(v *viper.Viper) (*model.Config, error) {
	if err := setDefaults(v, model.DefaultConfig()); err != nil {
		return nil, err
	}

	cfg := &model.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	normalizeStops(cfg)

	if v.GetBool("no-cache") {
		cfg.Cache.Enabled = false
	}
	cfg.Output.Verbose = cfg.Output.Verbose || v.GetBool("verbose")
	return cfg, nil
}

// setDefaults registers every field of defaults with viper so that env
// variables can override keys absent from the config file
func setDefaults(v *viper.Viper, defaults *model.Config) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decode defaults: %w", err)
	}

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for key, value := range node {
			if child, ok := value.(map[string]any); ok {
				walk(prefix+key+".", child)
				continue
			}
			v.SetDefault(prefix+key, value)
		}
	}
	walk("", tree)

	// omitempty keys never appear in the marshalled defaults
	for _, key := range []string{"llm.api_key", "http.http_proxy", "http.https_proxy", "http.no_proxy"} {
		v.SetDefault(key, "")
	}

	// yaml.v3 does not round-trip a bare "\n" scalar
	v.SetDefault("segmentation.options.stop", defaults.Segmentation.Options.Stop)
	return nil
}

// normalizeStops drops empty stop sequences, which yaml produces for a
// newline-only entry, and restores the judge's newline stop when none is left
func normalizeStops(cfg *model.Config) {
	for _, opts := range []*model.CompletionOptions{
		&cfg.Segmentation.Options,
		&cfg.Extraction.Options,
		&cfg.Consensus.Options,
	} {
		var stops []string
		for _, s := range opts.Stop {
			if s != "" {
				stops = append(stops, s)
			}
		}
		opts.Stop = stops
	}
	if len(cfg.Segmentation.Options.Stop) == 0 {
		cfg.Segmentation.Options.Stop = model.DefaultConfig().Segmentation.Options.Stop
	}
}

// progress prints pipeline progress to stderr when verbose
func progress(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// newPipeline loads the effective config and builds a pipeline from it
func newPipeline() (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	if cfg.Output.Verbose {
		p.SetLogf(progress)
	} else {
		p.SetLogf(nil)
	}
	return p, cfg, nil
}

// openKnowledgeBase opens the configured SQLite knowledge base
func openKnowledgeBase() (*store.KnowledgeBase, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return store.OpenKnowledgeBase(cfg.Store.Path)
}

// commandContext is cancelled on interrupt or after timeout (0 means none)
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
