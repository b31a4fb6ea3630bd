package model

import "time"

// Config is the complete agritriples configuration.
// Loaded by viper (mapstructure tags) and rendered by `config show` (yaml tags).
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Segmentation SegmentationConfig `yaml:"segmentation" mapstructure:"segmentation"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	Consensus    ConsensusConfig    `yaml:"consensus" mapstructure:"consensus"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig    `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
}

// LLMConfig describes the shared completion endpoint
type LLMConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// CompletionOptions are the sampling knobs sent with a completion call
type CompletionOptions struct {
	Temperature float32  `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int      `yaml:"max_tokens" mapstructure:"max_tokens"`
	TopP        float32  `yaml:"top_p,omitempty" mapstructure:"top_p"`
	Stop        []string `yaml:"stop,omitempty" mapstructure:"stop"`
}

// SegmentationConfig configures the paragraph continuation judge
type SegmentationConfig struct {
	Model   string            `yaml:"model" mapstructure:"model"`
	Options CompletionOptions `yaml:"options" mapstructure:"options"`
}

// BackendConfig names one extraction backend.
// Provider and BaseURL override the shared LLM settings when set.
type BackendConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Model    string `yaml:"model" mapstructure:"model"`
	Provider string `yaml:"provider,omitempty" mapstructure:"provider"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// ExtractionConfig lists the extraction backends in reference order
type ExtractionConfig struct {
	Backends []BackendConfig   `yaml:"backends" mapstructure:"backends"`
	Options  CompletionOptions `yaml:"options" mapstructure:"options"`
}

// ConsensusConfig configures the reconciliation model
type ConsensusConfig struct {
	Model   string            `yaml:"model" mapstructure:"model"`
	Options CompletionOptions `yaml:"options" mapstructure:"options"`
}

// ConcurrencyConfig bounds fan-out. 1 means strictly sequential.
type ConcurrencyConfig struct {
	ExtractionWorkers int `yaml:"extraction_workers" mapstructure:"extraction_workers"`
	ConsensusWorkers  int `yaml:"consensus_workers" mapstructure:"consensus_workers"`
	BatchWorkers      int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// RateLimitConfig caps completion calls per model
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig configures the completion cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig configures URL input fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OutputConfig controls where artifacts land
type OutputConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	ConsensusFile string `yaml:"consensus_file" mapstructure:"consensus_file"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
}

// StoreConfig locates the SQLite knowledge base
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DefaultBaseURL is the OpenAI-compatible DeepInfra endpoint
const DefaultBaseURL = "https://api.deepinfra.com/v1/openai"

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  DefaultBaseURL,
			Timeout:  60,
		},
		Segmentation: SegmentationConfig{
			Model: "Qwen/Qwen2.5-7B-Instruct",
			Options: CompletionOptions{
				Temperature: 0,
				MaxTokens:   3,
				Stop:        []string{"\n"},
			},
		},
		Extraction: ExtractionConfig{
			Backends: []BackendConfig{
				{Name: "Qwen", Model: "Qwen/Qwen2.5-7B-Instruct"},
				{Name: "Llama", Model: "meta-llama/Meta-Llama-3.1-8B-Instruct"},
				{Name: "Gemma", Model: "google/gemma-2-9b-it"},
			},
			Options: CompletionOptions{
				Temperature: 0.35,
				MaxTokens:   2000,
				TopP:        0.9,
			},
		},
		Consensus: ConsensusConfig{
			Model: "meta-llama/Meta-Llama-3.1-8B-Instruct",
			Options: CompletionOptions{
				Temperature: 0.3,
				MaxTokens:   2000,
			},
		},
		Concurrency: ConcurrencyConfig{
			ExtractionWorkers: 1,
			ConsensusWorkers:  1,
			BatchWorkers:      2,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".agritriples/cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "agritriples/0.1 (+https://github.com/ppiankov/agritriples)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		Output: OutputConfig{
			Dir:           ".",
			ConsensusFile: "consensus_output.json",
		},
		Store: StoreConfig{
			Path: ".agritriples/knowledge.db",
		},
	}
}
