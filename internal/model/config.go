package model

import "time"

// Config is the full runtime configuration
type Config struct {
	Extraction  ExtractionConfig  `yaml:"extraction"`
	LLM         LLMConfig         `yaml:"llm"`
	Criteria    CriteriaConfig    `yaml:"criteria"`
	Policy      PolicyConfig      `yaml:"policy"`
	Cache       CacheConfig       `yaml:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Output      OutputConfig      `yaml:"output"`
}

// ExtractionConfig controls which backends run and how long to wait
type ExtractionConfig struct {
	Mode           string        `yaml:"mode"`            // "baseline" or "llm"
	BackendTimeout time.Duration `yaml:"backend_timeout"` // Bound on the model-backed extractor
}

// LLMConfig configures the model-backed extraction provider
type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai, ollama, "" (disabled)
	Model     string `yaml:"model"`
	APIKey    string `yaml:"-"` // From env only, never persisted
	BaseURL   string `yaml:"base_url"`
	Timeout   int    `yaml:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens"`
}

// CriteriaConfig points at the payer criteria file
type CriteriaConfig struct {
	Path string `yaml:"path"`
}

// PolicyConfig controls policy chunk retrieval
type PolicyConfig struct {
	Path string `yaml:"path"`
	TopK int    `yaml:"top_k"`
}

// CacheConfig controls the extraction result cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// ConcurrencyConfig controls batch parallelism and provider throttling
type ConcurrencyConfig struct {
	EvalWorkers   int     `yaml:"eval_workers"`
	ProviderRPS   float64 `yaml:"provider_rps"`
	ProviderBurst int     `yaml:"provider_burst"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose"`
	IncludeFooter bool `yaml:"include_footer"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			Mode:           "baseline",
			BackendTimeout: 60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30,
			MaxTokens: 1024,
		},
		Policy: PolicyConfig{
			TopK: 3,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			EvalWorkers:   4,
			ProviderRPS:   2,
			ProviderBurst: 2,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
