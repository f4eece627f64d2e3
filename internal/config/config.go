package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main engram configuration
type Config struct {
	// Data directory, defaults to ~/.engram
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Memories directory, defaults to <data_dir>/memories
	MemoriesDir string `json:"memories_dir" mapstructure:"memories_dir"`

	// Provider credentials and model selection
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Vector index backend
	Vector VectorConfig `json:"vector" mapstructure:"vector"`

	// Learning loop tuning
	Learner LearnerConfig `json:"learner" mapstructure:"learner"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ProviderConfig holds model provider configuration
type ProviderConfig struct {
	Completion      string `json:"completion" mapstructure:"completion"` // openai, anthropic
	OpenAIAPIKey    string `json:"openai_api_key" mapstructure:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	CompletionModel string `json:"completion_model" mapstructure:"completion_model"`
	EmbeddingModel  string `json:"embedding_model" mapstructure:"embedding_model"`
}

// VectorConfig holds vector index configuration
type VectorConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // sqlite, chromem
	Path    string `json:"path" mapstructure:"path"`
}

// LearnerConfig tunes the learning loop
type LearnerConfig struct {
	MaxConcurrentQueries int           `json:"max_concurrent_queries" mapstructure:"max_concurrent_queries"`
	MaxConcurrentItems   int           `json:"max_concurrent_items" mapstructure:"max_concurrent_items"`
	CapabilityTimeout    time.Duration `json:"capability_timeout" mapstructure:"capability_timeout"`
	RecallLimit          int           `json:"recall_limit" mapstructure:"recall_limit"`
	ReconcileSchedule    string        `json:"reconcile_schedule" mapstructure:"reconcile_schedule"` // cron spec, empty disables
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Completion:      "openai",
			CompletionModel: "gpt-4o",
			EmbeddingModel:  "text-embedding-3-small",
		},
		Vector: VectorConfig{
			Backend: "sqlite",
		},
		Learner: LearnerConfig{
			MaxConcurrentQueries: 4,
			MaxConcurrentItems:   4,
			CapabilityTimeout:    30 * time.Second,
			RecallLimit:          15,
			ReconcileSchedule:    "@hourly",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider.Completion {
	case "openai":
		if c.Provider.OpenAIAPIKey == "" {
			return fmt.Errorf("provider: openai_api_key is required when completion is openai")
		}
	case "anthropic":
		if c.Provider.AnthropicAPIKey == "" {
			return fmt.Errorf("provider: anthropic_api_key is required when completion is anthropic")
		}
	default:
		return fmt.Errorf("provider: invalid completion provider %q (must be: openai, anthropic)", c.Provider.Completion)
	}

	// Embeddings always go through OpenAI, even with an Anthropic completer.
	if c.Provider.OpenAIAPIKey == "" {
		return fmt.Errorf("provider: openai_api_key is required for embeddings")
	}
	if c.Provider.CompletionModel == "" {
		return fmt.Errorf("provider: completion_model is required")
	}
	if c.Provider.EmbeddingModel == "" {
		return fmt.Errorf("provider: embedding_model is required")
	}

	if c.Vector.Backend != "sqlite" && c.Vector.Backend != "chromem" {
		return fmt.Errorf("vector: invalid backend %q (must be: sqlite, chromem)", c.Vector.Backend)
	}

	if c.Learner.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("learner: max_concurrent_queries must be positive")
	}
	if c.Learner.MaxConcurrentItems <= 0 {
		return fmt.Errorf("learner: max_concurrent_items must be positive")
	}
	if c.Learner.CapabilityTimeout <= 0 {
		return fmt.Errorf("learner: capability_timeout must be positive")
	}
	if c.Learner.RecallLimit <= 0 {
		return fmt.Errorf("learner: recall_limit must be positive")
	}

	return nil
}
