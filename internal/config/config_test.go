package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "openai", cfg.Provider.Completion)
	assert.Equal(t, "gpt-4o", cfg.Provider.CompletionModel)
	assert.Equal(t, "text-embedding-3-small", cfg.Provider.EmbeddingModel)
	assert.Equal(t, "sqlite", cfg.Vector.Backend)
	assert.Equal(t, 4, cfg.Learner.MaxConcurrentQueries)
	assert.Equal(t, 4, cfg.Learner.MaxConcurrentItems)
	assert.Equal(t, 30*time.Second, cfg.Learner.CapabilityTimeout)
	assert.Equal(t, 15, cfg.Learner.RecallLimit)
	assert.Equal(t, "@hourly", cfg.Learner.ReconcileSchedule)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Provider.OpenAIAPIKey = "sk-test123"
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		err := valid().Validate()
		assert.NoError(t, err)
	})

	t.Run("missing openai key", func(t *testing.T) {
		cfg := valid()
		cfg.Provider.OpenAIAPIKey = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "openai_api_key")
	})

	t.Run("anthropic completion requires anthropic key", func(t *testing.T) {
		cfg := valid()
		cfg.Provider.Completion = "anthropic"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic_api_key")

		cfg.Provider.AnthropicAPIKey = "sk-ant-test123"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid completion provider", func(t *testing.T) {
		cfg := valid()
		cfg.Provider.Completion = "gemini"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid completion provider")
	})

	t.Run("invalid vector backend", func(t *testing.T) {
		cfg := valid()
		cfg.Vector.Backend = "pinecone"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid backend")
	})

	t.Run("non-positive learner settings", func(t *testing.T) {
		cfg := valid()
		cfg.Learner.MaxConcurrentQueries = 0
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Learner.CapabilityTimeout = 0
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Learner.RecallLimit = -1
		assert.Error(t, cfg.Validate())
	})
}
