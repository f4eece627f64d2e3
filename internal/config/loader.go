package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to determine config path")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("ENGRAM")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	// A missing file is fine, defaults plus env apply.
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(v, cfg)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".engram")
	}
	if cfg.MemoriesDir == "" {
		cfg.MemoriesDir = filepath.Join(cfg.DataDir, "memories")
	}
	if cfg.Vector.Path == "" {
		cfg.Vector.Path = filepath.Join(cfg.DataDir, "vectors.db")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "engram.log")
	}

	return cfg, nil
}

// applyEnvOverrides wires the env vars viper's AutomaticEnv cannot map onto
// nested keys without explicit binding.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if key := v.GetString("OPENAI_API_KEY"); key != "" {
		cfg.Provider.OpenAIAPIKey = key
	}
	if key := v.GetString("ANTHROPIC_API_KEY"); key != "" {
		cfg.Provider.AnthropicAPIKey = key
	}
	if dir := v.GetString("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if dir := v.GetString("MEMORIES_DIR"); dir != "" {
		cfg.MemoriesDir = dir
	}
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to determine config path")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("data_dir", cfg.DataDir)
	v.Set("memories_dir", cfg.MemoriesDir)
	v.Set("provider", cfg.Provider)
	v.Set("vector", cfg.Vector)
	v.Set("learner", cfg.Learner)
	v.Set("logging", cfg.Logging)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".engram", "engram.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
