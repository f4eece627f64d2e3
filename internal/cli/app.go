package cli

import (
	"fmt"

	"github.com/engramlab/engram/internal/config"
	"github.com/engramlab/engram/internal/logger"
	"github.com/engramlab/engram/pkg/assistant"
	"github.com/engramlab/engram/pkg/memory"
)

// app wires the configured stack behind every subcommand: config, logger,
// embedder, vector index, memory service, and the learning orchestrator.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	service *memory.Service
	learner *assistant.Orchestrator
}

func newApp(watch bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}

	embedder := memory.NewOpenAIEmbedder(cfg.Provider.OpenAIAPIKey, cfg.Provider.EmbeddingModel)

	var vectors memory.VectorIndex
	switch cfg.Vector.Backend {
	case "chromem":
		vectors, err = memory.NewChromemVectorIndex(cfg.Vector.Path)
	default:
		vectors, err = memory.NewSQLiteVectorIndex(cfg.Vector.Path, embedder.Dimension(), log.GetZerolog())
	}
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	service, err := memory.NewService(memory.Config{
		BaseDir:              cfg.MemoriesDir,
		Logger:               log.GetZerolog(),
		Embedder:             embedder,
		Vectors:              vectors,
		MaxConcurrentQueries: cfg.Learner.MaxConcurrentQueries,
		Watch:                watch,
	})
	if err != nil {
		vectors.Close()
		log.Close()
		return nil, err
	}

	var completer assistant.Completer
	switch cfg.Provider.Completion {
	case "anthropic":
		completer = assistant.NewAnthropicCompleter(cfg.Provider.AnthropicAPIKey, cfg.Provider.CompletionModel)
	default:
		completer = assistant.NewOpenAICompleter(cfg.Provider.OpenAIAPIKey, cfg.Provider.CompletionModel)
	}

	learner, err := assistant.NewOrchestrator(assistant.OrchestratorConfig{
		Completer:          completer,
		Memories:           service,
		Logger:             log.GetZerolog(),
		MaxConcurrentItems: cfg.Learner.MaxConcurrentItems,
		CapabilityTimeout:  cfg.Learner.CapabilityTimeout,
	})
	if err != nil {
		service.Close()
		log.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, service: service, learner: learner}, nil
}

func (a *app) Close() {
	if err := a.service.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close memory service")
	}
	a.log.Close()
}
