package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/engramlab/engram/internal/observability"
	"github.com/engramlab/engram/internal/tracing"
	"github.com/engramlab/engram/pkg/memory"
)

const (
	defaultMaxConcurrentItems = 4
	defaultCapabilityTimeout  = 30 * time.Second
)

// MemoryService is the slice of the memory store the orchestrator drives.
type MemoryService interface {
	CreateMemory(ctx context.Context, draft memory.Draft) (*memory.Memory, *memory.MutationResult, error)
	GetMemory(ctx context.Context, id string) (*memory.Memory, error)
	UpdateMemory(ctx context.Context, m *memory.Memory) (*memory.Memory, *memory.MutationResult, error)
	DeleteMemory(ctx context.Context, id string) (bool, *memory.MutationResult, error)
	Recall(ctx context.Context, queries []string) (string, error)
	SearchSimilar(ctx context.Context, query string, k int) ([]memory.ScoredMemory, error)
}

// Orchestrator runs the learning loop over a conversation: extract queries,
// recall, decide, then apply additions and updates through the memory store.
type Orchestrator struct {
	completer Completer
	memories  MemoryService
	logger    zerolog.Logger

	maxConcurrentItems int
	capabilityTimeout  time.Duration
}

type OrchestratorConfig struct {
	Completer Completer
	Memories  MemoryService
	Logger    zerolog.Logger

	// MaxConcurrentItems bounds how many add/update items are processed at
	// once. Defaults to 4.
	MaxConcurrentItems int

	// CapabilityTimeout caps each completion call. Defaults to 30s.
	CapabilityTimeout time.Duration
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Completer == nil {
		return nil, errors.New("assistant: completer is required")
	}
	if cfg.Memories == nil {
		return nil, errors.New("assistant: memory service is required")
	}
	if cfg.MaxConcurrentItems <= 0 {
		cfg.MaxConcurrentItems = defaultMaxConcurrentItems
	}
	if cfg.CapabilityTimeout <= 0 {
		cfg.CapabilityTimeout = defaultCapabilityTimeout
	}
	return &Orchestrator{
		completer:          cfg.Completer,
		memories:           cfg.Memories,
		logger:             cfg.Logger.With().Str("component", "assistant").Logger(),
		maxConcurrentItems: cfg.MaxConcurrentItems,
		capabilityTimeout:  cfg.CapabilityTimeout,
	}, nil
}

// complete runs one bounded completion call.
func (o *Orchestrator) complete(ctx context.Context, msgs []Message, jsonMode bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.capabilityTimeout)
	defer cancel()

	start := time.Now()
	out, err := o.completer.Complete(callCtx, msgs, jsonMode)
	observability.RecordCapabilityCall("completion", time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: completion exceeded %s", memory.ErrCapabilityTimeout, o.capabilityTimeout)
		}
		return "", err
	}
	return out, nil
}

// ExtractQueries asks the model which search phrases would surface memories
// relevant to the conversation.
func (o *Orchestrator) ExtractQueries(ctx context.Context, msgs []Message) ([]string, error) {
	thread := append([]Message{{Role: RoleSystem, Content: extractQueriesPrompt()}}, msgs...)
	raw, err := o.complete(ctx, thread, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExtraction, err)
	}
	return decodeQueries(raw)
}

// ShouldLearn asks the model what the conversation adds to or contradicts in
// the recalled memories. A malformed response comes back as a ParseFailure
// rather than an error.
func (o *Orchestrator) ShouldLearn(ctx context.Context, msgs []Message, recalled string) (ShouldLearnResult, error) {
	thread := append([]Message{{Role: RoleSystem, Content: shouldLearnPrompt(recalled)}}, msgs...)
	raw, err := o.complete(ctx, thread, true)
	if err != nil {
		return ShouldLearnResult{}, err
	}
	result := decodeDecision(raw)
	if result.Failure != nil {
		o.logger.Warn().Str("reason", result.Failure.Reason).Msg("should-learn response not decodable")
	}
	return result, nil
}

// Learn applies a should-learn decision and returns the modification report.
// Individual item failures become failed outcomes in the report; only the
// report itself is infallible here.
func (o *Orchestrator) Learn(ctx context.Context, result ShouldLearnResult, recalled string) string {
	if result.Empty() {
		return NoChangesSentinel
	}

	adds := o.addMemories(ctx, result.Decision.Add, recalled)
	updates := o.updateMemories(ctx, result.Decision.Update, recalled)
	return formatModifications(adds, updates)
}

// addMemories structures and stores each new fact, bounded by
// maxConcurrentItems. Outcomes keep the input order.
func (o *Orchestrator) addMemories(ctx context.Context, items []string, recalled string) []addOutcome {
	if len(items) == 0 {
		return nil
	}

	outcomes := make([]addOutcome, len(items))
	sem := make(chan struct{}, o.maxConcurrentItems)
	var wg sync.WaitGroup
	for i, content := range items {
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = o.addOne(ctx, content, recalled)
		}(i, content)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) addOne(ctx context.Context, content, recalled string) addOutcome {
	log := tracing.LoggerFromContext(ctx, o.logger)
	failed := addOutcome{Status: "failed", Content: content}

	thread := []Message{
		{Role: RoleSystem, Content: structureMemoryPrompt(recalled)},
		{Role: RoleUser, Content: fmt.Sprintf("Please remember this: %s. Make sure to store it all and organize well in your knowledge structure.", content)},
	}
	raw, err := o.complete(ctx, thread, true)
	if err != nil {
		log.Warn().Err(err).Msg("memory structuring call failed")
		observability.RecordLearnOutcome("add", "failed")
		return failed
	}
	draft, err := decodeDraft(raw)
	if err != nil {
		log.Warn().Err(err).Msg("memory structuring response not decodable")
		observability.RecordLearnOutcome("add", "failed")
		return failed
	}

	m, _, err := o.memories.CreateMemory(ctx, draft)
	if err != nil {
		log.Warn().Err(err).Str("name", draft.Name).Msg("memory creation failed")
		observability.RecordLearnOutcome("add", "failed")
		return failed
	}
	observability.RecordLearnOutcome("add", "success")
	return addOutcome{Status: "success", Name: m.Name, ID: m.ID, Content: content}
}

// updateMemories resolves each update candidate into a revision, a deletion,
// or no action, bounded by maxConcurrentItems.
func (o *Orchestrator) updateMemories(ctx context.Context, items []UpdateCandidate, recalled string) []updateOutcome {
	if len(items) == 0 {
		return nil
	}

	outcomes := make([]updateOutcome, len(items))
	sem := make(chan struct{}, o.maxConcurrentItems)
	var wg sync.WaitGroup
	for i, candidate := range items {
		wg.Add(1)
		go func(i int, candidate UpdateCandidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = o.updateOne(ctx, candidate, recalled)
		}(i, candidate)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) updateOne(ctx context.Context, candidate UpdateCandidate, recalled string) updateOutcome {
	log := tracing.LoggerFromContext(ctx, o.logger)
	described := fmt.Sprintf("id=%s instructions=%s", candidate.ID, candidate.Instructions)
	failed := updateOutcome{Status: "failed", Content: described}

	thread := []Message{
		{Role: RoleSystem, Content: updateMemoryPrompt(recalled)},
		{Role: RoleUser, Content: fmt.Sprintf("Please update this memory: %s", described)},
	}
	raw, err := o.complete(ctx, thread, true)
	if err != nil {
		log.Warn().Err(err).Str("id", candidate.ID).Msg("memory update call failed")
		observability.RecordLearnOutcome("update", "failed")
		return failed
	}
	decision, err := decodeUpdateDecision(raw)
	if err != nil {
		log.Warn().Err(err).Str("id", candidate.ID).Msg("memory update response not decodable")
		observability.RecordLearnOutcome("update", "failed")
		return failed
	}

	switch {
	case decision.Updating && decision.Memory != nil:
		revised := decision.Memory
		if revised.CreatedAt.IsZero() {
			if existing, err := o.memories.GetMemory(ctx, revised.ID); err == nil && existing != nil {
				revised.CreatedAt = existing.CreatedAt
			}
		}
		m, _, err := o.memories.UpdateMemory(ctx, revised)
		if err != nil {
			log.Warn().Err(err).Str("id", revised.ID).Msg("memory revision failed")
			observability.RecordLearnOutcome("update", "failed")
			return failed
		}
		observability.RecordLearnOutcome("update", "success")
		return updateOutcome{Status: "success", Name: m.Name, ID: m.ID, Content: m.Content.Text}

	case len(decision.Delete) > 0:
		for _, id := range decision.Delete {
			if _, _, err := o.memories.DeleteMemory(ctx, id); err != nil {
				log.Warn().Err(err).Str("id", id).Msg("memory deletion failed")
			}
		}
		observability.RecordLearnOutcome("update", "deleted")
		return updateOutcome{Status: "deleted", Deleted: decision.Delete}

	default:
		observability.RecordLearnOutcome("update", "no_action")
		return updateOutcome{Status: "no_action", Content: described}
	}
}

// TurnResult is one full pass of the learning loop over a conversation.
type TurnResult struct {
	Queries       []string
	Recalled      string
	Modifications string
}

// Run executes the full loop: extract queries, recall, decide, learn. Recall
// failures degrade to the error sentinel so the decision stage still sees a
// well-formed memories block.
func (o *Orchestrator) Run(ctx context.Context, msgs []Message) (*TurnResult, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	ctx = tracing.WithRunID(ctx, runID)
	log := tracing.LoggerFromContext(ctx, o.logger)

	queries, err := o.ExtractQueries(ctx, msgs)
	if err != nil {
		return nil, err
	}

	recalled, err := o.memories.Recall(ctx, queries)
	if err != nil {
		log.Warn().Err(err).Msg("recall failed, continuing with error sentinel")
		recalled = memory.ErrorSentinel(err)
	}

	decision, err := o.ShouldLearn(ctx, msgs, recalled)
	if err != nil {
		return nil, err
	}

	modifications := o.Learn(ctx, decision, recalled)
	log.Info().
		Int("queries", len(queries)).
		Bool("learned", !decision.Empty()).
		Msg("learning turn complete")

	return &TurnResult{Queries: queries, Recalled: recalled, Modifications: modifications}, nil
}

// RelevantContext returns the texts of the memories most similar to a query,
// separated by blank lines.
func (o *Orchestrator) RelevantContext(ctx context.Context, query string, k int) (string, error) {
	scored, err := o.memories.SearchSimilar(ctx, query, k)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(scored))
	for _, s := range scored {
		texts = append(texts, s.Memory.Content.Text)
	}
	return joinParagraphs(texts), nil
}
