package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/engramlab/engram/internal/observability"
	"github.com/engramlab/engram/internal/tracing"
)

const (
	// DefaultSimilarLimit is the neighbor count for similarity search.
	DefaultSimilarLimit = 15

	// NoMemoriesSentinel is the exact recall output when nothing matched.
	NoMemoriesSentinel = "<recalled_memories>No relevant memories found.</recalled_memories>"
)

// Service orchestrates the markdown files, the JSONL index and the vector
// index behind the memory CRUD, search and recall operations. The three
// stores are mutated independently with no cross-store transaction; mutating
// operations report what they reached in a MutationResult.
type Service struct {
	layout   *Layout
	index    *Index
	vectors  VectorIndex
	embedder Embedder
	logger   zerolog.Logger

	maxConcurrentQueries int

	mu          sync.RWMutex
	dirty       bool
	reconciling bool
	watcher     *Watcher
}

// Config holds memory service configuration.
type Config struct {
	BaseDir  string
	Logger   zerolog.Logger
	Embedder Embedder // optional; similarity operations fail without it
	Vectors  VectorIndex

	// MaxConcurrentQueries bounds recall fan-out. Zero means 4.
	MaxConcurrentQueries int

	// Watch enables the fsnotify watcher that marks the store dirty when
	// memory files change outside the service.
	Watch bool
}

// NewService creates a memory service rooted at cfg.BaseDir and ensures the
// taxonomy directory tree exists.
func NewService(cfg Config) (*Service, error) {
	observability.EnsureRegistered()

	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if cfg.Vectors == nil {
		return nil, fmt.Errorf("vector index is required")
	}

	layout, err := NewLayout(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	if err := layout.EnsureDirectories(); err != nil {
		return nil, err
	}

	maxQueries := cfg.MaxConcurrentQueries
	if maxQueries <= 0 {
		maxQueries = 4
	}

	s := &Service{
		layout:               layout,
		index:                NewIndex(layout.IndexPath(), cfg.Logger),
		vectors:              cfg.Vectors,
		embedder:             cfg.Embedder,
		logger:               cfg.Logger.With().Str("component", "memory-service").Logger(),
		maxConcurrentQueries: maxQueries,
	}

	if cfg.Watch {
		watcher, err := NewWatcher(cfg.Logger, s.MarkDirty)
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		for _, dir := range layout.Dirs() {
			if err := watcher.Watch(dir); err != nil {
				watcher.Stop()
				return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
		s.watcher = watcher
	}

	s.logger.Info().Str("base_dir", cfg.BaseDir).Msg("Memory service initialized")
	return s, nil
}

// Layout exposes the storage layout, mainly for the CLI.
func (s *Service) Layout() *Layout { return s.layout }

// Index exposes the index log, mainly for reconciliation tooling.
func (s *Service) Index() *Index { return s.index }

// MarkDirty flags the store so the next recall reconciles it first.
func (s *Service) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// Close stops the watcher and releases the vector index.
func (s *Service) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	return s.vectors.Close()
}

// CreateMemory assigns identity and timestamps to the draft, embeds its text,
// upserts the vector, writes the markdown file and appends the index entry.
// Steps after a successful embedding are not rolled back on failure; the
// returned MutationResult records how far the write sequence got.
func (s *Service) CreateMemory(ctx context.Context, draft Draft) (*Memory, *MutationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "engram.memory", "memory.create",
		attribute.String("category", draft.Category),
		attribute.String("subcategory", draft.Subcategory),
	)
	defer span.End()

	start := time.Now()
	result := &MutationResult{}

	if err := s.layout.ValidateTaxonomy(draft.Category, draft.Subcategory); err != nil {
		span.SetStatus(codes.Error, err.Error())
		observability.RecordStoreOp("create", time.Since(start), false)
		return nil, result, err
	}

	m := newMemory(draft)
	result.Path = s.layout.FilePath(m)

	vec, err := s.embed(ctx, m.Content.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordStoreOp("create", time.Since(start), false)
		return nil, result, err
	}

	if err := s.vectors.Upsert(ctx, m.ID, vec); err != nil {
		observability.RecordStoreOp("create", time.Since(start), false)
		return nil, result, &PersistenceError{Store: "vector", Op: "upsert", Err: err}
	}
	result.Vector = true

	if _, err := s.layout.EnsureDirectory(m.Category, m.Subcategory); err != nil {
		observability.RecordStoreOp("create", time.Since(start), false)
		return nil, result, &PersistenceError{Store: "file", Op: "mkdir", Err: err}
	}

	doc, err := EncodeMarkdown(m)
	if err != nil {
		observability.RecordStoreOp("create", time.Since(start), false)
		return nil, result, &PersistenceError{Store: "file", Op: "encode", Err: err}
	}
	if err := os.WriteFile(result.Path, []byte(doc), 0644); err != nil {
		observability.RecordStoreOp("create", time.Since(start), false)
		return nil, result, &PersistenceError{Store: "file", Op: "write", Err: err}
	}
	result.File = true

	if err := s.index.Append(m); err != nil {
		observability.RecordStoreOp("create", time.Since(start), false)
		return m, result, &PersistenceError{Store: "index", Op: "append", Err: err}
	}
	result.Index = true

	s.logger.Info().
		Str("id", m.ID).
		Str("name", m.Name).
		Str("path", result.Path).
		Msg("Memory created")
	observability.RecordStoreOp("create", time.Since(start), true)
	s.updateGauge()

	return m, result, nil
}

// GetMemory resolves id via the index and decodes the backing file. It
// returns (nil, nil) when the id is absent from the index.
func (s *Service) GetMemory(ctx context.Context, id string) (*Memory, error) {
	rec, err := s.index.Find(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	path := s.layout.FilePath(rec)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file %s: %w", path, err)
	}

	m, err := DecodeMarkdown(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode memory %s: %w", id, err)
	}
	return m, nil
}

// UpdateMemory re-stamps UpdatedAt, rewrites the file, re-embeds only when
// the text changed against the stored version, and rewrites the index entry.
// When the name slug changed, the old file is removed and the result carries
// both paths.
func (s *Service) UpdateMemory(ctx context.Context, m *Memory) (*Memory, *MutationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "engram.memory", "memory.update",
		attribute.String("id", m.ID),
	)
	defer span.End()

	start := time.Now()
	result := &MutationResult{}

	if err := s.layout.ValidateTaxonomy(m.Category, m.Subcategory); err != nil {
		observability.RecordStoreOp("update", time.Since(start), false)
		return nil, result, err
	}

	old, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("id", m.ID).Msg("Could not load stored version before update")
	}

	m.UpdatedAt = time.Now().UTC()
	result.Path = s.layout.FilePath(m)

	doc, err := EncodeMarkdown(m)
	if err != nil {
		observability.RecordStoreOp("update", time.Since(start), false)
		return nil, result, &PersistenceError{Store: "file", Op: "encode", Err: err}
	}
	if _, err := s.layout.EnsureDirectory(m.Category, m.Subcategory); err != nil {
		observability.RecordStoreOp("update", time.Since(start), false)
		return nil, result, &PersistenceError{Store: "file", Op: "mkdir", Err: err}
	}
	if err := os.WriteFile(result.Path, []byte(doc), 0644); err != nil {
		observability.RecordStoreOp("update", time.Since(start), false)
		return nil, result, &PersistenceError{Store: "file", Op: "write", Err: err}
	}
	result.File = true

	// A renamed memory leaves its old file behind; remove it so the path
	// stays a function of the current fields.
	if old != nil {
		oldPath := s.layout.FilePath(old)
		if oldPath != result.Path {
			result.OldPath = oldPath
			if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn().Err(err).Str("path", oldPath).Msg("Failed to remove renamed memory file")
			}
		}
	}

	if old == nil || old.Content.Text != m.Content.Text {
		vec, err := s.embed(ctx, m.Content.Text)
		if err != nil {
			observability.RecordStoreOp("update", time.Since(start), false)
			return m, result, err
		}
		if err := s.vectors.Upsert(ctx, m.ID, vec); err != nil {
			observability.RecordStoreOp("update", time.Since(start), false)
			return m, result, &PersistenceError{Store: "vector", Op: "upsert", Err: err}
		}
		result.Vector = true
	}

	if _, err := s.index.RewriteReplacing(m.ID, m); err != nil {
		observability.RecordStoreOp("update", time.Since(start), false)
		return m, result, &PersistenceError{Store: "index", Op: "rewrite", Err: err}
	}
	result.Index = true

	s.logger.Info().Str("id", m.ID).Str("name", m.Name).Msg("Memory updated")
	observability.RecordStoreOp("update", time.Since(start), true)

	return m, result, nil
}

// DeleteMemory removes the file, the index entry and the vector. It returns
// false without touching anything when the id is unknown.
func (s *Service) DeleteMemory(ctx context.Context, id string) (bool, *MutationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "engram.memory", "memory.delete",
		attribute.String("id", id),
	)
	defer span.End()

	start := time.Now()
	result := &MutationResult{}

	m, err := s.GetMemory(ctx, id)
	if err != nil {
		observability.RecordStoreOp("delete", time.Since(start), false)
		return false, result, err
	}
	if m == nil {
		observability.RecordStoreOp("delete", time.Since(start), true)
		return false, result, nil
	}

	path := s.layout.FilePath(m)
	result.Path = path
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		observability.RecordStoreOp("delete", time.Since(start), false)
		return false, result, &PersistenceError{Store: "file", Op: "remove", Err: err}
	}
	result.File = true

	if _, err := s.index.RewriteReplacing(id, nil); err != nil {
		observability.RecordStoreOp("delete", time.Since(start), false)
		return false, result, &PersistenceError{Store: "index", Op: "rewrite", Err: err}
	}
	result.Index = true

	if err := s.vectors.Delete(ctx, id); err != nil {
		// Drift stays visible through the result instead of failing the
		// delete; the reconciler can repair it later.
		s.logger.Warn().Err(err).Str("id", id).Msg("Failed to delete vector entry")
	} else {
		result.Vector = true
	}

	s.logger.Info().Str("id", id).Msg("Memory deleted")
	observability.RecordStoreOp("delete", time.Since(start), true)
	s.updateGauge()

	return true, result, nil
}

// SearchMemories is the lexical fallback: a case-insensitive substring match
// over name and text across the whole index.
func (s *Service) SearchMemories(ctx context.Context, query string) ([]*Memory, error) {
	needle := strings.ToLower(query)
	return s.index.Scan(func(m *Memory) bool {
		return strings.Contains(strings.ToLower(m.Name), needle) ||
			strings.Contains(strings.ToLower(m.Content.Text), needle)
	})
}

// SearchSimilar embeds the query, asks the vector index for the top-k
// neighbors and resolves each id back to a full memory. Ids that no longer
// resolve are silently dropped.
func (s *Service) SearchSimilar(ctx context.Context, query string, k int) ([]ScoredMemory, error) {
	ctx, span := tracing.StartSpan(ctx, "engram.memory", "memory.search_similar",
		attribute.String("query", query),
	)
	defer span.End()

	if k <= 0 {
		k = DefaultSimilarLimit
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	neighbors, err := s.vectors.Search(ctx, vec, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &PersistenceError{Store: "vector", Op: "search", Err: err}
	}

	scored := make([]ScoredMemory, 0, len(neighbors))
	for _, n := range neighbors {
		m, err := s.GetMemory(ctx, n.ID)
		if err != nil || m == nil {
			// Vector entries without a live memory are cross-store drift.
			s.logger.Debug().Str("id", n.ID).Msg("Dropping unresolved similarity hit")
			continue
		}
		scored = append(scored, ScoredMemory{Memory: m, Similarity: n.Similarity})
	}
	return scored, nil
}

// Recall runs a similarity search for every query concurrently, merges the
// hits deduplicating by id (first seen in query order wins) and renders the
// XML-like block consumed by answer generation. A single failed query aborts
// the whole recall.
func (s *Service) Recall(ctx context.Context, queries []string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "engram.memory", "memory.recall",
		attribute.Int("queries", len(queries)),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()
	defer func() { observability.RecordRecall(time.Since(start), len(queries)) }()

	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()
	if dirty {
		if _, err := s.Reconcile(ctx); err != nil {
			logger.Warn().Err(err).Msg("Reconcile failed before recall")
		}
	}

	results := make([][]ScoredMemory, len(queries))
	errs := make([]error, len(queries))

	sem := make(chan struct{}, s.maxConcurrentQueries)
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = s.SearchSimilar(ctx, query, DefaultSimilarLimit)
		}(i, query)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("recall failed: %w", err)
		}
	}

	seen := make(map[string]bool)
	var unique []*Memory
	for _, hits := range results {
		for _, hit := range hits {
			if seen[hit.Memory.ID] {
				continue
			}
			seen[hit.Memory.ID] = true
			unique = append(unique, hit.Memory)
		}
	}

	if len(unique) == 0 {
		return NoMemoriesSentinel, nil
	}

	var b strings.Builder
	b.WriteString("<recalled_memories>\n")
	for _, m := range unique {
		b.WriteString(FormatMemory(m))
		b.WriteString("\n")
	}
	b.WriteString("</recalled_memories>")

	logger.Debug().Int("memories", len(unique)).Msg("Recall completed")
	return b.String(), nil
}

// FormatMemory renders one memory as the XML-like element used in recall
// output.
func FormatMemory(m *Memory) string {
	urls := ""
	if len(m.Metadata.URLs) > 0 {
		urls = "\nURLs: " + strings.Join(m.Metadata.URLs, ", ")
	}
	return fmt.Sprintf(
		`<memory id=%q name=%q category=%q subcategory=%q lastmodified=%q>%s%s</memory>`,
		m.ID, m.Name, m.Category, m.Subcategory,
		m.UpdatedAt.Format(time.RFC3339), m.Content.Text, urls,
	)
}

// ErrorSentinel renders a recall failure in the format the answer-generation
// boundary expects.
func ErrorSentinel(err error) string {
	return fmt.Sprintf("<recalled_memories>Error: %s</recalled_memories>", err)
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, &CapabilityError{Kind: "embedding", Err: fmt.Errorf("no embedder configured")}
	}
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	observability.RecordCapabilityCall("embedding", time.Since(start))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &CapabilityError{Kind: "embedding", Err: ErrCapabilityTimeout}
		}
		return nil, err
	}
	return vec, nil
}

func (s *Service) updateGauge() {
	if records, err := s.index.All(); err == nil {
		observability.SetMemoriesTotal(len(records))
	}
}
