package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/engramlab/engram/internal/observability"
	"github.com/engramlab/engram/internal/tracing"
)

// ReconcileReport lists the repairs a reconciliation pass made.
type ReconcileReport struct {
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
}

// Reconcile walks the memory tree and repairs drift between the markdown
// files, the index and the vector store: files missing from the index are
// registered, files whose text diverged are re-embedded and their index
// entries rewritten, and index entries without a backing file are dropped
// along with their vectors. Only one pass runs at a time.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	ctx, span := tracing.StartSpan(ctx, "engram.memory", "memory.reconcile")
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	s.mu.Lock()
	if s.reconciling {
		s.mu.Unlock()
		span.SetStatus(codes.Error, "reconcile already in progress")
		return nil, errors.New("reconcile already in progress")
	}
	s.reconciling = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reconciling = false
		s.dirty = false
		s.mu.Unlock()
	}()

	start := time.Now()
	report := &ReconcileReport{}

	fromFiles, err := s.decodeTree(logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records, err := s.index.All()
	if err != nil {
		return nil, err
	}
	indexed := make(map[string]*Memory, len(records))
	for _, rec := range records {
		indexed[rec.ID] = rec
	}

	for id, m := range fromFiles {
		rec, ok := indexed[id]
		switch {
		case !ok:
			if err := s.repairMissingEntry(ctx, m); err != nil {
				logger.Warn().Err(err).Str("id", id).Msg("Failed to register untracked memory file")
				continue
			}
			report.Added = append(report.Added, id)
			observability.RecordReconcileRepair("added")
		case rec.Content.Text != m.Content.Text || rec.Name != m.Name:
			if err := s.repairDivergedEntry(ctx, m, rec); err != nil {
				logger.Warn().Err(err).Str("id", id).Msg("Failed to repair diverged memory")
				continue
			}
			report.Updated = append(report.Updated, id)
			observability.RecordReconcileRepair("updated")
		}
	}

	for id := range indexed {
		if _, ok := fromFiles[id]; ok {
			continue
		}
		if _, err := s.index.RewriteReplacing(id, nil); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("Failed to drop orphaned index entry")
			continue
		}
		if err := s.vectors.Delete(ctx, id); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("Failed to drop orphaned vector entry")
		}
		report.Removed = append(report.Removed, id)
		observability.RecordReconcileRepair("removed")
	}

	logger.Info().
		Int("added", len(report.Added)).
		Int("updated", len(report.Updated)).
		Int("removed", len(report.Removed)).
		Dur("duration", time.Since(start)).
		Msg("Reconcile completed")
	s.updateGauge()

	return report, nil
}

// decodeTree decodes every memory document under the base directory, keyed by
// id. Documents without an id or with an unparsable format are skipped with a
// warning so a single bad file never blocks the repair pass.
func (s *Service) decodeTree(logger zerolog.Logger) (map[string]*Memory, error) {
	fromFiles := make(map[string]*Memory)

	err := filepath.WalkDir(s.layout.BaseDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read memory file")
			return nil
		}

		m, err := DecodeMarkdown(string(data))
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Skipping unparsable memory file")
			return nil
		}
		if m.ID == "" {
			logger.Warn().Str("path", path).Msg("Skipping memory file without id")
			return nil
		}

		fromFiles[m.ID] = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk memory tree: %w", err)
	}

	return fromFiles, nil
}

// repairMissingEntry registers a memory file the index does not know about.
func (s *Service) repairMissingEntry(ctx context.Context, m *Memory) error {
	vec, err := s.embed(ctx, m.Content.Text)
	if err != nil {
		return err
	}
	if err := s.vectors.Upsert(ctx, m.ID, vec); err != nil {
		return &PersistenceError{Store: "vector", Op: "upsert", Err: err}
	}
	if err := s.index.Append(m); err != nil {
		return &PersistenceError{Store: "index", Op: "append", Err: err}
	}
	return nil
}

// repairDivergedEntry refreshes the index entry for a file edited outside the
// service, re-embedding only when the text itself changed.
func (s *Service) repairDivergedEntry(ctx context.Context, m, rec *Memory) error {
	if rec.Content.Text != m.Content.Text {
		vec, err := s.embed(ctx, m.Content.Text)
		if err != nil {
			return err
		}
		if err := s.vectors.Upsert(ctx, m.ID, vec); err != nil {
			return &PersistenceError{Store: "vector", Op: "upsert", Err: err}
		}
	}
	if _, err := s.index.RewriteReplacing(m.ID, m); err != nil {
		return &PersistenceError{Store: "index", Op: "rewrite", Err: err}
	}
	return nil
}
