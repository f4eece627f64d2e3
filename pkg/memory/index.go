package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Index is the append-only JSONL log mapping memory ids to their full records,
// one JSON object per line. Mutations rewrite the log in place, so the index
// enforces a single-writer discipline with an internal mutex; lines it cannot
// parse are preserved verbatim on rewrite.
type Index struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewIndex creates an index over the log file at path. The file is created
// lazily on first append.
func NewIndex(path string, logger zerolog.Logger) *Index {
	return &Index{
		path:   path,
		logger: logger.With().Str("component", "memory-index").Logger(),
	}
}

// Path returns the log file location.
func (ix *Index) Path() string { return ix.path }

// Append adds one record line. It must not be called twice for the same id
// without an intervening RewriteReplacing.
func (ix *Index) Append(m *Memory) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal index entry: %w", err)
	}

	f, err := os.OpenFile(ix.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append index entry: %w", err)
	}
	return nil
}

// RewriteReplacing rewrites the log with the line for id replaced by rec, or
// omitted when rec is nil. All other lines are kept verbatim and in order.
// It reports whether a line for id was found; when none is, the file is left
// untouched byte for byte.
func (ix *Index) RewriteReplacing(id string, rec *Memory) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	data, err := os.ReadFile(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read index: %w", err)
	}

	var out []string
	found := false
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var probe struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err != nil || probe.ID != id {
			out = append(out, line)
			continue
		}
		found = true
		if rec != nil {
			replacement, err := json.Marshal(rec)
			if err != nil {
				return false, fmt.Errorf("failed to marshal index entry: %w", err)
			}
			out = append(out, string(replacement))
		}
	}

	if !found {
		return false, nil
	}

	content := ""
	if len(out) > 0 {
		content = strings.Join(out, "\n") + "\n"
	}

	tmp, err := os.CreateTemp(filepath.Dir(ix.path), ".index-*.jsonl")
	if err != nil {
		return false, fmt.Errorf("failed to create temp index: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to close temp index: %w", err)
	}
	if err := os.Rename(tmpPath, ix.path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to replace index: %w", err)
	}

	return true, nil
}

// Find returns the record for id, or nil when absent.
func (ix *Index) Find(id string) (*Memory, error) {
	records, err := ix.Scan(func(m *Memory) bool { return m.ID == id })
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Scan returns every record matching the predicate, in log order. A nil
// predicate matches everything.
func (ix *Index) Scan(match func(*Memory) bool) ([]*Memory, error) {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var records []*Memory
	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var m Memory
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			ix.logger.Warn().Err(err).Int("line", i+1).Msg("Skipping unparsable index line")
			continue
		}
		if match == nil || match(&m) {
			records = append(records, &m)
		}
	}
	return records, nil
}

// All returns every record in log order.
func (ix *Index) All() ([]*Memory, error) {
	return ix.Scan(nil)
}
