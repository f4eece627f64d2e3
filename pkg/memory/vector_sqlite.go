package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// SQLiteVectorIndex is the default VectorIndex, backed by a sqlite-vec vec0
// virtual table with cosine distance.
type SQLiteVectorIndex struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteVectorIndex opens (or creates) the vector database at path for
// vectors of the given dimension.
func NewSQLiteVectorIndex(path string, dimension int, logger zerolog.Logger) (*SQLiteVectorIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("vector database path is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	// WAL for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memories USING vec0(
			memory_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimension)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vector table: %w", err)
	}

	return &SQLiteVectorIndex{
		db:     db,
		logger: logger.With().Str("component", "vector-index").Logger(),
	}, nil
}

// Upsert stores or replaces the vector for id.
func (v *SQLiteVectorIndex) Upsert(ctx context.Context, id string, vec []float32) error {
	embedding, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = v.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO memories (memory_id, embedding) VALUES (?, ?)",
		id, string(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// Search returns up to k neighbors by descending cosine similarity.
func (v *SQLiteVectorIndex) Search(ctx context.Context, vec []float32, k int) ([]Neighbor, error) {
	embedding, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := v.db.QueryContext(ctx, `
		SELECT
			memory_id,
			vec_distance_cosine(embedding, ?) as distance
		FROM memories
		ORDER BY distance ASC
		LIMIT ?
	`, string(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		// cosine distance is in [0, 2]; similarity = 1 - distance
		neighbors = append(neighbors, Neighbor{ID: id, Similarity: 1.0 - distance})
	}
	return neighbors, rows.Err()
}

// Delete removes the vector for id. Deleting an absent id is a no-op.
func (v *SQLiteVectorIndex) Delete(ctx context.Context, id string) error {
	if _, err := v.db.ExecContext(ctx, "DELETE FROM memories WHERE memory_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (v *SQLiteVectorIndex) Close() error {
	return v.db.Close()
}
