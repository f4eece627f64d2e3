package memory

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemVectorIndex is a pure-Go VectorIndex backed by chromem-go. It avoids
// the cgo dependency of the sqlite backend, at the cost of keeping all
// vectors in process memory.
type ChromemVectorIndex struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromemVectorIndex creates a chromem-backed index. With a non-empty path
// the collection is persisted to disk; otherwise it is in-memory only.
func NewChromemVectorIndex(path string) (*ChromemVectorIndex, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection("memories", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection: %w", err)
	}

	return &ChromemVectorIndex{db: db, col: col}, nil
}

// Upsert stores or replaces the vector for id.
func (v *ChromemVectorIndex) Upsert(ctx context.Context, id string, vec []float32) error {
	err := v.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   id, // chromem requires content; the id correlates back to the store
		Embedding: vec,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// Search returns up to k neighbors by descending cosine similarity.
func (v *ChromemVectorIndex) Search(ctx context.Context, vec []float32, k int) ([]Neighbor, error) {
	// chromem rejects nResults larger than the collection
	count := v.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := v.col.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(results))
	for _, r := range results {
		neighbors = append(neighbors, Neighbor{ID: r.ID, Similarity: float64(r.Similarity)})
	}
	return neighbors, nil
}

// Delete removes the vector for id. Deleting an absent id is a no-op.
func (v *ChromemVectorIndex) Delete(ctx context.Context, id string) error {
	if err := v.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

// Close is a no-op; chromem persists on every mutation.
func (v *ChromemVectorIndex) Close() error { return nil }
