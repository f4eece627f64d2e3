package memory

import "context"

// Neighbor is one similarity-search hit.
type Neighbor struct {
	ID         string
	Similarity float64
}

// VectorIndex stores one embedding per memory id and answers nearest-neighbor
// queries ordered by descending similarity. Implementations must be safe for
// concurrent use.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vec []float32) error
	Search(ctx context.Context, vec []float32, k int) ([]Neighbor, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
