package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Content holds the free-text body of a memory plus the rendered hashtag
// trailer, if any.
type Content struct {
	Text     string `json:"text" yaml:"-"`
	Hashtags string `json:"hashtags,omitempty" yaml:"-"`
}

// Metadata carries enrichment data rendered into recall output.
type Metadata struct {
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	URLs []string `json:"urls,omitempty" yaml:"urls,omitempty"`
}

// Memory is the unit of persisted knowledge. Its on-disk location is a
// deterministic function of Category, Subcategory and Name.
type Memory struct {
	ID          string    `json:"id" yaml:"id"`
	Category    string    `json:"category" yaml:"category"`
	Subcategory string    `json:"subcategory" yaml:"subcategory"`
	Name        string    `json:"name" yaml:"name"`
	Content     Content   `json:"content" yaml:"-"`
	Metadata    Metadata  `json:"metadata" yaml:"metadata"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// Draft is the caller-supplied part of a memory before identity and
// timestamps are assigned.
type Draft struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Name        string   `json:"name"`
	Text        string   `json:"text"`
	Tags        []string `json:"tags,omitempty"`
	URLs        []string `json:"urls,omitempty"`
}

// newMemory stamps a draft with identity and creation timestamps.
func newMemory(d Draft) *Memory {
	now := time.Now().UTC()
	return &Memory{
		ID:          uuid.New().String(),
		Category:    d.Category,
		Subcategory: d.Subcategory,
		Name:        d.Name,
		Content:     Content{Text: d.Text},
		Metadata:    Metadata{Tags: d.Tags, URLs: d.URLs},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ScoredMemory pairs a memory with its similarity to a query.
type ScoredMemory struct {
	Memory     *Memory `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// MutationResult reports which sub-stores a mutating operation reached. The
// file, the index and the vector store are updated independently, so a caller
// can use this to detect partial failure and schedule a repair.
type MutationResult struct {
	File   bool `json:"file"`
	Index  bool `json:"index"`
	Vector bool `json:"vector"`

	Path    string `json:"path,omitempty"`
	OldPath string `json:"old_path,omitempty"`
}

var (
	// ErrInvalidFormat reports a markdown document without a usable
	// front-matter block.
	ErrInvalidFormat = errors.New("invalid memory document format")

	// ErrNotFound reports an operation against an id absent from the index.
	ErrNotFound = errors.New("memory not found")

	// ErrCapabilityTimeout reports an external capability call that exceeded
	// its deadline.
	ErrCapabilityTimeout = errors.New("capability call timed out")
)

// PersistenceError reports a failed write to one of the sub-stores.
type PersistenceError struct {
	Store string // "file", "index" or "vector"
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Store, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CapabilityError reports a failed call to an external capability such as the
// embedding or completion API.
type CapabilityError struct {
	Kind string // "embedding" or "completion"
	Err  error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s capability failed: %v", e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }
