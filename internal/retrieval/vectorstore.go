package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// ErrStore marks failures of the vector index: creation, connection,
// upsert and query.
var ErrStore = errors.New("vector store error")

// ErrIndexNotFound is returned when opening an index that does not exist.
var ErrIndexNotFound = errors.New("index not found")

// storeError attaches ErrStore to err.
func storeError(op string, err error) error {
	if errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// Record types stored in Metadata.Type.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// Metadata is the payload stored next to every vector.
type Metadata struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	PDFName   string `json:"pdf_name,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	Context   string `json:"context,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// Record is one vector with its id and metadata.
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match is a query result. Metadata is always populated when the backend
// returned a decodable payload.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// IndexSpec describes an index to create.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

// IndexStats summarizes the contents of an index.
type IndexStats struct {
	Count     int
	Dimension int
}

// IndexProvider manages the lifecycle of named vector indexes.
type IndexProvider interface {
	// ListIndexes returns the names of all existing indexes.
	ListIndexes(ctx context.Context) ([]string, error)

	// CreateIndex creates an index and returns once it accepts writes.
	CreateIndex(ctx context.Context, spec IndexSpec) error

	// DeleteIndex removes an index and all of its vectors.
	DeleteIndex(ctx context.Context, name string) error

	// Open connects to an existing index.
	Open(ctx context.Context, name string) (VectorIndex, error)
}

// VectorIndex is a handle on one index.
type VectorIndex interface {
	Name() string

	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK nearest records, most similar first.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Stats reports the vector count and dimension.
	Stats(ctx context.Context) (IndexStats, error)
}
