package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kalambet/pdfrag/internal/metrics"
)

// DefaultBatchSize bounds the number of records per upsert request.
const DefaultBatchSize = 50

// Manager owns the lifecycle of one named index and batched writes to it.
type Manager struct {
	provider IndexProvider
	spec     IndexSpec
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewManager creates a Manager for the index described by spec. m may be nil.
func NewManager(p IndexProvider, spec IndexSpec, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{provider: p, spec: spec, metrics: m, logger: logger}
}

// Spec returns the index specification the Manager was created with.
func (m *Manager) Spec() IndexSpec {
	return m.spec
}

// Exists reports whether the index is present.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	names, err := m.provider.ListIndexes(ctx)
	if err != nil {
		return false, storeError("listing indexes", err)
	}
	return slices.Contains(names, m.spec.Name), nil
}

// Initialize connects to the index, creating it first when absent. Calling
// it repeatedly never creates a second index.
func (m *Manager) Initialize(ctx context.Context) (VectorIndex, error) {
	exists, err := m.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		m.logger.Info("Creating index", "index", m.spec.Name, "dimension", m.spec.Dimension, "metric", m.spec.Metric)
		if err := m.provider.CreateIndex(ctx, m.spec); err != nil {
			return nil, storeError("creating index "+m.spec.Name, err)
		}
	}
	return m.Open(ctx)
}

// Open connects to the index without creating it. Query vectors passed to
// the returned index are resized to the index dimension, matching what
// Store does to stored vectors.
func (m *Manager) Open(ctx context.Context) (VectorIndex, error) {
	idx, err := m.provider.Open(ctx, m.spec.Name)
	if err != nil {
		return nil, storeError("opening index "+m.spec.Name, err)
	}
	if m.spec.Dimension <= 0 {
		return idx, nil
	}
	return &sizedIndex{VectorIndex: idx, dimension: m.spec.Dimension}, nil
}

// sizedIndex resizes query vectors to the dimension the index was created
// with, so an embedding model of a different size still ranks correctly.
type sizedIndex struct {
	VectorIndex
	dimension int
}

func (x *sizedIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	return x.VectorIndex.Query(ctx, PadEmbedding(vector, x.dimension), topK)
}

// Delete removes the index if it exists.
func (m *Manager) Delete(ctx context.Context) error {
	exists, err := m.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		m.logger.Warn("Index does not exist", "index", m.spec.Name)
		return nil
	}
	if err := m.provider.DeleteIndex(ctx, m.spec.Name); err != nil {
		return storeError("deleting index "+m.spec.Name, err)
	}
	m.logger.Info("Deleted index", "index", m.spec.Name)
	return nil
}

// Store upserts records in sequential batches of at most batchSize, padding
// or truncating every vector to the index dimension first. The first
// failing batch aborts the call; earlier batches stay stored.
func (m *Manager) Store(ctx context.Context, idx VectorIndex, records []Record, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := make([]Record, end-start)
		for i, r := range records[start:end] {
			r.Values = PadEmbedding(r.Values, m.spec.Dimension)
			batch[i] = r
		}
		if err := idx.Upsert(ctx, batch); err != nil {
			return storeError(fmt.Sprintf("upserting records %d-%d", start, end-1), err)
		}
		m.metrics.RecordBatch()
		m.logger.Info("Upserted batch", "index", idx.Name(), "from", start, "count", len(batch))
	}
	return nil
}

// PadEmbedding returns v resized to n: truncated when longer, right-padded
// with zeros when shorter. v itself is never modified.
func PadEmbedding(v []float32, n int) []float32 {
	out := make([]float32, max(n, 0))
	copy(out, v)
	return out
}
