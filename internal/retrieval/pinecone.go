package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/pdfrag/internal/pinecone"
)

var (
	_ IndexProvider = (*PineconeIndexes)(nil)
	_ VectorIndex   = (*pineconeIndex)(nil)
)

// PineconeIndexes manages serverless Pinecone indexes.
type PineconeIndexes struct {
	client *pinecone.Client
}

// NewPineconeIndexes wraps a Pinecone client.
func NewPineconeIndexes(c *pinecone.Client) *PineconeIndexes {
	return &PineconeIndexes{client: c}
}

func (p *PineconeIndexes) ListIndexes(ctx context.Context) ([]string, error) {
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(indexes))
	for i, idx := range indexes {
		names[i] = idx.Name
	}
	return names, nil
}

// CreateIndex creates a serverless index and waits until it is ready.
func (p *PineconeIndexes) CreateIndex(ctx context.Context, spec IndexSpec) error {
	_, err := p.client.CreateIndex(ctx, pinecone.CreateIndexRequest{
		Name:      spec.Name,
		Dimension: spec.Dimension,
		Metric:    spec.Metric,
		Cloud:     spec.Cloud,
		Region:    spec.Region,
	})
	if err != nil {
		return err
	}
	_, err = p.client.WaitUntilReady(ctx, spec.Name)
	return err
}

func (p *PineconeIndexes) DeleteIndex(ctx context.Context, name string) error {
	err := p.client.DeleteIndex(ctx, name)
	if pinecone.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return err
}

func (p *PineconeIndexes) Open(ctx context.Context, name string) (VectorIndex, error) {
	model, err := p.client.DescribeIndex(ctx, name)
	if pinecone.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	if model.Host == "" {
		return nil, fmt.Errorf("index %s has no host yet", name)
	}
	conn, err := p.client.Index(model.Host)
	if err != nil {
		return nil, err
	}
	return &pineconeIndex{name: name, client: conn}, nil
}

type pineconeIndex struct {
	name   string
	client *pinecone.Index
}

func (x *pineconeIndex) Name() string { return x.name }

func (x *pineconeIndex) Upsert(ctx context.Context, records []Record) error {
	vectors := make([]pinecone.Vector, len(records))
	for i, r := range records {
		vectors[i] = pinecone.Vector{ID: r.ID, Values: r.Values, Metadata: r.Metadata.asMap()}
	}
	_, err := x.client.Upsert(ctx, vectors)
	return err
}

func (x *pineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	resp, err := x.client.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, len(resp))
	for i, m := range resp {
		matches[i] = Match{ID: m.ID, Score: m.Score, Metadata: metadataFromMap(m.Metadata)}
	}
	return matches, nil
}

func (x *pineconeIndex) Stats(ctx context.Context) (IndexStats, error) {
	st, err := x.client.DescribeStats(ctx)
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{Count: st.TotalVectorCount, Dimension: st.Dimension}, nil
}
