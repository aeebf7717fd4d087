package pinecone

import (
	"context"
	"fmt"

	sdk "github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// Vector is one record for upsert. Metadata values must be representable
// as protobuf Struct values.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// ScoredVector is one query match.
type ScoredVector struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// IndexStats is the subset of describe_index_stats pdfrag reads.
type IndexStats struct {
	Dimension        int
	TotalVectorCount int
}

// Index is a data plane connection to one index.
type Index struct {
	conn DataPlane
}

// Upsert writes vectors and returns how many the server accepted.
func (x *Index) Upsert(ctx context.Context, vectors []Vector) (int, error) {
	in := make([]*sdk.Vector, len(vectors))
	for i, v := range vectors {
		values := v.Values
		vec := &sdk.Vector{Id: v.ID, Values: &values}
		if len(v.Metadata) > 0 {
			meta, err := structpb.NewStruct(v.Metadata)
			if err != nil {
				return 0, fmt.Errorf("encoding metadata of %s: %w", v.ID, err)
			}
			vec.Metadata = meta
		}
		in[i] = vec
	}
	n, err := x.conn.UpsertVectors(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("upserting vectors: %w", err)
	}
	return int(n), nil
}

// Query returns the topK nearest vectors with their metadata.
func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]ScoredVector, error) {
	if topK <= 0 {
		return nil, nil
	}
	resp, err := x.conn.QueryByVectorValues(ctx, &sdk.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	out := make([]ScoredVector, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		sv := ScoredVector{ID: m.Vector.Id, Score: m.Score}
		if m.Vector.Metadata != nil {
			sv.Metadata = m.Vector.Metadata.AsMap()
		}
		out = append(out, sv)
	}
	return out, nil
}

// DescribeStats reports the vector count and dimension of the index.
func (x *Index) DescribeStats(ctx context.Context) (IndexStats, error) {
	resp, err := x.conn.DescribeIndexStats(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("describing index stats: %w", err)
	}
	st := IndexStats{TotalVectorCount: int(resp.TotalVectorCount)}
	if resp.Dimension != nil {
		st.Dimension = int(*resp.Dimension)
	}
	return st, nil
}

// Close releases the underlying connection.
func (x *Index) Close() error {
	return x.conn.Close()
}
