package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kalambet/pdfrag/internal/qdrant"
)

var (
	_ IndexProvider = (*QdrantIndexes)(nil)
	_ VectorIndex   = (*qdrantIndex)(nil)
)

// recordIDKey holds the original record id in the point payload; Qdrant
// point ids must be UUIDs or integers.
const recordIDKey = "record_id"

// QdrantIndexes maps indexes onto Qdrant collections.
type QdrantIndexes struct {
	client *qdrant.Client
}

// NewQdrantIndexes wraps a Qdrant client.
func NewQdrantIndexes(c *qdrant.Client) *QdrantIndexes {
	return &QdrantIndexes{client: c}
}

func (q *QdrantIndexes) ListIndexes(ctx context.Context) ([]string, error) {
	return q.client.ListCollections(ctx)
}

func (q *QdrantIndexes) CreateIndex(ctx context.Context, spec IndexSpec) error {
	distance, err := qdrantDistance(spec.Metric)
	if err != nil {
		return err
	}
	return q.client.CreateCollection(ctx, spec.Name, qdrant.VectorParams{Size: spec.Dimension, Distance: distance})
}

func (q *QdrantIndexes) DeleteIndex(ctx context.Context, name string) error {
	err := q.client.DeleteCollection(ctx, name)
	if qdrant.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return err
}

func (q *QdrantIndexes) Open(ctx context.Context, name string) (VectorIndex, error) {
	_, err := q.client.GetCollection(ctx, name)
	if qdrant.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &qdrantIndex{name: name, client: q.client}, nil
}

func qdrantDistance(metric string) (string, error) {
	switch metric {
	case "", MetricCosine:
		return qdrant.DistanceCosine, nil
	case MetricDotProduct:
		return qdrant.DistanceDot, nil
	case "euclidean":
		return qdrant.DistanceEuclid, nil
	}
	return "", fmt.Errorf("unsupported metric %q", metric)
}

// pointID derives a stable UUID v5 point id from a record id.
func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

type qdrantIndex struct {
	name   string
	client *qdrant.Client
}

func (x *qdrantIndex) Name() string { return x.name }

func (x *qdrantIndex) Upsert(ctx context.Context, records []Record) error {
	points := make([]qdrant.Point, len(records))
	for i, r := range records {
		payload := r.Metadata.asMap()
		payload[recordIDKey] = r.ID
		points[i] = qdrant.Point{ID: pointID(r.ID), Vector: r.Values, Payload: payload}
	}
	return x.client.UpsertPoints(ctx, x.name, points)
}

func (x *qdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	results, err := x.client.Search(ctx, x.name, vector, topK)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, len(results))
	for i, p := range results {
		id, _ := p.Payload[recordIDKey].(string)
		if id == "" {
			id = fmt.Sprint(p.ID)
		}
		matches[i] = Match{ID: id, Score: p.Score, Metadata: metadataFromMap(p.Payload)}
	}
	return matches, nil
}

func (x *qdrantIndex) Stats(ctx context.Context) (IndexStats, error) {
	info, err := x.client.GetCollection(ctx, x.name)
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{Count: info.PointsCount, Dimension: info.Config.Params.Vectors.Size}, nil
}
