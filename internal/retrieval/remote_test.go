package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	sdk "github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kalambet/pdfrag/internal/pinecone"
	"github.com/kalambet/pdfrag/internal/qdrant"
)

// fakePinecone keeps indexes and vectors in memory behind the SDK's
// control and data plane interfaces.
type fakePinecone struct {
	mu      sync.Mutex
	indexes map[string]*sdk.Index
	vectors []*sdk.Vector
}

func newFakePinecone() *fakePinecone {
	return &fakePinecone{indexes: make(map[string]*sdk.Index)}
}

func (f *fakePinecone) ListIndexes(context.Context) ([]*sdk.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*sdk.Index
	for _, m := range f.indexes {
		list = append(list, m)
	}
	return list, nil
}

func (f *fakePinecone) CreateServerlessIndex(_ context.Context, in *sdk.CreateServerlessIndexRequest) (*sdk.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &sdk.Index{
		Name:      in.Name,
		Dimension: in.Dimension,
		Metric:    *in.Metric,
		Host:      in.Name + ".svc.test",
		Status:    &sdk.IndexStatus{Ready: true, State: sdk.Ready},
	}
	f.indexes[in.Name] = m
	return m, nil
}

func (f *fakePinecone) DescribeIndex(_ context.Context, name string) (*sdk.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.indexes[name]
	if !ok {
		return nil, &sdk.PineconeError{Code: http.StatusNotFound, Msg: errors.New("not found")}
	}
	return m, nil
}

func (f *fakePinecone) DeleteIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[name]; !ok {
		return &sdk.PineconeError{Code: http.StatusNotFound, Msg: errors.New("not found")}
	}
	delete(f.indexes, name)
	return nil
}

func (f *fakePinecone) UpsertVectors(_ context.Context, in []*sdk.Vector) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, in...)
	return uint32(len(in)), nil
}

func (f *fakePinecone) QueryByVectorValues(_ context.Context, in *sdk.QueryByVectorValuesRequest) (*sdk.QueryVectorsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []*sdk.ScoredVector
	for i, v := range f.vectors {
		matches = append(matches, &sdk.ScoredVector{Vector: v, Score: 1 - float32(i)*0.1})
	}
	legacy, _ := structpb.NewStruct(map[string]any{"type": 7})
	matches = append(matches, &sdk.ScoredVector{Vector: &sdk.Vector{Id: "legacy", Metadata: legacy}, Score: 0.1})
	return &sdk.QueryVectorsResponse{Matches: matches}, nil
}

func (f *fakePinecone) DescribeIndexStats(context.Context) (*sdk.DescribeIndexStatsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dim := uint32(4)
	return &sdk.DescribeIndexStatsResponse{Dimension: &dim, TotalVectorCount: uint32(len(f.vectors))}, nil
}

func (f *fakePinecone) Close() error { return nil }

func TestPineconeIndexes_ThroughManager(t *testing.T) {
	f := newFakePinecone()
	client := pinecone.NewWithBackends(f, func(string) (pinecone.DataPlane, error) { return f, nil })
	client.PollInterval = time.Millisecond
	m := NewManager(NewPineconeIndexes(client), testSpec, nil, quietLogger())
	ctx := context.Background()

	idx, err := m.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := m.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if len(f.indexes) != 1 {
		t.Fatalf("%d indexes after two Initialize calls", len(f.indexes))
	}
	if got := f.indexes[testSpec.Name]; got == nil || got.Dimension == nil || int(*got.Dimension) != testSpec.Dimension {
		t.Fatalf("created index = %+v", got)
	}

	records := []Record{
		NewTextRecord("doc", "hello", []float32{1}),
		NewImageRecord("doc", ImageSource{Path: "images/doc_page1_img1.png", Context: "Figure 1"}, []float32{1}),
	}
	if err := m.Store(ctx, idx, records, 50); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(f.vectors) != 2 || len(*f.vectors[0].Values) != testSpec.Dimension {
		t.Fatalf("stored vectors = %+v", f.vectors)
	}

	matches, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Metadata != records[0].Metadata {
		t.Errorf("text metadata = %+v, want %+v", matches[0].Metadata, records[0].Metadata)
	}
	if matches[1].Metadata != records[1].Metadata {
		t.Errorf("image metadata = %+v, want %+v", matches[1].Metadata, records[1].Metadata)
	}
	if matches[2].Metadata.Type != "" {
		t.Errorf("non-string type decoded as %q", matches[2].Metadata.Type)
	}

	st, err := idx.Stats(ctx)
	if err != nil || st.Count != 2 {
		t.Errorf("Stats = %+v, %v", st, err)
	}

	if err := m.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Open(ctx); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("Open after delete: %v, want ErrIndexNotFound", err)
	}
}

func TestQdrantIndexes_PointIDsAndPayload(t *testing.T) {
	var points []qdrant.Point
	collections := map[string]bool{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, r *http.Request) {
		var list []map[string]string
		for name := range collections {
			list = append(list, map[string]string{"name": name})
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"collections": list}})
	})
	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		collections[r.PathValue("name")] = true
		w.Write([]byte(`{"result":true}`))
	})
	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		if !collections[r.PathValue("name")] {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":{"error":"Not found"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"points_count": len(points),
			"config":       map[string]any{"params": map[string]any{"vectors": map[string]any{"size": 4, "distance": "Cosine"}}},
		}})
	})
	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Points []qdrant.Point `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		points = append(points, req.Points...)
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		var res []map[string]any
		for _, p := range points {
			res = append(res, map[string]any{"id": p.ID, "score": 0.5, "payload": p.Payload})
		}
		json.NewEncoder(w).Encode(map[string]any{"result": res})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := NewManager(NewQdrantIndexes(qdrant.New(srv.URL, "")), testSpec, nil, quietLogger())
	ctx := context.Background()

	idx, err := m.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	rec := NewTextRecord("doc", "hello", []float32{1, 2})
	if err := m.Store(ctx, idx, []Record{rec}, 50); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if len(points) != 1 {
		t.Fatalf("got %d points", len(points))
	}
	if _, err := uuid.Parse(points[0].ID); err != nil {
		t.Errorf("point id %q is not a UUID", points[0].ID)
	}
	if points[0].ID != pointID(rec.ID) {
		t.Error("point id is not derived from the record id")
	}

	matches, err := idx.Query(ctx, []float32{1, 2, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != rec.ID || matches[0].Metadata != rec.Metadata {
		t.Errorf("matches = %+v, want the stored record", matches)
	}

	st, err := idx.Stats(ctx)
	if err != nil || st.Count != 1 || st.Dimension != 4 {
		t.Errorf("Stats = %+v, %v", st, err)
	}
}

func TestPointIDIsStable(t *testing.T) {
	if pointID("doc_text_1") != pointID("doc_text_1") {
		t.Error("pointID is not deterministic")
	}
	if pointID("doc_text_1") == pointID("doc_text_2") {
		t.Error("distinct records share a point id")
	}
}

func TestQdrantDistance(t *testing.T) {
	for metric, want := range map[string]string{"": "Cosine", "cosine": "Cosine", "dotproduct": "Dot", "euclidean": "Euclid"} {
		if got, err := qdrantDistance(metric); err != nil || got != want {
			t.Errorf("qdrantDistance(%q) = %q, %v; want %q", metric, got, err, want)
		}
	}
	if _, err := qdrantDistance("manhattan"); err == nil {
		t.Error("unknown metric accepted")
	}
}
