package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/kalambet/pdfrag/internal/engine"
	"github.com/kalambet/pdfrag/internal/extract"
	"github.com/kalambet/pdfrag/internal/metrics"
	"github.com/kalambet/pdfrag/internal/retrieval"
)

const testDim = 4

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockEngine implements engine.Engine with function fields.
type mockEngine struct {
	embedFn func(ctx context.Context, model, text string) ([]float32, error)
	chatFn  func(ctx context.Context, model string, messages []engine.Message) (string, error)
}

func (m *mockEngine) Chat(ctx context.Context, model string, messages []engine.Message) (string, error) {
	if m.chatFn == nil {
		return "", fmt.Errorf("chat not configured")
	}
	return m.chatFn(ctx, model, messages)
}

func (m *mockEngine) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return m.embedFn(ctx, model, text)
}
func (m *mockEngine) IsRunning(context.Context) bool        { return true }
func (m *mockEngine) HasModel(context.Context, string) bool { return true }
func (m *mockEngine) PullModel(context.Context, string, func(engine.PullProgress)) error {
	return nil
}

func constantEmbed(_ context.Context, _, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// fakeExtractor returns a fixed document.
type fakeExtractor struct {
	doc *extract.Document
	err error
}

func (f *fakeExtractor) Extract(string) (*extract.Document, error) {
	return f.doc, f.err
}

// memProvider is an in-memory IndexProvider holding at most one index.
type memProvider struct {
	mu      sync.Mutex
	index   *memIndex
	creates int
}

func (p *memProvider) ListIndexes(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index == nil {
		return nil, nil
	}
	return []string{p.index.name}, nil
}

func (p *memProvider) CreateIndex(_ context.Context, spec retrieval.IndexSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	p.index = &memIndex{name: spec.Name}
	return nil
}

func (p *memProvider) DeleteIndex(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = nil
	return nil
}

func (p *memProvider) Open(_ context.Context, name string) (retrieval.VectorIndex, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index == nil || p.index.name != name {
		return nil, retrieval.ErrIndexNotFound
	}
	return p.index, nil
}

// memIndex stores upserted records and answers queries from queryFn or, by
// default, with the stored records in insertion order.
type memIndex struct {
	name    string
	records []retrieval.Record
	batches []int
	queryFn func(vector []float32, topK int) ([]retrieval.Match, error)
	queries int
}

func (x *memIndex) Name() string { return x.name }

func (x *memIndex) Upsert(_ context.Context, records []retrieval.Record) error {
	x.batches = append(x.batches, len(records))
	x.records = append(x.records, records...)
	return nil
}

func (x *memIndex) Query(_ context.Context, vector []float32, topK int) ([]retrieval.Match, error) {
	x.queries++
	if x.queryFn != nil {
		return x.queryFn(vector, topK)
	}
	var out []retrieval.Match
	for _, r := range x.records {
		if len(out) == topK {
			break
		}
		out = append(out, retrieval.Match{ID: r.ID, Score: 1, Metadata: r.Metadata})
	}
	return out, nil
}

func (x *memIndex) Stats(context.Context) (retrieval.IndexStats, error) {
	return retrieval.IndexStats{Count: len(x.records), Dimension: testDim}, nil
}

func newManager(p retrieval.IndexProvider, m *metrics.Metrics) *retrieval.Manager {
	spec := retrieval.IndexSpec{Name: "pdf-embeddings", Dimension: testDim, Metric: "cosine"}
	return retrieval.NewManager(p, spec, m, quietLogger())
}

func newIngester(doc *extract.Document, eng engine.Engine, p retrieval.IndexProvider, opts IngestOptions) *Ingester {
	emb := retrieval.NewEmbedder(eng, "embed", "vision")
	return NewIngester(&fakeExtractor{doc: doc}, emb, newManager(p, nil), nil, quietLogger(), opts)
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(w, " ")
}
