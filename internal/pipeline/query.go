package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/pdfrag/internal/composer"
	"github.com/kalambet/pdfrag/internal/engine"
	"github.com/kalambet/pdfrag/internal/metrics"
	"github.com/kalambet/pdfrag/internal/retrieval"
)

// ErrQuery marks a query that could not be answered. The accompanying
// QueryResult still carries a printable explanation.
var ErrQuery = errors.New("query failed")

// DefaultTopK is the number of matches retrieved per query.
const DefaultTopK = 5

// MaxTopK caps the matches retrieved per query. Larger values are clamped.
const MaxTopK = 100

// Answer texts returned alongside ErrQuery.
const (
	msgEmbedFailed    = "Error generating query embedding."
	msgResponseFailed = "Error generating response: "
)

// QueryResult is the synthesized answer and the images retrieved with it.
type QueryResult struct {
	Answer string              `json:"answer"`
	Images []composer.ImageRef `json:"images"`
}

// Querier answers questions from the contents of a vector index.
type Querier struct {
	embedder *retrieval.Embedder
	engine   engine.Engine
	model    string
	composer *composer.Composer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewQuerier creates a Querier that synthesizes answers with chatModel. m may
// be nil.
func NewQuerier(emb *retrieval.Embedder, e engine.Engine, chatModel string, comp *composer.Composer, m *metrics.Metrics, logger *slog.Logger) *Querier {
	if comp == nil {
		comp = composer.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Querier{
		embedder: emb,
		engine:   e,
		model:    chatModel,
		composer: comp,
		metrics:  m,
		logger:   logger,
	}
}

// Answer embeds query, retrieves the topK nearest records from idx and asks
// the chat model to answer from the text matches. Image matches are returned
// as references and announced at the end of the answer. On failure the
// result holds an explanation and the error wraps ErrQuery.
func (q *Querier) Answer(ctx context.Context, idx retrieval.VectorIndex, query string, topK int) (QueryResult, error) {
	start := time.Now()
	if topK <= 0 {
		topK = DefaultTopK
	}
	topK = min(topK, MaxTopK)
	q.logger.Info("Processing query", "query", query)

	vec, err := q.embedder.EmbedText(ctx, query)
	if err != nil {
		q.metrics.ObserveQuery(metrics.OutcomeEmbedError, time.Since(start))
		q.logger.Error("Failed to generate query embedding", "error", err)
		return QueryResult{Answer: msgEmbedFailed}, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	matches, err := idx.Query(ctx, vec, topK)
	if err != nil {
		q.metrics.ObserveQuery(metrics.OutcomeSearchError, time.Since(start))
		q.logger.Error("Error during RAG query", "error", err)
		return QueryResult{Answer: msgResponseFailed + err.Error()}, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	q.logger.Info("Retrieved matches", "index", idx.Name(), "matches", len(matches))

	part := q.composer.Partition(matches)
	for _, id := range part.Invalid {
		q.logger.Warn("Match has invalid or missing type in metadata", "id", id)
	}
	if len(part.Dropped) > 0 {
		q.logger.Warn("Text matches left out of the context budget", "dropped", part.Dropped)
	}
	q.logger.Debug("Assembled context", "context_chars", len(part.Context), "images", len(part.Images))

	answer, err := q.engine.Chat(ctx, q.model, q.composer.Messages(part.Context, query))
	if err != nil {
		q.metrics.ObserveQuery(metrics.OutcomeGenerateError, time.Since(start))
		q.logger.Error("Error during RAG query", "error", err)
		return QueryResult{Answer: msgResponseFailed + err.Error()}, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if len(part.Images) > 0 {
		answer += composer.ImageNotice
	}

	q.metrics.ObserveQuery(metrics.OutcomeOK, time.Since(start))
	q.logger.Info("Successfully generated response")
	return QueryResult{Answer: answer, Images: part.Images}, nil
}
