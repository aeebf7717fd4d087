package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/pdfrag/internal/engine"
)

// ErrEmbedding marks a failed embedding call. Callers skip the affected unit.
var ErrEmbedding = errors.New("embedding failed")

// captionPrompt asks the vision model for a searchable description.
const captionPrompt = "Describe this image for search indexing."

// Embedder wraps an Engine to generate text embeddings and, when a vision
// model is configured, image caption embeddings.
type Embedder struct {
	engine      engine.Engine
	model       string
	visionModel string
}

// NewEmbedder creates an Embedder using the given Engine. visionModel may be
// empty when image content is never embedded.
func NewEmbedder(e engine.Engine, model, visionModel string) *Embedder {
	return &Embedder{engine: e, model: model, visionModel: visionModel}
}

// Model returns the text embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedText returns the embedding vector for a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: model %s returned an empty vector", ErrEmbedding, e.model)
	}
	return vec, nil
}

// EmbedResult is the outcome for one input of EmbedBatch.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// EmbedBatch embeds texts one at a time, in order. Results are
// index-aligned with texts; a failure affects only its own entry. Returns
// nil for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) []EmbedResult {
	if len(texts) == 0 {
		return nil
	}
	results := make([]EmbedResult, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			results[i].Err = fmt.Errorf("%w: %w", ErrEmbedding, err)
			continue
		}
		results[i].Vector, results[i].Err = e.EmbedText(ctx, text)
	}
	return results
}

// EmbedImage captions the image at path with the vision model and embeds
// the caption with the text model.
func (e *Embedder) EmbedImage(ctx context.Context, path string) (caption string, vec []float32, err error) {
	if e.visionModel == "" {
		return "", nil, fmt.Errorf("%w: no vision model configured", ErrEmbedding)
	}
	caption, err = e.engine.Chat(ctx, e.visionModel, []engine.Message{
		{Role: engine.RoleUser, Content: captionPrompt, Images: []string{path}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: captioning %s: %w", ErrEmbedding, path, err)
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "", nil, fmt.Errorf("%w: empty caption for %s", ErrEmbedding, path)
	}
	vec, err = e.EmbedText(ctx, caption)
	if err != nil {
		return "", nil, err
	}
	return caption, vec, nil
}
