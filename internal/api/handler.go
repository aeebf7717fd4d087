package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/pdfrag/internal/composer"
	"github.com/kalambet/pdfrag/internal/ingest"
	"github.com/kalambet/pdfrag/internal/metrics"
	"github.com/kalambet/pdfrag/internal/pipeline"
	"github.com/kalambet/pdfrag/internal/retrieval"
	"github.com/kalambet/pdfrag/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Querier answers questions from a vector index.
type Querier interface {
	Answer(ctx context.Context, idx retrieval.VectorIndex, query string, topK int) (pipeline.QueryResult, error)
}

// IndexManager opens and deletes the configured index.
type IndexManager interface {
	Spec() retrieval.IndexSpec
	Open(ctx context.Context) (retrieval.VectorIndex, error)
	Delete(ctx context.Context) error
}

// Catalog is the document catalog and ingest queue.
type Catalog interface {
	EnqueueDocument(d storage.Document, job storage.Job) error
	GetDocument(id string) (storage.Document, error)
	ListDocuments(limit int) ([]storage.Document, error)
}

// Deps are the dependencies of the HTTP API.
type Deps struct {
	Catalog Catalog
	Querier Querier
	Index   IndexManager
	Metrics *metrics.Metrics
	// Token protects the /v1 routes. Empty disables authentication.
	Token string
	TopK  int
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type queryResponse struct {
	Answer string              `json:"answer"`
	Images []composer.ImageRef `json:"images"`
}

type documentRequest struct {
	Path string `json:"path"`
}

type indexResponse struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
}

// NewHandler returns the HTTP API. /health and /metrics are public; the /v1
// routes require the bearer token when one is configured.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		} else {
			slog.Warn("API token not configured, /v1 routes are unauthenticated")
		}
		r.Post("/query", handleQuery(deps))
		r.Post("/documents", handleEnqueueDocument(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Get("/documents/{id}", handleGetDocument(deps))
		r.Get("/index", handleIndexStats(deps))
		r.Delete("/index", handleDeleteIndex(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Query = strings.TrimSpace(req.Query)
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.TopK <= 0 {
			req.TopK = deps.TopK
		}
		req.TopK = min(req.TopK, pipeline.MaxTopK)

		idx, ok := openIndex(w, r.Context(), deps.Index)
		if !ok {
			return
		}

		res, err := deps.Querier.Answer(r.Context(), idx, req.Query, req.TopK)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%s", res.Answer)
			return
		}

		images := res.Images
		if images == nil {
			images = []composer.ImageRef{}
		}
		writeJSON(w, http.StatusOK, queryResponse{Answer: res.Answer, Images: images})
	}
}

func handleEnqueueDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req documentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Path == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "path is required")
			return
		}
		path, err := filepath.Abs(req.Path)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid path: %v", err)
			return
		}
		if fi, err := os.Stat(path); err != nil || fi.IsDir() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no PDF file at %s", path)
			return
		}

		doc, job, err := ingest.NewJob(path)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job: %v", err)
			return
		}
		if err := deps.Catalog.EnqueueDocument(doc, job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue document: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     doc.ID,
			"status": doc.Status,
		})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		docs, err := deps.Catalog.ListDocuments(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Catalog.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleIndexStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, ok := openIndex(w, r.Context(), deps.Index)
		if !ok {
			return
		}
		stats, err := idx.Stats(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to read index stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, indexResponse{Name: idx.Name(), Count: stats.Count, Dimension: stats.Dimension})
	}
}

func handleDeleteIndex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Index.Delete(r.Context()); err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to delete index: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// openIndex connects to the configured index, writing an error response
// when it cannot.
func openIndex(w http.ResponseWriter, ctx context.Context, m IndexManager) (retrieval.VectorIndex, bool) {
	idx, err := m.Open(ctx)
	if errors.Is(err, retrieval.ErrIndexNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "index %s does not exist; ingest a document first", m.Spec().Name)
		return nil, false
	}
	if err != nil {
		httpError(w, http.StatusBadGateway, "api_error", "failed to open index: %v", err)
		return nil, false
	}
	return idx, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
