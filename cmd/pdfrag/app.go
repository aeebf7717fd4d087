package main

import (
	"fmt"
	"log/slog"

	"github.com/kalambet/pdfrag/internal/composer"
	"github.com/kalambet/pdfrag/internal/config"
	"github.com/kalambet/pdfrag/internal/engine"
	"github.com/kalambet/pdfrag/internal/extract"
	"github.com/kalambet/pdfrag/internal/metrics"
	"github.com/kalambet/pdfrag/internal/pinecone"
	"github.com/kalambet/pdfrag/internal/pipeline"
	"github.com/kalambet/pdfrag/internal/qdrant"
	"github.com/kalambet/pdfrag/internal/retrieval"
	"github.com/kalambet/pdfrag/internal/storage"
)

// app wires the components every command shares.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	engine   engine.Engine
	store    *storage.Store
	index    *retrieval.Manager
	embedder *retrieval.Embedder
	metrics  *metrics.Metrics
}

// newApp builds the engine, embedder and index manager from cfg. The SQLite
// store is opened when withStore is set or the vector backend needs it.
func newApp(cfg config.Config, logger *slog.Logger, withStore bool) (*app, error) {
	eng, err := engine.Detect(engine.DetectConfig{
		Backend:       cfg.Engine.Backend,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OllamaBaseURL: cfg.Ollama.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting model backend: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, engine: eng, metrics: metrics.New()}

	if withStore || cfg.Vector.Backend == config.VectorSQLite {
		a.store, err = storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
	}

	provider, err := indexProvider(cfg, a.store)
	if err != nil {
		a.close()
		return nil, err
	}

	spec := retrieval.IndexSpec{
		Name:      cfg.Index.Name,
		Dimension: cfg.Index.Dimension,
		Metric:    cfg.Index.Metric,
		Cloud:     cfg.Index.Cloud,
		Region:    cfg.Index.Region,
	}
	a.index = retrieval.NewManager(provider, spec, a.metrics, logger)

	vision := ""
	if cfg.Ingest.EmbedImageContent {
		vision = cfg.Models.Vision
	}
	a.embedder = retrieval.NewEmbedder(eng, cfg.Models.Embed, vision)
	return a, nil
}

func indexProvider(cfg config.Config, store *storage.Store) (retrieval.IndexProvider, error) {
	switch cfg.Vector.Backend {
	case config.VectorPinecone:
		client, err := pinecone.New(cfg.Pinecone.APIKey, cfg.Pinecone.ControllerURL)
		if err != nil {
			return nil, err
		}
		return retrieval.NewPineconeIndexes(client), nil
	case config.VectorQdrant:
		return retrieval.NewQdrantIndexes(qdrant.New(cfg.Qdrant.URL, cfg.Qdrant.APIKey)), nil
	case config.VectorSQLite:
		if store == nil {
			return nil, fmt.Errorf("sqlite vector backend needs an open store")
		}
		return retrieval.NewSQLiteIndexes(store.DB()), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}

func (a *app) ingester() *pipeline.Ingester {
	return pipeline.NewIngester(
		extract.New(a.cfg.Ingest.ImagesDir, a.logger),
		a.embedder,
		a.index,
		a.metrics,
		a.logger,
		pipeline.IngestOptions{
			ChunkSize:         a.cfg.Ingest.ChunkSize,
			BatchSize:         a.cfg.Ingest.BatchSize,
			EmbedImageContent: a.cfg.Ingest.EmbedImageContent,
		},
	)
}

func (a *app) querier() *pipeline.Querier {
	return pipeline.NewQuerier(a.embedder, a.engine, a.cfg.Models.Chat, composer.New(0), a.metrics, a.logger)
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing storage", "error", err)
	}
}

// loadApp loads the config and builds an app from it.
func loadApp(withStore bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, installLogger(cfg.Log.Level), withStore)
}
