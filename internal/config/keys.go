package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "openai.api_key", typ: kString, env: "OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "engine.backend", typ: kString, env: "PDFRAG_ENGINE",
		apply:   func(cfg *Config, v any) { cfg.Engine.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Backend },
	},
	{
		key: "ollama.base_url", typ: kString, env: "PDFRAG_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "models.embed", typ: kString, env: "PDFRAG_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Models.Embed = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Embed },
	},
	{
		key: "models.chat", typ: kString, env: "PDFRAG_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Models.Chat = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Chat },
	},
	{
		key: "models.vision", typ: kString, env: "PDFRAG_VISION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Models.Vision = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Vision },
	},
	{
		key: "vector.backend", typ: kString, env: "PDFRAG_VECTOR_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Vector.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.Backend },
	},
	{
		key: "index.name", typ: kString, env: "PINECONE_INDEX_NAME",
		apply:   func(cfg *Config, v any) { cfg.Index.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Name },
	},
	{
		key: "index.dimension", typ: kInt, env: "PDFRAG_INDEX_DIMENSION",
		apply:   func(cfg *Config, v any) { cfg.Index.Dimension = v.(int) },
		extract: func(cfg Config) any { return cfg.Index.Dimension },
	},
	{
		key: "index.metric", typ: kString, env: "PDFRAG_INDEX_METRIC",
		apply:   func(cfg *Config, v any) { cfg.Index.Metric = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Metric },
	},
	{
		key: "index.cloud", typ: kString, env: "PINECONE_CLOUD",
		apply:   func(cfg *Config, v any) { cfg.Index.Cloud = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Cloud },
	},
	{
		key: "index.region", typ: kString, env: "PINECONE_ENVIRONMENT",
		apply:   func(cfg *Config, v any) { cfg.Index.Region = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Region },
	},
	{
		key: "pinecone.api_key", typ: kString, env: "PINECONE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Pinecone.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Pinecone.APIKey },
	},
	{
		key: "pinecone.controller_url", typ: kString, env: "PINECONE_CONTROLLER_URL",
		apply:   func(cfg *Config, v any) { cfg.Pinecone.ControllerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Pinecone.ControllerURL },
	},
	{
		key: "qdrant.url", typ: kString, env: "QDRANT_URL",
		apply:   func(cfg *Config, v any) { cfg.Qdrant.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Qdrant.URL },
	},
	{
		key: "qdrant.api_key", typ: kString, env: "QDRANT_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Qdrant.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Qdrant.APIKey },
	},
	{
		key: "ingest.pdf_path", typ: kString, env: "PDFRAG_PDF_PATH",
		apply:   func(cfg *Config, v any) { cfg.Ingest.PDFPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Ingest.PDFPath },
	},
	{
		key: "ingest.images_dir", typ: kString, env: "PDFRAG_IMAGES_DIR",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ImagesDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Ingest.ImagesDir },
	},
	{
		key: "ingest.chunk_size", typ: kInt, env: "PDFRAG_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.ChunkSize },
	},
	{
		key: "ingest.batch_size", typ: kInt, env: "PDFRAG_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Ingest.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.BatchSize },
	},
	{
		key: "ingest.embed_image_content", typ: kBool, env: "PDFRAG_EMBED_IMAGE_CONTENT",
		apply:   func(cfg *Config, v any) { cfg.Ingest.EmbedImageContent = v.(bool) },
		extract: func(cfg Config) any { return cfg.Ingest.EmbedImageContent },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "PDFRAG_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PDFRAG_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "PDFRAG_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "PDFRAG_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "PDFRAG_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
