package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Engine and vector backends.
const (
	EngineOpenAI = "openai"
	EngineOllama = "ollama"

	VectorPinecone = "pinecone"
	VectorQdrant   = "qdrant"
	VectorSQLite   = "sqlite"
)

type Config struct {
	OpenAI    OpenAIConfig
	Engine    EngineConfig
	Ollama    OllamaConfig
	Models    ModelsConfig
	Vector    VectorConfig
	Index     IndexConfig
	Pinecone  PineconeConfig
	Qdrant    QdrantConfig
	Ingest    IngestConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Server    ServerConfig
	Log       LogConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type EngineConfig struct {
	Backend string
}

type OllamaConfig struct {
	BaseURL string
}

type ModelsConfig struct {
	Embed  string
	Chat   string
	Vision string
}

type VectorConfig struct {
	Backend string
}

type IndexConfig struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

type PineconeConfig struct {
	APIKey        string
	ControllerURL string
}

type QdrantConfig struct {
	URL    string
	APIKey string
}

type IngestConfig struct {
	PDFPath           string
	ImagesDir         string
	ChunkSize         int
	BatchSize         int
	EmbedImageContent bool
}

type RetrievalConfig struct {
	TopK int
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port  int
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Engine: EngineConfig{Backend: EngineOpenAI},
		Ollama: OllamaConfig{BaseURL: "http://localhost:11434"},
		Models: ModelsConfig{
			Embed:  "text-embedding-3-large",
			Chat:   "gpt-4o",
			Vision: "gpt-4o",
		},
		Vector: VectorConfig{Backend: VectorPinecone},
		Index: IndexConfig{
			Name:      "pdf-embeddings",
			Dimension: 3072,
			Metric:    "cosine",
			Cloud:     "azure",
			Region:    "eastus2",
		},
		Pinecone: PineconeConfig{ControllerURL: "https://api.pinecone.io"},
		Qdrant:   QdrantConfig{URL: "http://localhost:6333"},
		Ingest: IngestConfig{
			PDFPath:   "example.pdf",
			ImagesDir: "images",
			ChunkSize: 1000,
			BatchSize: 50,
		},
		Retrieval: RetrievalConfig{TopK: 5},
		Storage:   StorageConfig{DataDir: defaultDataDir()},
		Server:    ServerConfig{Port: 4100},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/pdfrag/config.yaml and applies environment overrides.
// Secrets are only read from the environment.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	var missing []string
	if cfg.Engine.Backend == EngineOpenAI && cfg.OpenAI.APIKey == "" && cfg.OpenAI.BaseURL == "" {
		missing = append(missing, "OpenAI API key (set OPENAI_API_KEY)")
	}
	if cfg.Vector.Backend == VectorPinecone && cfg.Pinecone.APIKey == "" {
		missing = append(missing, "Pinecone API key (set PINECONE_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	switch cfg.Engine.Backend {
	case EngineOpenAI, EngineOllama:
	default:
		return fmt.Errorf("invalid engine.backend %q: want %s or %s", cfg.Engine.Backend, EngineOpenAI, EngineOllama)
	}
	switch cfg.Vector.Backend {
	case VectorPinecone, VectorQdrant, VectorSQLite:
	default:
		return fmt.Errorf("invalid vector.backend %q: want %s, %s or %s", cfg.Vector.Backend, VectorPinecone, VectorQdrant, VectorSQLite)
	}
	if cfg.Index.Dimension <= 0 {
		return fmt.Errorf("invalid index.dimension %d", cfg.Index.Dimension)
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "pdfrag-data"
		}
	}
	return filepath.Join(dir, "pdfrag")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "pdfrag", "config.yaml")
}
