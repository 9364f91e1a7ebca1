// Package config loads triage settings from defaults, a JSON config file and
// TRIAGE_* environment variables, in that order of precedence.
package config

import (
	"time"
)

type Config struct {
	Server     ServerConfig
	API        APIConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Index      IndexConfig
	Qdrant     QdrantConfig
	Resolution ResolutionConfig
	Timeouts   TimeoutConfig
	Delivery   DeliveryConfig
	NATS       NATSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type APIConfig struct {
	Token string
	// SubmitRate is the sustained complaint submissions per second; 0 disables limiting.
	SubmitRate  float64
	SubmitBurst int
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
	// SolutionsFile is an optional YAML seed upserted on startup.
	SolutionsFile string
}

type IndexConfig struct {
	Backend   string // "sqlite" or "qdrant"
	Dimension int
}

type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	UseTLS     bool
	APIKey     string
}

type ResolutionConfig struct {
	SimilarityThreshold float64
	TopK                int
	SnippetLength       int
}

type TimeoutConfig struct {
	Inference time.Duration
	Embedding time.Duration
	Index     time.Duration
}

type DeliveryConfig struct {
	Backend      string // "queue" or "nats"
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

type NATSConfig struct {
	URL     string
	Stream  string
	Subject string
	Durable string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 4100},
		API:    APIConfig{SubmitRate: 5, SubmitBurst: 20},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Index:   IndexConfig{Backend: "sqlite", Dimension: 768},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "complaints",
		},
		Resolution: ResolutionConfig{
			SimilarityThreshold: 0.7,
			TopK:                3,
			SnippetLength:       500,
		},
		Timeouts: TimeoutConfig{
			Inference: 10 * time.Second,
			Embedding: 5 * time.Second,
			Index:     3 * time.Second,
		},
		Delivery: DeliveryConfig{
			Backend:      "queue",
			BatchSize:    10,
			PollInterval: 500 * time.Millisecond,
			MaxAttempts:  5,
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Stream:  "COMPLAINTS",
			Subject: "complaints.incoming",
			Durable: "triage-worker",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/triage/config.json and then applies TRIAGE_* environment
// overrides. Secrets (api.token, qdrant.api_key) come from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()))
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
