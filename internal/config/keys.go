package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
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
		key: "server.port", typ: kInt, env: "TRIAGE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "api.token", typ: kString, env: "TRIAGE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "api.submit_rate", typ: kFloat, env: "TRIAGE_API_SUBMIT_RATE",
		apply:   func(cfg *Config, v any) { cfg.API.SubmitRate = v.(float64) },
		extract: func(cfg Config) any { return cfg.API.SubmitRate },
	},
	{
		key: "api.submit_burst", typ: kInt, env: "TRIAGE_API_SUBMIT_BURST",
		apply:   func(cfg *Config, v any) { cfg.API.SubmitBurst = v.(int) },
		extract: func(cfg Config) any { return cfg.API.SubmitBurst },
	},
	{
		key: "ollama.base_url", typ: kString, env: "TRIAGE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "TRIAGE_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "TRIAGE_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TRIAGE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.solutions_file", typ: kString, env: "TRIAGE_STORAGE_SOLUTIONS_FILE",
		apply:   func(cfg *Config, v any) { cfg.Storage.SolutionsFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.SolutionsFile },
	},
	{
		key: "index.backend", typ: kString, env: "TRIAGE_INDEX_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Index.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Backend },
	},
	{
		key: "index.dimension", typ: kInt, env: "TRIAGE_INDEX_DIMENSION",
		apply:   func(cfg *Config, v any) { cfg.Index.Dimension = v.(int) },
		extract: func(cfg Config) any { return cfg.Index.Dimension },
	},
	{
		key: "qdrant.host", typ: kString, env: "TRIAGE_QDRANT_HOST",
		apply:   func(cfg *Config, v any) { cfg.Qdrant.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Qdrant.Host },
	},
	{
		key: "qdrant.port", typ: kInt, env: "TRIAGE_QDRANT_PORT",
		apply:   func(cfg *Config, v any) { cfg.Qdrant.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Qdrant.Port },
	},
	{
		key: "qdrant.collection", typ: kString, env: "TRIAGE_QDRANT_COLLECTION",
		apply:   func(cfg *Config, v any) { cfg.Qdrant.Collection = v.(string) },
		extract: func(cfg Config) any { return cfg.Qdrant.Collection },
	},
	{
		key: "qdrant.use_tls", typ: kBool, env: "TRIAGE_QDRANT_USE_TLS",
		apply:   func(cfg *Config, v any) { cfg.Qdrant.UseTLS = v.(bool) },
		extract: func(cfg Config) any { return cfg.Qdrant.UseTLS },
	},
	{
		key: "qdrant.api_key", typ: kString, env: "TRIAGE_QDRANT_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Qdrant.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Qdrant.APIKey },
	},
	{
		key: "resolution.similarity_threshold", typ: kFloat, env: "TRIAGE_RESOLUTION_SIMILARITY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Resolution.SimilarityThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Resolution.SimilarityThreshold },
	},
	{
		key: "resolution.top_k", typ: kInt, env: "TRIAGE_RESOLUTION_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Resolution.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Resolution.TopK },
	},
	{
		key: "resolution.snippet_length", typ: kInt, env: "TRIAGE_RESOLUTION_SNIPPET_LENGTH",
		apply:   func(cfg *Config, v any) { cfg.Resolution.SnippetLength = v.(int) },
		extract: func(cfg Config) any { return cfg.Resolution.SnippetLength },
	},
	{
		key: "timeouts.inference", typ: kDuration, env: "TRIAGE_TIMEOUTS_INFERENCE",
		apply:   func(cfg *Config, v any) { cfg.Timeouts.Inference = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Timeouts.Inference },
	},
	{
		key: "timeouts.embedding", typ: kDuration, env: "TRIAGE_TIMEOUTS_EMBEDDING",
		apply:   func(cfg *Config, v any) { cfg.Timeouts.Embedding = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Timeouts.Embedding },
	},
	{
		key: "timeouts.index", typ: kDuration, env: "TRIAGE_TIMEOUTS_INDEX",
		apply:   func(cfg *Config, v any) { cfg.Timeouts.Index = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Timeouts.Index },
	},
	{
		key: "delivery.backend", typ: kString, env: "TRIAGE_DELIVERY_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Delivery.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Delivery.Backend },
	},
	{
		key: "delivery.batch_size", typ: kInt, env: "TRIAGE_DELIVERY_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Delivery.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Delivery.BatchSize },
	},
	{
		key: "delivery.poll_interval", typ: kDuration, env: "TRIAGE_DELIVERY_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Delivery.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Delivery.PollInterval },
	},
	{
		key: "delivery.max_attempts", typ: kInt, env: "TRIAGE_DELIVERY_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Delivery.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Delivery.MaxAttempts },
	},
	{
		key: "nats.url", typ: kString, env: "TRIAGE_NATS_URL",
		apply:   func(cfg *Config, v any) { cfg.NATS.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.NATS.URL },
	},
	{
		key: "nats.stream", typ: kString, env: "TRIAGE_NATS_STREAM",
		apply:   func(cfg *Config, v any) { cfg.NATS.Stream = v.(string) },
		extract: func(cfg Config) any { return cfg.NATS.Stream },
	},
	{
		key: "nats.subject", typ: kString, env: "TRIAGE_NATS_SUBJECT",
		apply:   func(cfg *Config, v any) { cfg.NATS.Subject = v.(string) },
		extract: func(cfg Config) any { return cfg.NATS.Subject },
	},
	{
		key: "nats.durable", typ: kString, env: "TRIAGE_NATS_DURABLE",
		apply:   func(cfg *Config, v any) { cfg.NATS.Durable = v.(string) },
		extract: func(cfg Config) any { return cfg.NATS.Durable },
	},
	{
		key: "log.level", typ: kString, env: "TRIAGE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts raw text into the key's Go type. Ints are handled by
// the backend's GetInt and never reach here from the file.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kString:
		return raw, nil
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return nil, fmt.Errorf("unknown key type %d", typ)
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			slog.Warn("ignoring unparsable config value", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
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
		v, err := parseValue(s.typ, raw)
		if err != nil {
			slog.Warn("ignoring unparsable environment variable", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
