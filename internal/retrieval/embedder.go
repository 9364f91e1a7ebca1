package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/triage/internal/engine"
	"github.com/kalambet/triage/internal/metrics"
)

const defaultEmbedTimeout = 5 * time.Second

// Embedder turns text into a vector. It never fails: any problem yields a nil
// vector, which callers treat as "no embedding available".
type Embedder struct {
	model     engine.EmbeddingModel
	name      string
	dimension int
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// EmbedderOptions tunes an Embedder. Dimension, when positive, rejects
// vectors of any other length.
type EmbedderOptions struct {
	Dimension int
	Timeout   time.Duration
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// NewEmbedder creates an Embedder using the given backend and model name.
func NewEmbedder(model engine.EmbeddingModel, name string, opts EmbedderOptions) *Embedder {
	e := &Embedder{
		model:     model,
		name:      name,
		dimension: opts.Dimension,
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if e.timeout <= 0 {
		e.timeout = defaultEmbedTimeout
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Embed returns the embedding for text, or nil.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.model.Embed(ctx, e.name, text)
	switch {
	case err != nil:
		e.logger.Warn("embedding failed, skipping similarity", "error", err)
	case len(vec) == 0:
		e.logger.Warn("embedding service returned no vector, skipping similarity")
	case e.dimension > 0 && len(vec) != e.dimension:
		e.logger.Warn("embedding dimension mismatch, skipping similarity", "got", len(vec), "want", e.dimension)
	default:
		return vec
	}
	e.metrics.EmbeddingFailed()
	return nil
}
