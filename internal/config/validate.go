package config

import (
	"errors"
	"fmt"
)

func (c Config) validate() error {
	var errs []error
	switch c.Index.Backend {
	case "sqlite", "qdrant":
	default:
		errs = append(errs, fmt.Errorf("index.backend must be sqlite or qdrant, got %q", c.Index.Backend))
	}
	switch c.Delivery.Backend {
	case "queue", "nats":
	default:
		errs = append(errs, fmt.Errorf("delivery.backend must be queue or nats, got %q", c.Delivery.Backend))
	}
	if c.Index.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("index.dimension must be positive, got %d", c.Index.Dimension))
	}
	if c.Resolution.SimilarityThreshold < -1 || c.Resolution.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("resolution.similarity_threshold must be within [-1, 1], got %v", c.Resolution.SimilarityThreshold))
	}
	if c.Resolution.TopK < 1 {
		errs = append(errs, fmt.Errorf("resolution.top_k must be at least 1, got %d", c.Resolution.TopK))
	}
	if c.API.SubmitRate < 0 {
		errs = append(errs, fmt.Errorf("api.submit_rate must not be negative, got %v", c.API.SubmitRate))
	}
	if c.Delivery.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("delivery.batch_size must be at least 1, got %d", c.Delivery.BatchSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
