package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/triage/internal/metrics"
)

const defaultIndexTimeout = 3 * time.Second

// SimilarityIndex wraps an Index with the pipeline's degradation rules:
// queries return an empty slice on any failure and inserts never return an
// error. Every call is bounded by a timeout.
type SimilarityIndex struct {
	index     Index
	dimension int
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// SimilarityOptions tunes a SimilarityIndex. Dimension, when positive,
// rejects vectors of any other length before they reach the backend.
type SimilarityOptions struct {
	Dimension int
	Timeout   time.Duration
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewSimilarityIndex(index Index, opts SimilarityOptions) *SimilarityIndex {
	s := &SimilarityIndex{
		index:     index,
		dimension: opts.Dimension,
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = defaultIndexTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *SimilarityIndex) accepts(vector []float32) bool {
	if len(vector) == 0 {
		return false
	}
	return s.dimension <= 0 || len(vector) == s.dimension
}

// Query returns up to topK matches in descending score order. It is a pure
// read and returns an empty slice when the vector is unusable or the backend fails.
func (s *SimilarityIndex) Query(ctx context.Context, vector []float32, topK int) []Match {
	if !s.accepts(vector) || topK <= 0 {
		return []Match{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	matches, err := s.index.Query(ctx, vector, topK)
	s.metrics.IndexOp("query", err == nil)
	if err != nil {
		s.logger.Warn("similarity query failed, continuing without matches", "error", err)
		return []Match{}
	}

	sortByScore(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches
}

// Insert stores the vector and reports whether it was stored. Failures are
// logged and otherwise ignored.
func (s *SimilarityIndex) Insert(ctx context.Context, id string, vector []float32, meta Metadata) bool {
	if !s.accepts(vector) {
		s.logger.Warn("refusing to index vector with unexpected dimension", "embedding_id", id, "got", len(vector), "want", s.dimension)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.index.Insert(ctx, id, vector, meta)
	s.metrics.IndexOp("insert", err == nil)
	if err != nil {
		s.logger.Warn("storing complaint embedding failed", "embedding_id", id, "error", err)
		return false
	}
	return true
}

// Count returns the number of indexed vectors, or -1 when the backend is unavailable.
func (s *SimilarityIndex) Count(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.index.Count(ctx)
	if err != nil {
		s.logger.Warn("counting indexed vectors failed", "error", err)
		return -1
	}
	return n
}
