package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kalambet/triage/internal/analytics"
	"github.com/kalambet/triage/internal/classify"
	"github.com/kalambet/triage/internal/config"
	"github.com/kalambet/triage/internal/delivery"
	"github.com/kalambet/triage/internal/engine"
	"github.com/kalambet/triage/internal/metrics"
	"github.com/kalambet/triage/internal/resolution"
	"github.com/kalambet/triage/internal/retrieval"
	"github.com/kalambet/triage/internal/storage"
)

// app holds the wired pipeline shared by serve, worker and mcp.
type app struct {
	cfg        config.Config
	store      *storage.Store
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	similarity *retrieval.SimilarityIndex
	engine     *resolution.Engine
	analytics  *analytics.Aggregator
	closers    []func() error
}

type appOptions struct {
	// checkModels verifies the inference engine and pulls missing models.
	checkModels bool
	progress    io.Writer
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg, registry: prometheus.NewRegistry()}
	partial := a
	defer func() {
		if err != nil {
			partial.Close()
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	inference := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
	if opts.checkModels {
		if err := engine.EnsureReady(ctx, inference, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel, opts.progress); err != nil {
			return nil, err
		}
		if err := engine.CheckEmbeddingDimension(ctx, inference, cfg.Ollama.EmbedModel, cfg.Index.Dimension); err != nil {
			return nil, err
		}
	}

	a.store, err = storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	if cfg.Storage.SolutionsFile != "" {
		seeds, err := storage.LoadSolutionSeeds(cfg.Storage.SolutionsFile)
		if err != nil {
			return nil, err
		}
		if err := a.store.SeedSolutions(ctx, seeds); err != nil {
			return nil, err
		}
		slog.Info("solutions seeded", "path", cfg.Storage.SolutionsFile, "count", len(seeds))
	}

	index, err := openIndex(ctx, cfg, a.store)
	if err != nil {
		return nil, err
	}
	if c, ok := index.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	logger := slog.Default()
	a.similarity = retrieval.NewSimilarityIndex(index, retrieval.SimilarityOptions{
		Dimension: cfg.Index.Dimension,
		Timeout:   cfg.Timeouts.Index,
		Metrics:   a.metrics,
		Logger:    logger.With("component", "similarity"),
	})
	policy := resolution.Policy{
		Threshold:     float32(cfg.Resolution.SimilarityThreshold),
		TopK:          cfg.Resolution.TopK,
		SnippetLength: cfg.Resolution.SnippetLength,
	}
	a.engine, err = resolution.New(resolution.Deps{
		Classifier: classify.New(inference, cfg.Ollama.ChatModel, classify.Options{
			Timeout: cfg.Timeouts.Inference,
			Metrics: a.metrics,
			Logger:  logger.With("component", "classifier"),
		}),
		Embedder: retrieval.NewEmbedder(inference, cfg.Ollama.EmbedModel, retrieval.EmbedderOptions{
			Dimension: cfg.Index.Dimension,
			Timeout:   cfg.Timeouts.Embedding,
			Metrics:   a.metrics,
			Logger:    logger.With("component", "embedder"),
		}),
		Similarity: a.similarity,
		Solutions:  a.store,
		Complaints: a.store,
		Metrics:    a.metrics,
		Logger:     logger.With("component", "resolution"),
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("building resolution engine: %w", err)
	}

	a.analytics = analytics.New(a.store)
	return a, nil
}

func openIndex(ctx context.Context, cfg config.Config, store *storage.Store) (retrieval.Index, error) {
	switch cfg.Index.Backend {
	case "qdrant":
		q, err := retrieval.NewQdrantIndex(ctx, retrieval.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
			Dimension:  cfg.Index.Dimension,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("using qdrant vector index", "host", cfg.Qdrant.Host, "collection", cfg.Qdrant.Collection)
		return q, nil
	default:
		return retrieval.NewSQLiteIndex(store.DB()), nil
	}
}

// openDelivery returns the configured channel. The returned close function
// is never nil.
func (a *app) openDelivery(ctx context.Context) (delivery.Source, delivery.Publisher, func(), error) {
	cfg := a.cfg
	if cfg.Delivery.Backend != "nats" {
		src, err := delivery.NewQueueSource(ctx, a.store)
		if err != nil {
			return nil, nil, func() {}, err
		}
		return src, delivery.NewQueuePublisher(a.store, cfg.Delivery.MaxAttempts), func() {}, nil
	}

	nc, err := delivery.ConnectNATS(cfg.NATS.URL)
	if err != nil {
		return nil, nil, func() {}, err
	}
	ncfg := delivery.NATSConfig{
		Stream:     cfg.NATS.Stream,
		Subject:    cfg.NATS.Subject,
		Durable:    cfg.NATS.Durable,
		MaxDeliver: cfg.Delivery.MaxAttempts,
		FetchWait:  cfg.Delivery.PollInterval,
	}
	pub, err := delivery.NewNATSPublisher(nc, ncfg)
	if err != nil {
		nc.Close()
		return nil, nil, func() {}, err
	}
	src, err := delivery.NewNATSSource(nc, ncfg)
	if err != nil {
		nc.Close()
		return nil, nil, func() {}, err
	}
	return src, pub, func() {
		src.Close()
		nc.Drain()
	}, nil
}

func (a *app) consumer(src delivery.Source) *delivery.Consumer {
	return delivery.NewConsumer(src, a.engine, delivery.ConsumerOptions{
		BatchSize:    a.cfg.Delivery.BatchSize,
		PollInterval: a.cfg.Delivery.PollInterval,
		Metrics:      a.metrics,
		Logger:       slog.Default().With("component", "delivery"),
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
