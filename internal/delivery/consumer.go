package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/triage/internal/metrics"
	"github.com/kalambet/triage/internal/resolution"
)

// Delivery outcomes, also used as metric labels.
const (
	OutcomeProcessed = "processed"
	OutcomeRejected  = "rejected"
	OutcomeRetried   = "retried"
)

// Processor resolves one complaint.
type Processor interface {
	Process(ctx context.Context, c resolution.Complaint) (resolution.Result, error)
}

// ConsumerOptions tune a Consumer. Zero values select the defaults.
type ConsumerOptions struct {
	BatchSize    int           // default 10
	PollInterval time.Duration // default 500ms
	Concurrency  int           // messages processed at once; default BatchSize
	// DrainTimeout bounds how long fetched messages keep running after
	// ctx is cancelled; default 30s.
	DrainTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Consumer pulls batches from a Source and processes each message.
type Consumer struct {
	source      Source
	processor   Processor
	batchSize   int
	poll        time.Duration
	concurrency int
	drain       time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(source Source, processor Processor, opts ConsumerOptions) *Consumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = opts.BatchSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Consumer{
		source:      source,
		processor:   processor,
		batchSize:   opts.BatchSize,
		poll:        opts.PollInterval,
		concurrency: opts.Concurrency,
		drain:       opts.DrainTimeout,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := c.RunOnce(ctx)
		if err != nil {
			c.logger.Error("delivery fetch failed", "error", err)
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.poll):
		}
	}
}

// RunOnce fetches one batch and processes it, returning the batch size.
// Per-message failures are handled by ack or retry and are not returned.
//
// Cancelling ctx stops fetching only. Messages already fetched are processed
// and acked on a detached context that is cut after the drain timeout, so a
// complaint stored during shutdown is not redelivered and stored twice.
func (c *Consumer) RunOnce(ctx context.Context) (int, error) {
	msgs, err := c.source.Fetch(ctx, c.batchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	work, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(c.drain)
		defer timer.Stop()
		select {
		case <-timer.C:
			c.logger.Warn("drain timeout reached, aborting in-flight complaints", "timeout", c.drain)
			cancel()
		case <-work.Done():
		}
	})
	defer stop()

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			c.handle(work, msg)
			return nil
		})
	}
	_ = g.Wait()
	return len(msgs), nil
}

func (c *Consumer) handle(ctx context.Context, msg Message) {
	complaint, err := DecodeComplaint(msg.Payload())
	if err != nil {
		// Redelivery cannot fix a malformed payload.
		c.logger.Warn("dropping undecodable complaint", "error", err)
		c.ack(ctx, msg, OutcomeRejected)
		return
	}

	res, err := c.processor.Process(ctx, complaint)
	switch {
	case errors.Is(err, resolution.ErrValidation):
		c.logger.Warn("dropping invalid complaint", "error", err)
		c.ack(ctx, msg, OutcomeRejected)
	case err != nil:
		c.logger.Warn("complaint processing failed; will retry", "error", err)
		if rerr := msg.Retry(ctx, err); rerr != nil {
			c.logger.Error("failed to hand back complaint", "error", rerr)
		}
		c.metrics.Delivery(OutcomeRetried)
	default:
		c.logger.Debug("complaint delivered", "complaint_id", res.ComplaintID)
		c.ack(ctx, msg, OutcomeProcessed)
	}
}

func (c *Consumer) ack(ctx context.Context, msg Message, outcome string) {
	if err := msg.Ack(ctx); err != nil {
		c.logger.Error("failed to ack complaint", "error", err)
	}
	c.metrics.Delivery(outcome)
}
