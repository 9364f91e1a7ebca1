// Package classify labels complaint text with a support category and a
// sentiment using a local LLM.
package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/triage/internal/engine"
	"github.com/kalambet/triage/internal/metrics"
)

const defaultTimeout = 10 * time.Second

// Classifier asks the chat model for labels and parses whatever comes back.
type Classifier struct {
	client  engine.Chatter
	model   string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Options tunes a Classifier. Zero values select defaults.
type Options struct {
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// New creates a Classifier using the given chat backend and model name.
func New(client engine.Chatter, model string, opts Options) *Classifier {
	c := &Classifier{
		client:  client,
		model:   model,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Classify returns in-set labels for text. A failed or timed-out model call
// yields DefaultLabels; a malformed response is recovered by Parse.
func (c *Classifier) Classify(ctx context.Context, text string) Labels {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Chat(ctx, c.model, BuildPrompt(text), labelSchema())
	if err != nil {
		c.logger.Warn("classifier chat failed, using defaults", "error", err)
		c.metrics.ParseStage(string(StageDefault))
		return DefaultLabels
	}

	labels, stage := Parse(raw)
	if stage != StageJSON {
		c.logger.Debug("classifier response needed fallback parsing", "stage", stage, "response", raw)
	}
	c.metrics.ParseStage(string(stage))
	return labels
}
