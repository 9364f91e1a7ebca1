// Package metrics holds the Prometheus collectors for the complaint pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "triage"

// Metrics exposes:
//   - triage_complaints_processed_total{answer_type}
//   - triage_resolution_tier_total{tier}
//   - triage_classifier_parse_total{stage}
//   - triage_embedding_failures_total
//   - triage_index_operations_total{op,result}
//   - triage_delivery_messages_total{outcome}
//   - triage_processing_duration_seconds
type Metrics struct {
	ComplaintsProcessed *prometheus.CounterVec
	ResolutionTier      *prometheus.CounterVec
	ClassifierParse     *prometheus.CounterVec
	EmbeddingFailures   prometheus.Counter
	IndexOperations     *prometheus.CounterVec
	DeliveryMessages    *prometheus.CounterVec
	ProcessingDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ComplaintsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "complaints_processed_total",
			Help:      "Complaints resolved and persisted, by answer type.",
		}, []string{"answer_type"}),
		ResolutionTier: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_tier_total",
			Help:      "Resolution decisions by the tier that produced them.",
		}, []string{"tier"}), // exact_match, similar_match, match_without_solution, no_match
		ClassifierParse: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_parse_total",
			Help:      "Classifier responses by the parse stage that recovered the labels.",
		}, []string{"stage"}), // json, regex, default
		EmbeddingFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Embedding calls that degraded to no vector.",
		}),
		IndexOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_operations_total",
			Help:      "Similarity index calls by operation and result.",
		}, []string{"op", "result"}),
		DeliveryMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_messages_total",
			Help:      "Delivered messages by outcome (processed, retried, rejected).",
		}, []string{"outcome"}),
		ProcessingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "End-to-end complaint processing latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
	}
}

func (m *Metrics) ComplaintProcessed(answerType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ComplaintsProcessed.WithLabelValues(answerType).Inc()
	m.ProcessingDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Tier(tier string) {
	if m == nil {
		return
	}
	m.ResolutionTier.WithLabelValues(tier).Inc()
}

func (m *Metrics) ParseStage(stage string) {
	if m == nil {
		return
	}
	m.ClassifierParse.WithLabelValues(stage).Inc()
}

func (m *Metrics) EmbeddingFailed() {
	if m == nil {
		return
	}
	m.EmbeddingFailures.Inc()
}

// IndexOp records a similarity index call; ok selects the "ok" or "error" result label.
func (m *Metrics) IndexOp(op string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.IndexOperations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Delivery(outcome string) {
	if m == nil {
		return
	}
	m.DeliveryMessages.WithLabelValues(outcome).Inc()
}
