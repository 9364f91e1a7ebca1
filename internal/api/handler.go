// Package api exposes the complaint pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/kalambet/triage/internal/analytics"
	"github.com/kalambet/triage/internal/delivery"
	"github.com/kalambet/triage/internal/resolution"
	"github.com/kalambet/triage/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Processor resolves complaints synchronously.
type Processor interface {
	Process(ctx context.Context, c resolution.Complaint) (resolution.Result, error)
}

// Store is the storage surface used by the handlers.
type Store interface {
	ListComplaints(ctx context.Context, limit, offset int) ([]storage.Complaint, error)
	ListSolutions(ctx context.Context) ([]storage.Solution, error)
	UpsertSolution(ctx context.Context, key, text string) error
	DeleteSolution(ctx context.Context, key string) error
	JobCounts(ctx context.Context) (map[string]int, error)
	Ping(ctx context.Context) error
}

// IndexCounter reports the number of stored vectors, or -1 when unknown.
type IndexCounter interface {
	Count(ctx context.Context) int
}

type Deps struct {
	Engine    Processor
	Store     Store
	Analytics *analytics.Aggregator
	// Publisher backs POST /complaints/async; nil disables the route.
	Publisher delivery.Publisher
	// Index backs the indexed_vectors figure of GET /stats; may be nil.
	Index IndexCounter
	Token string
	// SubmitLimiter throttles both complaint submission routes; nil disables it.
	SubmitLimiter *rate.Limiter
	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewHandler builds the HTTP API. /health and /metrics are public; every
// other route requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth(deps))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.With(SubmitRateLimit(deps.SubmitLimiter)).Post("/complaints", handleSubmitComplaint(deps))
		r.With(SubmitRateLimit(deps.SubmitLimiter)).Post("/complaints/async", handleQueueComplaint(deps))
		r.Get("/complaints", handleListComplaints(deps))
		r.Get("/analytics", handleAnalytics(deps))
		r.Get("/stats", handleStats(deps))
		r.Get("/solutions", handleListSolutions(deps))
		r.Put("/solutions/{key}", handlePutSolution(deps))
		r.Delete("/solutions/{key}", handleDeleteSolution(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			deps.Logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleAnalytics(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := deps.Analytics.Snapshot(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute analytics: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

type statsResponse struct {
	Queue          map[string]int `json:"queue"`
	IndexedVectors int            `json:"indexed_vectors"`
}

// handleStats reports local queue depth per job status and the vector count.
// The queue is empty when deliveries go through NATS.
func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Store.JobCounts(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count jobs: %v", err)
			return
		}
		resp := statsResponse{Queue: counts, IndexedVectors: -1}
		if deps.Index != nil {
			resp.IndexedVectors = deps.Index.Count(r.Context())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
