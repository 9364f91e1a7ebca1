package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kalambet/triage/internal/delivery"
	"github.com/kalambet/triage/internal/resolution"
	"github.com/kalambet/triage/internal/storage"
)

func decodeComplaint(w http.ResponseWriter, r *http.Request) (resolution.Complaint, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var c resolution.Complaint
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return c, false
	}
	return c, true
}

func handleSubmitComplaint(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := decodeComplaint(w, r)
		if !ok {
			return
		}

		res, err := deps.Engine.Process(r.Context(), c)
		if errors.Is(err, resolution.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			deps.Logger.Error("complaint processing failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to process complaint: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleQueueComplaint(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Publisher == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "asynchronous ingestion is not configured")
			return
		}
		c, ok := decodeComplaint(w, r)
		if !ok {
			return
		}

		err := delivery.Submit(r.Context(), deps.Publisher, c)
		if errors.Is(err, resolution.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue complaint: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}

func handleListComplaints(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		complaints, err := deps.Store.ListComplaints(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list complaints: %v", err)
			return
		}
		if complaints == nil {
			complaints = []storage.Complaint{}
		}
		writeJSON(w, http.StatusOK, complaints)
	}
}
