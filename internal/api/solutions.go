package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/triage/internal/classify"
	"github.com/kalambet/triage/internal/storage"
)

type solutionRequest struct {
	SolutionText string `json:"solution_text"`
}

func handleListSolutions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		solutions, err := deps.Store.ListSolutions(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list solutions: %v", err)
			return
		}
		if solutions == nil {
			solutions = []storage.Solution{}
		}
		writeJSON(w, http.StatusOK, solutions)
	}
}

func handlePutSolution(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := classify.ParseCategory(chi.URLParam(r, "key"))
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown category %q", chi.URLParam(r, "key"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()
		var req solutionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.SolutionText) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "solution_text is required")
			return
		}

		if err := deps.Store.UpsertSolution(r.Context(), string(key), req.SolutionText); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save solution: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, storage.Solution{NormalizedKey: string(key), SolutionText: req.SolutionText})
	}
}

func handleDeleteSolution(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		err := deps.Store.DeleteSolution(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no solution for %q", key)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete solution: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
