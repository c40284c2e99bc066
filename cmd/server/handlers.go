package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/liamcoop/cvrisk/assessment"
	"github.com/liamcoop/cvrisk/internal/logger"
	"github.com/liamcoop/cvrisk/mapper"
	"github.com/liamcoop/cvrisk/rules"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		logger.WarnStore()
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Error:  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: s.cfg.UsesDatabase(),
	})
}

// Assessment handler
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var in rules.ClinicalInput
	if !decodeBody(w, r, &in) {
		return
	}
	s.assess(w, r, in)
}

// Form assessment handler: maps raw wizard state before assessing
func (s *Server) handleAssessForm(w http.ResponseWriter, r *http.Request) {
	var form mapper.FormData
	if !decodeBody(w, r, &form) {
		return
	}
	s.assess(w, r, mapper.BuildInput(form, time.Now()))
}

func (s *Server) assess(w http.ResponseWriter, r *http.Request, in rules.ClinicalInput) {
	rec, err := s.svc.Assess(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("X-Assessment-ID", rec.ID.String())
	respondJSON(w, http.StatusOK, rec.Verdict)
}

// Batch assessment handler
func (s *Server) handleAssessBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	records, err := s.svc.AssessBatch(r.Context(), req.Inputs)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := BatchResponse{Results: make([]BatchResult, 0, len(records))}
	for _, rec := range records {
		resp.Results = append(resp.Results, BatchResult{ID: rec.ID, Verdict: rec.Verdict})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Explain handler
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var in rules.ClinicalInput
	if !decodeBody(w, r, &in) {
		return
	}

	results, err := s.svc.Explain(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ExplainResponse{Results: results})
}

// List assessments handler
func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.svc.ListRecent(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, RecordsResponse{Assessments: records})
}

// Get assessment handler
func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, err := s.svc.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Delete assessment handler
func (s *Server) handleDeleteAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.svc.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rule catalogue handler
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Catalogue())
}

// Helper functions
func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid assessment id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody reads a JSON body, answering 400 or 413 itself on failure
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
	return false
}

// respondServiceError maps service errors to plain-text responses
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *assessment.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, assessment.ErrNotFound):
		http.Error(w, "assessment not found", http.StatusNotFound)
	default:
		logger.Logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
