package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
)

// AnalysisHandler handles submissions and stored analyses.
type AnalysisHandler struct {
	store     *classroom.Store
	analyzer  *classroom.AnalysisService
	maxUpload int64
}

// NewAnalysisHandler creates a new AnalysisHandler. maxUpload <= 0 uses
// DefaultMaxUploadBytes.
func NewAnalysisHandler(store *classroom.Store, analyzer *classroom.AnalysisService, maxUpload int64) *AnalysisHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &AnalysisHandler{store: store, analyzer: analyzer, maxUpload: maxUpload}
}

// CreateAnalysis handles POST /api/v1/analyses (multipart: file, student_id, subject).
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r, h.maxUpload)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), classroom.AnalyzeInput{
		Image:     img,
		StudentID: r.FormValue("student_id"),
		Subject:   r.FormValue("subject"),
	})
	if err != nil {
		writeTranscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListAnalyses handles GET /api/v1/analyses?limit=&ids=
// ids (comma separated, e.g. the members of a group) replaces the limit.
func (h *AnalysisHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	var (
		analyses []*classroom.Analysis
		err      error
	)
	if ids := splitIDs(r.URL.Query().Get("ids")); len(ids) > 0 {
		analyses, err = h.store.ListAnalysesByIDs(r.Context(), ids)
	} else {
		analyses, err = h.store.ListAnalyses(r.Context(), parseLimit(r))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list analyses: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

// GetAnalysis handles GET /api/v1/analyses/{id}
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.store.GetAnalysis(r.Context(), pathValue(chi.URLParam(r, "id")))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get analysis: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// ListAnalysesByClass handles GET /api/v1/analyses/by-class
func (h *AnalysisHandler) ListAnalysesByClass(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.GroupAnalysesByClass(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to group analyses: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > maxListLimit {
		ids = ids[:maxListLimit]
	}
	return ids
}
