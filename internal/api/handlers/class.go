package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/grouping"
)

// ClassHandler serves class listings and class-level insights.
type ClassHandler struct {
	store    *classroom.Store
	grouping *grouping.Service
}

// NewClassHandler creates a new ClassHandler instance.
func NewClassHandler(store *classroom.Store, svc *grouping.Service) *ClassHandler {
	return &ClassHandler{store: store, grouping: svc}
}

// ListClasses handles GET /api/v1/classes
func (h *ClassHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.store.ListClasses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list classes: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classes": classes})
}

// GetClassInsights handles GET /api/v1/classes/{className}?force=
// A class without students is 404.
func (h *ClassHandler) GetClassInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	className := pathValue(chi.URLParam(r, "className"))

	students, err := h.store.ListStudents(ctx, className)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list students: %v", err))
		return
	}
	if len(students) == 0 {
		writeError(w, http.StatusNotFound, "class not found or has no students")
		return
	}

	latest, err := h.store.LatestAnalysesByClass(ctx, className)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list analyses: %v", err))
		return
	}

	insights, _, err := h.grouping.ClassInsights(ctx, className, latest, parseForce(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build class insights: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, insights)
}
