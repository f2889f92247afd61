package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/grouping"
)

// GroupHandler serves student groupings.
type GroupHandler struct {
	store    *classroom.Store
	grouping *grouping.Service
}

// NewGroupHandler creates a new GroupHandler instance.
func NewGroupHandler(store *classroom.Store, svc *grouping.Service) *GroupHandler {
	return &GroupHandler{store: store, grouping: svc}
}

// GetGroups handles GET /api/v1/groups?class_name=&force=
func (h *GroupHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	h.serveGroups(w, r, parseForce(r))
}

// RecomputeGroups handles POST /api/v1/groups/recompute?class_name=
func (h *GroupHandler) RecomputeGroups(w http.ResponseWriter, r *http.Request) {
	h.serveGroups(w, r, true)
}

func (h *GroupHandler) serveGroups(w http.ResponseWriter, r *http.Request, force bool) {
	ctx := r.Context()
	className := strings.TrimSpace(r.URL.Query().Get("class_name"))

	var (
		analyses []*classroom.Analysis
		err      error
	)
	if className == "" {
		analyses, err = h.store.ListAnalyses(ctx, 0)
	} else {
		analyses, err = h.store.ListAnalysesByClass(ctx, className)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list analyses: %v", err))
		return
	}

	assignment, _, err := h.grouping.GroupsFor(ctx, className, analyses, force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build groups: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}
