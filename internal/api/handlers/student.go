package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
)

// StudentHandler handles HTTP requests for students.
type StudentHandler struct {
	store *classroom.Store
}

// NewStudentHandler creates a new StudentHandler instance.
func NewStudentHandler(store *classroom.Store) *StudentHandler {
	return &StudentHandler{store: store}
}

// CreateStudentRequest is the request body for creating a student.
type CreateStudentRequest struct {
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
}

// ListStudents handles GET /api/v1/students?class_name=
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context(), r.URL.Query().Get("class_name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list students: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

// CreateStudent handles POST /api/v1/students
func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	student, err := h.store.CreateStudent(r.Context(), classroom.CreateStudentInput{
		Name:      req.Name,
		ClassName: req.ClassName,
	})
	switch {
	case errors.Is(err, classroom.ErrInvalidStudent):
		writeError(w, http.StatusBadRequest, "name and class_name are required")
		return
	case errors.Is(err, classroom.ErrDuplicateStudent):
		writeError(w, http.StatusConflict, "student with the same name and class already exists")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create student: %v", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"student": student})
}

// GetStudent handles GET /api/v1/students/{id}
func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := h.store.GetStudent(r.Context(), pathValue(chi.URLParam(r, "id")))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get student: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// DeleteStudent handles DELETE /api/v1/students/{id}
func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteStudent(r.Context(), pathValue(chi.URLParam(r, "id")))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete student: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
