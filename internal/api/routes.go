// Package api wires the HTTP routes of the classroom API onto a chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/api/handlers"
	apmiddleware "github.com/DARIONZITA/backend-professorIA/internal/api/middleware"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/grouping"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/transcription"
)

// Services are the domain services the routes call.
type Services struct {
	Store       *classroom.Store
	Analyzer    *classroom.AnalysisService
	Grouping    *grouping.Service
	Transcriber *transcription.Router
	// Providers may be nil when no generation chain is configured.
	Providers handlers.ProviderLister
	Logger    *zap.Logger
	// MaxUploadBytes bounds multipart uploads; 0 uses the handler default.
	MaxUploadBytes int64
}

// NewRouter creates and configures a chi router with all routes.
func NewRouter(s Services) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.RequestLogger(s.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	studentHandler := handlers.NewStudentHandler(s.Store)
	classHandler := handlers.NewClassHandler(s.Store, s.Grouping)
	analysisHandler := handlers.NewAnalysisHandler(s.Store, s.Analyzer, s.MaxUploadBytes)
	transcriptionHandler := handlers.NewTranscriptionHandler(s.Transcriber, s.MaxUploadBytes)
	groupHandler := handlers.NewGroupHandler(s.Store, s.Grouping)
	providerHandler := handlers.NewProviderHandler(s.Providers, func() string {
		if s.Transcriber == nil {
			return ""
		}
		return string(s.Transcriber.Engine())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/students", func(r chi.Router) {
			r.Get("/", studentHandler.ListStudents)         // GET /api/v1/students
			r.Post("/", studentHandler.CreateStudent)       // POST /api/v1/students
			r.Get("/{id}", studentHandler.GetStudent)       // GET /api/v1/students/{id}
			r.Delete("/{id}", studentHandler.DeleteStudent) // DELETE /api/v1/students/{id}
		})

		r.Route("/classes", func(r chi.Router) {
			r.Get("/", classHandler.ListClasses)
			r.Get("/{className}", classHandler.GetClassInsights)
		})

		r.Route("/analyses", func(r chi.Router) {
			r.Get("/", analysisHandler.ListAnalyses)
			r.Post("/", analysisHandler.CreateAnalysis)
			r.Get("/by-class", analysisHandler.ListAnalysesByClass)
			r.Get("/{id}", analysisHandler.GetAnalysis)
		})

		r.Post("/transcriptions", transcriptionHandler.Transcribe)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groupHandler.GetGroups)
			r.Post("/recompute", groupHandler.RecomputeGroups)
		})

		r.Get("/providers", providerHandler.ListProviders)
	})

	return r
}
