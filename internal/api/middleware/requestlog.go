// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger logs one line per request with its action, status and duration.
// 5xx responses log at error level and 4xx at warn.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			action, entityID := actionFromRequest(r.Method, r.URL.Path)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("action", action),
				zap.Int("status_code", recorder.statusCode),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if entityID != "" {
				fields = append(fields, zap.String("entity_id", entityID))
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if ce := logger.Check(levelFromStatus(recorder.statusCode), "request"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func levelFromStatus(statusCode int) zapcore.Level {
	switch {
	case statusCode >= 500:
		return zapcore.ErrorLevel
	case statusCode >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// actionFromRequest names a request after its resource, e.g. "list_student"
// or "get_analysis", and returns the entity id when the path carries one.
func actionFromRequest(method, path string) (string, string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "v1" {
		return strings.ToLower(method) + "_request", ""
	}

	entityType := singularEntity(segments[2])
	if entityType == "" {
		return strings.ToLower(method) + "_request", ""
	}
	if len(segments) == 3 {
		return actionForCollection(method, entityType), ""
	}
	switch segments[3] {
	case "recompute":
		return "recompute_" + entityType, ""
	case "by-class":
		return "list_" + entityType + "_by_class", ""
	}
	return actionForEntity(method, entityType), segments[3]
}

func singularEntity(entity string) string {
	entityMap := map[string]string{
		"students":       "student",
		"classes":        "class",
		"analyses":       "analysis",
		"transcriptions": "transcription",
		"groups":         "group",
		"providers":      "provider",
	}
	return entityMap[entity]
}

func actionForCollection(method, entity string) string {
	switch method {
	case http.MethodPost:
		return "create_" + entity
	case http.MethodGet:
		return "list_" + entity
	default:
		return strings.ToLower(method) + "_" + entity
	}
}

func actionForEntity(method, entity string) string {
	switch method {
	case http.MethodGet:
		return "get_" + entity
	case http.MethodPut, http.MethodPatch:
		return "update_" + entity
	case http.MethodDelete:
		return "delete_" + entity
	case http.MethodPost:
		return "create_" + entity
	default:
		return strings.ToLower(method) + "_" + entity
	}
}
