// Package handlers implements the HTTP endpoints of the classroom API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/transcription"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/ocrjob"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	errInvalidBody      = "invalid request body"
	errFailedToEncode   = "failed to encode response"
	errMissingImageFile = "multipart field \"file\" is required"

	defaultListLimit = 100
	maxListLimit     = 1000

	// DefaultMaxUploadBytes bounds multipart image uploads.
	DefaultMaxUploadBytes = 20 << 20
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"`+errFailedToEncode+`"}`, http.StatusInternalServerError)
	}
}

// writeError writes {"error": message} with the given status.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// parseLimit reads ?limit=; absent or invalid values use the default.
func parseLimit(r *http.Request) int {
	limit := defaultListLimit
	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 {
		limit = min(lim, maxListLimit)
	}
	return limit
}

// parseForce reads ?force= as a boolean; anything unparseable is false.
func parseForce(r *http.Request) bool {
	return parseBool(r, "force")
}

func parseBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// readImage pulls the "file" part of a multipart upload into memory.
func readImage(w http.ResponseWriter, r *http.Request, maxBytes int64) (transcription.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return transcription.Image{}, fmt.Errorf("parse multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return transcription.Image{}, errors.New(errMissingImageFile)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return transcription.Image{}, fmt.Errorf("read upload: %w", err)
	}
	return transcription.Image{Data: data, MIMEType: partType(header), Filename: header.Filename}, nil
}

func partType(h *multipart.FileHeader) string {
	ct := h.Header.Get(headerContentType)
	if ct == "" || ct == "application/octet-stream" {
		return ""
	}
	return ct
}

// writeTranscriptionError maps a transcription failure to a status code.
func writeTranscriptionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, transcription.ErrEmptyImage):
		status = http.StatusBadRequest
	case errors.Is(err, transcription.ErrNoTranscriber):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ocrjob.ErrJobTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, ocrjob.ErrUploadFailed), errors.Is(err, ocrjob.ErrJobFailed):
		status = http.StatusBadGateway
	default:
		var te *transcription.Error
		if errors.As(err, &te) {
			status = http.StatusBadGateway
		}
	}
	writeError(w, status, err.Error())
}

// pathValue unescapes and trims a chi URL parameter.
func pathValue(v string) string {
	if u, err := url.PathUnescape(v); err == nil {
		v = u
	}
	return strings.TrimSpace(v)
}

// writeUploadError answers a failed readImage.
func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
