package handlers

import (
	"net/http"
	"time"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/transcription"
)

// TranscriptionHandler runs OCR only, without diagnosis or storage.
type TranscriptionHandler struct {
	transcriber classroom.Transcriber
	maxUpload   int64
}

// NewTranscriptionHandler creates a new TranscriptionHandler.
func NewTranscriptionHandler(transcriber classroom.Transcriber, maxUpload int64) *TranscriptionHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &TranscriptionHandler{transcriber: transcriber, maxUpload: maxUpload}
}

type transcriptionResponse struct {
	Filename       string               `json:"filename"`
	DetectedText   string               `json:"detected_text"`
	Engine         transcription.Engine `json:"transcription_engine"`
	Model          string               `json:"model,omitempty"`
	JobID          string               `json:"job_id,omitempty"`
	ProcessingTime string               `json:"processing_time"`
}

// Transcribe handles POST /api/v1/transcriptions (multipart: file).
func (h *TranscriptionHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r, h.maxUpload)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	t, err := h.transcriber.Transcribe(r.Context(), img)
	if err != nil {
		writeTranscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptionResponse{
		Filename:       img.Filename,
		DetectedText:   t.Text,
		Engine:         t.Engine,
		Model:          t.Model,
		JobID:          t.JobID,
		ProcessingTime: t.Duration.Round(time.Millisecond).String(),
	})
}
