// Package transcription turns an exercise image into text.
//
// Two engines exist: a multimodal model answering in one round trip, and the
// remote OCR job endpoint that is polled until done. The engine is chosen once
// per request from what is configured; a failed request is not retried on the
// other engine.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/infra/llm"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/ocrjob"
)

// Engine identifies which path produced a transcript.
type Engine string

const (
	EngineMultimodal Engine = "multimodal"
	EngineOCRJob     Engine = "ocr-job"
)

// NoTextDetected is what the multimodal model answers for a blank image.
// Router normalises it to an empty transcript.
const NoTextDetected = "No text detected"

// Instruction is sent with every multimodal request.
const Instruction = `Your only task is to act as a high-accuracy OCR (optical character recognition) system.

Transcribe all the text present in the provided image, including numbers and symbols.

Return only the transcribed text, without any comment, extra formatting or explanation.

If there is no text in the image, answer only: "` + NoTextDetected + `".`

var (
	// ErrNoTranscriber: neither a multimodal provider nor the job endpoint is usable.
	ErrNoTranscriber = errors.New("transcription: no transcription engine available")
	// ErrEmptyImage: the upload carried no bytes.
	ErrEmptyImage = errors.New("transcription: empty image")
)

// Image is an uploaded exercise photo.
type Image struct {
	Data     []byte
	MIMEType string // sniffed from Data when empty
	Filename string
}

// Transcript is the text recognised in one image.
type Transcript struct {
	Text     string
	Engine   Engine
	Model    string // multimodal model id, empty for the job path
	JobID    string // remote job id, empty for the multimodal path
	Duration time.Duration
}

// Error wraps a failed transcription with the engine and stage that failed.
// For the job path Err matches one of ocrjob.ErrUploadFailed, ErrJobFailed
// or ErrJobTimeout.
type Error struct {
	Engine Engine
	Stage  string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription via %s failed at %s: %v", e.Engine, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// JobRunner runs one OCR job to completion. *ocrjob.Client implements it.
type JobRunner interface {
	SubmitAndAwait(ctx context.Context, data []byte, filename string) (*ocrjob.Result, error)
}

// Router picks the transcription engine per request.
type Router struct {
	vision llm.MultimodalProvider
	jobs   JobRunner
	logger *zap.Logger
}

// NewRouter accepts nil for either engine.
func NewRouter(vision llm.MultimodalProvider, jobs JobRunner, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{vision: vision, jobs: jobs, logger: logger.Named("transcription")}
}

// Engine reports which engine the next request would use, or "" when none.
func (r *Router) Engine() Engine {
	switch {
	case r.vision != nil && r.vision.Available():
		return EngineMultimodal
	case r.jobs != nil:
		return EngineOCRJob
	default:
		return ""
	}
}

// Transcribe recognises the text in img.
func (r *Router) Transcribe(ctx context.Context, img Image) (*Transcript, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	if img.MIMEType == "" {
		img.MIMEType = http.DetectContentType(img.Data)
	}

	started := time.Now()
	engine := r.Engine()
	var (
		tr  *Transcript
		err error
	)
	switch engine {
	case EngineMultimodal:
		tr, err = r.viaMultimodal(ctx, img)
	case EngineOCRJob:
		tr, err = r.viaJob(ctx, img)
	default:
		return nil, ErrNoTranscriber
	}
	if err != nil {
		r.logger.Warn("transcription failed",
			zap.String("engine", string(engine)),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return nil, err
	}

	tr.Duration = time.Since(started)
	r.logger.Info("transcription complete",
		zap.String("engine", string(engine)),
		zap.Int("chars", len(tr.Text)),
		zap.Duration("elapsed", tr.Duration),
	)
	return tr, nil
}

func (r *Router) viaMultimodal(ctx context.Context, img Image) (*Transcript, error) {
	text, err := r.vision.Transcribe(ctx, llm.Image{Data: img.Data, MIMEType: img.MIMEType}, Instruction)
	if err != nil {
		return nil, &Error{Engine: EngineMultimodal, Stage: "request", Err: err}
	}
	return &Transcript{
		Text:   normalize(text),
		Engine: EngineMultimodal,
		Model:  r.vision.ModelInfo().ID,
	}, nil
}

func (r *Router) viaJob(ctx context.Context, img Image) (*Transcript, error) {
	res, err := r.jobs.SubmitAndAwait(ctx, img.Data, img.Filename)
	if err != nil {
		stage := "job"
		var jobErr *ocrjob.Error
		if errors.As(err, &jobErr) {
			stage = string(jobErr.Stage)
		}
		return nil, &Error{Engine: EngineOCRJob, Stage: stage, Err: err}
	}
	return &Transcript{Text: normalize(res.Text), Engine: EngineOCRJob, JobID: res.JobID}, nil
}

func normalize(text string) string {
	text = strings.TrimSpace(text)
	if strings.EqualFold(strings.Trim(text, `".`), NoTextDetected) {
		return ""
	}
	return text
}
