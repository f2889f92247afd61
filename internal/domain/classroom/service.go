package classroom

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/transcription"
)

// DefaultSubject is used when a submission names none.
const DefaultSubject = "Mathematics"

// Transcriber turns an image into text. *transcription.Router implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, img transcription.Image) (*transcription.Transcript, error)
}

// Synthesizer diagnoses transcribed text. *insight.Synthesizer implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, subject string) insight.Insight
}

// AnalyzeInput is one uploaded submission.
type AnalyzeInput struct {
	Image     transcription.Image
	StudentID string
	Subject   string
}

// OCRInfo describes how the submission was transcribed.
type OCRInfo struct {
	Filename       string               `json:"filename"`
	Engine         transcription.Engine `json:"transcription_engine"`
	Model          string               `json:"model,omitempty"`
	JobID          string               `json:"job_id,omitempty"`
	ProcessingTime string               `json:"processing_time"`
}

// AnalyzeResult is the stored analysis plus transcription details.
type AnalyzeResult struct {
	Analysis *Analysis `json:"analysis"`
	OCR      OCRInfo   `json:"ocr_info"`
}

// AnalysisService runs transcription and diagnosis for a submission and
// stores the result.
type AnalysisService struct {
	store       *Store
	transcriber Transcriber
	synth       Synthesizer
	logger      *zap.Logger
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(store *Store, transcriber Transcriber, synth Synthesizer, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		store:       store,
		transcriber: transcriber,
		synth:       synth,
		logger:      logger.Named("analysis"),
	}
}

// Analyze transcribes, diagnoses and stores one submission. Transcription
// errors are returned as is; diagnosis never fails.
func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		subject = DefaultSubject
	}

	studentName, className := UnknownStudent, ""
	if in.StudentID != "" {
		if st, err := s.store.GetStudent(ctx, in.StudentID); err == nil {
			studentName, className = st.Name, st.ClassName
		} else {
			s.logger.Debug("student not resolved", zap.String("student_id", in.StudentID), zap.Error(err))
		}
	}

	transcript, err := s.transcriber.Transcribe(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	result := s.synth.Synthesize(ctx, transcript.Text, subject)
	s.fillHistory(ctx, &result, studentName, subject)
	result.StudentFeedback = insight.RenderFeedback(result.StudentFeedback, studentName)

	a := &Analysis{
		StudentID:    in.StudentID,
		StudentName:  studentName,
		ClassName:    className,
		Subject:      subject,
		Filename:     in.Image.Filename,
		DetectedText: transcript.Text,
		Insight:      result,
		OCREngine:    string(transcript.Engine),
	}
	if err := s.store.InsertAnalysis(ctx, a); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	s.logger.Info("analysis stored",
		zap.String("analysis_id", a.ID),
		zap.String("student", studentName),
		zap.String("engine", string(transcript.Engine)),
		zap.String("source", string(result.Source)),
		zap.Int("error_percentage", result.ErrorPercentage),
	)

	return &AnalyzeResult{
		Analysis: a,
		OCR: OCRInfo{
			Filename:       in.Image.Filename,
			Engine:         transcript.Engine,
			Model:          transcript.Model,
			JobID:          transcript.JobID,
			ProcessingTime: transcript.Duration.Round(time.Millisecond).String(),
		},
	}, nil
}

// fillHistory writes a summary of earlier analyses into the detail when the
// model did not provide one.
func (s *AnalysisService) fillHistory(ctx context.Context, in *insight.Insight, studentName, subject string) {
	if in.Detail != nil && in.Detail.HistoricalAnalysis != "" {
		return
	}
	previous, err := s.store.ListAnalysesByStudent(ctx, studentName, subject)
	if err != nil {
		s.logger.Warn("history lookup failed", zap.String("student", studentName), zap.Error(err))
		return
	}
	insights := make([]insight.Insight, len(previous))
	for i, p := range previous {
		insights[i] = p.Insight
	}
	summary := insight.HistoricalSummary(studentName, subject, insights)
	if summary == "" {
		return
	}
	if in.Detail == nil {
		in.Detail = &insight.Detail{}
	}
	in.Detail.HistoricalAnalysis = summary
}
