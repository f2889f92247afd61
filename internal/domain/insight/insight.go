// Package insight turns transcribed exercise text into a structured
// diagnosis of the student's difficulties.
package insight

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/extraction"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/llm"
)

// Source says how an Insight was produced.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
)

// Insight is the diagnosis of one submission.
type Insight struct {
	MainError       string   `json:"mainError"`
	ErrorPercentage int      `json:"errorPercentage"`
	Concepts        []string `json:"concepts"`
	Suggestions     []string `json:"suggestions"`
	Reasoning       string   `json:"reasoning"`
	Source          Source   `json:"source"`
	Provider        string   `json:"provider,omitempty"`

	Detail *Detail `json:"ai_structured,omitempty"`
	Score  *Score  `json:"score,omitempty"`
	// StudentFeedback holds a {student_name} placeholder until RenderFeedback.
	StudentFeedback string `json:"studentFeedback,omitempty"`
}

// Detail is the optional pedagogical breakdown from a second prompt.
type Detail struct {
	MainConcept            string          `json:"mainConcept"`
	SpecificError          string          `json:"specificError"`
	IsRecurrent            bool            `json:"isRecurrent"`
	HistoricalAnalysis     string          `json:"historicalAnalysis"`
	SuggestionForTeacher   string          `json:"suggestionForTeacher"`
	GeneratedMicroExercise []MicroExercise `json:"generatedMicroExercise"`
}

// Generator is the text generation chain. *llm.Chain implements it.
type Generator interface {
	Generate(ctx context.Context, req llm.ChatRequest) (*llm.Generation, error)
	Available() bool
}

// Synthesizer produces an Insight for every input. It never returns an error:
// anything that goes wrong with generation degrades to Heuristic.
type Synthesizer struct {
	gen    Generator
	logger *zap.Logger
	detail bool
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithoutDetail skips the second, pedagogical detail prompt.
func WithoutDetail() Option {
	return func(s *Synthesizer) { s.detail = false }
}

// NewSynthesizer accepts a nil generator; every call then uses Heuristic.
func NewSynthesizer(gen Generator, logger *zap.Logger, opts ...Option) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synthesizer{gen: gen, logger: logger.Named("insight"), detail: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether generation would be attempted.
func (s *Synthesizer) Available() bool {
	return s.gen != nil && s.gen.Available()
}

// Synthesize diagnoses text written for subject.
func (s *Synthesizer) Synthesize(ctx context.Context, text, subject string) Insight {
	if strings.TrimSpace(text) == "" {
		return Empty()
	}
	if !s.Available() {
		return Heuristic(text, subject)
	}

	gen, err := s.gen.Generate(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analysisSystem},
			{Role: llm.RoleUser, Content: buildAnalysisPrompt(text, subject)},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
		JSONMode:    true,
	})
	if err != nil {
		s.logger.Warn("analysis generation failed, using heuristic", zap.Error(err))
		return Heuristic(text, subject)
	}

	raw, err := extraction.Extract(gen.Content)
	obj, isObj := raw.(map[string]any)
	if err != nil || !isObj {
		s.logger.Warn("analysis output not usable, using heuristic",
			zap.String("provider", gen.Provider),
			zap.Error(err),
		)
		return Heuristic(text, subject)
	}

	in := sanitizeAnalysis(obj)
	in.Source = SourceLLM
	in.Provider = gen.Provider

	if s.detail {
		in.Detail = s.synthesizeDetail(ctx, text, subject, in.MainError)
	}
	score := ScoreFor(text, in.ErrorPercentage)
	in.Score = &score
	in.StudentFeedback = feedbackTemplate(in, microExerciseFrom(obj, in.Detail))
	return in
}

// synthesizeDetail is best effort; nil on any failure.
func (s *Synthesizer) synthesizeDetail(ctx context.Context, text, subject, mainError string) *Detail {
	gen, err := s.gen.Generate(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: detailSystem},
			{Role: llm.RoleUser, Content: buildDetailPrompt(text, subject, mainError)},
		},
		Temperature: 0.2,
		MaxTokens:   1500,
		JSONMode:    true,
	})
	if err != nil {
		s.logger.Debug("detail generation failed", zap.Error(err))
		return nil
	}
	var d Detail
	if err := extraction.ExtractInto(gen.Content, &d); err != nil {
		s.logger.Debug("detail output not usable", zap.String("provider", gen.Provider), zap.Error(err))
		return nil
	}
	return &d
}

// RenderFeedback fills the student name into a feedback template.
func RenderFeedback(template, studentName string) string {
	return strings.ReplaceAll(template, "{student_name}", studentName)
}
