package grouping

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/extraction"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/llm"
)

// Limits applied to class summaries.
const (
	maxClassItems     = 8
	maxClassItemLen   = 160
	maxDetailed       = 40
	maxShortRationale = 140
)

// DetailedItem is one student's line in a class summary.
type DetailedItem struct {
	StudentName     string `json:"studentName"`
	AnalysisID      string `json:"analysisId"`
	ErrorPercentage int    `json:"errorPercentage"`
	ShortRationale  string `json:"shortRationale"`
}

// ClassInsights summarises the latest analyses of a class.
type ClassInsights struct {
	ClassName    string         `json:"class_name"`
	StudentCount int            `json:"student_count"`
	AverageError float64        `json:"average_error"`
	CommonErrors []string       `json:"commonErrors"`
	Suggestions  []string       `json:"suggestions"`
	Detailed     []DetailedItem `json:"detailed"`
	LLM          bool           `json:"llm"`
	Cached       bool           `json:"cached"`
}

// ClassInsights summarises a class from its analyses, normally the latest
// one per student. The bool reports a cache hit; force recomputes.
func (s *Service) ClassInsights(ctx context.Context, className string, analyses []*classroom.Analysis, force bool) (ClassInsights, bool, error) {
	if len(analyses) == 0 {
		return ClassInsights{
			ClassName:    className,
			CommonErrors: []string{},
			Suggestions:  []string{},
			Detailed:     []DetailedItem{},
			LLM:          s.llmAvailable(),
		}, false, nil
	}

	out, hit, err := s.classes.WithSingleFlight(ctx, ClassKey(className, analyses), force, func(ctx context.Context) (ClassInsights, error) {
		return s.computeClass(ctx, className, analyses), nil
	})
	if err != nil {
		return ClassInsights{}, false, fmt.Errorf("class insights for %q: %w", className, err)
	}
	out.Cached = hit
	return out, hit, nil
}

func (s *Service) computeClass(ctx context.Context, className string, analyses []*classroom.Analysis) ClassInsights {
	if !s.llmAvailable() {
		return HeuristicClassInsights(className, analyses)
	}

	gen, err := s.gen.Generate(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classSystem},
			{Role: llm.RoleUser, Content: buildClassPrompt(analyses)},
		},
		Temperature: 0.2,
		MaxTokens:   1500,
		JSONMode:    true,
	})
	if err != nil {
		s.logger.Warn("class insight generation failed, using heuristic", zap.String("class", className), zap.Error(err))
		return HeuristicClassInsights(className, analyses)
	}
	raw, err := extraction.Extract(gen.Content)
	if err != nil {
		s.logger.Warn("class insight output not parseable, using heuristic", zap.String("provider", gen.Provider), zap.Error(err))
		return HeuristicClassInsights(className, analyses)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return HeuristicClassInsights(className, analyses)
	}
	return sanitizeClass(obj, className, len(analyses))
}

// maxStudentCount bounds a reported class size before the int conversion.
const maxStudentCount = 1 << 20

func sanitizeClass(obj map[string]any, className string, count int) ClassInsights {
	out := ClassInsights{
		ClassName:    str(obj["class_name"], className),
		StudentCount: count,
		CommonErrors: strs(obj["commonErrors"], maxClassItems, maxClassItemLen),
		Suggestions:  strs(obj["suggestions"], maxClassItems, maxClassItemLen),
		Detailed:     make([]DetailedItem, 0),
		LLM:          true,
	}
	if n, ok := number(obj["student_count"]); ok && n > 0 {
		out.StudentCount = int(math.Min(n, maxStudentCount))
	}
	if avg, ok := number(obj["average_error"]); ok {
		out.AverageError = math.Round(math.Max(0, math.Min(100, avg))*100) / 100
	}
	list, _ := obj["detailed"].([]any)
	for _, item := range list {
		if len(out.Detailed) == maxDetailed {
			break
		}
		d, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pct, _ := number(d["errorPercentage"])
		out.Detailed = append(out.Detailed, DetailedItem{
			StudentName:     str(d["studentName"], classroom.UnknownStudent),
			AnalysisID:      str(d["analysisId"], ""),
			ErrorPercentage: int(math.Max(0, math.Min(100, pct))),
			ShortRationale:  insight.Truncate(str(d["shortRationale"], ""), maxShortRationale),
		})
	}
	return out
}

// HeuristicClassInsights aggregates a class without a model: the average error
// rounded to two decimals, the most frequent main errors and one line per
// analysis.
func HeuristicClassInsights(className string, analyses []*classroom.Analysis) ClassInsights {
	counts := make(map[string]int)
	var order []string
	total := 0
	for _, a := range analyses {
		total += a.Insight.ErrorPercentage
		me := a.Insight.MainError
		if me == "" {
			me = "Unknown"
		}
		if counts[me] == 0 {
			order = append(order, me)
		}
		counts[me]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > maxClassItems {
		order = order[:maxClassItems]
	}
	if order == nil {
		order = []string{}
	}

	detailed := make([]DetailedItem, 0, min(len(analyses), maxDetailed))
	for _, a := range analyses {
		if len(detailed) == maxDetailed {
			break
		}
		detailed = append(detailed, DetailedItem{
			StudentName:     a.StudentName,
			AnalysisID:      a.ID,
			ErrorPercentage: a.Insight.ErrorPercentage,
			ShortRationale:  insight.Truncate(a.Insight.MainError, maxShortRationale),
		})
	}

	avg := 0.0
	if len(analyses) > 0 {
		avg = math.Round(float64(total)/float64(len(analyses))*100) / 100
	}
	return ClassInsights{
		ClassName:    className,
		StudentCount: len(analyses),
		AverageError: avg,
		CommonErrors: order,
		Suggestions:  []string{"Review common mistakes in class; use small-group exercises"},
		Detailed:     detailed,
	}
}
