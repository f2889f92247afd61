// Package grouping clusters students by their latest analysis and summarises
// classes. Results are cached per class and per input set; new analyses drop
// the affected entries.
package grouping

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/extraction"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/cache"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/eventbus"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/llm"
)

// Level is a group's proficiency band.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// allClasses keys groupings computed across every class.
const allClasses = "all"

// Member places one analysed student in a group.
type Member struct {
	AnalysisID  string `json:"analysisId"`
	StudentName string `json:"studentName"`
	Rationale   string `json:"rationale"`
}

// Group is one learning group.
type Group struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Level        Level    `json:"level"`
	Color        string   `json:"color"`
	Description  string   `json:"description"`
	Criteria     string   `json:"criteria"`
	CommonErrors []string `json:"commonErrors"`
	Suggestions  []string `json:"suggestions"`
	Students     []Member `json:"students"`
}

// Assignment is the set of groups computed for one input.
type Assignment struct {
	ClassName  string    `json:"class_name,omitempty"`
	Groups     []Group   `json:"groups"`
	LLM        bool      `json:"llm"`
	Cached     bool      `json:"cached"`
	ComputedAt time.Time `json:"computed_at"`
}

// Generator is the text generation chain. *llm.Chain implements it.
type Generator interface {
	Generate(ctx context.Context, req llm.ChatRequest) (*llm.Generation, error)
	Available() bool
}

// Service computes and caches group assignments and class insights.
type Service struct {
	gen     Generator
	groups  *cache.Cache[Assignment]
	classes *cache.Cache[ClassInsights]
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates a Service. gen may be nil, in which case only the
// heuristics run.
func NewService(gen Generator, groups *cache.Cache[Assignment], classes *cache.Cache[ClassInsights], logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen:     gen,
		groups:  groups,
		classes: classes,
		now:     time.Now,
		logger:  logger.Named("grouping"),
	}
}

func (s *Service) llmAvailable() bool {
	return s.gen != nil && s.gen.Available()
}

// GroupsFor groups the students behind analyses. Only each student's most
// recent analysis counts. An empty className means every class. The bool
// reports whether the result came from the cache; force recomputes.
func (s *Service) GroupsFor(ctx context.Context, className string, analyses []*classroom.Analysis, force bool) (Assignment, bool, error) {
	unique := classroom.LatestPerStudent(analyses)
	if len(unique) == 0 {
		return Assignment{ClassName: className, Groups: []Group{}, LLM: s.llmAvailable(), ComputedAt: s.now().UTC()}, false, nil
	}

	key := GroupsKey(className, unique)
	out, hit, err := s.groups.WithSingleFlight(ctx, key, force, func(ctx context.Context) (Assignment, error) {
		a := s.computeGroups(ctx, unique)
		a.ClassName = className
		return a, nil
	})
	if err != nil {
		return Assignment{}, false, fmt.Errorf("groups for %q: %w", className, err)
	}
	out.Cached = hit
	return out, hit, nil
}

func (s *Service) computeGroups(ctx context.Context, unique []*classroom.Analysis) Assignment {
	if !s.llmAvailable() {
		return s.heuristicAssignment(unique)
	}

	gen, err := s.gen.Generate(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: groupSystem},
			{Role: llm.RoleUser, Content: buildGroupPrompt(unique)},
		},
		Temperature: 0.25,
		MaxTokens:   5048,
		JSONMode:    true,
	})
	if err != nil {
		s.logger.Warn("group generation failed, using heuristic", zap.Error(err))
		return s.heuristicAssignment(unique)
	}

	raw, err := extraction.Extract(gen.Content)
	if err != nil {
		s.logger.Warn("group output not parseable, using heuristic", zap.String("provider", gen.Provider), zap.Error(err))
		return s.heuristicAssignment(unique)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return s.heuristicAssignment(unique)
	}
	list, ok := obj["groups"].([]any)
	if !ok {
		s.logger.Warn("group output has no groups list, using heuristic", zap.String("provider", gen.Provider))
		return s.heuristicAssignment(unique)
	}

	return Assignment{Groups: sanitizeGroups(list), LLM: true, ComputedAt: s.now().UTC()}
}

func (s *Service) heuristicAssignment(unique []*classroom.Analysis) Assignment {
	return Assignment{Groups: HeuristicGroups(unique), ComputedAt: s.now().UTC()}
}

// Invalidate drops the cached groupings and insights that className takes
// part in, including cross-class groupings.
func (s *Service) Invalidate(ctx context.Context, className string) {
	prefixes := []string{"groups:" + allClasses + ":"}
	if className != "" {
		prefixes = append(prefixes, "groups:"+className+":")
	}
	for _, p := range prefixes {
		if _, err := s.groups.Invalidate(ctx, p); err != nil {
			s.logger.Warn("group cache invalidation failed", zap.String("prefix", p), zap.Error(err))
		}
	}
	if className != "" {
		p := "class:" + className + ":"
		if _, err := s.classes.Invalidate(ctx, p); err != nil {
			s.logger.Warn("class cache invalidation failed", zap.String("prefix", p), zap.Error(err))
		}
	}
}

// Run invalidates cached results for every analysis.created event until ctx
// is done or events is closed.
func (s *Service) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			created, ok := evt.Payload.(eventbus.AnalysisCreated)
			if !ok {
				continue
			}
			s.Invalidate(ctx, created.ClassName)
			s.logger.Debug("cache invalidated", zap.String("class", created.ClassName), zap.String("analysis_id", created.AnalysisID))
		}
	}
}

// GroupsKey is the cache key of a grouping: the class (or "all") and a hash
// of each analysis id, main error and error percentage.
func GroupsKey(className string, analyses []*classroom.Analysis) string {
	if className == "" {
		className = allClasses
	}
	return "groups:" + className + ":" + fingerprint(analyses)
}

// ClassKey is the cache key of a class summary.
func ClassKey(className string, analyses []*classroom.Analysis) string {
	return "class:" + className + ":" + fingerprint(analyses)
}

func fingerprint(analyses []*classroom.Analysis) string {
	parts := make([]string, len(analyses))
	for i, a := range analyses {
		parts[i] = fmt.Sprintf("%s|%s|%d", a.ID, a.Insight.MainError, a.Insight.ErrorPercentage)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}
