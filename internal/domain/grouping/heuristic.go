package grouping

import (
	"fmt"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
)

type bucket struct {
	level Level
	id    string
	name  string
	color string
}

var buckets = []bucket{
	{LevelHigh, "advanced", "Advanced Group", "bg-green-50 border-green-200"},
	{LevelMedium, "intermediate", "Intermediate Group", "bg-yellow-50 border-yellow-200"},
	{LevelLow, "needs-support", "Support Group", "bg-red-50 border-red-200"},
}

const maxHeuristicErrors = 5

// levelFor buckets an error percentage: under 30 is high, under 60 medium.
func levelFor(errorPct int) Level {
	switch {
	case errorPct < 30:
		return LevelHigh
	case errorPct < 60:
		return LevelMedium
	default:
		return LevelLow
	}
}

// HeuristicGroups buckets analyses by error percentage. Empty buckets are
// left out. Callers pass one analysis per student.
func HeuristicGroups(analyses []*classroom.Analysis) []Group {
	byLevel := make(map[Level][]*classroom.Analysis, len(buckets))
	for _, a := range analyses {
		l := levelFor(a.Insight.ErrorPercentage)
		byLevel[l] = append(byLevel[l], a)
	}

	groups := make([]Group, 0, len(buckets))
	for _, b := range buckets {
		items := byLevel[b.level]
		if len(items) == 0 {
			continue
		}

		var errs []string
		seen := make(map[string]bool)
		members := make([]Member, 0, len(items))
		for _, a := range items {
			if me := a.Insight.MainError; !seen[me] && len(errs) < maxHeuristicErrors {
				seen[me] = true
				errs = append(errs, me)
			}
			name := a.StudentName
			if name == "" {
				name = classroom.UnknownStudent
			}
			members = append(members, Member{AnalysisID: a.ID, StudentName: name, Rationale: "heuristic"})
		}
		if errs == nil {
			errs = []string{}
		}

		groups = append(groups, Group{
			ID:           b.id,
			Name:         b.name,
			Level:        b.level,
			Color:        b.color,
			Description:  "Heuristic grouping (LLM disabled)",
			Criteria:     fmt.Sprintf("errorPercentage bucket %s", b.level),
			CommonErrors: errs,
			Suggestions:  []string{"Configure a generation provider for richer grouping"},
			Students:     members,
		})
	}
	return groups
}
