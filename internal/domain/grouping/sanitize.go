package grouping

import (
	"math"
	"strconv"
	"strings"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
)

// Limits applied to generated groups.
const (
	maxGroups         = 10
	maxGroupID        = 40
	maxGroupName      = 80
	maxColor          = 80
	maxDescription    = 300
	maxCriteria       = 200
	maxGroupErrors    = 10
	maxGroupErrorLen  = 120
	maxGroupSuggest   = 10
	maxGroupSuggestLn = 160
	maxMembers        = 200
	maxRationale      = 160

	defaultColor = "bg-gray-50 border-gray-200"
)

func sanitizeGroups(list []any) []Group {
	out := make([]Group, 0, min(len(list), maxGroups))
	for _, item := range list {
		if len(out) == maxGroups {
			break
		}
		g, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Group{
			ID:           insight.Truncate(str(g["id"], "group"), maxGroupID),
			Name:         insight.Truncate(str(g["name"], "Group"), maxGroupName),
			Level:        level(g["level"]),
			Color:        insight.Truncate(str(g["color"], defaultColor), maxColor),
			Description:  insight.Truncate(str(g["description"], ""), maxDescription),
			Criteria:     insight.Truncate(str(g["criteria"], ""), maxCriteria),
			CommonErrors: strs(g["commonErrors"], maxGroupErrors, maxGroupErrorLen),
			Suggestions:  strs(g["suggestions"], maxGroupSuggest, maxGroupSuggestLn),
			Students:     members(g["students"]),
		})
	}
	return out
}

func members(v any) []Member {
	list, _ := v.([]any)
	out := make([]Member, 0, min(len(list), maxMembers))
	seen := make(map[string]bool)
	for i, item := range list {
		if i == maxMembers {
			break
		}
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := str(m["analysisId"], "")
		if id == "" {
			id = str(m["id"], "")
		}
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out = append(out, Member{
			AnalysisID:  id,
			StudentName: str(m["studentName"], classroom.UnknownStudent),
			Rationale:   insight.Truncate(str(m["rationale"], ""), maxRationale),
		})
	}
	return out
}

func level(v any) Level {
	switch l := Level(strings.ToLower(strings.TrimSpace(str(v, "")))); l {
	case LevelHigh, LevelMedium, LevelLow:
		return l
	default:
		return LevelMedium
	}
}

func str(v any, def string) string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return def
	}
}

func strs(v any, n, maxLen int) []string {
	list, _ := v.([]any)
	out := make([]string, 0, min(len(list), n))
	for _, item := range list {
		if len(out) == n {
			break
		}
		if s := str(item, ""); s != "" {
			out = append(out, insight.Truncate(s, maxLen))
		}
	}
	return out
}

// number accepts JSON numbers and numeric strings ("42", "42%"). NaN and
// infinities are rejected.
func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(t, "%")), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
