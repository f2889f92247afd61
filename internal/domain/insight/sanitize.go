package insight

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Limits applied to model output before it is stored.
const (
	maxMainError    = 200
	maxConcepts     = 8
	maxConceptLen   = 80
	maxSuggestions  = 8
	maxSuggestLen   = 120
	maxReasoningLen = 500

	defaultMainError = "Unspecified"
	defaultErrorPct  = 50
	minErrorPct      = 0
	maxErrorPct      = 100
)

func sanitizeAnalysis(obj map[string]any) Insight {
	return Insight{
		MainError:       Truncate(asString(obj["mainError"], defaultMainError), maxMainError),
		ErrorPercentage: clamp(asInt(obj["errorPercentage"], defaultErrorPct), minErrorPct, maxErrorPct),
		Concepts:        asStrings(obj["concepts"], maxConcepts, maxConceptLen),
		Suggestions:     asStrings(obj["suggestions"], maxSuggestions, maxSuggestLen),
		Reasoning:       Truncate(asString(obj["reasoning"], ""), maxReasoningLen),
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func asString(v any, def string) string {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any, def int) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return def
		}
		// out-of-range float to int conversion is implementation-defined
		return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, t)))
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		return def
	default:
		return def
	}
}

func asStrings(v any, maxItems, maxLen int) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, min(len(list), maxItems))
	for _, item := range list {
		if len(out) == maxItems {
			break
		}
		out = append(out, Truncate(asString(item, ""), maxLen))
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
