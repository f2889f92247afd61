package insight

import (
	"math"
	"strings"
)

// Empty is the insight for a submission with no recognisable text.
func Empty() Insight {
	return Insight{
		MainError:       "Empty or unreadable submission",
		ErrorPercentage: 100,
		Concepts:        []string{},
		Suggestions:     []string{"Send a clearer image", "Check lighting and focus"},
		Reasoning:       "No text recognized",
		Source:          SourceHeuristic,
	}
}

// Heuristic derives an insight from the text length alone. It is pure and
// deterministic: the error percentage grows with log2 of the word count,
// bounded to [15, 85].
func Heuristic(text, subject string) Insight {
	words := len(strings.Fields(text))
	if words == 0 {
		return Empty()
	}
	lengthFactor := clamp(words, 10, 100)
	pct := clamp(int(math.Log2(float64(lengthFactor+1))*12), 15, 85)

	concept := Truncate(strings.TrimSpace(subject), 40)
	if concept == "" {
		concept = "General"
	}
	return Insight{
		MainError:       "Pending advanced analysis (LLM disabled)",
		ErrorPercentage: pct,
		Concepts:        []string{concept},
		Suggestions:     []string{"Configure a generation provider to obtain richer insights"},
		Reasoning:       "Fallback heuristic",
		Source:          SourceHeuristic,
	}
}
