package insight

import (
	"fmt"
	"sort"
	"strings"
)

// HistoricalSummary describes a student's previous insights without calling
// a model. It returns "" when there is no history.
func HistoricalSummary(studentName, subject string, previous []Insight) string {
	if studentName == "" || len(previous) == 0 {
		return ""
	}

	var errs, concepts, suggestions tally
	recurring := 0
	for _, p := range previous {
		switch {
		case p.Detail != nil && p.Detail.SpecificError != "":
			errs.add(p.Detail.SpecificError)
		case p.MainError != "":
			errs.add(p.MainError)
		}
		for _, c := range p.Concepts {
			concepts.add(c)
		}
		for _, s := range p.Suggestions {
			suggestions.add(s)
		}
		if p.Detail != nil && p.Detail.IsRecurrent {
			recurring++
		}
	}

	if subject == "" {
		subject = "all subjects"
	}
	parts := []string{fmt.Sprintf("Historical summary based on %d previous analyses for %s (%s).", len(previous), studentName, subject)}
	if top := errs.top(3); len(top) > 0 {
		parts = append(parts, fmt.Sprintf("Most frequent issues: %s.", strings.Join(top, ", ")))
	}
	if top := concepts.top(5); len(top) > 0 {
		parts = append(parts, fmt.Sprintf("Related concepts often involved: %s.", strings.Join(top, ", ")))
	}
	if recurring > 0 {
		parts = append(parts, fmt.Sprintf("Detected %d cases flagged as recurrent patterns.", recurring))
	}
	if top := suggestions.top(5); len(top) > 0 {
		parts = append(parts, fmt.Sprintf("Common suggestions previously given: %s.", strings.Join(top, ", ")))
	}
	parts = append(parts, "Recommendation: focus targeted practice on the most frequent issues and review the related concepts listed above.")
	return strings.Join(parts, " ")
}

// tally counts strings; ties keep first-seen order.
type tally struct {
	order  []string
	counts map[string]int
}

func (t *tally) add(s string) {
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, seen := t.counts[s]; !seen {
		t.order = append(t.order, s)
	}
	t.counts[s]++
}

func (t *tally) top(n int) []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	sort.SliceStable(out, func(i, j int) bool { return t.counts[out[i]] > t.counts[out[j]] })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
