package insight

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Score is a "correct/total" estimate for the submission.
type Score struct {
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
}

var (
	numberedLineRe   = regexp.MustCompile(`^\s*\d+\s*[.|)]`)
	questionWordRe   = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:question|questão|questoes|questões|q)(?:[^\p{L}\p{N}_]|$)`)
	parenNumberRe    = regexp.MustCompile(`\b\d+\)`)
	paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)
)

// ScoreFor estimates how many exercises the text contains and how many were
// right given the error percentage.
func ScoreFor(text string, errorPct int) Score {
	total := CountExercises(text)
	correct := int(math.RoundToEven(float64(100-errorPct) / 100 * float64(total)))
	correct = clamp(correct, 0, total)
	return Score{Correct: correct, Total: total, Label: fmt.Sprintf("%d/%d", correct, total)}
}

// CountExercises looks, in order, for numbered lines, question words, "N)"
// markers, question marks and long paragraphs. The first signal seen at least
// twice wins; otherwise the text counts as one exercise.
func CountExercises(text string) int {
	if strings.TrimSpace(text) == "" {
		return 1
	}

	numbered := 0
	for _, line := range strings.Split(text, "\n") {
		if numberedLineRe.MatchString(line) {
			numbered++
		}
	}
	if numbered >= 2 {
		return numbered
	}
	if n := len(questionWordRe.FindAllStringIndex(text, -1)); n >= 2 {
		return n
	}
	if n := len(parenNumberRe.FindAllStringIndex(text, -1)); n >= 2 {
		return n
	}
	if n := strings.Count(text, "?"); n >= 2 {
		return n
	}

	paragraphs := 0
	for _, p := range paragraphSplitRe.Split(text, -1) {
		if len(strings.TrimSpace(p)) > 30 {
			paragraphs++
		}
	}
	if paragraphs >= 2 {
		return paragraphs
	}
	return 1
}

// feedbackTemplate builds the student-facing message; {student_name} is
// filled later by RenderFeedback.
func feedbackTemplate(in Insight, microExercise string) string {
	guidance := ""
	switch {
	case len(in.Suggestions) > 0:
		guidance = in.Suggestions[0]
	case in.Reasoning != "":
		guidance = Truncate(strings.SplitN(in.Reasoning, "\n", 2)[0], 150)
	}

	if microExercise != "" {
		if guidance == "" {
			guidance = "follow the steps above"
		}
		return fmt.Sprintf("Hi {student_name}! I reviewed your work and noticed you struggled with: \"%s\". "+
			"Here's a short tip: %s. Try this short practice: %s", in.MainError, guidance, microExercise)
	}
	if guidance == "" {
		guidance = "review the related concept"
	}
	return fmt.Sprintf("Hi {student_name}! I reviewed your work and noticed you struggled with: \"%s\". "+
		"Here's a short tip: %s. Keep practicing and try similar exercises to improve.", in.MainError, guidance)
}
