package grouping

import (
	"fmt"
	"strings"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
)

const (
	maxGroupPromptLines = 120
	maxClassPromptLines = 400
	promptConcepts      = 4
)

const groupSystem = "You are a pedagogical expert. Your job is to analyze short per-student analysis records and produce a compact clustering of students into learning groups. " +
	"STRICT REQUIREMENTS: Output only valid JSON (no explanatory text, no markdown). The top-level JSON must be an object with a single key `groups` whose value is a list. " +
	"Each group must be an object with the following keys:\n" +
	"- id: short slug string (use lowercase, hyphen-separated)\n" +
	"- name: human-friendly name\n" +
	"- level: one of \"high\", \"medium\", \"low\"\n" +
	"- color: short tailwind class or hex color string, light colors\n" +
	"- description: short summary (1-2 sentences max)\n" +
	"- criteria: short rationale for membership (single sentence)\n" +
	"- commonErrors: array of short strings (top error themes)\n" +
	"- suggestions: array of short actionable suggestions for the group\n" +
	"- students: array of student objects, each with keys: { analysisId: string, studentName: string, rationale: string }\n" +
	"CONSTRAINTS:\n" +
	"- Return between 2 and 6 groups.\n" +
	"- A student may appear in multiple groups if they match multiple criteria (use the analysis ID as unique student reference). Do NOT duplicate the same student more than once within a single group's students array.\n" +
	"- If you are uncertain about a student's difficulty, put them in \"medium\".\n" +
	"- Keep outputs concise: descriptions <= 200 chars, rationale <= 160 chars, at most 10 commonErrors and 10 suggestions per group.\n" +
	"- Prefer balanced groups when reasonable, but prioritize pedagogical coherence.\n" +
	"ERROR HANDLING: If you cannot produce a valid grouping, return {\"groups\":[]} as the entire response.\n" +
	"EXAMPLE OUTPUT:\n" +
	`{"groups":[{"id":"needs-support","name":"Support Group","level":"low","color":"#fee2e2",` +
	`"description":"Students needing targeted support on fundamentals.",` +
	`"criteria":"High error rates on fraction addition and missing place-value concepts.",` +
	`"commonErrors":["incorrect fraction simplification","misaligned place values"],` +
	`"suggestions":["small-group review lesson","workbook exercises"],` +
	`"students":[{"analysisId":"a1","studentName":"Maria","rationale":"Consistent errors in fraction addition"}]}]}`

const classSystem = "You are a pedagogical analyst. Given compact per-student analysis lines, produce a JSON object with keys:\n" +
	"class_name (string), student_count (int), average_error (float), commonErrors (array of short strings), " +
	"suggestions (array of short actionable items), detailed (array of objects with studentName, analysisId, errorPercentage, shortRationale).\n" +
	"STRICT: Return ONLY valid JSON (no explanatory text). Keep arrays limited to top 8 items."

func analysisLine(a *classroom.Analysis, withSubject bool) string {
	concepts := a.Insight.Concepts
	if len(concepts) > promptConcepts {
		concepts = concepts[:promptConcepts]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ID=%s|student=%s", a.ID, a.StudentName)
	if withSubject {
		fmt.Fprintf(&sb, "|subject=%s", a.Subject)
	}
	fmt.Fprintf(&sb, "|error%%=%d|mainError=%s|concepts=%s",
		a.Insight.ErrorPercentage, a.Insight.MainError, strings.Join(concepts, ","))
	return sb.String()
}

func buildGroupPrompt(unique []*classroom.Analysis) string {
	if len(unique) > maxGroupPromptLines {
		unique = unique[:maxGroupPromptLines]
	}
	lines := make([]string, len(unique))
	for i, a := range unique {
		lines[i] = analysisLine(a, true)
	}
	return "Analysis data (one per line, each representing a unique student):\n" +
		strings.Join(lines, "\n") +
		"\nGenerate JSON with 'groups' key. Grouping is by student characteristics; a student may appear in multiple groups when appropriate. " +
		"Do NOT duplicate the same student more than once within a single group's students array. See system instructions."
}

func buildClassPrompt(analyses []*classroom.Analysis) string {
	if len(analyses) > maxClassPromptLines {
		analyses = analyses[:maxClassPromptLines]
	}
	lines := make([]string, len(analyses))
	for i, a := range analyses {
		lines[i] = analysisLine(a, false)
	}
	return "Class-level analyses (one per line):\n" + strings.Join(lines, "\n") +
		"\nProduce a JSON object as described in the system instruction."
}
