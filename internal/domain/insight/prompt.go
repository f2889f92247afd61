package insight

import "fmt"

const analysisSystem = "You are a pedagogical assistant. Generate strict JSON describing student difficulties. " +
	"Do not invent non-existent content beyond the provided text and subject context."

const analysisSchema = "Return ONLY valid JSON containing keys: " +
	"mainError (string), errorPercentage (0-100 int), concepts (list of up to 8 strings), " +
	"suggestions (list of up to 8 strings), reasoning (short string). Do not include explanations outside the JSON."

const detailSystem = "You are a specialized pedagogical assistant. Analyze the student's text and return ONLY a JSON with these specific keys: " +
	"mainConcept (main concept being studied), " +
	"specificError (specific error identified in the text), " +
	"isRecurrent (boolean, true if it is a common error in this type of exercise), " +
	"historicalAnalysis (detailed analysis of patterns and historical context of student errors), " +
	"suggestionForTeacher (specific and practical suggestion for the teacher), " +
	"generatedMicroExercise (list of 2-3 micro-exercises as objects with 'sentence' and 'answer'). " +
	"Do not add text outside the JSON."

func buildAnalysisPrompt(text, subject string) string {
	return fmt.Sprintf("OCR Text (limited / sanitized):\n%s\n---\nSubject/Context: %s\n\n%s",
		Truncate(text, 4000), subject, analysisSchema)
}

func buildDetailPrompt(text, subject, mainError string) string {
	return fmt.Sprintf(`Student OCR text: %s

Context/Subject: %s
Preliminary error summary: %s

Analyze deeply:
1. What is the main concept being worked on?
2. What specific error was made?
3. Is this error common in this type of exercise?
4. Provide a detailed historical analysis about the patterns of this type of error
5. Give a specific and practical suggestion for the teacher
6. Generate 2-3 micro-exercises targeted to correct this specific error`,
		Truncate(text, 3000), subject, mainError)
}
