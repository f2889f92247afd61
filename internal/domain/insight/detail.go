package insight

import (
	"encoding/json"
	"strings"
)

// MicroExercise is a short practice item generated for the student.
type MicroExercise struct {
	Sentence string `json:"sentence"`
	Answer   string `json:"answer"`
}

// UnmarshalJSON accepts a bare string or an object keyed by sentence,
// prompt or question.
func (m *MicroExercise) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = MicroExercise{Sentence: s}
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*m = MicroExercise{
		Sentence: firstString(obj, "sentence", "prompt", "question", "exercise"),
		Answer:   firstString(obj, "answer", "solution"),
	}
	return nil
}

// UnmarshalJSON tolerates isRecurrent as a string and a single micro exercise
// given as an object instead of a list.
func (d *Detail) UnmarshalJSON(b []byte) error {
	var wire struct {
		MainConcept            any             `json:"mainConcept"`
		SpecificError          any             `json:"specificError"`
		IsRecurrent            any             `json:"isRecurrent"`
		HistoricalAnalysis     any             `json:"historicalAnalysis"`
		SuggestionForTeacher   any             `json:"suggestionForTeacher"`
		GeneratedMicroExercise json.RawMessage `json:"generatedMicroExercise"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*d = Detail{
		MainConcept:          asString(wire.MainConcept, ""),
		SpecificError:        asString(wire.SpecificError, ""),
		IsRecurrent:          asBool(wire.IsRecurrent),
		HistoricalAnalysis:   asString(wire.HistoricalAnalysis, ""),
		SuggestionForTeacher: asString(wire.SuggestionForTeacher, ""),
	}
	raw := strings.TrimSpace(string(wire.GeneratedMicroExercise))
	switch {
	case raw == "" || raw == "null":
	case raw[0] == '[':
		var list []MicroExercise
		if err := json.Unmarshal(wire.GeneratedMicroExercise, &list); err == nil {
			d.GeneratedMicroExercise = list
		}
	default:
		var one MicroExercise
		if err := json.Unmarshal(wire.GeneratedMicroExercise, &one); err == nil && one.Sentence != "" {
			d.GeneratedMicroExercise = []MicroExercise{one}
		}
	}
	return nil
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(obj[k], ""); s != "" {
			return s
		}
	}
	return ""
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "sim", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

// microExerciseFrom prefers an exercise in the main analysis payload, then the detail.
func microExerciseFrom(analysis map[string]any, d *Detail) string {
	if list, ok := analysis["generatedMicroExercise"].([]any); ok && len(list) > 0 {
		switch first := list[0].(type) {
		case string:
			if s := strings.TrimSpace(first); s != "" {
				return s
			}
		case map[string]any:
			if s := firstString(first, "sentence", "prompt"); s != "" {
				return s
			}
		}
	}
	if d != nil && len(d.GeneratedMicroExercise) > 0 {
		return d.GeneratedMicroExercise[0].Sentence
	}
	return ""
}
