// Package extraction turns free-form model output into structured JSON values.
// Models wrap payloads in prose and ```json fences, truncate them, or emit two
// objects in one answer; Extract recovers the payload without guessing at any
// one provider's formatting habits.
//
// Strategy:
//   - strict parse of the whole trimmed text;
//   - otherwise every balanced {...} / [...] span found by a string-aware
//     bracket scan, plus the span closing each opener when scanned on its
//     own, tried longest first (earliest start on ties).
//
// Only objects and arrays count as a payload. Both functions are pure.
package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrExtractionFailed is matched by every *Error returned from this package.
var ErrExtractionFailed = errors.New("extraction: no structured payload found")

// maxCandidates bounds the spans tried for a single input.
const maxCandidates = 64

// Error carries the unparseable text so callers can log or surface it.
type Error struct {
	Raw        string
	Candidates int
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction: no structured payload in %d bytes (%d candidates tried)", len(e.Raw), e.Candidates)
}

func (e *Error) Unwrap() error { return ErrExtractionFailed }

// Extract returns the structured value (map[string]any or []any) embedded in raw.
func Extract(raw string) (any, error) {
	cands := candidates(raw)
	for _, c := range cands {
		v, ok := decodeStructured(c)
		if ok {
			return v, nil
		}
	}
	return nil, &Error{Raw: raw, Candidates: len(cands)}
}

// ExtractInto decodes the first candidate that fits dst, which must be a non-nil pointer.
// dst is left untouched on failure.
func ExtractInto(raw string, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("extraction: destination must be a non-nil pointer, got %T", dst)
	}

	cands := candidates(raw)
	for _, c := range cands {
		if !looksStructured(c) || !json.Valid([]byte(c)) {
			continue
		}
		fresh := reflect.New(rv.Elem().Type())
		if err := json.Unmarshal([]byte(c), fresh.Interface()); err != nil {
			continue
		}
		rv.Elem().Set(fresh.Elem())
		return nil
	}
	return &Error{Raw: raw, Candidates: len(cands)}
}

// ─── candidate search ───────────────────────────────────────────────────────

type span struct{ start, end int } // end is inclusive

func candidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	spans := append(balancedSpans(trimmed), openerSpans(trimmed)...)
	spans = dedupe(spans)
	sort.SliceStable(spans, func(i, j int) bool {
		li, lj := spans[i].end-spans[i].start, spans[j].end-spans[j].start
		if li != lj {
			return li > lj
		}
		return spans[i].start < spans[j].start
	})
	if len(spans) > maxCandidates {
		spans = spans[:maxCandidates]
	}

	out := make([]string, 0, len(spans)+1)
	out = append(out, trimmed)
	for _, s := range spans {
		c := trimmed[s.start : s.end+1]
		if c == trimmed {
			continue
		}
		out = append(out, c)
	}
	return out
}

// balancedSpans returns every matched bracket pair. Quotes are only treated as
// string delimiters while inside a bracket, so apostrophes and quoted words in
// surrounding prose do not derail the scan. A mismatched closer resets the stack.
func balancedSpans(s string) []span {
	var (
		out      []span
		stack    []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if len(stack) > 0 {
				inString = true
			}
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			if !pairs(s[open], ch) {
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			out = append(out, span{start: open, end: i})
		}
	}
	return out
}

// openerSpans rescans from each of the first maxCandidates openers with a
// fresh stack. A quote in the prose before an opener can leave the single
// pass inside a string and hide the payload; a fresh start cannot.
func openerSpans(s string) []span {
	var out []span
	seen := 0
	for i := 0; i < len(s) && seen < maxCandidates; i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		seen++
		if end, ok := closeFrom(s, i); ok {
			out = append(out, span{start: i, end: end})
		}
	}
	return out
}

// closeFrom returns the index closing the bracket at start.
func closeFrom(s string, start int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if !pairs(stack[len(stack)-1], ch) {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func dedupe(spans []span) []span {
	seen := make(map[span]bool, len(spans))
	out := spans[:0]
	for _, sp := range spans {
		if seen[sp] {
			continue
		}
		seen[sp] = true
		out = append(out, sp)
	}
	return out
}

func pairs(open, shut byte) bool {
	return (open == '{' && shut == '}') || (open == '[' && shut == ']')
}

// ─── decoding ───────────────────────────────────────────────────────────────

func looksStructured(c string) bool {
	return c != "" && (c[0] == '{' || c[0] == '[')
}

func decodeStructured(c string) (any, bool) {
	if !looksStructured(c) || !json.Valid([]byte(c)) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(c), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}
