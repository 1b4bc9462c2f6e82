package interview

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparsable signals that no question list could be extracted from the
// completion response. Callers substitute the fallback bank.
var ErrUnparsable = errors.New("no question list found in completion response")

// ParseQuestions extracts an ordered question list from raw completion
// output. Tiers, short-circuiting on first success:
//  1. the whole text parses as a JSON string array
//  2. the first bracketed substring parses as a JSON string array
//  3. ErrUnparsable
func ParseQuestions(raw string) ([]string, error) {
	cleaned := stripFences(raw)

	if questions, ok := parseArray(cleaned); ok {
		return questions, nil
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		if questions, ok := parseArray(cleaned[start : end+1]); ok {
			return questions, nil
		}
	}

	return nil, ErrUnparsable
}

func parseArray(s string) ([]string, bool) {
	var parsed []string
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, false
	}

	questions := make([]string, 0, len(parsed))
	for _, q := range parsed {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}

	if len(questions) == 0 {
		return nil, false
	}

	return questions, true
}

// stripFences removes markdown code fences models like to wrap JSON in.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
