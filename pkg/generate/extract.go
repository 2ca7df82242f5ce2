package generate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NoObjectError reports a completion that carried no parseable JSON object.
// The raw text is preserved so the UI can show the user what came back.
type NoObjectError struct {
	Raw string
}

func (e *NoObjectError) Error() string {
	return "generate: response contains no JSON object"
}

// ExtractJSONObject pulls the first top-level JSON object out of a model
// completion. Models wrap their answer in prose and markdown fences at will,
// so the scan is balanced-brace based and string-aware rather than a plain
// index of the last closing brace.
func ExtractJSONObject(raw string) (map[string]any, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "{")
	if start < 0 {
		return nil, &NoObjectError{Raw: raw}
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				var values map[string]any
				if err := json.Unmarshal([]byte(cleaned[start:i+1]), &values); err != nil {
					return nil, fmt.Errorf("generate: parse extracted object: %w", err)
				}
				return values, nil
			}
		}
	}
	return nil, &NoObjectError{Raw: raw}
}

func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimPrefix(cleaned, prefix)
			break
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
