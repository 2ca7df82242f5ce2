package form

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Pair is one key/value row of the JSON object editor.
type Pair struct {
	Key   string
	Value string
}

// PairsFromJSON expands a JSON object value into editable key/value rows.
// Malformed or non-object input yields an empty editor rather than an error:
// the user is about to overwrite the value anyway. Rows come back sorted by
// key so the editor renders deterministically.
func PairsFromJSON(value any) []Pair {
	obj, ok := asJSONObject(value)
	if !ok {
		return nil
	}
	pairs := make([]Pair, 0, len(obj))
	for k, v := range obj {
		pairs = append(pairs, Pair{Key: k, Value: stringifyJSONValue(v)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

// PairsToObject collapses editor rows back into the submission value. Later
// duplicate keys win, matching how the rows are edited top to bottom.
func PairsToObject(pairs []Pair) map[string]any {
	obj := make(map[string]any, len(pairs))
	for _, p := range pairs {
		if p.Key == "" {
			continue
		}
		obj[p.Key] = parseJSONScalar(p.Value)
	}
	return obj
}

func asJSONObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			return nil, false
		}
		return obj, true
	case json.RawMessage:
		var obj map[string]any
		if err := json.Unmarshal(v, &obj); err != nil {
			return nil, false
		}
		return obj, true
	default:
		return nil, false
	}
}

// stringifyJSONValue renders a value for the editor's text cell.
func stringifyJSONValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// parseJSONScalar keeps numbers, booleans and nested structures typed when a
// cell holds valid JSON, and falls back to the raw string otherwise.
func parseJSONScalar(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}
