package form

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
)

// hasFileContent reports whether any field currently holds real file bytes,
// which is what decides multipart versus JSON submission.
func hasFileContent(values map[string]any) bool {
	for _, v := range values {
		if fv, ok := v.(FileValue); ok && !fv.IsZero() {
			return true
		}
	}
	return false
}

// writeMultipart encodes the payload onto a multipart writer. Arrays become
// repeated keys, files become file parts, nil values are omitted entirely and
// everything else is stringified. Fields are written in the order given so the
// body is deterministic.
func writeMultipart(w *multipart.Writer, order []string, payload map[string]any) error {
	for _, name := range order {
		value, ok := payload[name]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case FileValue:
			if v.IsZero() {
				continue
			}
			part, err := w.CreateFormFile(name, v.Name)
			if err != nil {
				return fmt.Errorf("form: create file part %q: %w", name, err)
			}
			if _, err := part.Write(v.Content); err != nil {
				return fmt.Errorf("form: write file part %q: %w", name, err)
			}
		case []any:
			for _, item := range v {
				if item == nil {
					continue
				}
				if err := w.WriteField(name, formValueString(item)); err != nil {
					return fmt.Errorf("form: write field %q: %w", name, err)
				}
			}
		default:
			if err := w.WriteField(name, formValueString(v)); err != nil {
				return fmt.Errorf("form: write field %q: %w", name, err)
			}
		}
	}
	return nil
}

// formValueString renders a primitive for a form field. JSON objects are
// serialised so structured values survive the multipart round trip.
func formValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
