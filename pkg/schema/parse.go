package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Parse decodes a schema descriptor payload and validates its invariants.
func Parse(raw []byte) (Schema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Schema{}, errors.New("schema: raw descriptor is empty")
	}

	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("schema: decode descriptor: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// UnmarshalJSON decodes a descriptor while preserving the declaration order of
// the "fields" object. encoding/json maps discard key order, and field order
// is the display order for default layouts, so the fields member is walked
// token by token.
func (s *Schema) UnmarshalJSON(data []byte) error {
	type alias Schema
	var head struct {
		alias
		RawFields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*s = Schema(head.alias)

	if len(head.RawFields) == 0 {
		return nil
	}
	fields, err := decodeOrderedFields(head.RawFields)
	if err != nil {
		return err
	}
	s.Fields = fields
	return nil
}

func decodeOrderedFields(raw json.RawMessage) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("schema: decode fields: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("schema: fields must be an object, got %v", tok)
	}

	var (
		fields []Field
		seen   = map[string]struct{}{}
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("schema: decode fields: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("schema: unexpected field key %v", keyTok)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %q", name)
		}
		seen[name] = struct{}{}

		var field Field
		if err := dec.Decode(&field); err != nil {
			return nil, fmt.Errorf("schema: decode field %q: %w", name, err)
		}
		// The map key wins: descriptors may omit the redundant name member.
		field.Name = name
		fields = append(fields, field)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("schema: decode fields: %w", err)
	}
	return fields, nil
}

// Validate checks the descriptor invariants: translation fields must carry a
// recognized language suffix, and relation fields must use one of the two
// relation widgets. Violations are configuration errors to surface, never to
// silently work around.
func (s Schema) Validate() error {
	if s.ModelName == "" {
		return errors.New("schema: modelName is required")
	}
	for _, f := range s.Fields {
		if f.IsTranslation {
			if _, _, ok := SplitTranslationName(f.Name); !ok {
				return fmt.Errorf("schema: field %q is marked as a translation but has no recognized language suffix", f.Name)
			}
		}
		if f.RelatedModel != nil {
			switch f.UIComponent {
			case ComponentForeignKeySelect, ComponentManyToManySelect:
			default:
				return fmt.Errorf("schema: relation field %q must use a relation widget, got %q", f.Name, f.UIComponent)
			}
		}
	}
	return nil
}
