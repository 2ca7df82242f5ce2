package form

import (
	"fmt"
	"strings"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// FileValue holds uploaded file content for a file/image field. Its presence
// anywhere in the session's values switches submission to multipart encoding.
type FileValue struct {
	Name        string
	ContentType string
	Content     []byte
}

// IsZero reports whether the value references no actual file content. Zero
// file values are stray artifacts and are stripped from JSON submissions.
func (f FileValue) IsZero() bool {
	return len(f.Content) == 0
}

// Session is one in-progress create or edit flow: the descriptor, the render
// groups, and the current field values with dirty tracking. Sessions are not
// safe for concurrent use; the UI drives one at a time.
type Session struct {
	engine    *Engine
	schema    schema.Schema
	groups    Groups
	values    map[string]any
	recordID  any
	dirty     map[string]struct{}
	fieldErrs map[string]string
	relCache  map[string][]RelationOption
}

// Schema returns the descriptor the session was built from.
func (s *Session) Schema() schema.Schema {
	return s.schema
}

// Groups returns the render partition.
func (s *Session) Groups() Groups {
	return s.groups
}

// IsEdit reports whether the session updates an existing record.
func (s *Session) IsEdit() bool {
	return s.recordID != nil
}

// RecordID returns the id of the record under edit, or nil for create flows.
func (s *Session) RecordID() any {
	return s.recordID
}

// Value returns the current value for a field.
func (s *Session) Value(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// SetValue writes a field value. Unknown names and read-only fields are
// rejected so callers cannot smuggle unschema'd keys into a submission.
func (s *Session) SetValue(name string, value any) error {
	field, ok := s.schema.Field(name)
	if !ok {
		return &UnknownFieldError{Name: name}
	}
	if !field.Editable {
		return ErrNotEditable
	}
	s.values[name] = value
	if s.dirty == nil {
		s.dirty = make(map[string]struct{})
	}
	s.dirty[name] = struct{}{}
	delete(s.fieldErrs, name)
	return nil
}

// ApplyGenerated merges externally produced values (for example an AI
// completion) into the session. Only keys matching an editable schema field
// are written; everything else is silently dropped. Returns the number of
// fields written.
func (s *Session) ApplyGenerated(values map[string]any) int {
	applied := 0
	for key, value := range values {
		if err := s.SetValue(key, value); err == nil {
			applied++
		}
	}
	return applied
}

// Dirty reports whether the named field changed since the session was built.
func (s *Session) Dirty(name string) bool {
	_, ok := s.dirty[name]
	return ok
}

// FieldError returns the validation message recorded for a field.
func (s *Session) FieldError(name string) (string, bool) {
	msg, ok := s.fieldErrs[name]
	return msg, ok
}

// Validate runs the client-side pre-submission checks: required editable
// fields must hold a non-empty value. Violations are recorded per field and
// block submission before any network call.
func (s *Session) Validate() bool {
	for _, f := range s.schema.EditableFields() {
		if !f.Required {
			continue
		}
		if isEmptyValue(s.values[f.Name]) {
			s.fieldErrs[f.Name] = fmt.Sprintf("%s is required", f.Label())
		}
	}
	return len(s.fieldErrs) == 0
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case FileValue:
		return val.IsZero()
	default:
		return false
	}
}
