package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// FieldSpec is the reduced per-field description handed to the model. Only
// what the model needs to invent a value survives the reduction; admin
// plumbing like widgets and permissions stays out of the prompt.
type FieldSpec struct {
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	VerboseName string `json:"verboseName"`
	HelpText    string `json:"helpText,omitempty"`
	Choices     []any  `json:"choices,omitempty"`
}

// ReduceSchema projects the descriptor down to its editable fields.
func ReduceSchema(s schema.Schema) map[string]FieldSpec {
	reduced := make(map[string]FieldSpec)
	for _, f := range s.EditableFields() {
		spec := FieldSpec{
			Type:        f.Type,
			Required:    f.Required,
			VerboseName: f.VerboseName,
			HelpText:    f.HelpText,
		}
		for _, c := range f.Choices {
			spec.Choices = append(spec.Choices, c.Value)
		}
		reduced[f.Name] = spec
	}
	return reduced
}

const instructionTemplate = `You are filling in a record for the %q model of an admin dashboard.
The record's fields are described by this JSON schema (field name to description):

%s

Produce one record matching the user's request. Answer with a single JSON object
whose keys are field names from the schema above. Respect each field's type,
pick choice values verbatim when choices are listed, and leave out fields you
have no sensible value for. Do not add any field that is not in the schema.`

// BuildPrompt renders the fixed instruction block followed by the user's
// request. Schema serialisation failures cannot happen for descriptors that
// passed validation, so the error path just degrades to an empty schema.
func BuildPrompt(s schema.Schema, userPrompt string) string {
	spec, err := json.MarshalIndent(ReduceSchema(s), "", "  ")
	if err != nil {
		spec = []byte("{}")
	}
	var b strings.Builder
	fmt.Fprintf(&b, instructionTemplate, s.Title(), spec)
	b.WriteString("\n\nUser request: ")
	b.WriteString(strings.TrimSpace(userPrompt))
	return b.String()
}
