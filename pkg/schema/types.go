package schema

import "strings"

// UI component hints emitted by the backend admin config. The list is not a
// closed set: unknown hints fall through to the plain text input during widget
// resolution.
const (
	ComponentTextarea         = "textarea"
	ComponentCheckbox         = "checkbox"
	ComponentDatePicker       = "date_picker"
	ComponentDateTimePicker   = "datetime_picker"
	ComponentSelect           = "select"
	ComponentFileUpload       = "file_upload"
	ComponentImageUpload      = "image_upload"
	ComponentJSONEditor       = "json_editor"
	ComponentMarkdownEditor   = "markdown_editor"
	ComponentUUID             = "uuid"
	ComponentForeignKeySelect = "foreignkey_select"
	ComponentManyToManySelect = "manytomany_select"
)

// Choice is one discrete value/label pair offered by a select-style field.
type Choice struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// RelatedModel points at the model a relation field references. APIURL is the
// list endpoint callers hit to resolve the full option set.
type RelatedModel struct {
	AppLabel  string `json:"appLabel"`
	ModelName string `json:"modelName"`
	APIURL    string `json:"apiUrl"`
}

// Field describes a single model attribute as declared by the backend. It is
// the unit of metadata every engine in this module is driven by.
type Field struct {
	Name          string        `json:"name"`
	VerboseName   string        `json:"verboseName"`
	Type          string        `json:"type"`
	UIComponent   string        `json:"uiComponent"`
	Required      bool          `json:"required"`
	Editable      bool          `json:"editable"`
	IsTranslation bool          `json:"isTranslation"`
	HelpText      string        `json:"helpText,omitempty"`
	Choices       []Choice      `json:"choices,omitempty"`
	RelatedModel  *RelatedModel `json:"relatedModel,omitempty"`
}

// IsRelation reports whether the field references records of another model.
func (f Field) IsRelation() bool {
	return f.RelatedModel != nil
}

// IsMultiRelation reports whether the field holds a set of related records
// rather than a single one.
func (f Field) IsMultiRelation() bool {
	return f.IsRelation() && f.UIComponent == ComponentManyToManySelect
}

// IsDate reports whether values of this field carry date semantics. The
// backend encodes this in the logical type name.
func (f Field) IsDate() bool {
	return strings.Contains(f.Type, "Date")
}

// IsFile reports whether the field accepts uploaded file content.
func (f Field) IsFile() bool {
	return f.UIComponent == ComponentFileUpload || f.UIComponent == ComponentImageUpload
}

// Label returns the display label, falling back to the raw field name.
func (f Field) Label() string {
	if strings.TrimSpace(f.VerboseName) != "" {
		return f.VerboseName
	}
	return f.Name
}

// Permissions is the capability set granted for a model. The UI must not offer
// affordances beyond what is granted; the backend remains the enforcement
// authority.
type Permissions struct {
	Add    bool `json:"add"`
	Change bool `json:"change"`
	Delete bool `json:"delete"`
	View   bool `json:"view"`
}

// AdminConfig carries list-view display configuration.
type AdminConfig struct {
	ListDisplay []string `json:"listDisplay"`
}

// FrontendConfig carries cosmetic display hints. Never semantically required.
type FrontendConfig struct {
	Icon        string `json:"icon,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// Schema is the backend-declared description of one model: identity strings,
// ordered field set, permissions and display configuration. Instances are
// immutable per render cycle; the backend owns the source of truth.
type Schema struct {
	ModelName         string         `json:"modelName"`
	VerboseName       string         `json:"verboseName"`
	VerboseNamePlural string         `json:"verboseNamePlural"`
	Fields            []Field        `json:"-"`
	AdminConfig       AdminConfig    `json:"adminConfig"`
	Permissions       Permissions    `json:"permissions"`
	FrontendConfig    FrontendConfig `json:"frontendConfig"`
	APIURL            string         `json:"apiUrl"`
}

// Field looks up a field descriptor by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// EditableFields returns the fields the form engine may submit, in order.
func (s Schema) EditableFields() []Field {
	out := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Editable {
			out = append(out, f)
		}
	}
	return out
}

// Title returns the singular display name, falling back to the model name.
func (s Schema) Title() string {
	if strings.TrimSpace(s.VerboseName) != "" {
		return s.VerboseName
	}
	return s.ModelName
}
