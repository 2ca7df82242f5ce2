package widgets

import "github.com/solutionEPI/epi-admin/pkg/schema"

// Widget is the closed set of input controls the engines know how to drive.
// Adding a widget is a compile-time-checked change; anything the resolver
// cannot place falls back to WidgetInput.
type Widget int

const (
	WidgetInput Widget = iota
	WidgetTextarea
	WidgetCheckbox
	WidgetDatePicker
	WidgetDateTimePicker
	WidgetSelect
	WidgetFileUpload
	WidgetJSONEditor
	WidgetMarkdownEditor
	WidgetUUID
	WidgetForeignKeySelect
	WidgetManyToManySelect
)

var widgetNames = map[Widget]string{
	WidgetInput:            "input",
	WidgetTextarea:         "textarea",
	WidgetCheckbox:         "checkbox",
	WidgetDatePicker:       "date-picker",
	WidgetDateTimePicker:   "datetime-picker",
	WidgetSelect:           "select",
	WidgetFileUpload:       "file-upload",
	WidgetJSONEditor:       "json-editor",
	WidgetMarkdownEditor:   "markdown-editor",
	WidgetUUID:             "uuid",
	WidgetForeignKeySelect: "foreignkey-select",
	WidgetManyToManySelect: "manytomany-select",
}

func (w Widget) String() string {
	if name, ok := widgetNames[w]; ok {
		return name
	}
	return "input"
}

// IsRelation reports whether the widget selects related records.
func (w Widget) IsRelation() bool {
	return w == WidgetForeignKeySelect || w == WidgetManyToManySelect
}

// ReadOnly reports whether the widget never submits a value.
func (w Widget) ReadOnly() bool {
	return w == WidgetUUID
}

// Resolve maps a field descriptor onto a widget using the default registry.
// Precedence is fixed: relation fields always get a relation widget, then the
// uiComponent hint is matched, then the plain input is the fallback arm.
func Resolve(field schema.Field) Widget {
	return defaultRegistry.Resolve(field)
}

var defaultRegistry = NewRegistry()
