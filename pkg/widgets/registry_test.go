package widgets

import (
	"testing"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

func TestResolve_RelationAlwaysWins(t *testing.T) {
	reg := NewRegistry()

	single := schema.Field{
		Name:         "category",
		Type:         "ForeignKey",
		UIComponent:  schema.ComponentForeignKeySelect,
		RelatedModel: &schema.RelatedModel{ModelName: "category", APIURL: "/api/categories/"},
	}
	if got := reg.Resolve(single); got != WidgetForeignKeySelect {
		t.Fatalf("single relation: want foreignkey-select, got %s", got)
	}

	multi := schema.Field{
		Name:         "tags",
		Type:         "ManyToManyField",
		UIComponent:  schema.ComponentManyToManySelect,
		RelatedModel: &schema.RelatedModel{ModelName: "tag", APIURL: "/api/tags/"},
	}
	if got := reg.Resolve(multi); got != WidgetManyToManySelect {
		t.Fatalf("multi relation: want manytomany-select, got %s", got)
	}
}

func TestResolve_Builtins(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name   string
		field  schema.Field
		expect Widget
	}{
		{"uuid hint", schema.Field{UIComponent: schema.ComponentUUID}, WidgetUUID},
		{"textarea hint", schema.Field{UIComponent: schema.ComponentTextarea}, WidgetTextarea},
		{"checkbox hint", schema.Field{UIComponent: schema.ComponentCheckbox}, WidgetCheckbox},
		{"date hint", schema.Field{UIComponent: schema.ComponentDatePicker}, WidgetDatePicker},
		{"datetime hint", schema.Field{UIComponent: schema.ComponentDateTimePicker}, WidgetDateTimePicker},
		{"file hint", schema.Field{UIComponent: schema.ComponentFileUpload}, WidgetFileUpload},
		{"image hint", schema.Field{UIComponent: schema.ComponentImageUpload}, WidgetFileUpload},
		{"json hint", schema.Field{UIComponent: schema.ComponentJSONEditor}, WidgetJSONEditor},
		{"markdown hint", schema.Field{UIComponent: schema.ComponentMarkdownEditor}, WidgetMarkdownEditor},
		{
			"select with choices",
			schema.Field{UIComponent: schema.ComponentSelect, Choices: []schema.Choice{{Value: "a", Label: "A"}}},
			WidgetSelect,
		},
		{"select without choices", schema.Field{UIComponent: schema.ComponentSelect}, WidgetInput},
		{
			"choices without hint",
			schema.Field{UIComponent: "input", Choices: []schema.Choice{{Value: 1, Label: "One"}}},
			WidgetSelect,
		},
		{"boolean type", schema.Field{Type: "BooleanField"}, WidgetCheckbox},
		{"datetime type", schema.Field{Type: "DateTimeField"}, WidgetDateTimePicker},
		{"date type", schema.Field{Type: "DateField"}, WidgetDatePicker},
		{"json type", schema.Field{Type: "JSONField"}, WidgetJSONEditor},
		{"text type", schema.Field{Type: "TextField"}, WidgetTextarea},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := reg.Resolve(tc.field); got != tc.expect {
				t.Fatalf("resolve %s: want %s, got %s", tc.name, tc.expect, got)
			}
		})
	}
}

func TestResolve_UnknownHintFallsBack(t *testing.T) {
	reg := NewRegistry()
	field := schema.Field{Name: "mystery", Type: "CharField", UIComponent: "holographic_dial"}
	if got := reg.Resolve(field); got != WidgetInput {
		t.Fatalf("unknown hint must fall back to input, got %s", got)
	}
}

func TestResolve_PriorityOverride(t *testing.T) {
	reg := NewRegistry()
	reg.Register(WidgetMarkdownEditor, 999, func(field schema.Field) bool {
		return field.Name == "body"
	})

	if got := reg.Resolve(schema.Field{Name: "body", Type: "TextField"}); got != WidgetMarkdownEditor {
		t.Fatalf("priority matcher should win, got %s", got)
	}
}
