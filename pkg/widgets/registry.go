package widgets

import (
	"sort"
	"sync"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// Matcher decides whether a widget should handle the supplied field.
type Matcher func(field schema.Field) bool

type rule struct {
	widget   Widget
	priority int
	match    Matcher
	order    int
}

// Registry selects widgets for fields. Higher priority wins; ties fall back
// to registration order. Resolution never fails: when no rule matches, the
// plain input widget is returned.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in matchers registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a matcher for the given widget. Higher priority values take
// precedence over the builtins.
func (r *Registry) Register(widget Widget, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		widget:   widget,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the widget for a field. Relation fields resolve to a
// relation widget before any matcher runs, honouring the descriptor invariant
// that a relation is never rendered with a primitive input.
func (r *Registry) Resolve(field schema.Field) Widget {
	if field.IsRelation() {
		if field.IsMultiRelation() {
			return WidgetManyToManySelect
		}
		return WidgetForeignKeySelect
	}
	if r == nil {
		return WidgetInput
	}

	r.mu.RLock()
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return entry.widget
		}
	}
	return WidgetInput
}

func (r *Registry) registerBuiltins() {
	hint := func(component string) Matcher {
		return func(field schema.Field) bool {
			return field.UIComponent == component
		}
	}

	r.Register(WidgetUUID, 90, hint(schema.ComponentUUID))
	r.Register(WidgetTextarea, 80, hint(schema.ComponentTextarea))
	r.Register(WidgetCheckbox, 80, hint(schema.ComponentCheckbox))
	r.Register(WidgetDatePicker, 80, hint(schema.ComponentDatePicker))
	r.Register(WidgetDateTimePicker, 80, hint(schema.ComponentDateTimePicker))
	r.Register(WidgetFileUpload, 80, hint(schema.ComponentFileUpload))
	r.Register(WidgetFileUpload, 80, hint(schema.ComponentImageUpload))
	r.Register(WidgetJSONEditor, 80, hint(schema.ComponentJSONEditor))
	r.Register(WidgetMarkdownEditor, 80, hint(schema.ComponentMarkdownEditor))

	// A select hint without choices degrades to a plain input.
	r.Register(WidgetSelect, 70, func(field schema.Field) bool {
		return field.UIComponent == schema.ComponentSelect && len(field.Choices) > 0
	})

	// Choice lists win a select even without an explicit hint.
	r.Register(WidgetSelect, 40, func(field schema.Field) bool {
		return len(field.Choices) > 0
	})

	r.Register(WidgetCheckbox, 30, func(field schema.Field) bool {
		return field.Type == "BooleanField"
	})
	r.Register(WidgetDateTimePicker, 30, func(field schema.Field) bool {
		return field.Type == "DateTimeField"
	})
	r.Register(WidgetDatePicker, 30, func(field schema.Field) bool {
		return field.Type == "DateField"
	})
	r.Register(WidgetJSONEditor, 30, func(field schema.Field) bool {
		return field.Type == "JSONField"
	})
	r.Register(WidgetTextarea, 30, func(field schema.Field) bool {
		return field.Type == "TextField"
	})
}
