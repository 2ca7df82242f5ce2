package form

import (
	"fmt"

	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/widgets"
)

// FieldView pairs a field descriptor with its resolved widget. Renderers
// consume these instead of raw descriptors so widget resolution happens in
// exactly one place.
type FieldView struct {
	Field  schema.Field
	Widget widgets.Widget
}

// LanguageTab groups one language's translation fields.
type LanguageTab struct {
	Lang   string
	Fields []FieldView
}

// Groups is the three-way render partition: relation fields first, then plain
// fields, then translation fields sub-grouped into per-language tabs. Tab
// order follows first-seen order during field iteration.
type Groups struct {
	Relations    []FieldView
	General      []FieldView
	Translations []LanguageTab
}

// Tabs returns the language codes in render order.
func (g Groups) Tabs() []string {
	out := make([]string, 0, len(g.Translations))
	for _, tab := range g.Translations {
		out = append(out, tab.Lang)
	}
	return out
}

func buildGroups(s schema.Schema, registry *widgets.Registry) (Groups, error) {
	var (
		groups   Groups
		tabIndex = map[string]int{}
	)
	for _, f := range s.Fields {
		view := FieldView{Field: f, Widget: registry.Resolve(f)}

		switch {
		case f.IsRelation():
			// Relations render in the relation block even when they carry a
			// translation flag.
			groups.Relations = append(groups.Relations, view)
		case f.IsTranslation:
			_, lang, ok := schema.SplitTranslationName(f.Name)
			if !ok {
				return Groups{}, fmt.Errorf("form: translation field %q has no recognized language suffix", f.Name)
			}
			idx, seen := tabIndex[lang]
			if !seen {
				idx = len(groups.Translations)
				tabIndex[lang] = idx
				groups.Translations = append(groups.Translations, LanguageTab{Lang: lang})
			}
			groups.Translations[idx].Fields = append(groups.Translations[idx].Fields, view)
		case f.Name == "id":
			// The id is backend-assigned and immutable; it never renders as
			// an editable control.
		default:
			groups.General = append(groups.General, view)
		}
	}
	return groups, nil
}
