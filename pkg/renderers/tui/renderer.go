// Package tui renders the admin dashboard to a terminal: interactive
// survey-driven form filling, plain-text table pages and delete confirmation
// prompts.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/solutionEPI/epi-admin/pkg/form"
	"github.com/solutionEPI/epi-admin/pkg/render"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/table"
	"github.com/solutionEPI/epi-admin/pkg/widgets"
)

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithDriver swaps the prompt driver, mainly for tests.
func WithDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// Renderer drives terminal sessions. It satisfies render.Renderer for
// non-interactive output and adds Fill for the interactive create/edit flow.
type Renderer struct {
	driver PromptDriver
}

// New constructs a TUI renderer with the survey-backed driver.
func New(options ...Option) *Renderer {
	r := &Renderer{driver: newSurveyDriver()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

func (r *Renderer) Name() string { return "tui" }

func (r *Renderer) ContentType() string { return "text/plain; charset=utf-8" }

// RenderForm writes a read-only summary of the session: each group with its
// fields, widgets and current values. The interactive path is Fill.
func (r *Renderer) RenderForm(_ context.Context, sess *form.Session, options render.Options) ([]byte, error) {
	var buf bytes.Buffer
	mode := "New"
	if sess.IsEdit() {
		mode = "Edit"
	}
	fmt.Fprintf(&buf, "%s %s\n", mode, sess.Schema().Title())

	groups := sess.Groups()
	writeGroup := func(title string, fields []form.FieldView) {
		if len(fields) == 0 {
			return
		}
		fmt.Fprintf(&buf, "\n%s\n", title)
		w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		for _, view := range fields {
			value, _ := sess.Value(view.Field.Name)
			marker := ""
			if view.Field.Required {
				marker = " *"
			}
			fmt.Fprintf(w, "  %s%s\t[%s]\t%s\n", view.Field.Label(), marker, view.Widget, displayValue(value))
			if msgs := options.FieldErrors[view.Field.Name]; len(msgs) > 0 {
				fmt.Fprintf(w, "  \t\t! %s\n", strings.Join(msgs, "; "))
			}
		}
		w.Flush()
	}

	writeGroup("Relations", groups.Relations)
	writeGroup("General", groups.General)
	for _, tab := range groups.Translations {
		writeGroup(fmt.Sprintf("Translations (%s)", schema.LanguageName(tab.Lang)), tab.Fields)
	}
	for _, msg := range options.FormErrors {
		fmt.Fprintf(&buf, "\n! %s\n", msg)
	}
	return buf.Bytes(), nil
}

// RenderTable writes a page as an aligned text table with a footer line
// carrying the pagination state.
func (r *Renderer) RenderTable(_ context.Context, page table.Page, _ render.Options) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	headers := make([]string, 0, len(page.Columns))
	for _, col := range page.Columns {
		headers = append(headers, col.Title)
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	for _, row := range page.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			if cell.Column == "_actions" {
				cells = append(cells, "edit / delete")
				continue
			}
			cells = append(cells, cell.Value)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()

	fmt.Fprintf(&buf, "\nPage %d of %d (%d records)\n", page.Number, page.TotalPages, page.Count)
	return buf.Bytes(), nil
}

// Fill walks the session's groups and prompts for every editable field:
// relations first, then the general block, then one pass per translation tab.
func (r *Renderer) Fill(ctx context.Context, sess *form.Session) error {
	groups := sess.Groups()

	for _, view := range groups.Relations {
		if err := r.fillRelation(ctx, sess, view); err != nil {
			return err
		}
	}
	for _, view := range groups.General {
		if err := r.fillField(ctx, sess, view); err != nil {
			return err
		}
	}
	for _, tab := range groups.Translations {
		if err := r.driver.Info(ctx, fmt.Sprintf("-- Translations: %s --", schema.LanguageName(tab.Lang))); err != nil {
			return err
		}
		for _, view := range tab.Fields {
			if err := r.fillField(ctx, sess, view); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) fillRelation(ctx context.Context, sess *form.Session, view form.FieldView) error {
	if !view.Field.Editable {
		return nil
	}
	options, err := sess.RelationOptions(ctx, view.Field.Name)
	if err != nil {
		return err
	}
	labels := make([]string, 0, len(options))
	for _, opt := range options {
		labels = append(labels, opt.Label)
	}

	if view.Widget == widgets.WidgetManyToManySelect {
		current, _ := sess.Value(view.Field.Name)
		selected, _ := current.([]any)
		picked, err := r.driver.MultiSelect(ctx, SelectConfig{
			Message:  view.Field.Label(),
			Options:  labels,
			Defaults: selectedIndices(options, selected),
			Help:     view.Field.HelpText,
		})
		if err != nil {
			return err
		}
		ids := make([]any, 0, len(picked))
		for _, idx := range picked {
			ids = append(ids, options[idx].ID)
		}
		if err := sess.SetValue(view.Field.Name, ids); err != nil {
			return err
		}
		return r.offerAdHocCreation(ctx, sess, view)
	}

	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      view.Field.Label(),
		Options:      labels,
		DefaultIndex: -1,
		Help:         view.Field.HelpText,
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(options) {
		return nil
	}
	return sess.SetValue(view.Field.Name, options[idx].ID)
}

// offerAdHocCreation lets the user type new related records inline. Partial
// failures are reported and do not roll back the items that were created.
func (r *Renderer) offerAdHocCreation(ctx context.Context, sess *form.Session, view form.FieldView) error {
	text, err := r.driver.Input(ctx, InputConfig{
		Message: fmt.Sprintf("Add new %s (comma-separated, empty to skip)", view.Field.Label()),
	})
	if err != nil {
		return err
	}
	names := form.ParseAdHocInput(text)
	if len(names) == 0 {
		return nil
	}
	result := sess.CreateRelated(ctx, view.Field.Name, names)
	if err := r.driver.Info(ctx, fmt.Sprintf("Created %s", result.Summary())); err != nil {
		return err
	}
	for _, itemErr := range result.Errors {
		if err := r.driver.Info(ctx, "  "+itemErr.Error()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) fillField(ctx context.Context, sess *form.Session, view form.FieldView) error {
	if !view.Field.Editable || view.Widget.ReadOnly() {
		return nil
	}
	current, _ := sess.Value(view.Field.Name)

	switch view.Widget {
	case widgets.WidgetCheckbox:
		def, _ := current.(bool)
		value, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: view.Field.Label(),
			Default: def,
			Help:    view.Field.HelpText,
		})
		if err != nil {
			return err
		}
		return sess.SetValue(view.Field.Name, value)

	case widgets.WidgetSelect:
		labels := make([]string, 0, len(view.Field.Choices))
		for _, c := range view.Field.Choices {
			labels = append(labels, c.Label)
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      view.Field.Label(),
			Options:      labels,
			DefaultIndex: -1,
			Help:         view.Field.HelpText,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(view.Field.Choices) {
			return nil
		}
		return sess.SetValue(view.Field.Name, view.Field.Choices[idx].Value)

	case widgets.WidgetTextarea, widgets.WidgetMarkdownEditor:
		def, _ := current.(string)
		value, err := r.driver.TextArea(ctx, TextAreaConfig{
			Message: view.Field.Label(),
			Default: def,
			Help:    view.Field.HelpText,
		})
		if err != nil {
			return err
		}
		return sess.SetValue(view.Field.Name, value)

	case widgets.WidgetJSONEditor:
		text, err := r.driver.TextArea(ctx, TextAreaConfig{
			Message: view.Field.Label() + " (JSON)",
			Default: displayValue(current),
			Help:    view.Field.HelpText,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}
		var value any
		if err := json.Unmarshal([]byte(text), &value); err != nil {
			return fmt.Errorf("tui: field %q: invalid JSON: %w", view.Field.Name, err)
		}
		return sess.SetValue(view.Field.Name, value)

	case widgets.WidgetFileUpload:
		path, err := r.driver.Input(ctx, InputConfig{
			Message: view.Field.Label() + " (file path, empty to skip)",
			Help:    view.Field.HelpText,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(path) == "" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("tui: read %q: %w", path, err)
		}
		return sess.SetValue(view.Field.Name, form.FileValue{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Content:     content,
		})

	case widgets.WidgetDatePicker, widgets.WidgetDateTimePicker, widgets.WidgetInput:
		fallthrough
	default:
		def, _ := current.(string)
		help := view.Field.HelpText
		if view.Widget == widgets.WidgetDatePicker && help == "" {
			help = "YYYY-MM-DD"
		}
		if view.Widget == widgets.WidgetDateTimePicker && help == "" {
			help = "YYYY-MM-DDTHH:MM"
		}
		value, err := r.driver.Input(ctx, InputConfig{
			Message: view.Field.Label(),
			Default: def,
			Help:    help,
		})
		if err != nil {
			return err
		}
		return sess.SetValue(view.Field.Name, value)
	}
}

// Confirmer adapts the prompt driver to the table engine's delete flow.
func (r *Renderer) Confirmer() table.Confirmer {
	return table.ConfirmerFunc(func(ctx context.Context, prompt string) (bool, error) {
		return r.driver.Confirm(ctx, ConfirmConfig{Message: prompt})
	})
}

func selectedIndices(options []form.RelationOption, selected []any) []int {
	if len(selected) == 0 {
		return nil
	}
	chosen := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		chosen[fmt.Sprintf("%v", id)] = struct{}{}
	}
	var out []int
	for i, opt := range options {
		if _, ok := chosen[fmt.Sprintf("%v", opt.ID)]; ok {
			out = append(out, i)
		}
	}
	return out
}

func displayValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case form.FileValue:
		if v.IsZero() {
			return ""
		}
		return v.Name
	case []any, map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
