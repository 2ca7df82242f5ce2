// Package htmlform renders form sessions and list pages as standalone HTML
// documents through a pongo2 template set, themed via go-theme renderer
// configuration.
package htmlform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/solutionEPI/epi-admin/pkg/form"
	"github.com/solutionEPI/epi-admin/pkg/render"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/table"
	"github.com/solutionEPI/epi-admin/pkg/widgets"
)

// Option configures the HTML renderer.
type Option func(*Renderer) error

// WithTemplates swaps the embedded templates for a caller-provided engine.
func WithTemplates(engine TemplateRenderer) Option {
	return func(r *Renderer) error {
		if engine != nil {
			r.templates = engine
		}
		return nil
	}
}

// Renderer produces themed HTML for form and list views.
type Renderer struct {
	templates TemplateRenderer
}

// New constructs an HTML renderer over the embedded templates.
func New(options ...Option) (*Renderer, error) {
	engine, err := NewEngine(WithFS(builtinTemplates()), WithExtension(".tpl"))
	if err != nil {
		return nil, err
	}
	r := &Renderer{templates: engine}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Renderer) Name() string { return "html" }

func (r *Renderer) ContentType() string { return "text/html; charset=utf-8" }

// RenderForm renders the session as a full HTML document. Relation fields
// resolve their option lists through the session, so rendering an edit form
// can hit the network the first time.
func (r *Renderer) RenderForm(ctx context.Context, sess *form.Session, options render.Options) ([]byte, error) {
	s := sess.Schema()
	groups := sess.Groups()

	heading := "New " + s.Title()
	if sess.IsEdit() {
		heading = "Edit " + s.Title()
	}

	relationViews, err := r.fieldContexts(ctx, sess, groups.Relations, options)
	if err != nil {
		return nil, err
	}
	generalViews, err := r.fieldContexts(ctx, sess, groups.General, options)
	if err != nil {
		return nil, err
	}

	tabs := make([]map[string]any, 0, len(groups.Translations))
	for _, tab := range groups.Translations {
		fields, err := r.fieldContexts(ctx, sess, tab.Fields, options)
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, map[string]any{
			"lang":     tab.Lang,
			"language": schema.LanguageName(tab.Lang),
			"active":   tab.Lang == options.ActiveTab,
			"fields":   fields,
		})
	}

	enctype := "application/x-www-form-urlencoded"
	for _, f := range s.Fields {
		if f.IsFile() {
			enctype = "multipart/form-data"
			break
		}
	}

	data := map[string]any{
		"heading":     heading,
		"icon":        s.FrontendConfig.SanitizedIcon(),
		"action":      s.APIURL,
		"enctype":     enctype,
		"relations":   relationViews,
		"general":     generalViews,
		"tabs":        tabs,
		"form_errors": options.FormErrors,
	}
	applyTheme(data, options.Theme)

	out, err := r.templates.RenderTemplate("form.html", data)
	if err != nil {
		return nil, fmt.Errorf("htmlform: render form: %w", err)
	}
	return []byte(out), nil
}

// RenderTable renders a list page as a full HTML document.
func (r *Renderer) RenderTable(_ context.Context, page table.Page, options render.Options) ([]byte, error) {
	columns := make([]map[string]any, 0, len(page.Columns))
	for _, col := range page.Columns {
		columns = append(columns, map[string]any{"name": col.Name, "title": col.Title})
	}
	rows := make([]map[string]any, 0, len(page.Rows))
	for _, row := range page.Rows {
		cells := make([]map[string]any, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, map[string]any{
				"value":     cell.Value,
				"edit_link": cell.EditLink,
				"actions":   cell.Column == "_actions",
			})
		}
		rows = append(rows, map[string]any{"id": fmt.Sprintf("%v", row.ID), "cells": cells})
	}

	data := map[string]any{
		"heading":     page.Model,
		"base_url":    "/admin/" + page.Model + "/",
		"columns":     columns,
		"rows":        rows,
		"page":        page.Number,
		"total_pages": page.TotalPages,
		"count":       page.Count,
		"has_next":    page.HasNext,
		"has_prev":    page.HasPrev,
		"next_page":   page.Number + 1,
		"prev_page":   page.Number - 1,
	}
	applyTheme(data, options.Theme)

	out, err := r.templates.RenderTemplate("table.html", data)
	if err != nil {
		return nil, fmt.Errorf("htmlform: render table: %w", err)
	}
	return []byte(out), nil
}

func (r *Renderer) fieldContexts(ctx context.Context, sess *form.Session, views []form.FieldView, options render.Options) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(views))
	for _, view := range views {
		fieldCtx, err := r.fieldContext(ctx, sess, view, options)
		if err != nil {
			return nil, err
		}
		out = append(out, fieldCtx)
	}
	return out, nil
}

func (r *Renderer) fieldContext(ctx context.Context, sess *form.Session, view form.FieldView, options render.Options) (map[string]any, error) {
	value, _ := sess.Value(view.Field.Name)
	fieldCtx := map[string]any{
		"name":     view.Field.Name,
		"label":    view.Field.Label(),
		"widget":   view.Widget.String(),
		"required": view.Field.Required,
		"help":     view.Field.HelpText,
		"value":    htmlValue(value),
		"errors":   options.FieldErrors[view.Field.Name],
	}
	if msg, ok := sess.FieldError(view.Field.Name); ok {
		fieldCtx["errors"] = append(options.FieldErrors[view.Field.Name], msg)
	}

	switch {
	case view.Widget == widgets.WidgetCheckbox:
		checked, _ := value.(bool)
		fieldCtx["checked"] = checked

	case view.Widget.IsRelation():
		relOptions, err := sess.RelationOptions(ctx, view.Field.Name)
		if err != nil {
			return nil, err
		}
		fieldCtx["choices"] = relationChoices(relOptions, value)

	case len(view.Field.Choices) > 0:
		choices := make([]map[string]any, 0, len(view.Field.Choices))
		for _, c := range view.Field.Choices {
			choices = append(choices, map[string]any{
				"value":    c.Value,
				"label":    c.Label,
				"selected": fmt.Sprintf("%v", c.Value) == fmt.Sprintf("%v", value),
			})
		}
		fieldCtx["choices"] = choices
	}
	return fieldCtx, nil
}

func relationChoices(options []form.RelationOption, value any) []map[string]any {
	selected := make(map[string]struct{})
	switch v := value.(type) {
	case []any:
		for _, id := range v {
			selected[fmt.Sprintf("%v", id)] = struct{}{}
		}
	case nil, string:
		if s, ok := v.(string); ok && s != "" {
			selected[s] = struct{}{}
		}
	default:
		selected[fmt.Sprintf("%v", v)] = struct{}{}
	}

	choices := make([]map[string]any, 0, len(options))
	for _, opt := range options {
		_, isSelected := selected[fmt.Sprintf("%v", opt.ID)]
		choices = append(choices, map[string]any{
			"value":    opt.ID,
			"label":    opt.Label,
			"selected": isSelected,
		})
	}
	return choices
}

func htmlValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case form.FileValue:
		return v.Name
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func applyTheme(data map[string]any, cfg *theme.RendererConfig) {
	if cfg == nil {
		return
	}
	data["theme_name"] = cfg.Theme
	data["theme_css"] = cssVarsStyle(cfg.CSSVars)
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}
