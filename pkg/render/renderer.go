// Package render defines the renderer contract shared by every output
// surface of the dashboard and a registry to discover renderers by name.
package render

import (
	"context"

	theme "github.com/goliatone/go-theme"

	"github.com/solutionEPI/epi-admin/pkg/form"
	"github.com/solutionEPI/epi-admin/pkg/table"
)

// Options carries per-request rendering state: the resolved theme, the active
// translation tab and server-side errors to surface next to their fields.
type Options struct {
	Theme       *theme.RendererConfig
	ActiveTab   string
	FieldErrors map[string][]string
	FormErrors  []string
}

// Renderer turns form sessions and list pages into a byte representation for
// one output surface (terminal, HTML, ...).
type Renderer interface {
	Name() string
	ContentType() string
	RenderForm(ctx context.Context, sess *form.Session, options Options) ([]byte, error)
	RenderTable(ctx context.Context, page table.Page, options Options) ([]byte, error)
}
