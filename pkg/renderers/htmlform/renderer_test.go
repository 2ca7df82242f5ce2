package htmlform

import (
	"net/http"
	"net/http/httptest"
	"testing"

	theme "github.com/goliatone/go-theme"
	"github.com/stretchr/testify/require"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/form"
	"github.com/solutionEPI/epi-admin/pkg/render"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/table"
)

const maskDescriptor = `{
	"modelName": "mask",
	"verboseName": "Respirator Mask",
	"verboseNamePlural": "Respirator Masks",
	"apiUrl": "/api/masks/",
	"permissions": {"add": true, "change": true, "delete": true, "view": true},
	"fields": {
		"id": {"verboseName": "ID", "type": "UUIDField", "uiComponent": "uuid", "editable": false},
		"name": {"verboseName": "Name", "type": "CharField", "uiComponent": "input", "required": true, "editable": true},
		"name_en": {"verboseName": "Name (en)", "type": "CharField", "uiComponent": "input", "editable": true, "isTranslation": true},
		"filter_class": {"verboseName": "Filter class", "type": "CharField", "uiComponent": "select", "editable": true,
			"choices": [{"value": "FFP2", "label": "FFP2"}, {"value": "FFP3", "label": "FFP3"}]},
		"supplier": {"verboseName": "Supplier", "type": "ForeignKey", "uiComponent": "foreignkey_select", "editable": true,
			"relatedModel": {"appLabel": "catalog", "modelName": "supplier", "apiUrl": "/api/suppliers/"}},
		"photo": {"verboseName": "Photo", "type": "ImageField", "uiComponent": "image_upload", "editable": true}
	}
}`

func maskSession(t *testing.T) *form.Session {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "sup-1", "name": "MSA"}]`))
	}))
	t.Cleanup(srv.Close)

	api := client.New(srv.URL,
		client.WithTokenStore(client.NewMemoryTokenStore("access-token", "refresh-token")))
	engine, err := form.NewEngine(api, cache.New())
	require.NoError(t, err)

	s, err := schema.Parse([]byte(maskDescriptor))
	require.NoError(t, err)
	sess, err := engine.Build(s, nil)
	require.NoError(t, err)
	return sess
}

func TestRenderForm_FullDocument(t *testing.T) {
	renderer, err := New()
	require.NoError(t, err)
	sess := maskSession(t)
	require.NoError(t, sess.SetValue("name", "AirShield FFP3"))

	out, err := renderer.RenderForm(t.Context(), sess, render.Options{})
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, "<h1>New Respirator Mask</h1>")
	require.Contains(t, html, `value="AirShield FFP3"`)
	require.Contains(t, html, `enctype="multipart/form-data"`)
	require.Contains(t, html, `<option value="FFP3"`)
	// Relation options come from the related model endpoint.
	require.Contains(t, html, ">MSA</option>")
	// The translation field renders inside its language tab.
	require.Contains(t, html, `id="tab-en"`)
	require.Contains(t, html, "English")
}

func TestRenderForm_ThemeAndErrors(t *testing.T) {
	renderer, err := New()
	require.NoError(t, err)
	sess := maskSession(t)

	out, err := renderer.RenderForm(t.Context(), sess, render.Options{
		Theme: &theme.RendererConfig{
			Theme:   "epi-dark",
			CSSVars: map[string]string{"--accent": "#f90"},
		},
		FieldErrors: map[string][]string{"name": {"Name already exists"}},
		FormErrors:  []string{"Fix the highlighted fields"},
	})
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, "theme-epi-dark")
	require.Contains(t, html, "--accent: #f90;")
	require.Contains(t, html, "Name already exists")
	require.Contains(t, html, "Fix the highlighted fields")
}

func TestRenderTable_FullDocument(t *testing.T) {
	renderer, err := New()
	require.NoError(t, err)

	page := table.Page{
		Model:      "mask",
		Number:     1,
		TotalPages: 2,
		Count:      20,
		HasNext:    true,
		Columns:    []table.Column{{Name: "name", Title: "Name"}, {Name: "_actions", Title: "Actions"}},
		Rows: []table.Row{
			{ID: "m-1", Cells: []table.Cell{{Column: "name", Value: "AirShield", EditLink: true}, {Column: "_actions"}}},
		},
	}

	out, err := renderer.RenderTable(t.Context(), page, render.Options{})
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, "<th>Name</th>")
	require.Contains(t, html, `href="/admin/mask/m-1/edit/"`)
	require.Contains(t, html, `data-id="m-1"`)
	require.Contains(t, html, "Page 1 of 2 (20 records)")
	require.Contains(t, html, `?page=2`)
}
