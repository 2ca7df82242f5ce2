package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/form"
	"github.com/solutionEPI/epi-admin/pkg/render"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/table"
)

const bootDescriptor = `{
	"modelName": "boot",
	"verboseName": "Safety Boot",
	"verboseNamePlural": "Safety Boots",
	"apiUrl": "/api/boots/",
	"permissions": {"add": true, "change": true, "delete": true, "view": true},
	"fields": {
		"id": {"verboseName": "ID", "type": "UUIDField", "uiComponent": "uuid", "editable": false},
		"name": {"verboseName": "Name", "type": "CharField", "uiComponent": "input", "required": true, "editable": true},
		"waterproof": {"verboseName": "Waterproof", "type": "BooleanField", "uiComponent": "checkbox", "editable": true},
		"size": {"verboseName": "Size", "type": "CharField", "uiComponent": "select", "editable": true,
			"choices": [{"value": "41", "label": "41"}, {"value": "42", "label": "42"}]},
		"norms": {"verboseName": "Norms", "type": "ManyToManyField", "uiComponent": "manytomany_select", "editable": true,
			"relatedModel": {"appLabel": "catalog", "modelName": "norm", "apiUrl": "/api/norms/"}}
	}
}`

// scriptDriver replays canned answers in prompt order.
type scriptDriver struct {
	inputs   []string
	confirms []bool
	selects  []int
	multis   [][]int
	infos    []string
}

func (d *scriptDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	out := d.inputs[0]
	d.inputs = d.inputs[1:]
	return out, nil
}

func (d *scriptDriver) Password(_ context.Context, _ InputConfig) (string, error) {
	return "", nil
}

func (d *scriptDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	out := d.confirms[0]
	d.confirms = d.confirms[1:]
	return out, nil
}

func (d *scriptDriver) Select(_ context.Context, _ SelectConfig) (int, error) {
	out := d.selects[0]
	d.selects = d.selects[1:]
	return out, nil
}

func (d *scriptDriver) MultiSelect(_ context.Context, _ SelectConfig) ([]int, error) {
	out := d.multis[0]
	d.multis = d.multis[1:]
	return out, nil
}

func (d *scriptDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	return "", nil
}

func (d *scriptDriver) Info(_ context.Context, msg string) error {
	d.infos = append(d.infos, msg)
	return nil
}

func bootSession(t *testing.T) *form.Session {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "n-1", "name": "EN ISO 20345"}, {"id": "n-2", "name": "EN ISO 20347"}]`))
	}))
	t.Cleanup(srv.Close)

	api := client.New(srv.URL,
		client.WithTokenStore(client.NewMemoryTokenStore("access-token", "refresh-token")))
	engine, err := form.NewEngine(api, cache.New())
	require.NoError(t, err)

	s, err := schema.Parse([]byte(bootDescriptor))
	require.NoError(t, err)
	sess, err := engine.Build(s, nil)
	require.NoError(t, err)
	return sess
}

func TestFill_WalksEveryEditableField(t *testing.T) {
	driver := &scriptDriver{
		inputs:   []string{"", "Forge GTX"}, // ad-hoc creation skipped, then name
		confirms: []bool{true},              // waterproof
		selects:  []int{1},                  // size 42
		multis:   [][]int{{0}},              // norms: first option
	}
	renderer := New(WithDriver(driver))
	sess := bootSession(t)

	require.NoError(t, renderer.Fill(t.Context(), sess))

	name, _ := sess.Value("name")
	require.Equal(t, "Forge GTX", name)
	waterproof, _ := sess.Value("waterproof")
	require.Equal(t, true, waterproof)
	size, _ := sess.Value("size")
	require.Equal(t, "42", size)
	norms, _ := sess.Value("norms")
	require.Equal(t, []any{"n-1"}, norms)
}

func TestRenderForm_SummarisesGroupsAndErrors(t *testing.T) {
	renderer := New(WithDriver(&scriptDriver{}))
	sess := bootSession(t)
	require.NoError(t, sess.SetValue("name", "Forge GTX"))

	out, err := renderer.RenderForm(t.Context(), sess, render.Options{
		FieldErrors: map[string][]string{"name": {"Name already exists"}},
		FormErrors:  []string{"Fix the highlighted fields"},
	})
	require.NoError(t, err)

	text := string(out)
	require.Contains(t, text, "New Safety Boot")
	require.Contains(t, text, "Relations")
	require.Contains(t, text, "Forge GTX")
	require.Contains(t, text, "Name already exists")
	require.Contains(t, text, "Fix the highlighted fields")
}

func TestRenderTable_AlignedOutput(t *testing.T) {
	renderer := New(WithDriver(&scriptDriver{}))
	page := table.Page{
		Model:      "boot",
		Number:     2,
		TotalPages: 3,
		Count:      41,
		Columns:    []table.Column{{Name: "name", Title: "Name"}, {Name: "_actions", Title: "Actions"}},
		Rows: []table.Row{
			{ID: "b-1", Cells: []table.Cell{{Column: "name", Value: "Forge GTX", EditLink: true}, {Column: "_actions"}}},
		},
	}

	out, err := renderer.RenderTable(t.Context(), page, render.Options{})
	require.NoError(t, err)

	text := string(out)
	require.True(t, strings.HasPrefix(text, "Name"))
	require.Contains(t, text, "Forge GTX")
	require.Contains(t, text, "Page 2 of 3 (41 records)")
}

func TestConfirmer_BridgesDriver(t *testing.T) {
	driver := &scriptDriver{confirms: []bool{true}}
	renderer := New(WithDriver(driver))

	ok, err := renderer.Confirmer().Confirm(t.Context(), "Delete?")
	require.NoError(t, err)
	require.True(t, ok)
}
