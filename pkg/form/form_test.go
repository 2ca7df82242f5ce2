package form

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/schema"
)

const helmetDescriptor = `{
	"modelName": "helmet",
	"verboseName": "Safety Helmet",
	"verboseNamePlural": "Safety Helmets",
	"apiUrl": "/api/helmets/",
	"adminConfig": {"listDisplay": ["name", "in_stock"]},
	"permissions": {"add": true, "change": true, "delete": true, "view": true},
	"fields": {
		"id": {"verboseName": "ID", "type": "UUIDField", "uiComponent": "uuid", "editable": false},
		"name": {"verboseName": "Name", "type": "CharField", "uiComponent": "input", "required": true, "editable": true},
		"name_en": {"verboseName": "Name (en)", "type": "CharField", "uiComponent": "input", "editable": true, "isTranslation": true},
		"name_fr": {"verboseName": "Name (fr)", "type": "CharField", "uiComponent": "input", "editable": true, "isTranslation": true},
		"in_stock": {"verboseName": "In stock", "type": "BooleanField", "uiComponent": "checkbox", "editable": true},
		"certified_at": {"verboseName": "Certified", "type": "DateField", "uiComponent": "date_picker", "editable": true},
		"supplier": {"verboseName": "Supplier", "type": "ForeignKey", "uiComponent": "foreignkey_select", "editable": true,
			"relatedModel": {"appLabel": "catalog", "modelName": "supplier", "apiUrl": "/api/suppliers/"}},
		"norms": {"verboseName": "Norms", "type": "ManyToManyField", "uiComponent": "manytomany_select", "editable": true,
			"relatedModel": {"appLabel": "catalog", "modelName": "norm", "apiUrl": "/api/norms/"}},
		"datasheet": {"verboseName": "Datasheet", "type": "FileField", "uiComponent": "file_upload", "editable": true},
		"created_at": {"verboseName": "Created", "type": "DateTimeField", "uiComponent": "datetime_picker", "editable": false}
	}
}`

func helmetSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(helmetDescriptor))
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, *cache.Service) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api := client.New(srv.URL,
		client.WithTokenStore(client.NewMemoryTokenStore("access-token", "refresh-token")))
	cacheSvc := cache.New()
	engine, err := NewEngine(api, cacheSvc)
	require.NoError(t, err)
	return engine, cacheSvc
}

func TestBuild_CreateDefaults(t *testing.T) {
	engine, _ := newTestEngine(t, http.NotFoundHandler())

	sess, err := engine.Build(helmetSchema(t), nil)
	require.NoError(t, err)
	require.False(t, sess.IsEdit())

	name, _ := sess.Value("name")
	require.Equal(t, "", name)
	inStock, _ := sess.Value("in_stock")
	require.Equal(t, false, inStock)
	norms, _ := sess.Value("norms")
	require.Equal(t, []any{}, norms)
}

func TestBuild_GroupsAndTranslationTabs(t *testing.T) {
	engine, _ := newTestEngine(t, http.NotFoundHandler())

	sess, err := engine.Build(helmetSchema(t), nil)
	require.NoError(t, err)
	groups := sess.Groups()

	require.Equal(t, []string{"en", "fr"}, groups.Tabs())
	require.Len(t, groups.Translations[0].Fields, 1)
	require.Equal(t, "name_en", groups.Translations[0].Fields[0].Field.Name)

	var relationNames, generalNames []string
	for _, v := range groups.Relations {
		relationNames = append(relationNames, v.Field.Name)
	}
	for _, v := range groups.General {
		generalNames = append(generalNames, v.Field.Name)
	}
	require.Equal(t, []string{"supplier", "norms"}, relationNames)
	require.NotContains(t, generalNames, "id")
	require.Contains(t, generalNames, "name")
}

func TestBuild_InitialRecordSelectsEditMode(t *testing.T) {
	engine, _ := newTestEngine(t, http.NotFoundHandler())

	sess, err := engine.Build(helmetSchema(t), map[string]any{
		"id":       "42",
		"name":     "V-Gard",
		"junk_key": "dropped",
		"in_stock": true,
		"junk_two": 1,
	})
	require.NoError(t, err)
	require.True(t, sess.IsEdit())
	require.Equal(t, "42", sess.RecordID())

	name, _ := sess.Value("name")
	require.Equal(t, "V-Gard", name)
	_, ok := sess.Value("junk_key")
	require.False(t, ok)
}

func editableNames(s schema.Schema) []string {
	var out []string
	for _, f := range s.EditableFields() {
		out = append(out, f.Name)
	}
	return out
}

func TestSubmit_CreatePostsFullEditableSet(t *testing.T) {
	var (
		gotMethod, gotPath, gotType string
		gotBody                     map[string]any
	)
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": "7", "name": "V-Gard"}`)
	}))

	s := helmetSchema(t)
	sess, err := engine.Build(s, nil)
	require.NoError(t, err)
	require.NoError(t, sess.SetValue("name", "V-Gard"))
	require.NoError(t, sess.SetValue("certified_at", "2026-03-05"))

	record, err := sess.Submit(t.Context())
	require.NoError(t, err)
	require.Equal(t, "7", record["id"])

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/api/helmets/", gotPath)
	require.Equal(t, "application/json", gotType)
	require.Equal(t, "2026-03-05T00:00:00Z", gotBody["certified_at"])

	var keys []string
	for k := range gotBody {
		keys = append(keys, k)
	}
	require.ElementsMatch(t, editableNames(s), keys)
}

func TestSubmit_UnmodifiedEditPatchesEditableSet(t *testing.T) {
	var (
		gotMethod, gotPath string
		gotBody            map[string]any
	)
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))

	s := helmetSchema(t)
	sess, err := engine.Build(s, map[string]any{"id": "42", "name": "V-Gard"})
	require.NoError(t, err)

	// No SetValue calls: the payload must still carry every editable field.
	_, err = sess.Submit(t.Context())
	require.NoError(t, err)

	require.Equal(t, http.MethodPatch, gotMethod)
	require.Equal(t, "/api/helmets/42/", gotPath)

	var keys []string
	for k := range gotBody {
		keys = append(keys, k)
	}
	require.ElementsMatch(t, editableNames(s), keys)
	require.NotContains(t, keys, "id")
	require.NotContains(t, keys, "created_at")
}

func TestSubmit_SwitchesToMultipartWithFile(t *testing.T) {
	var (
		gotType  string
		fileName string
		fileData []byte
		norms    []string
	)
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		norms = r.MultipartForm.Value["norms"]
		file, header, err := r.FormFile("datasheet")
		require.NoError(t, err)
		defer file.Close()
		fileName = header.Filename
		fileData, _ = io.ReadAll(file)
		w.WriteHeader(http.StatusNoContent)
	}))

	sess, err := engine.Build(helmetSchema(t), nil)
	require.NoError(t, err)
	require.NoError(t, sess.SetValue("name", "V-Gard"))
	require.NoError(t, sess.SetValue("norms", []any{"1", "3"}))
	require.NoError(t, sess.SetValue("datasheet", FileValue{
		Name:        "datasheet.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.7"),
	}))

	_, err = sess.Submit(t.Context())
	require.NoError(t, err)

	require.Contains(t, gotType, "multipart/form-data")
	require.Equal(t, "datasheet.pdf", fileName)
	require.Equal(t, []byte("%PDF-1.7"), fileData)
	require.Equal(t, []string{"1", "3"}, norms)
}

func TestSubmit_ValidationBlocksRequest(t *testing.T) {
	requests := 0
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	sess, err := engine.Build(helmetSchema(t), nil)
	require.NoError(t, err)

	_, err = sess.Submit(t.Context())
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, requests)

	msg, ok := sess.FieldError("name")
	require.True(t, ok)
	require.Contains(t, msg, "required")
}

func TestSubmit_InvalidatesModelCache(t *testing.T) {
	engine, cacheSvc := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := t.Context()

	fetches := 0
	load := func(context.Context) ([]byte, error) {
		fetches++
		return []byte("page-1"), nil
	}

	_, err := cacheSvc.Fetch(ctx, cache.RecordListKey("helmet", 1), load)
	require.NoError(t, err)

	sess, err := engine.Build(helmetSchema(t), map[string]any{"id": "42", "name": "V-Gard"})
	require.NoError(t, err)
	_, err = sess.Submit(ctx)
	require.NoError(t, err)

	// The submit dropped the cached page, so the next read refetches.
	_, err = cacheSvc.Fetch(ctx, cache.RecordListKey("helmet", 1), load)
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}
