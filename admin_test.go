package epiadmin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const visorDescriptor = `{
	"modelName": "visor",
	"verboseName": "Face Visor",
	"verboseNamePlural": "Face Visors",
	"apiUrl": "/api/visors/",
	"adminConfig": {"listDisplay": ["name"]},
	"permissions": {"add": true, "change": true, "delete": true, "view": true},
	"fields": {
		"id": {"verboseName": "ID", "type": "UUIDField", "uiComponent": "uuid", "editable": false},
		"name": {"verboseName": "Name", "type": "CharField", "uiComponent": "input", "required": true, "editable": true}
	}
}`

type backendState struct {
	configHits int
	lastAuth   string
}

func newBackend(t *testing.T, state *backendState) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": "invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"access": "access-1", "refresh": "refresh-1"}`))
	})
	mux.HandleFunc("/api/admin/models/visor/config/", func(w http.ResponseWriter, r *http.Request) {
		state.configHits++
		state.lastAuth = r.Header.Get("Authorization")
		w.Write([]byte(visorDescriptor))
	})
	mux.HandleFunc("/api/visors/v-7/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "v-7", "name": "ClearShield"}`))
	})
	mux.HandleFunc("/api/visors/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 1, "next": null, "previous": null, "results": [{"id": "v-7", "name": "ClearShield"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEngine_LoginThenAuthenticatedFetch(t *testing.T) {
	state := &backendState{}
	srv := newBackend(t, state)

	engine, err := New(srv.URL)
	require.NoError(t, err)

	require.Error(t, engine.Login(t.Context(), "warehouse", "wrong"))
	require.NoError(t, engine.Login(t.Context(), "warehouse", "s3cret"))

	sch, err := engine.Schema(t.Context(), "visor")
	require.NoError(t, err)
	require.Equal(t, "Face Visor", sch.VerboseName)
	require.Equal(t, "Bearer access-1", state.lastAuth)
}

func TestEngine_SchemaIsCached(t *testing.T) {
	state := &backendState{}
	engine, err := New(newBackend(t, state).URL)
	require.NoError(t, err)

	for range 3 {
		_, err := engine.Schema(t.Context(), "visor")
		require.NoError(t, err)
	}
	require.Equal(t, 1, state.configHits)
}

func TestEngine_Sessions(t *testing.T) {
	engine, err := New(newBackend(t, &backendState{}).URL)
	require.NoError(t, err)

	create, err := engine.CreateSession(t.Context(), "visor")
	require.NoError(t, err)
	require.False(t, create.IsEdit())

	edit, err := engine.EditSession(t.Context(), "visor", "v-7")
	require.NoError(t, err)
	require.True(t, edit.IsEdit())
	name, _ := edit.Value("name")
	require.Equal(t, "ClearShield", name)
}

func TestEngine_ListView(t *testing.T) {
	engine, err := New(newBackend(t, &backendState{}).URL)
	require.NoError(t, err)

	view, err := engine.ListView(t.Context(), "visor")
	require.NoError(t, err)
	page, err := view.Load(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	require.Len(t, page.Rows, 1)
}

func TestEngine_BuiltinRenderers(t *testing.T) {
	engine, err := New(newBackend(t, &backendState{}).URL)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"tui", "html"}, engine.Renderers.Names())
}
