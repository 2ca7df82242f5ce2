package table

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/schema"
)

const gloveDescriptor = `{
	"modelName": "glove",
	"verboseName": "Work Glove",
	"verboseNamePlural": "Work Gloves",
	"apiUrl": "/api/gloves/",
	"adminConfig": {"listDisplay": ["name", "in_stock", "certified_at"]},
	"permissions": {"add": true, "change": true, "delete": true, "view": true},
	"fields": {
		"id": {"verboseName": "ID", "type": "UUIDField", "uiComponent": "uuid", "editable": false},
		"name": {"verboseName": "Name", "type": "CharField", "uiComponent": "input", "required": true, "editable": true},
		"in_stock": {"verboseName": "In stock", "type": "BooleanField", "uiComponent": "checkbox", "editable": true},
		"certified_at": {"verboseName": "Certified", "type": "DateTimeField", "uiComponent": "datetime_picker", "editable": false}
	}
}`

func gloveSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(gloveDescriptor))
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, handler http.Handler, options ...Option) (*Engine, *cache.Service) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api := client.New(srv.URL,
		client.WithTokenStore(client.NewMemoryTokenStore("access-token", "refresh-token")))
	cacheSvc := cache.New()
	engine, err := NewEngine(api, cacheSvc, options...)
	require.NoError(t, err)
	return engine, cacheSvc
}

// pagedHandler serves a fixed record set in PageSize chunks.
func pagedHandler(t *testing.T, total int, hits *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		require.Equal(t, fmt.Sprint(PageSize), r.URL.Query().Get("page_size"))
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)

		start := (page - 1) * PageSize
		if start >= total {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"detail": "Invalid page."}`)
			return
		}
		end := start + PageSize
		if end > total {
			end = total
		}
		results := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			results = append(results, map[string]any{
				"id":           fmt.Sprintf("g-%d", i+1),
				"name":         fmt.Sprintf("Glove %d", i+1),
				"in_stock":     i%2 == 0,
				"certified_at": "2026-02-14T09:30:00Z",
			})
		}
		var next, prev *string
		if end < total {
			u := fmt.Sprintf("/api/gloves/?page=%d", page+1)
			next = &u
		}
		if page > 1 {
			u := fmt.Sprintf("/api/gloves/?page=%d", page-1)
			prev = &u
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count": total, "next": next, "previous": prev, "results": results,
		})
	})
}

func TestLoad_ColumnsFollowListDisplay(t *testing.T) {
	engine, _ := newTestEngine(t, pagedHandler(t, 3, nil))
	view := engine.NewView(gloveSchema(t))

	page, err := view.Load(t.Context(), 1)
	require.NoError(t, err)

	var names, titles []string
	for _, col := range page.Columns {
		names = append(names, col.Name)
		titles = append(titles, col.Title)
	}
	require.Equal(t, []string{"name", "in_stock", "certified_at", "_actions"}, names)
	require.Equal(t, []string{"Name", "In stock", "Certified", "Actions"}, titles)
}

func TestLoad_FormatsCells(t *testing.T) {
	fixed := func(ts time.Time) string { return ts.UTC().Format("2006-01-02") }
	engine, _ := newTestEngine(t, pagedHandler(t, 2, nil), WithDateFormatter(fixed))
	view := engine.NewView(gloveSchema(t))

	page, err := view.Load(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)

	first := page.Rows[0]
	require.Equal(t, "g-1", first.ID)
	require.Equal(t, "Glove 1", first.Cells[0].Value)
	require.True(t, first.Cells[0].EditLink, "first column links to the edit view")
	require.Equal(t, "Yes", first.Cells[1].Value)
	require.Equal(t, "2026-02-14", first.Cells[2].Value)
	require.False(t, first.Cells[1].EditLink)
}

func TestLoad_NullAndBlankRenderAsDash(t *testing.T) {
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count": 1, "next": null, "previous": null, "results": [
			{"id": "g-1", "name": "", "in_stock": false, "certified_at": null}
		]}`)
	}))
	view := engine.NewView(gloveSchema(t))

	page, err := view.Load(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, "-", page.Rows[0].Cells[0].Value)
	require.Equal(t, "No", page.Rows[0].Cells[1].Value)
	require.Equal(t, "-", page.Rows[0].Cells[2].Value)
}

func TestLoad_EmptyListDisplayYieldsOnlyActions(t *testing.T) {
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count": 1, "next": null, "previous": null, "results": [
			{"id": "g-1", "zeta": "z", "alpha": "a"}
		]}`)
	}))

	// A descriptor without listDisplay shows no data columns; the record
	// keys are not a substitute for the admin configuration.
	bare := schema.Schema{ModelName: "glove", APIURL: "/api/gloves/"}
	view := engine.NewView(bare)

	page, err := view.Load(t.Context(), 1)
	require.NoError(t, err)

	var names []string
	for _, col := range page.Columns {
		names = append(names, col.Name)
	}
	require.Equal(t, []string{"_actions"}, names)
	require.Len(t, page.Rows, 1)
	require.Equal(t, "g-1", page.Rows[0].ID)
}

func TestLoad_PaginationMathAndClamping(t *testing.T) {
	engine, _ := newTestEngine(t, pagedHandler(t, 35, nil))
	view := engine.NewView(gloveSchema(t))

	page, err := view.Load(t.Context(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Number)
	require.Equal(t, 3, page.TotalPages)
	require.True(t, page.HasNext)
	require.False(t, page.HasPrev)

	// Once the total is known, out-of-range requests clamp to the last page.
	page, err = view.Load(t.Context(), 99)
	require.NoError(t, err)
	require.Equal(t, 3, page.Number)
	require.Len(t, page.Rows, 5)
	require.False(t, page.HasNext)
	require.True(t, page.HasPrev)
}

func TestLoad_ServesRepeatVisitsFromCache(t *testing.T) {
	hits := 0
	engine, _ := newTestEngine(t, pagedHandler(t, 35, &hits))
	view := engine.NewView(gloveSchema(t))

	_, err := view.Load(t.Context(), 1)
	require.NoError(t, err)
	_, err = view.Load(t.Context(), 2)
	require.NoError(t, err)
	_, err = view.Load(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, hits)
}

func TestLoad_StaleResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			<-release
		}
		pagedHandler(t, 35, nil).ServeHTTP(w, r)
	}))
	view := engine.NewView(gloveSchema(t))

	var wg sync.WaitGroup
	wg.Add(1)
	var slowErr error
	go func() {
		defer wg.Done()
		_, slowErr = view.Load(context.Background(), 1)
	}()

	// Let the slow load reach the server, then run a newer one.
	time.Sleep(50 * time.Millisecond)
	page, err := view.Load(t.Context(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, page.Number)

	close(release)
	wg.Wait()
	require.ErrorIs(t, slowErr, ErrStale)

	current, ok := view.Current()
	require.True(t, ok)
	require.Equal(t, 2, current.Number)
}

func TestDelete_DeclinedConfirmationSkipsRequest(t *testing.T) {
	requests := 0
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	view := engine.NewView(gloveSchema(t))

	decline := ConfirmerFunc(func(context.Context, string) (bool, error) { return false, nil })
	deleted, err := view.Delete(t.Context(), "g-1", decline)
	require.NoError(t, err)
	require.False(t, deleted)
	require.Zero(t, requests)
}

func TestDelete_RemovesRecordAndInvalidatesCache(t *testing.T) {
	var deletedPath string
	hits := 0
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletedPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
			return
		}
		hits++
		pagedHandler(t, 3, nil).ServeHTTP(w, r)
	}))
	view := engine.NewView(gloveSchema(t))

	_, err := view.Load(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, hits)

	var prompt string
	accept := ConfirmerFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return true, nil
	})
	deleted, err := view.Delete(t.Context(), "g-1", accept)
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, "/api/gloves/g-1/", deletedPath)
	require.Contains(t, prompt, "Work Glove")

	// Cached pages were invalidated, so refreshing hits the backend again.
	_, err = view.Refresh(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, hits)
}
