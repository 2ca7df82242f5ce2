// Package table drives the dynamic record list: paginated fetches through
// the shared cache, column derivation from the model descriptor and row
// formatting for display.
package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// PageSize is the fixed backend page length. The backend paginates at this
// size regardless of what the client asks for.
const PageSize = 15

// Option customises the table engine.
type Option func(*Engine)

// WithLogger injects a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDateFormatter swaps the formatter applied to date-typed cells.
func WithDateFormatter(fn DateFormatter) Option {
	return func(e *Engine) {
		if fn != nil {
			e.dates = fn
		}
	}
}

// Engine loads and formats record list pages. One engine serves every model;
// per-view state (current page, generation) lives on the View.
type Engine struct {
	client *client.Client
	cache  *cache.Service
	logger *zap.Logger
	dates  DateFormatter
}

// NewEngine constructs a table engine over the shared data client and cache.
func NewEngine(api *client.Client, cacheSvc *cache.Service, options ...Option) (*Engine, error) {
	if api == nil {
		return nil, errors.New("table: data client is required")
	}
	if cacheSvc == nil {
		return nil, errors.New("table: cache service is required")
	}
	e := &Engine{
		client: api,
		cache:  cacheSvc,
		logger: zap.NewNop(),
		dates:  DefaultDateFormatter,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e, nil
}

// listResponse is the backend's paginated envelope.
type listResponse struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []map[string]any `json:"results"`
}

// Column is one table header.
type Column struct {
	Name  string
	Title string
}

// Cell is one formatted table cell. EditLink marks the cell that navigates
// to the record's edit view.
type Cell struct {
	Column   string
	Value    string
	EditLink bool
}

// Row is one formatted record.
type Row struct {
	ID    any
	Cells []Cell
}

// Page is one rendered list page.
type Page struct {
	Model      string
	Number     int
	TotalPages int
	Count      int
	HasNext    bool
	HasPrev    bool
	Columns    []Column
	Rows       []Row
}

// fetchPage reads one raw page through the cache.
func (e *Engine) fetchPage(ctx context.Context, s schema.Schema, page int) (listResponse, error) {
	key := cache.RecordListKey(s.ModelName, page)
	data, err := e.cache.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		return e.client.Get(ctx, fmt.Sprintf("%s?page=%d&page_size=%d", s.APIURL, page, PageSize))
	})
	if err != nil {
		return listResponse{}, fmt.Errorf("table: fetch %s page %d: %w", s.ModelName, page, err)
	}
	var resp listResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return listResponse{}, fmt.Errorf("table: decode %s page %d: %w", s.ModelName, page, err)
	}
	return resp, nil
}

// buildPage formats a raw response into a display page.
func (e *Engine) buildPage(s schema.Schema, page int, resp listResponse) Page {
	columns := deriveColumns(s)
	rows := make([]Row, 0, len(resp.Results))
	for _, record := range resp.Results {
		rows = append(rows, e.formatRow(s, columns, record))
	}
	total := totalPages(resp.Count)
	return Page{
		Model:      s.ModelName,
		Number:     page,
		TotalPages: total,
		Count:      resp.Count,
		HasNext:    resp.Next != nil,
		HasPrev:    resp.Previous != nil,
		Columns:    columns,
		Rows:       rows,
	}
}

// deriveColumns maps the admin listDisplay configuration to columns. An empty
// listDisplay yields only the actions column; the backend decides what a list
// shows. An actions column always trails.
func deriveColumns(s schema.Schema) []Column {
	var columns []Column
	for _, name := range s.AdminConfig.ListDisplay {
		title := name
		if f, ok := s.Field(name); ok {
			title = f.Label()
		}
		columns = append(columns, Column{Name: name, Title: title})
	}
	return append(columns, Column{Name: "_actions", Title: "Actions"})
}

// totalPages computes the page count at the fixed page size.
func totalPages(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + PageSize - 1) / PageSize
}

// clampPage folds an arbitrary page request into the valid range so the
// backend never sees an out-of-range page number.
func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if total > 0 && page > total {
		return total
	}
	return page
}

// View is one model's list with its current position and a generation guard:
// when loads overlap, only the latest one lands. Safe for concurrent use.
type View struct {
	engine *Engine
	schema schema.Schema

	mu         sync.Mutex
	generation uint64
	current    Page
	loaded     bool
}

// NewView opens a list view over a model descriptor.
func (e *Engine) NewView(s schema.Schema) *View {
	return &View{engine: e, schema: s}
}

// ErrStale reports a load that was superseded by a newer one before it
// finished. Callers drop the result and keep the page they have.
var ErrStale = errors.New("table: superseded by a newer load")

// Load fetches the requested page, clamping it into the known valid range.
// If another Load starts before this one completes, the slower result is
// discarded with ErrStale instead of overwriting the newer page.
func (v *View) Load(ctx context.Context, page int) (Page, error) {
	v.mu.Lock()
	total := 0
	if v.loaded {
		total = v.current.TotalPages
	}
	page = clampPage(page, total)
	v.generation++
	gen := v.generation
	v.mu.Unlock()

	resp, err := v.engine.fetchPage(ctx, v.schema, page)
	if err != nil {
		return Page{}, err
	}

	// The count can have shrunk under us; fold the page back into range and
	// refetch once rather than show an empty page.
	if total := totalPages(resp.Count); total > 0 && page > total {
		page = total
		resp, err = v.engine.fetchPage(ctx, v.schema, page)
		if err != nil {
			return Page{}, err
		}
	}

	built := v.engine.buildPage(v.schema, page, resp)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return Page{}, ErrStale
	}
	v.current = built
	v.loaded = true
	v.engine.logger.Debug("list page loaded",
		zap.String("model", v.schema.ModelName),
		zap.Int("page", built.Number),
		zap.Int("count", built.Count))
	return built, nil
}

// Current returns the last successfully loaded page.
func (v *View) Current() (Page, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.loaded
}

// Refresh reloads the current page, or the first page if nothing loaded yet.
func (v *View) Refresh(ctx context.Context) (Page, error) {
	v.mu.Lock()
	page := 1
	if v.loaded {
		page = v.current.Number
	}
	v.mu.Unlock()
	return v.Load(ctx, page)
}
