package form

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/widgets"
)

// Option customises the form engine.
type Option func(*Engine)

// WithWidgetRegistry swaps the widget resolution registry.
func WithWidgetRegistry(registry *widgets.Registry) Option {
	return func(e *Engine) {
		if registry != nil {
			e.registry = registry
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine builds create/edit sessions from schema descriptors. One engine is
// shared across models; per-model state lives on the Session.
type Engine struct {
	client   *client.Client
	cache    *cache.Service
	registry *widgets.Registry
	logger   *zap.Logger
}

// NewEngine constructs a form engine. The data client and cache service are
// required: every relation lookup and submission funnels through them.
func NewEngine(api *client.Client, cacheSvc *cache.Service, options ...Option) (*Engine, error) {
	if api == nil {
		return nil, errors.New("form: data client is required")
	}
	if cacheSvc == nil {
		return nil, errors.New("form: cache service is required")
	}
	e := &Engine{
		client:   api,
		cache:    cacheSvc,
		registry: widgets.NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e, nil
}

// Build produces a working session for the descriptor. A nil initial record
// yields a create session; otherwise the record's id selects edit mode and
// its values override the computed defaults per key.
func (e *Engine) Build(s schema.Schema, initial map[string]any) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	groups, err := buildGroups(s, e.registry)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		values[f.Name] = defaultValue(f, e.registry.Resolve(f))
	}
	var recordID any
	if initial != nil {
		for key, value := range initial {
			if _, ok := s.Field(key); ok || key == "id" {
				values[key] = value
			}
		}
		recordID = initial["id"]
	}

	sess := &Session{
		engine:    e,
		schema:    s,
		groups:    groups,
		values:    values,
		recordID:  recordID,
		dirty:     make(map[string]struct{}),
		fieldErrs: make(map[string]string),
		relCache:  make(map[string][]RelationOption),
	}
	return sess, nil
}

// defaultValue derives the initial value for a field from its widget and
// logical type: checkboxes start false, multi relations start empty, JSON
// fields start null, everything else starts as the empty string.
func defaultValue(f schema.Field, w widgets.Widget) any {
	switch {
	case w == widgets.WidgetCheckbox:
		return false
	case w == widgets.WidgetManyToManySelect:
		return []any{}
	case f.Type == "JSONField" || w == widgets.WidgetJSONEditor:
		return nil
	default:
		return ""
	}
}

// ErrNotEditable reports a write against a read-only field.
var ErrNotEditable = errors.New("form: field is not editable")

// UnknownFieldError reports a write against a name the schema does not declare.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("form: unknown field %q", e.Name)
}
