// Package epiadmin wires the engines of the admin client together: one
// authenticated data client, one cache service, and the form, table, transfer
// and generation engines built on top of them. Callers that need a single
// entry point use Engine; the sub-packages remain usable on their own.
package epiadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/form"
	"github.com/solutionEPI/epi-admin/pkg/generate"
	"github.com/solutionEPI/epi-admin/pkg/render"
	"github.com/solutionEPI/epi-admin/pkg/renderers/htmlform"
	"github.com/solutionEPI/epi-admin/pkg/renderers/tui"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/table"
	"github.com/solutionEPI/epi-admin/pkg/transfer"
)

const loginPath = "/api/auth/login/"

// Schema re-exports the descriptor type for callers that only import the root
// package.
type Schema = schema.Schema

// Session is a working create/edit form session.
type Session = form.Session

// Renderer is the pluggable output contract shared by the TUI and HTML
// renderers.
type Renderer = render.Renderer

// RenderOptions carries per-render overrides (theme, active tab, errors).
type RenderOptions = render.Options

// Option configures the engine.
type Option func(*settings)

type settings struct {
	logger     *zap.Logger
	tokens     client.TokenStore
	cacheStore cache.Store
	provider   *generate.Provider
	clientOpts []client.Option
	renderers  []render.Renderer
}

// WithLogger injects a structured logger shared by every engine.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenStore supplies the session token store. Defaults to an empty
// in-memory store; Login populates it.
func WithTokenStore(store client.TokenStore) Option {
	return func(s *settings) {
		if store != nil {
			s.tokens = store
		}
	}
}

// WithCacheStore swaps the cache backend, e.g. for the redis store.
func WithCacheStore(store cache.Store) Option {
	return func(s *settings) {
		if store != nil {
			s.cacheStore = store
		}
	}
}

// WithAIProvider routes record generation through a direct model provider
// instead of the backend's endpoint.
func WithAIProvider(provider *generate.Provider) Option {
	return func(s *settings) { s.provider = provider }
}

// WithClientOptions forwards extra options to the underlying data client.
func WithClientOptions(options ...client.Option) Option {
	return func(s *settings) { s.clientOpts = append(s.clientOpts, options...) }
}

// WithRenderer registers an additional renderer beside the built-in pair.
func WithRenderer(r render.Renderer) Option {
	return func(s *settings) {
		if r != nil {
			s.renderers = append(s.renderers, r)
		}
	}
}

// Engine is the assembled admin client. All fields are initialised by New and
// safe for concurrent use.
type Engine struct {
	Client    *client.Client
	Cache     *cache.Service
	Forms     *form.Engine
	Tables    *table.Engine
	Transfer  *transfer.Service
	Generate  *generate.Service
	Renderers *render.Registry

	tokens client.TokenStore
	logger *zap.Logger
}

// New assembles an engine against the given backend base URL.
func New(baseURL string, options ...Option) (*Engine, error) {
	s := &settings{
		logger: zap.NewNop(),
		tokens: client.NewMemoryTokenStore("", ""),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}

	clientOpts := append([]client.Option{
		client.WithTokenStore(s.tokens),
		client.WithLogger(s.logger),
	}, s.clientOpts...)
	api := client.New(baseURL, clientOpts...)

	cacheOpts := []cache.Option{}
	if s.cacheStore != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(s.cacheStore))
	}
	cacheSvc := cache.New(cacheOpts...)

	forms, err := form.NewEngine(api, cacheSvc, form.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("epiadmin: form engine: %w", err)
	}
	tables, err := table.NewEngine(api, cacheSvc, table.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("epiadmin: table engine: %w", err)
	}
	transferSvc, err := transfer.NewService(api, cacheSvc, transfer.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("epiadmin: transfer service: %w", err)
	}
	genOpts := []generate.Option{generate.WithLogger(s.logger)}
	if s.provider != nil {
		genOpts = append(genOpts, generate.WithProvider(s.provider))
	}
	genSvc, err := generate.NewService(api, genOpts...)
	if err != nil {
		return nil, fmt.Errorf("epiadmin: generate service: %w", err)
	}

	registry := render.NewRegistry()
	html, err := htmlform.New()
	if err != nil {
		return nil, fmt.Errorf("epiadmin: html renderer: %w", err)
	}
	for _, r := range append([]render.Renderer{tui.New(), html}, s.renderers...) {
		if err := registry.Register(r); err != nil {
			return nil, fmt.Errorf("epiadmin: register renderer: %w", err)
		}
	}

	return &Engine{
		Client:    api,
		Cache:     cacheSvc,
		Forms:     forms,
		Tables:    tables,
		Transfer:  transferSvc,
		Generate:  genSvc,
		Renderers: registry,
		tokens:    s.tokens,
		logger:    s.logger,
	}, nil
}

// Close releases the engine's background resources (the client's refresh
// coordinator).
func (e *Engine) Close() {
	e.Client.Close()
}

// Login exchanges credentials for a token pair and stores it. Subsequent
// requests carry the access token; refresh is handled by the client.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	raw, err := e.Client.Request(ctx, http.MethodPost, loginPath, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("epiadmin: login: %w", err)
	}
	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(raw, &pair); err != nil {
		return fmt.Errorf("epiadmin: decode login response: %w", err)
	}
	if pair.Access == "" {
		return errors.New("epiadmin: login response carries no access token")
	}
	e.tokens.SetTokens(pair.Access, pair.Refresh)
	e.logger.Info("signed in", zap.String("username", username))
	return nil
}

// Schema fetches a model's descriptor through the cache.
func (e *Engine) Schema(ctx context.Context, modelKey string) (schema.Schema, error) {
	raw, err := e.Cache.Fetch(ctx, cache.ModelConfigKey(modelKey), func(ctx context.Context) ([]byte, error) {
		return e.Client.Get(ctx, fmt.Sprintf("/api/admin/models/%s/config/", modelKey))
	})
	if err != nil {
		return schema.Schema{}, fmt.Errorf("epiadmin: fetch schema for %s: %w", modelKey, err)
	}
	return schema.Parse(raw)
}

// CreateSession builds an empty form session for the model.
func (e *Engine) CreateSession(ctx context.Context, modelKey string) (*form.Session, error) {
	sch, err := e.Schema(ctx, modelKey)
	if err != nil {
		return nil, err
	}
	return e.Forms.Build(sch, nil)
}

// EditSession loads the record and builds a form session seeded with its
// values.
func (e *Engine) EditSession(ctx context.Context, modelKey string, recordID any) (*form.Session, error) {
	sch, err := e.Schema(ctx, modelKey)
	if err != nil {
		return nil, err
	}
	raw, err := e.Client.Get(ctx, fmt.Sprintf("%s%v/", sch.APIURL, recordID))
	if err != nil {
		return nil, fmt.Errorf("epiadmin: fetch %s record %v: %w", modelKey, recordID, err)
	}
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("epiadmin: decode %s record %v: %w", modelKey, recordID, err)
	}
	if _, ok := record["id"]; !ok {
		record["id"] = recordID
	}
	return e.Forms.Build(sch, record)
}

// ListView builds a paginated table view for the model.
func (e *Engine) ListView(ctx context.Context, modelKey string) (*table.View, error) {
	sch, err := e.Schema(ctx, modelKey)
	if err != nil {
		return nil, err
	}
	return e.Tables.NewView(sch), nil
}
