// Package generate fills admin forms from a natural-language prompt: it
// reduces the model descriptor to the editable surface, asks an AI provider
// for a matching record and extracts the JSON object from whatever prose the
// model wraps around it.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// backendPath is the dashboard backend's generation endpoint.
const backendPath = "/api/ai/generate"

// Option customises the generation service.
type Option func(*Service)

// WithLogger injects a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProvider enables direct provider mode: generation calls the configured
// AI provider itself instead of going through the dashboard backend.
func WithProvider(p *Provider) Option {
	return func(s *Service) {
		s.provider = p
	}
}

// WithTokenCallback registers a callback invoked per streamed token.
func WithTokenCallback(fn func(string)) Option {
	return func(s *Service) {
		s.onToken = fn
	}
}

// Service produces record values for a model descriptor.
type Service struct {
	client   *client.Client
	provider *Provider
	logger   *zap.Logger
	onToken  func(string)
}

// NewService constructs a generation service. Without WithProvider it proxies
// through the backend endpoint using the shared data client.
func NewService(api *client.Client, options ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.New("generate: data client is required")
	}
	s := &Service{client: api, logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

// Generate asks for record values matching the prompt and returns them keyed
// by field name, ready for a form session to merge. Keys outside the editable
// schema surface are already stripped here so callers cannot accidentally
// trust invented fields.
func (s *Service) Generate(ctx context.Context, sch schema.Schema, prompt string) (map[string]any, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("generate: prompt is empty")
	}

	var (
		raw string
		err error
	)
	if s.provider != nil {
		raw, err = s.callProvider(ctx, sch, prompt)
	} else {
		raw, err = s.callBackend(ctx, sch, prompt)
	}
	if err != nil {
		return nil, err
	}

	values, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	editable := make(map[string]bool)
	for _, f := range sch.EditableFields() {
		editable[f.Name] = true
	}
	for key := range values {
		if !editable[key] {
			delete(values, key)
		}
	}
	s.logger.Info("record generated",
		zap.String("model", sch.ModelName), zap.Int("fields", len(values)))
	return values, nil
}

// backendError is the generation endpoint's error envelope.
type backendError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callBackend proxies generation through the dashboard backend. The endpoint
// streams its answer as server-sent events; a plain JSON body is accepted too
// since the backend falls back to it for short completions.
func (s *Service) callBackend(ctx context.Context, sch schema.Schema, prompt string) (string, error) {
	payload := map[string]any{
		"model":  sch.ModelName,
		"schema": ReduceSchema(sch),
		"prompt": BuildPrompt(sch, prompt),
	}
	raw, err := s.client.Request(ctx, http.MethodPost, backendPath, payload)
	if err != nil {
		return "", fmt.Errorf("generate: backend call: %w", err)
	}

	var envelope backendError
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		return "", fmt.Errorf("generate: backend error %s: %s", envelope.Error.Code, envelope.Error.Message)
	}

	text := collectStreamText(string(raw), s.onToken)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("generate: empty response from backend")
	}
	return text, nil
}

// collectStreamText reassembles a server-sent-event stream into the full
// completion, invoking onToken per chunk. Bodies without event framing pass
// through as a single token.
func collectStreamText(body string, onToken func(string)) string {
	if !strings.Contains(body, "data:") {
		if onToken != nil && body != "" {
			onToken(body)
		}
		return body
	}

	var full strings.Builder
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var event struct {
			Token string `json:"token"`
		}
		token := data
		if err := json.Unmarshal([]byte(data), &event); err == nil && event.Token != "" {
			token = event.Token
		}
		full.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
	return full.String()
}
