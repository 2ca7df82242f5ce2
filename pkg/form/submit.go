package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrValidation blocks a submission that failed the pre-submission checks.
// Per-field messages stay on the session via FieldError.
var ErrValidation = errors.New("form: validation failed")

// Submit sends the session's current values to the backend: POST to the
// model endpoint for create flows, PATCH to the record endpoint for edits.
// The payload always carries the full editable field set. On success the
// model's cached lists and config are invalidated and the backend's record is
// returned; on failure the session state is left untouched so the user can
// retry.
func (s *Session) Submit(ctx context.Context) (map[string]any, error) {
	if !s.Validate() {
		return nil, ErrValidation
	}

	order, payload := s.payload()

	method := http.MethodPost
	path := s.schema.APIURL
	if s.IsEdit() {
		method = http.MethodPatch
		path = fmt.Sprintf("%s%v/", s.schema.APIURL, s.recordID)
	}

	var (
		raw json.RawMessage
		err error
	)
	if hasFileContent(payload) {
		raw, err = s.engine.client.Upload(ctx, method, path, func(w *multipart.Writer) error {
			return writeMultipart(w, order, payload)
		})
	} else {
		raw, err = s.engine.client.Request(ctx, method, path, jsonPayload(order, payload))
	}
	if err != nil {
		return nil, fmt.Errorf("form: submit %s: %w", s.schema.ModelName, err)
	}

	if err := s.engine.cache.InvalidateModel(ctx, s.schema.ModelName); err != nil {
		s.engine.logger.Warn("cache invalidation failed after submit",
			zap.String("model", s.schema.ModelName), zap.Error(err))
	}

	var record map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("form: decode submit response: %w", err)
		}
	}
	s.engine.logger.Info("record submitted",
		zap.String("model", s.schema.ModelName), zap.Bool("edit", s.IsEdit()))
	return record, nil
}

// payload assembles the submission map over every editable field, with date
// values coerced to full timestamps. Order mirrors field declaration order.
func (s *Session) payload() ([]string, map[string]any) {
	editable := s.schema.EditableFields()
	order := make([]string, 0, len(editable))
	payload := make(map[string]any, len(editable))
	for _, f := range editable {
		order = append(order, f.Name)
		value := s.values[f.Name]
		if f.IsDate() {
			value = coerceTimestamp(value)
		}
		payload[f.Name] = value
	}
	return order, payload
}

// jsonPayload strips values multipart handles but JSON cannot: zero file
// values would otherwise serialise as meaningless structs.
func jsonPayload(order []string, payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for _, name := range order {
		if fv, ok := payload[name].(FileValue); ok && fv.IsZero() {
			continue
		}
		out[name] = payload[name]
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceTimestamp normalises picker output to a full RFC 3339 timestamp. A
// bare date becomes midnight UTC. Values that do not parse pass through
// unchanged and are left for the backend to reject.
func coerceTimestamp(value any) any {
	text, ok := value.(string)
	if !ok || text == "" {
		return value
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return value
}
