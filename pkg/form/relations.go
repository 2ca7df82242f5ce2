package form

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// RelationOption is one selectable related record.
type RelationOption struct {
	ID    any
	Label string
}

// RelationOptions resolves the full option list for a relation field,
// fetching it lazily from the related model's list endpoint and memoising it
// for the session's lifetime. Callers need the complete set for selection, so
// the endpoint is read unpaginated.
func (s *Session) RelationOptions(ctx context.Context, name string) ([]RelationOption, error) {
	field, ok := s.schema.Field(name)
	if !ok {
		return nil, &UnknownFieldError{Name: name}
	}
	if !field.IsRelation() {
		return nil, fmt.Errorf("form: field %q is not a relation", name)
	}

	if cached, ok := s.relCache[name]; ok {
		return cached, nil
	}

	raw, err := s.engine.client.Get(ctx, field.RelatedModel.APIURL)
	if err != nil {
		return nil, fmt.Errorf("form: fetch options for %q: %w", name, err)
	}
	records, err := decodeOptionRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("form: decode options for %q: %w", name, err)
	}

	options := make([]RelationOption, 0, len(records))
	for _, rec := range records {
		options = append(options, RelationOption{
			ID:    rec["id"],
			Label: optionLabel(rec),
		})
	}
	if s.relCache == nil {
		s.relCache = make(map[string][]RelationOption)
	}
	s.relCache[name] = options
	return options, nil
}

// decodeOptionRecords accepts either a bare array or a paginated envelope;
// related-model endpoints answer with the former when asked for the full set
// but older backends always wrap.
func decodeOptionRecords(raw json.RawMessage) ([]map[string]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var envelope struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Results, nil
}

// optionLabel derives a display label with a fixed priority: name, then
// title, then username, then an id fallback.
func optionLabel(rec map[string]any) string {
	for _, key := range []string{"name", "title", "username"} {
		if v, ok := rec[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return fmt.Sprintf("ID: %v", rec["id"])
}

// BatchResult reports a per-item bulk operation outcome: failures never block
// the successful items.
type BatchResult struct {
	Created []any
	Errors  []error
}

// Summary renders the "X of Y succeeded" line surfaced to users.
func (r BatchResult) Summary() string {
	total := len(r.Created) + len(r.Errors)
	return fmt.Sprintf("%d of %d succeeded", len(r.Created), total)
}

// ParseAdHocInput splits comma-separated free text into candidate names for
// ad-hoc related-record creation.
func ParseAdHocInput(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CreateRelated creates new related records for a multi-relation field, one
// create call per name. Newly created ids are appended to the field's current
// selection; per-item failures are collected individually. There is no
// rollback: partial creation is accepted product behaviour and reported via
// the batch summary.
func (s *Session) CreateRelated(ctx context.Context, name string, names []string) BatchResult {
	var result BatchResult

	field, ok := s.schema.Field(name)
	if !ok {
		result.Errors = append(result.Errors, &UnknownFieldError{Name: name})
		return result
	}
	if !field.IsMultiRelation() {
		result.Errors = append(result.Errors, fmt.Errorf("form: field %q does not support ad-hoc creation", name))
		return result
	}

	for _, label := range names {
		raw, err := s.engine.client.Request(ctx, http.MethodPost, field.RelatedModel.APIURL, map[string]any{"name": label})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("create %q: %w", label, err))
			continue
		}
		var created map[string]any
		if err := json.Unmarshal(raw, &created); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("create %q: decode response: %w", label, err))
			continue
		}
		result.Created = append(result.Created, created["id"])
	}

	if len(result.Created) > 0 {
		current, _ := s.values[name].([]any)
		s.values[name] = append(current, result.Created...)
		if s.dirty == nil {
			s.dirty = make(map[string]struct{})
		}
		s.dirty[name] = struct{}{}
		// The option cache is stale now; drop it so the next read refetches.
		delete(s.relCache, name)
	}
	if len(result.Errors) > 0 {
		s.engine.logger.Warn("ad-hoc relation creation partially failed",
			zap.String("field", name),
			zap.Int("created", len(result.Created)),
			zap.Int("failed", len(result.Errors)),
		)
	}
	return result
}
