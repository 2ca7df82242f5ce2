// Package transfer moves records in and out of the dashboard as CSV or JSON
// files: full exports across every list page, and file imports handed to the
// backend's bulk endpoint.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/solutionEPI/epi-admin/pkg/cache"
	"github.com/solutionEPI/epi-admin/pkg/client"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/table"
)

// Format selects the file encoding for an export or import.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat maps user input onto a known format.
func ParseFormat(text string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(text))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("transfer: unknown format %q", text)
	}
}

// Option customises the transfer service.
type Option func(*Service)

// WithLogger injects a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service runs exports and imports for any model.
type Service struct {
	client *client.Client
	cache  *cache.Service
	logger *zap.Logger
}

// NewService constructs a transfer service over the shared data client.
func NewService(api *client.Client, cacheSvc *cache.Service, options ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.New("transfer: data client is required")
	}
	if cacheSvc == nil {
		return nil, errors.New("transfer: cache service is required")
	}
	s := &Service{client: api, cache: cacheSvc, logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

// Filename derives the download name from the model key.
func Filename(s schema.Schema, format Format) string {
	return fmt.Sprintf("%s_export.%s", s.ModelName, format)
}

// Export fetches every record of the model and writes the encoded file to w.
// The encoding is buffered so a failure partway through a fetch or encode
// leaves w untouched: the caller never receives a truncated file.
func (s *Service) Export(ctx context.Context, sch schema.Schema, format Format, w io.Writer) error {
	records, err := s.fetchAll(ctx, sch)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		err = writeCSV(&buf, sch, records)
	case FormatJSON:
		err = writeJSON(&buf, records)
	default:
		return fmt.Errorf("transfer: unknown format %q", format)
	}
	if err != nil {
		return fmt.Errorf("transfer: encode %s export: %w", sch.ModelName, err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("transfer: write export: %w", err)
	}
	s.logger.Info("export complete",
		zap.String("model", sch.ModelName),
		zap.String("format", string(format)),
		zap.Int("records", len(records)))
	return nil
}

// fetchAll walks the paginated list endpoint until the backend reports no
// next page. The reported count caps the walk so a backend that keeps
// handing out next links cannot loop us forever.
func (s *Service) fetchAll(ctx context.Context, sch schema.Schema) ([]map[string]any, error) {
	var records []map[string]any
	page := 1
	maxPages := 1
	for {
		raw, err := s.client.Get(ctx, fmt.Sprintf("%s?page=%d&page_size=%d", sch.APIURL, page, table.PageSize))
		if err != nil {
			return nil, fmt.Errorf("transfer: fetch %s page %d: %w", sch.ModelName, page, err)
		}
		var resp struct {
			Count   int              `json:"count"`
			Next    *string          `json:"next"`
			Results []map[string]any `json:"results"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("transfer: decode %s page %d: %w", sch.ModelName, page, err)
		}
		records = append(records, resp.Results...)

		if page == 1 {
			maxPages = (resp.Count + table.PageSize - 1) / table.PageSize
		}
		if resp.Next == nil || page >= maxPages {
			return records, nil
		}
		page++
	}
}

// Import uploads a file to the model's bulk import endpoint as multipart form
// data carrying the file and its format. On success the model's cached pages
// are invalidated since the import changed the record set.
func (s *Service) Import(ctx context.Context, sch schema.Schema, filename string, content []byte, format Format) error {
	path := fmt.Sprintf("/api/admin/models/%s/import/", sch.ModelName)
	_, err := s.client.Upload(ctx, http.MethodPost, path, func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		if _, err := part.Write(content); err != nil {
			return err
		}
		return w.WriteField("format", string(format))
	})
	if err != nil {
		return fmt.Errorf("transfer: import %s: %w", sch.ModelName, err)
	}

	if err := s.cache.InvalidateModel(ctx, sch.ModelName); err != nil {
		s.logger.Warn("cache invalidation failed after import",
			zap.String("model", sch.ModelName), zap.Error(err))
	}
	s.logger.Info("import complete",
		zap.String("model", sch.ModelName), zap.String("file", filename))
	return nil
}
