package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// emptyCell stands in for null and empty values so columns never collapse.
const emptyCell = "-"

// DateFormatter renders a parsed timestamp for display.
type DateFormatter func(t time.Time) string

// DefaultDateFormatter renders dates the way the dashboard shows them.
func DefaultDateFormatter(t time.Time) string {
	return t.Local().Format("Jan 2, 2006 15:04")
}

// formatRow formats one record against the derived columns. The first data
// column carries the edit link; the trailing actions column stays empty for
// the renderer to fill.
func (e *Engine) formatRow(s schema.Schema, columns []Column, record map[string]any) Row {
	row := Row{ID: record["id"]}
	for i, col := range columns {
		if col.Name == "_actions" {
			row.Cells = append(row.Cells, Cell{Column: col.Name})
			continue
		}
		cell := Cell{
			Column:   col.Name,
			Value:    e.formatCell(s, col.Name, record[col.Name]),
			EditLink: i == 0,
		}
		row.Cells = append(row.Cells, cell)
	}
	return row
}

// formatCell renders a raw value as cell text. Date-typed fields go through
// the date formatter; nulls and blanks render as a dash.
func (e *Engine) formatCell(s schema.Schema, name string, value any) string {
	if value == nil {
		return emptyCell
	}
	if f, ok := s.Field(name); ok && f.IsDate() {
		if text, ok := value.(string); ok {
			if t, err := parseTimestamp(text); err == nil {
				return e.dates(t)
			}
		}
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return emptyCell
		}
		return v
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case []any:
		if len(v) == 0 {
			return emptyCell
		}
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, e.formatCell(s, name, item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		// Nested records show their display label, mirroring relation options.
		return relationCellLabel(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func relationCellLabel(rec map[string]any) string {
	for _, key := range []string{"name", "title", "username"} {
		if v, ok := rec[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	if id, ok := rec["id"]; ok {
		return fmt.Sprintf("ID: %v", id)
	}
	return emptyCell
}

var cellTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(text string) (time.Time, error) {
	var lastErr error
	for _, layout := range cellTimestampLayouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
