package transfer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// writeJSON emits the full record set as a pretty-printed JSON array.
func writeJSON(w io.Writer, records []map[string]any) error {
	if records == nil {
		records = []map[string]any{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// writeCSV emits the record set as CSV. The header follows the descriptor's
// field order when available so columns are stable across exports; keys the
// descriptor does not declare are appended sorted. Null values render as
// empty cells and nested values are embedded as JSON.
func writeCSV(w io.Writer, sch schema.Schema, records []map[string]any) error {
	header := csvHeader(sch, records)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, record := range records {
		row := make([]string, 0, len(header))
		for _, key := range header {
			row = append(row, csvCell(record[key]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvHeader(sch schema.Schema, records []map[string]any) []string {
	if len(records) == 0 {
		return sch.FieldNames()
	}

	var header []string
	declared := make(map[string]bool)
	for _, name := range sch.FieldNames() {
		if _, ok := records[0][name]; ok {
			header = append(header, name)
			declared[name] = true
		}
	}
	var extra []string
	for key := range records[0] {
		if !declared[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func csvCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// ReadCSV parses an exported CSV back into records, inverting csvCell for
// empty cells so a round trip preserves nulls.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("transfer: read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]any, len(header))
		for i, key := range header {
			if i >= len(row) || row[i] == "" {
				record[key] = nil
				continue
			}
			record[key] = row[i]
		}
		records = append(records, record)
	}
	return records, nil
}
