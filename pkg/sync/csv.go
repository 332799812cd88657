package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one CSV record keyed by header name
type Row map[string]string

// ParseRows decodes a CSV payload into header-keyed rows. A UTF-8 BOM
// is stripped and ragged records are tolerated: short rows leave the
// missing columns empty.
func ParseRows(data []byte) ([]Row, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []Row{}, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := []Row{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Int parses a column as an integer, reporting absence distinctly from
// malformed values: both yield ok=false.
func (r Row) Int(col string) (int64, bool) {
	v := strings.TrimSpace(r[col])
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Str returns a trimmed column value
func (r Row) Str(col string) string {
	return strings.TrimSpace(r[col])
}

// StrPtr returns a trimmed column value, nil when empty, truncated to
// maxLen when positive.
func (r Row) StrPtr(col string, maxLen int) *string {
	v := r.Str(col)
	if v == "" {
		return nil
	}
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}
	return &v
}
