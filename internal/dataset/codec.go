package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/newthinker/navsim/internal/core"
)

// table is a decoded CSV file addressed by column name.
type table struct {
	path    string
	columns map[string]int
	rows    [][]string
}

// readTable decodes CSV with a header row and checks the required columns.
// Extra columns are ignored.
func readTable(path string, data []byte, required ...string) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, core.Invalidf("%s: missing header row", path)
	}
	if err != nil {
		return nil, core.Invalidf("%s: %v", path, err)
	}

	t := &table{path: path, columns: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.columns[strings.ToLower(name)] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, core.Invalidf("%s: missing column %q", path, name)
		}
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.Invalidf("%s: %v", path, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// field returns the named cell of row i, empty if the row is short.
func (t *table) field(i int, col string) string {
	idx, ok := t.columns[col]
	if !ok || idx >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][idx])
}

// line is the 1-based file line of row i, counting the header.
func (t *table) line(i int) int {
	return i + 2
}

func (t *table) date(i int) (time.Time, error) {
	d, err := core.ParseDate(t.field(i, colDate))
	if err != nil {
		return time.Time{}, core.Invalidf("%s line %d: %v", t.path, t.line(i), err)
	}
	return d, nil
}

func (t *table) float(i int, col string) (float64, error) {
	raw := t.field(i, col)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, core.Invalidf("%s line %d: %s %q is not a number", t.path, t.line(i), col, raw)
	}
	return v, nil
}

// optionalFloat is float for a column that may be blank; blank yields 0.
func (t *table) optionalFloat(i int, col string) (float64, error) {
	if t.field(i, col) == "" {
		return 0, nil
	}
	return t.float(i, col)
}

// optionalBool parses a column that may be blank; blank yields false.
func (t *table) optionalBool(i int, col string) (bool, error) {
	raw := t.field(i, col)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, core.Invalidf("%s line %d: %s %q is not a boolean", t.path, t.line(i), col, raw)
	}
	return v, nil
}

func (t *table) text(i int, col string) (string, error) {
	s := t.field(i, col)
	if s == "" {
		return "", core.Invalidf("%s line %d: empty %s", t.path, t.line(i), col)
	}
	return s, nil
}

// writeTable encodes rows as CSV under the given header.
func writeTable(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func decodeParquet[T any](path string, data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, core.Invalidf("%s: reading parquet: %v", path, err)
	}
	return rows, nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, fmt.Errorf("writing parquet: %w", err)
	}
	return buf.Bytes(), nil
}

func parseRecordDate(path string, i int, s string) (time.Time, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, core.Invalidf("%s row %d: %v", path, i, err)
	}
	return d, nil
}
