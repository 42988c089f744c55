package extract

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/ppiankov/tntracker/internal/normalize"
)

// table is a CSV file with normalized headers
type table struct {
	headers []string
	index   map[string]int
	rows    [][]string
	lines   []int // 1-based source line per row
}

func readTable(data []byte) (*table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	t := &table{index: make(map[string]int, len(header))}
	for i, h := range header {
		key := normalize.Header(h)
		t.headers = append(t.headers, key)
		if _, dup := t.index[key]; !dup && key != "" {
			t.index[key] = i
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return t, err
		}
		line, _ := r.FieldPos(0)
		if isEmptyRow(row) {
			continue
		}
		t.rows = append(t.rows, row)
		t.lines = append(t.lines, line)
	}
	return t, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// has reports whether any alias is a header.
func (t *table) has(aliases ...string) bool {
	_, ok := t.column(aliases...)
	return ok
}

func (t *table) column(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := t.index[a]; ok {
			return i, true
		}
	}
	return 0, false
}

// get returns the first non-empty value among aliases and whether any alias
// column exists at all.
func (t *table) get(row []string, aliases ...string) (string, bool) {
	present := false
	for _, a := range aliases {
		i, ok := t.index[a]
		if !ok {
			continue
		}
		present = true
		if i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v, true
			}
		}
	}
	return "", present
}
