// Package tabular reads spreadsheet exports (delimited text or XLSX
// workbooks) into header-keyed rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrEmpty is returned for input with no header row.
	ErrEmpty = errors.New("tabular: file is empty")
	// ErrNoRows is returned when the header row is the only row.
	ErrNoRows = errors.New("tabular: file has a header but no data rows")
)

const utf8BOM = "\uFEFF"

var zipMagic = []byte("PK\x03\x04")

// Row is one data row keyed by header. Line is the 1-based line of the row
// in the source file, counting the header as line 1.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the value under header and whether the column exists.
func (r Row) Get(header string) (string, bool) {
	v, ok := r.Values[header]
	return v, ok
}

// Table holds the header row in source order and the data rows.
type Table struct {
	Headers []string
	Rows    []Row
}

// Parse reads r fully and returns its table. XLSX is detected by the zip
// signature or an .xlsx filename; everything else is treated as delimited
// text.
func Parse(r io.Reader, filename string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tabular: read input: %w", err)
	}
	if bytes.HasPrefix(data, zipMagic) || strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return parseWorkbook(data)
	}
	return parseDelimited(data)
}

func parseDelimited(data []byte) (*Table, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(text, utf8BOM)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = SniffDelimiter(text)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var records [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tabular: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return build(records, lines)
}

func parseWorkbook(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tabular: open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("tabular: read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		lines := make([]int, len(rows))
		for i := range rows {
			lines[i] = i + 1
		}
		return build(rows, lines)
	}
	return nil, ErrEmpty
}

// build turns raw records into a Table. Blank records are skipped; short
// records are padded with empty values and extra cells beyond the header
// are ignored.
func build(records [][]string, lines []int) (*Table, error) {
	start := -1
	for i, rec := range records {
		if !blank(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrEmpty
	}

	headers := make([]string, len(records[start]))
	for i, h := range records[start] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}

	t := &Table{Headers: headers}
	for i := start + 1; i < len(records); i++ {
		rec := records[i]
		if blank(rec) {
			continue
		}
		row := Row{Line: lines[i], Values: make(map[string]string, len(headers))}
		for j, h := range headers {
			if h == "" {
				continue
			}
			var v string
			if j < len(rec) {
				v = rec[j]
			}
			// Repeated headers: the rightmost non-blank cell wins.
			if _, seen := row.Values[h]; !seen || strings.TrimSpace(v) != "" {
				row.Values[h] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, ErrNoRows
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// decodeText returns data as a string, decoding it as Windows-1252 when it
// is not valid UTF-8.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("tabular: decode windows-1252: %w", err)
	}
	return string(out), nil
}
