package interchange

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
)

// Format selects the backup encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts csv, xlsx and parquet in any case. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Filename embeds the export date, e.g. pacientes_respaldo_2024-05-01.csv.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("pacientes_respaldo_%s.%s", now.Format(time.DateOnly), f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) write(w io.Writer, records []ExportRecord) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatParquet:
		return WriteParquet(w, records)
	case FormatCSV, "":
		return WriteCSV(w, records)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

const exportSheet = "Pacientes"

// WriteXLSX writes the records to a single-sheet workbook, header first.
func WriteXLSX(w io.Writer, records []ExportRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	if err := sw.SetRow("A1", toCells(ExportHeaders)); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(r.Values())); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush xlsx: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// WriteParquet writes the records as one Snappy-compressed row group.
func WriteParquet(w io.Writer, records []ExportRecord) error {
	writer := parquet.NewGenericWriter[ExportRecord](w,
		parquet.Compression(&parquet.Snappy),
	)
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("write parquet records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
