package convert

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	nerrors "nids-console/internal/errors"
)

// Payload is the file part sent to the batch classifier.
type Payload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Normalize reads f and returns its CSV payload. CSV input passes through
// unchanged; XLSX input is converted from its first sheet. Conversion
// failures are returned as *errors.ConversionError and no payload is built.
func Normalize(f File) (*Payload, error) {
	format, err := DetectFormat(f.Name())
	if err != nil {
		return nil, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	switch format {
	case FormatXLSX:
		data, err := XLSXToCSV(rc)
		if err != nil {
			return nil, &nerrors.ConversionError{File: f.Name(), Err: err}
		}
		return &Payload{
			Filename:    CSVName(f.Name()),
			ContentType: CSVContentType,
			Data:        data,
		}, nil
	default:
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name(), err)
		}
		return &Payload{
			Filename:    f.Name(),
			ContentType: CSVContentType,
			Data:        data,
		}, nil
	}
}

// CSVName replaces a trailing .xlsx (any case) with .csv.
func CSVName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		return name[:len(name)-len(".xlsx")] + ".csv"
	}
	return name
}

// XLSXToCSV converts the first sheet of a workbook to CSV text. Each row is
// padded to the widest row so the output is rectangular, and every record
// ends with a newline.
func XLSXToCSV(r io.Reader) ([]byte, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		record := make([]string, width)
		copy(record, row)
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
