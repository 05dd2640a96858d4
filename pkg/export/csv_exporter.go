package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Dataset is one tabular export: column keys in order and rows keyed by column.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// ErrNoColumns is returned when a dataset declares no headers.
var ErrNoColumns = errors.New("export: dataset has no columns")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter writes datasets as RFC 4180 CSV.
type CSVExporter struct {
	bom bool
}

// CSVOption customises a CSVExporter.
type CSVOption func(*CSVExporter)

// WithBOM prefixes output with a UTF-8 byte order mark so spreadsheet tools detect the
// encoding of non-Latin names.
func WithBOM() CSVOption {
	return func(e *CSVExporter) { e.bom = true }
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render returns the dataset as CSV bytes.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w. Cells that a spreadsheet would evaluate as a formula are
// prefixed with a single quote.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return ErrNoColumns
	}
	if e.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(data.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, col := range data.Headers {
			record[i] = neutralise(row[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", n+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func neutralise(cell string) string {
	if cell != "" && strings.IndexByte("=+-@\t\r", cell[0]) >= 0 {
		return "'" + cell
	}
	return cell
}
