package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"FlowSentry/internal/model"
)

// CSVWriter streams flow records in the line-oriented record format: a fixed
// column header first, then one line per terminated flow. It implements
// model.Writer.
type CSVWriter struct {
	file    *os.File
	w       *csv.Writer
	columns []string
}

// NewCSVWriter opens (or creates) the file at path and writes the header. An
// empty path writes to stdout.
func NewCSVWriter(path string, columns []string) (*CSVWriter, error) {
	if path == "" {
		return NewCSVWriterTo(os.Stdout, columns)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv output: %w", err)
	}
	w, err := NewCSVWriterTo(file, columns)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.file = file
	return w, nil
}

// NewCSVWriterTo writes records to an arbitrary writer. Used for stdout and
// in tests.
func NewCSVWriterTo(out io.Writer, columns []string) (*CSVWriter, error) {
	if len(columns) == 0 {
		columns = model.DefaultColumns
	}
	w := &CSVWriter{
		w:       csv.NewWriter(out),
		columns: columns,
	}
	if err := w.w.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	w.w.Flush()
	return w, w.w.Error()
}

// Write appends one flow record line.
func (w *CSVWriter) Write(record *model.FlowRecord) error {
	if err := w.w.Write(record.Fields(w.columns)); err != nil {
		return fmt.Errorf("failed to write csv record: %w", err)
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered lines and closes the file if one is owned.
func (w *CSVWriter) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
