package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrEmpty is returned for CSV content without a header row.
var ErrEmpty = errors.New("empty (no header row)")

// LoadCSV reads a CSV file into a frame. The first row is treated as headers
// (column names).
func LoadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	frame, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", path, err)
	}
	return frame, nil
}

// ReadCSV parses CSV content into a frame.
func ReadCSV(r io.Reader) (*Frame, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	return FromRecords(t.Header, t.Records)
}

// Table is a header plus string records. It carries CSV content before kind
// inference and export rows after prediction.
type Table struct {
	Header  []string
	Records [][]string
}

// LoadTable reads a CSV file without building a frame, so callers can inspect
// headers that a frame would reject.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", path, err)
	}
	return t, nil
}

// ReadTable parses CSV content into a header and records.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrEmpty
	}

	return &Table{Header: records[0], Records: records[1:]}, nil
}

// Frame converts the table into a frame, inferring column kinds.
func (t *Table) Frame() (*Frame, error) {
	return FromRecords(t.Header, t.Records)
}

// WriteCSV writes a table as CSV.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	if err := cw.WriteAll(t.Records); err != nil {
		return fmt.Errorf("csv: write records: %w", err)
	}
	return nil
}

// SaveCSV writes a table to path, creating or truncating the file.
func SaveCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create %s: %w", path, err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}
