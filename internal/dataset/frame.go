// Package dataset holds the in-memory tabular representation consumed by the
// mapping, validation, preprocessing and signal packages.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the storage type of a column.
type Kind int

const (
	// String columns hold raw cell text; the empty string is a missing cell.
	String Kind = iota
	// Numeric columns hold float64 values; NaN is a missing cell.
	Numeric
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "string"
}

// Row is a single record with column name to value mapping. Numeric cells are
// rendered in their shortest round-trip form; missing cells are "".
type Row map[string]string

// Column is a named, typed vector of cells.
type Column struct {
	Name string
	Kind Kind

	num []float64
	str []string
}

// NewNumericColumn creates a numeric column. NaN entries are missing.
func NewNumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, num: values}
}

// NewStringColumn creates a string column. Empty entries are missing.
func NewStringColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: String, str: values}
}

// InferColumn builds a column from raw cells, choosing Numeric when every
// non-empty cell parses as a float.
func InferColumn(name string, cells []string) *Column {
	nums := make([]float64, len(cells))
	for i, c := range cells {
		if c == "" {
			nums[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return NewStringColumn(name, cells)
		}
		nums[i] = v
	}
	return NewNumericColumn(name, nums)
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.num)
	}
	return len(c.str)
}

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.num[i])
	}
	return c.str[i] == ""
}

// Float returns the numeric value of cell i. ok is false for missing cells and
// for string columns.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.Kind != Numeric || math.IsNaN(c.num[i]) {
		return math.NaN(), false
	}
	return c.num[i], true
}

// Text returns the string form of cell i, "" when missing.
func (c *Column) Text(i int) string {
	if c.Kind == Numeric {
		return FormatFloat(c.num[i])
	}
	return c.str[i]
}

// Floats returns the underlying numeric values. Nil for string columns.
func (c *Column) Floats() []float64 {
	return c.num
}

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Distinct returns the distinct non-missing values in first-seen order.
func (c *Column) Distinct() []string {
	seen := map[string]bool{}
	var out []string
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		t := c.Text(i)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// NonNull returns up to limit non-missing values in row order. limit <= 0
// returns all of them.
func (c *Column) NonNull(limit int) []string {
	var out []string
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		out = append(out, c.Text(i))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Coerce returns a numeric view of the column. Numeric columns are copied;
// string cells are trimmed and parsed, with whitespace-only and unparsable
// cells becoming NaN.
func (c *Column) Coerce() []float64 {
	out := make([]float64, c.Len())
	if c.Kind == Numeric {
		copy(out, c.num)
		return out
	}
	for i, s := range c.str {
		out[i] = ParseNumber(s)
	}
	return out
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewFrame assembles columns into a frame. Column names must be unique and all
// columns must have the same length.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("dataset: column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
		f.index[c.Name] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// FromRecords builds a frame from a header and string records, inferring each
// column's kind.
func FromRecords(header []string, records [][]string) (*Frame, error) {
	cols := make([]*Column, len(header))
	for j, h := range header {
		cells := make([]string, len(records))
		for i, rec := range records {
			if len(rec) != len(header) {
				return nil, fmt.Errorf("dataset: row %d has %d columns, expected %d", i+1, len(rec), len(header))
			}
			cells[i] = rec[j]
		}
		cols[j] = InferColumn(h, cells)
	}
	return NewFrame(cols...)
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column { return f.cols }

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Has reports whether the frame has a column with the given name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// IndexOf returns the position of a column, or -1.
func (f *Frame) IndexOf(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// Row returns record i as a Row.
func (f *Frame) Row(i int) Row {
	row := make(Row, len(f.cols))
	for _, c := range f.cols {
		row[c.Name] = c.Text(i)
	}
	return row
}

// Rows returns every record in order.
func (f *Frame) Rows() []Row {
	out := make([]Row, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// Take returns a new frame holding the given row indices, in that order.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for j, c := range f.cols {
		if c.Kind == Numeric {
			vals := make([]float64, len(idx))
			for k, i := range idx {
				vals[k] = c.num[i]
			}
			cols[j] = NewNumericColumn(c.Name, vals)
		} else {
			vals := make([]string, len(idx))
			for k, i := range idx {
				vals[k] = c.str[i]
			}
			cols[j] = NewStringColumn(c.Name, vals)
		}
	}
	out, _ := NewFrame(cols...)
	return out
}

// CellCount returns rows × columns.
func (f *Frame) CellCount() int { return f.rows * len(f.cols) }

// NullCount returns the number of missing cells across the frame.
func (f *Frame) NullCount() int {
	n := 0
	for _, c := range f.cols {
		n += c.NullCount()
	}
	return n
}

// DuplicateRows counts rows that repeat an earlier row exactly.
func (f *Frame) DuplicateRows() int {
	seen := make(map[string]bool, f.rows)
	dups := 0
	var b strings.Builder
	for i := 0; i < f.rows; i++ {
		b.Reset()
		for _, c := range f.cols {
			if c.IsNull(i) {
				b.WriteString("\x00")
			} else {
				b.WriteString(c.Text(i))
			}
			b.WriteByte(0x1f)
		}
		k := b.String()
		if seen[k] {
			dups++
			continue
		}
		seen[k] = true
	}
	return dups
}

// FormatFloat renders v in its shortest round-trip form, "" for NaN.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseNumber trims s and parses it as a float, returning NaN when s is blank
// or not a number.
func ParseNumber(s string) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
