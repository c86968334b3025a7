// Package preprocess turns a mapped frame into a dense feature matrix. Feature
// columns are grouped into numeric, categorical and binary transforms based on
// their mapped role and observed values; the target is label-encoded.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/statistics"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNotFitted is returned when the preprocessor is used before Fit.
	ErrNotFitted = errors.New("preprocessor not fitted")
	// ErrNoTarget is returned when the mapping has no target column.
	ErrNoTarget = errors.New("no target column in mapping")
)

const (
	missingCategory   = "missing"
	maxBinaryDistinct = 2
	maxCategoricals   = 10
	// numericShare is the fraction of parseable cells above which the text
	// of a string column is normalized through its numeric value.
	numericShare = 0.5
)

// NumericFeature is the fitted state of one numeric column.
type NumericFeature struct {
	Column string  `json:"column"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
	// Coerce marks a column that held strings at fit time.
	Coerce bool `json:"coerce,omitempty"`
}

// CategoricalFeature is the fitted state of one one-hot encoded column.
type CategoricalFeature struct {
	Column     string   `json:"column"`
	Categories []string `json:"categories"`
	// Coerce marks a mostly-numeric string column whose cells are
	// normalized through their numeric value at fit and transform time.
	Coerce bool `json:"coerce,omitempty"`
}

// BinaryFeature is the fitted state of one binary column. With exactly two
// categories only the second is emitted.
type BinaryFeature struct {
	Column       string   `json:"column"`
	Categories   []string `json:"categories"`
	MostFrequent string   `json:"most_frequent"`
	Coerce       bool     `json:"coerce,omitempty"`
}

func (b BinaryFeature) collapsed() bool { return len(b.Categories) == 2 }

// State is the serializable fitted state of a Preprocessor.
type State struct {
	TargetColumn string               `json:"target_column"`
	Numeric      []NumericFeature     `json:"numeric"`
	Categorical  []CategoricalFeature `json:"categorical"`
	Binary       []BinaryFeature      `json:"binary"`
	Labels       []string             `json:"labels"`
}

// Summary describes the fitted column groups.
type Summary struct {
	NumericColumns     []string `json:"numeric_columns"`
	CategoricalColumns []string `json:"categorical_columns"`
	BinaryColumns      []string `json:"binary_columns"`
	TargetColumn       string   `json:"target_column"`
	TotalFeatures      int      `json:"total_features"`
}

// Preprocessor fits and applies per-group column transforms.
type Preprocessor struct {
	state  State
	fitted bool
}

// New returns an unfitted preprocessor.
func New() *Preprocessor {
	return &Preprocessor{}
}

// FromState restores a fitted preprocessor.
func FromState(s State) (*Preprocessor, error) {
	if s.TargetColumn == "" {
		return nil, ErrNoTarget
	}
	if len(s.Labels) == 0 {
		return nil, fmt.Errorf("preprocessor state: no target labels")
	}
	return &Preprocessor{state: s, fitted: true}, nil
}

// State returns the fitted state.
func (p *Preprocessor) State() State { return p.state }

// Fitted reports whether Fit or FromState succeeded.
func (p *Preprocessor) Fitted() bool { return p.fitted }

// Fit learns column groups, imputation values, scaling and encodings from
// frame. Rows with a missing target still contribute feature statistics.
func (p *Preprocessor) Fit(frame *dataset.Frame, mapping *mapper.MappingResult) error {
	target, ok := mapping.FirstByRole(schema.RoleTarget)
	if !ok {
		return ErrNoTarget
	}
	tcol, ok := frame.Column(target)
	if !ok {
		return fmt.Errorf("target column %q not in dataset", target)
	}

	st := State{TargetColumn: target}
	for _, col := range frame.Columns() {
		if col.Name == target {
			continue
		}
		switch groupOf(col, mapping.RoleOf(col.Name)) {
		case groupNumeric:
			st.Numeric = append(st.Numeric, fitNumeric(col))
		case groupCategorical:
			st.Categorical = append(st.Categorical, fitCategorical(col))
		case groupBinary:
			st.Binary = append(st.Binary, fitBinary(col))
		}
	}

	labels := cleanStrings(tcol)
	st.Labels = distinctSorted(labels)
	if len(st.Labels) == 0 {
		return fmt.Errorf("target column %q has no values", target)
	}

	p.state = st
	p.fitted = true
	return nil
}

// FitTransform fits on frame and returns its feature matrix.
func (p *Preprocessor) FitTransform(frame *dataset.Frame, mapping *mapper.MappingResult) ([][]float64, error) {
	if err := p.Fit(frame, mapping); err != nil {
		return nil, err
	}
	return p.Transform(frame)
}

// Transform builds the feature matrix for frame. Feature columns absent from
// frame are treated as entirely missing.
func (p *Preprocessor) Transform(frame *dataset.Frame) ([][]float64, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}
	n := frame.Len()
	width := len(p.FeatureNames())
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, 0, width)
	}

	for _, f := range p.state.Numeric {
		vals := numericView(frame, f.Column, n)
		for i, v := range vals {
			if math.IsNaN(v) {
				v = f.Median
			}
			out[i] = append(out[i], (v-f.Mean)/f.Scale)
		}
	}
	for _, f := range p.state.Categorical {
		vals := textView(frame, f.Column, n, f.Coerce)
		for i, v := range vals {
			if v == "" {
				v = missingCategory
			}
			out[i] = appendOneHot(out[i], f.Categories, v)
		}
	}
	for _, f := range p.state.Binary {
		vals := textView(frame, f.Column, n, f.Coerce)
		for i, v := range vals {
			if v == "" {
				v = f.MostFrequent
			}
			if f.collapsed() {
				out[i] = append(out[i], indicator(v == f.Categories[1]))
				continue
			}
			out[i] = appendOneHot(out[i], f.Categories, v)
		}
	}
	return out, nil
}

// EncodeTarget label-encodes the target column. Missing or unseen labels are
// an error.
func (p *Preprocessor) EncodeTarget(frame *dataset.Frame) ([]int, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}
	col, ok := frame.Column(p.state.TargetColumn)
	if !ok {
		return nil, fmt.Errorf("target column %q not in dataset", p.state.TargetColumn)
	}
	out := make([]int, col.Len())
	for i, v := range cleanStrings(col) {
		idx := slices.Index(p.state.Labels, v)
		if idx < 0 {
			if v == "" {
				return nil, fmt.Errorf("row %d: missing target value", i+1)
			}
			return nil, fmt.Errorf("row %d: unseen target label %q", i+1, v)
		}
		out[i] = idx
	}
	return out, nil
}

// DecodeTarget maps encoded labels back to their original strings.
func (p *Preprocessor) DecodeTarget(codes []int) ([]string, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(p.state.Labels) {
			return nil, fmt.Errorf("label code %d out of range [0,%d)", c, len(p.state.Labels))
		}
		out[i] = p.state.Labels[c]
	}
	return out, nil
}

// Labels returns the sorted target classes.
func (p *Preprocessor) Labels() []string { return slices.Clone(p.state.Labels) }

// TargetColumn returns the fitted target column name.
func (p *Preprocessor) TargetColumn() string { return p.state.TargetColumn }

// FeatureColumns returns the source columns in feature order.
func (p *Preprocessor) FeatureColumns() []string {
	var cols []string
	for _, f := range p.state.Numeric {
		cols = append(cols, f.Column)
	}
	for _, f := range p.state.Categorical {
		cols = append(cols, f.Column)
	}
	for _, f := range p.state.Binary {
		cols = append(cols, f.Column)
	}
	return cols
}

// FeatureNames returns one name per output column. One-hot columns are named
// "<column>_<category>".
func (p *Preprocessor) FeatureNames() []string {
	var names []string
	for _, f := range p.state.Numeric {
		names = append(names, f.Column)
	}
	for _, f := range p.state.Categorical {
		for _, c := range f.Categories {
			names = append(names, f.Column+"_"+c)
		}
	}
	for _, f := range p.state.Binary {
		if f.collapsed() {
			names = append(names, f.Column+"_"+f.Categories[1])
			continue
		}
		for _, c := range f.Categories {
			names = append(names, f.Column+"_"+c)
		}
	}
	return names
}

// ColumnSummary reports the fitted groups.
func (p *Preprocessor) ColumnSummary() Summary {
	s := Summary{
		NumericColumns:     []string{},
		CategoricalColumns: []string{},
		BinaryColumns:      []string{},
		TargetColumn:       p.state.TargetColumn,
		TotalFeatures:      len(p.FeatureNames()),
	}
	for _, f := range p.state.Numeric {
		s.NumericColumns = append(s.NumericColumns, f.Column)
	}
	for _, f := range p.state.Categorical {
		s.CategoricalColumns = append(s.CategoricalColumns, f.Column)
	}
	for _, f := range p.state.Binary {
		s.BinaryColumns = append(s.BinaryColumns, f.Column)
	}
	return s
}

type group int

const (
	groupNone group = iota
	groupNumeric
	groupCategorical
	groupBinary
)

func groupOf(col *dataset.Column, role schema.Role) group {
	switch {
	case role == schema.RoleID:
		return groupNone
	case role.IsNumeric():
		return groupNumeric
	case role == schema.RoleBinary:
		if col.Kind == dataset.Numeric {
			return groupNumeric
		}
		return groupBinary
	case role == schema.RoleCategorical || role == schema.RoleContract:
		if col.Kind == dataset.Numeric {
			return groupNumeric
		}
		return groupCategorical
	case role == schema.RoleTarget:
		return groupNone
	}

	if col.Kind == dataset.Numeric {
		return groupNumeric
	}
	switch n := len(col.Distinct()); {
	case n <= maxBinaryDistinct:
		return groupBinary
	case n <= maxCategoricals:
		return groupCategorical
	}
	return groupNone
}

func fitNumeric(col *dataset.Column) NumericFeature {
	f := NumericFeature{Column: col.Name, Coerce: col.Kind != dataset.Numeric}
	vals := col.Coerce()
	f.Median = statistics.Median(vals)
	if math.IsNaN(f.Median) {
		f.Median = 0
	}
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = f.Median
		}
	}
	f.Scale = 1
	if len(vals) > 0 {
		var variance float64
		f.Mean, variance = stat.PopMeanVariance(vals, nil)
		if sd := math.Sqrt(variance); sd > 0 {
			f.Scale = sd
		}
	}
	return f
}

func fitCategorical(col *dataset.Column) CategoricalFeature {
	coerce := mostlyNumeric(col)
	vals := cellText(col, coerce)
	for i, v := range vals {
		if v == "" {
			vals[i] = missingCategory
		}
	}
	return CategoricalFeature{Column: col.Name, Categories: distinctSorted(vals), Coerce: coerce}
}

func fitBinary(col *dataset.Column) BinaryFeature {
	coerce := mostlyNumeric(col)
	vals := cellText(col, coerce)
	mode := mostFrequent(vals)
	for i, v := range vals {
		if v == "" {
			vals[i] = mode
		}
	}
	return BinaryFeature{Column: col.Name, Categories: distinctSorted(vals), MostFrequent: mode, Coerce: coerce}
}

// cleanStrings returns the text of each cell with whitespace-only cells
// treated as missing.
func cleanStrings(col *dataset.Column) []string {
	out := make([]string, col.Len())
	for i := range out {
		t := col.Text(i)
		if strings.TrimSpace(t) == "" {
			t = ""
		}
		out[i] = t
	}
	return out
}

func distinctSorted(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// mostFrequent returns the most common non-missing value, the smallest on ties.
func mostFrequent(vals []string) string {
	counts := map[string]int{}
	for _, v := range vals {
		if v != "" {
			counts[v]++
		}
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

func numericView(frame *dataset.Frame, name string, n int) []float64 {
	col, ok := frame.Column(name)
	if !ok {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return col.Coerce()
}

// textView returns the cells of a categorical or binary column, normalized
// the way they were at fit time.
func textView(frame *dataset.Frame, name string, n int, coerce bool) []string {
	col, ok := frame.Column(name)
	if !ok {
		return make([]string, n)
	}
	return cellText(col, coerce)
}

// cellText returns the cells of col as text. With coerce every cell is
// rendered from its numeric value and unparseable cells become missing.
func cellText(col *dataset.Column, coerce bool) []string {
	if !coerce {
		return cleanStrings(col)
	}
	coerced := col.Coerce()
	out := make([]string, len(coerced))
	for i, v := range coerced {
		if !math.IsNaN(v) {
			out[i] = dataset.FormatFloat(v)
		}
	}
	return out
}

// mostlyNumeric reports whether more than numericShare of the cells of a
// string column parse as numbers.
func mostlyNumeric(col *dataset.Column) bool {
	if col.Kind != dataset.String || col.Len() == 0 {
		return false
	}
	parsed := 0
	for _, v := range col.Coerce() {
		if !math.IsNaN(v) {
			parsed++
		}
	}
	return float64(parsed) > numericShare*float64(col.Len())
}

func appendOneHot(row []float64, categories []string, v string) []float64 {
	for _, c := range categories {
		row = append(row, indicator(v == c))
	}
	return row
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
