package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/churnkit/internal/dataset"
)

// Status is the outcome of one pre-flight check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
)

// Issue is a single pre-flight finding.
type Issue struct {
	Check   string `json:"check"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Column  string `json:"column,omitempty"`
	Details string `json:"details,omitempty"`
	Fix     string `json:"fix,omitempty"`
}

// ColumnStats summarizes one column of a checked file.
type ColumnStats struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	NonNull    int      `json:"non_null"`
	MissingPct float64  `json:"missing_pct"`
	Distinct   int      `json:"distinct"`
	Sample     []string `json:"sample"`
}

// DatasetReport is the outcome of DatasetValidator.Validate.
type DatasetReport struct {
	Path          string        `json:"path"`
	IsValid       bool          `json:"is_valid"`
	CanTrain      bool          `json:"can_train"`
	CanPredict    bool          `json:"can_predict"`
	Rows          int           `json:"rows"`
	TargetColumn  string        `json:"target_column,omitempty"`
	Issues        []Issue       `json:"issues"`
	ColumnSummary []ColumnStats `json:"column_summary"`
}

// Count returns the number of issues with the given status.
func (r *DatasetReport) Count(s Status) int {
	n := 0
	for _, i := range r.Issues {
		if i.Status == s {
			n++
		}
	}
	return n
}

func (r *DatasetReport) add(i Issue) {
	r.Issues = append(r.Issues, i)
}

// TargetPatterns are the name fragments that identify a churn label column.
var TargetPatterns = []string{
	"churn", "churned", "attrition", "attrited", "exited", "left",
	"cancelled", "canceled", "target", "label", "outcome",
}

const (
	checkFileExists   = "file_exists"
	checkFileReadable = "file_readable"
	checkRowCount     = "row_count"
	checkColumnCount  = "column_count"
	checkDuplicates   = "duplicate_columns"
	checkTarget       = "target_column"
	checkMissing      = "missing_values"
	checkSpecialChars = "special_characters"
	checkNumericText  = "numeric_as_string"
	checkVariance     = "column_variance"
)

// DatasetValidator runs file-level pre-flight checks before any mapping.
type DatasetValidator struct{}

// NewDatasetValidator creates a DatasetValidator.
func NewDatasetValidator() *DatasetValidator {
	return &DatasetValidator{}
}

// Validate checks the CSV file at path.
func (v *DatasetValidator) Validate(path string) *DatasetReport {
	report := &DatasetReport{Path: path, IsValid: true, CanTrain: true, CanPredict: true}
	defer settle(report)

	if _, err := os.Stat(path); err != nil {
		msg := fmt.Sprintf("Cannot access file: %s", path)
		if errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("File not found: %s", path)
		}
		report.add(Issue{Check: checkFileExists, Status: StatusFail, Message: msg, Fix: "Check the file path is correct"})
		return report
	}
	report.add(Issue{Check: checkFileExists, Status: StatusPass, Message: "File exists and is accessible"})

	table, err := dataset.LoadTable(path)
	if err != nil {
		msg := truncate(fmt.Sprintf("CSV parsing error: %v", err), 120)
		fix := "Check for consistent delimiters and proper CSV formatting"
		if errors.Is(err, dataset.ErrEmpty) {
			msg, fix = "File is empty", "Ensure the CSV file contains data"
		}
		report.add(Issue{Check: checkFileReadable, Status: StatusFail, Message: msg, Fix: fix})
		return report
	}

	frame, err := dataset.FromRecords(uniqueHeader(table.Header), table.Records)
	if err != nil {
		report.add(Issue{Check: checkFileReadable, Status: StatusFail,
			Message: truncate(fmt.Sprintf("Error reading file: %v", err), 120),
			Fix:     "Check file format and try re-exporting from source"})
		return report
	}
	report.Rows = frame.Len()
	report.add(Issue{Check: checkFileReadable, Status: StatusPass,
		Message: fmt.Sprintf("Successfully loaded %d rows, %d columns", frame.Len(), frame.Width())})

	checkRows(report, frame)
	checkColumns(report, frame)
	checkDuplicateNames(report, table.Header)
	checkTargetColumn(report, frame)
	checkMissingValues(report, frame)
	checkColumnNames(report, frame)
	checkNumericAsText(report, frame)
	checkConstantColumns(report, frame)

	report.ColumnSummary = summarizeColumns(frame)
	return report
}

// settle derives the train/predict flags from the issues.
func settle(r *DatasetReport) {
	for _, i := range r.Issues {
		if i.Status != StatusFail {
			continue
		}
		r.CanTrain = false
		if i.Check != checkTarget {
			r.CanPredict = false
			r.IsValid = false
		}
	}
}

func checkRows(r *DatasetReport, f *dataset.Frame) {
	switch n := f.Len(); {
	case n < 10:
		r.add(Issue{Check: checkRowCount, Status: StatusFail,
			Message: fmt.Sprintf("Too few rows (%d). Need at least 10 for training", n),
			Fix:     "Add more data or combine with another dataset"})
	case n < 100:
		r.add(Issue{Check: checkRowCount, Status: StatusWarning,
			Message: fmt.Sprintf("Low row count (%d). Recommend 100+ for reliable training", n),
			Fix:     "Consider gathering more training data"})
	default:
		r.add(Issue{Check: checkRowCount, Status: StatusPass, Message: fmt.Sprintf("Sufficient rows: %d", n)})
	}
}

func checkColumns(r *DatasetReport, f *dataset.Frame) {
	switch n := f.Width(); {
	case n < 2:
		r.add(Issue{Check: checkColumnCount, Status: StatusFail,
			Message: "Need at least 2 columns (features + target)",
			Fix:     "Ensure dataset has features and a target column"})
	case n > 100:
		r.add(Issue{Check: checkColumnCount, Status: StatusWarning,
			Message: fmt.Sprintf("High column count (%d). May slow processing", n),
			Fix:     "Consider feature selection to reduce dimensionality"})
	default:
		r.add(Issue{Check: checkColumnCount, Status: StatusPass, Message: fmt.Sprintf("Column count: %d", n)})
	}
}

func checkDuplicateNames(r *DatasetReport, header []string) {
	seen := map[string]bool{}
	var dups []string
	for _, h := range header {
		if seen[h] {
			dups = append(dups, h)
		}
		seen[h] = true
	}
	if len(dups) > 0 {
		r.add(Issue{Check: checkDuplicates, Status: StatusFail,
			Message: fmt.Sprintf("Duplicate column names: %s", listOf(dups, 5)),
			Fix:     "Rename duplicate columns to have unique names"})
		return
	}
	r.add(Issue{Check: checkDuplicates, Status: StatusPass, Message: "All column names are unique"})
}

// DetectTargetColumn returns the first column whose lower-cased name contains
// one of TargetPatterns.
func DetectTargetColumn(names []string) (string, bool) {
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, p := range TargetPatterns {
			if strings.Contains(lower, p) {
				return name, true
			}
		}
	}
	return "", false
}

func checkTargetColumn(r *DatasetReport, f *dataset.Frame) {
	target, ok := DetectTargetColumn(f.Names())
	if !ok {
		// A missing label only blocks training.
		r.CanTrain = false
		r.add(Issue{Check: checkTarget, Status: StatusWarning,
			Message: "No target column found (looking for: churn, attrition, exited, etc.)",
			Fix:     "Rename your target column to 'Churn' or similar"})
		return
	}
	r.TargetColumn = target
	col, _ := f.Column(target)
	switch n := len(col.Distinct()); {
	case n == 2:
		r.add(Issue{Check: checkTarget, Status: StatusPass, Column: target,
			Message: fmt.Sprintf("Target column found: '%s' (binary)", target)})
	case n < 10:
		r.add(Issue{Check: checkTarget, Status: StatusWarning, Column: target,
			Message: fmt.Sprintf("Target '%s' has %d unique values (expected 2 for binary)", target, n),
			Fix:     "Ensure target column is binary (0/1, Yes/No, True/False)"})
	default:
		r.add(Issue{Check: checkTarget, Status: StatusFail, Column: target,
			Message: fmt.Sprintf("Target '%s' has too many values (%d)", target, n),
			Fix:     "Target should be binary for churn prediction"})
	}
}

func checkMissingValues(r *DatasetReport, f *dataset.Frame) {
	if f.Len() == 0 {
		r.add(Issue{Check: checkMissing, Status: StatusPass, Message: "No missing values found"})
		return
	}
	var high, some []string
	for _, c := range f.Columns() {
		pct := float64(c.NullCount()) / float64(f.Len()) * 100
		if pct > 50 {
			high = append(high, c.Name)
		}
		if pct > 0 {
			some = append(some, c.Name)
		}
	}
	switch {
	case len(high) > 0:
		r.add(Issue{Check: checkMissing, Status: StatusWarning,
			Message: fmt.Sprintf("Columns with >50%% missing: %s", listOf(high, 5)),
			Fix:     "Consider dropping or imputing these columns"})
	case len(some) > 0:
		r.add(Issue{Check: checkMissing, Status: StatusPass,
			Message: fmt.Sprintf("Some missing values in %d columns (will be imputed)", len(some))})
	default:
		r.add(Issue{Check: checkMissing, Status: StatusPass, Message: "No missing values found"})
	}
}

func checkColumnNames(r *DatasetReport, f *dataset.Frame) {
	var bad []string
	for _, name := range f.Names() {
		if strings.ContainsAny(name, "\\/\n\t\r") {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		r.add(Issue{Check: checkSpecialChars, Status: StatusWarning,
			Message: fmt.Sprintf("Special characters in column names: %s", listOf(bad, 3)),
			Fix:     "Rename columns to use only alphanumeric and underscore"})
		return
	}
	r.add(Issue{Check: checkSpecialChars, Status: StatusPass, Message: "Column names are clean"})
}

func checkNumericAsText(r *DatasetReport, f *dataset.Frame) {
	var cols []string
	for _, c := range f.Columns() {
		if c.Kind != dataset.String {
			continue
		}
		sample := c.NonNull(100)
		if len(sample) == 0 {
			continue
		}
		numeric := 0
		for _, s := range sample {
			if !math.IsNaN(dataset.ParseNumber(s)) {
				numeric++
			}
		}
		if float64(numeric) > float64(len(sample))*0.8 {
			cols = append(cols, c.Name)
		}
	}
	if len(cols) > 0 {
		r.add(Issue{Check: checkNumericText, Status: StatusWarning,
			Message: fmt.Sprintf("Numeric data stored as text: %s", listOf(cols, 5)),
			Details: strings.Join(cols, ", "),
			Fix:     "System will auto-convert, but explicit conversion is cleaner"})
		return
	}
	r.add(Issue{Check: checkNumericText, Status: StatusPass, Message: "Numeric columns have correct data type"})
}

func checkConstantColumns(r *DatasetReport, f *dataset.Frame) {
	var cols []string
	for _, c := range f.Columns() {
		if len(c.Distinct()) <= 1 {
			cols = append(cols, c.Name)
		}
	}
	if len(cols) > 0 {
		r.add(Issue{Check: checkVariance, Status: StatusWarning,
			Message: fmt.Sprintf("Constant columns (no variance): %s", listOf(cols, 5)),
			Fix:     "These columns will be ignored as they provide no information"})
		return
	}
	r.add(Issue{Check: checkVariance, Status: StatusPass, Message: "All columns have variance"})
}

func summarizeColumns(f *dataset.Frame) []ColumnStats {
	out := make([]ColumnStats, 0, f.Width())
	for _, c := range f.Columns() {
		missing := c.NullCount()
		pct := 0.0
		if f.Len() > 0 {
			pct = math.Round(float64(missing)/float64(f.Len())*1000) / 10
		}
		out = append(out, ColumnStats{
			Name:       c.Name,
			Kind:       c.Kind.String(),
			NonNull:    c.Len() - missing,
			MissingPct: pct,
			Distinct:   len(c.Distinct()),
			Sample:     c.NonNull(3),
		})
	}
	return out
}

// uniqueHeader suffixes repeated names (".1", ".2") so a frame can be built
// from a header with duplicates.
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	used := map[string]bool{}
	suffix := map[string]int{}
	for i, h := range header {
		name := h
		for used[name] {
			suffix[h]++
			name = fmt.Sprintf("%s.%d", h, suffix[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func listOf(items []string, limit int) string {
	if len(items) > limit {
		items = items[:limit]
	}
	return strings.Join(items, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Summary renders the report for terminal output.
func (r *DatasetReport) Summary() string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("DATASET VALIDATION REPORT\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "\nFile: %s\n", filepath.Base(r.Path))

	if r.IsValid {
		b.WriteString("✅ Status: VALID - Ready for processing\n")
	} else {
		b.WriteString("❌ Status: INVALID - Issues need fixing\n")
	}
	fmt.Fprintf(&b, "   Can Train: %s\n", mark(r.CanTrain))
	fmt.Fprintf(&b, "   Can Predict: %s\n", mark(r.CanPredict))

	if len(r.ColumnSummary) > 0 {
		numeric := 0
		for _, c := range r.ColumnSummary {
			if c.Kind == dataset.Numeric.String() {
				numeric++
			}
		}
		b.WriteString("\nColumns Detected:\n")
		fmt.Fprintf(&b, "   Total: %d\n", len(r.ColumnSummary))
		fmt.Fprintf(&b, "   Numeric: %d\n", numeric)
		fmt.Fprintf(&b, "   Categorical: %d\n", len(r.ColumnSummary)-numeric)
		target := "✗ Not found"
		if r.TargetColumn != "" {
			target = "✓ " + r.TargetColumn
		}
		fmt.Fprintf(&b, "   Target: %s\n", target)
	}

	writeIssues := func(title string, status Status, fixLabel string, limit int) {
		var list []Issue
		for _, i := range r.Issues {
			if i.Status == status {
				list = append(list, i)
			}
		}
		if len(list) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s (%d):\n", title, len(list))
		for k, i := range list {
			if limit > 0 && k == limit {
				fmt.Fprintf(&b, "   ... and %d more checks passed\n", len(list)-limit)
				break
			}
			fmt.Fprintf(&b, "   • %s\n", i.Message)
			if i.Fix != "" && fixLabel != "" {
				fmt.Fprintf(&b, "     %s: %s\n", fixLabel, i.Fix)
			}
		}
	}
	writeIssues("❌ FAILURES", StatusFail, "Fix", 0)
	writeIssues("⚠️  WARNINGS", StatusWarning, "Suggestion", 0)
	if r.Count(StatusFail) == 0 {
		writeIssues("✅ PASSED", StatusPass, "", 5)
	}

	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
