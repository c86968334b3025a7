// Package validation checks that a dataset is usable for churn modeling: a
// schema validator over column mappings, a file-level pre-flight validator,
// and JSON-schema checks for the documents the tool reads and writes.
package validation

import (
	"context"
	"fmt"
	"math"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/statistics"
)

const (
	minReliableRows     = 100
	minorityClassPct    = 10.0
	highMissingPct      = 20.0
	moderateMissingPct  = 5.0
	nonNumericShare     = 0.1
	outlierIQRFactor    = 3.0
	outlierShare        = 0.05
	maxMissingPenalty   = 30.0
	maxDuplicatePenalty = 10.0
)

// Result is the outcome of SchemaValidator.Validate.
type Result struct {
	IsValid      bool                  `json:"is_valid"`
	Errors       []string              `json:"errors"`
	Warnings     []string              `json:"warnings"`
	Mapping      *mapper.MappingResult `json:"mapping,omitempty"`
	QualityScore float64               `json:"data_quality_score"`
}

func (r *Result) fail(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Options tunes validation.
type Options struct {
	// Strict turns missing recommended roles into errors.
	Strict bool
	// UseSemantic lets the mapper consult its suggester when the mapping is
	// computed by the validator.
	UseSemantic bool
}

// SchemaValidator checks role coverage, the target column and data quality.
type SchemaValidator struct {
	mapper *mapper.Mapper
}

// NewSchemaValidator creates a validator. A nil mapper uses mapper.New().
func NewSchemaValidator(m *mapper.Mapper) *SchemaValidator {
	if m == nil {
		m = mapper.New()
	}
	return &SchemaValidator{mapper: m}
}

// Validate runs every check against frame. When mapping is nil it is computed
// in auto mode. All checks run; none stops another.
func (v *SchemaValidator) Validate(ctx context.Context, frame *dataset.Frame, mapping *mapper.MappingResult, opts Options) (*Result, error) {
	res := &Result{IsValid: true, Errors: []string{}, Warnings: []string{}}

	if mapping == nil {
		m, err := v.mapper.Map(ctx, frame, mapper.Request{Mode: mapper.ModeAuto, UseSemantic: opts.UseSemantic})
		if err != nil {
			return nil, fmt.Errorf("mapping columns: %w", err)
		}
		mapping = m
	}
	res.Mapping = mapping

	for _, role := range schema.RequiredRoles {
		if !mapping.HasRole(role) {
			res.fail(fmt.Sprintf("Missing required column type: %s. Please ensure your dataset has a column for '%s'",
				role, schema.Describe(role)))
		}
	}

	for _, role := range schema.RecommendedRoles {
		if mapping.HasRole(role) {
			continue
		}
		msg := fmt.Sprintf("Recommended column type not found: %s", role)
		if opts.Strict {
			res.fail(msg)
		} else {
			res.warn(msg)
		}
	}

	if target, ok := mapping.FirstByRole(schema.RoleTarget); ok {
		if col, ok := frame.Column(target); ok {
			checkTargetValues(res, col)
		}
	}

	res.QualityScore = qualityScore(res, frame, mapping)

	if frame.Len() < minReliableRows {
		res.warn(fmt.Sprintf("Dataset has only %d rows. Predictions may be less reliable with small datasets.", frame.Len()))
	}
	return res, nil
}

func checkTargetValues(res *Result, col *dataset.Column) {
	n := col.Len()
	if n == 0 {
		return
	}
	if missing := col.NullCount(); missing > 0 {
		pct := float64(missing) / float64(n) * 100
		res.fail(fmt.Sprintf("Target column has %.1f%% missing values. Target column must not have missing values.", pct))
	}

	counts := map[string]int{}
	present := 0
	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			continue
		}
		counts[col.Text(i)]++
		present++
	}

	switch {
	case len(counts) > 2:
		res.warn(fmt.Sprintf("Target column has %d unique values. Expected binary (0/1 or Yes/No).", len(counts)))
	case len(counts) == 2:
		minority := present
		for _, c := range counts {
			minority = min(minority, c)
		}
		pct := float64(minority) / float64(present) * 100
		if pct < minorityClassPct {
			res.warn(fmt.Sprintf("Severe class imbalance detected: minority class is only %.1f%%. Consider using techniques like SMOTE or class weights.", pct))
		}
	}
}

func qualityScore(res *Result, frame *dataset.Frame, mapping *mapper.MappingResult) float64 {
	score := 100.0

	if cells := frame.CellCount(); cells > 0 {
		pct := float64(frame.NullCount()) / float64(cells) * 100
		switch {
		case pct > highMissingPct:
			res.warn(fmt.Sprintf("High missing value rate: %.1f%% of data is missing.", pct))
			score -= math.Min(maxMissingPenalty, pct)
		case pct > moderateMissingPct:
			res.warn(fmt.Sprintf("Moderate missing values: %.1f%% of data is missing.", pct))
			score -= pct
		}
	}

	if dups := frame.DuplicateRows(); dups > 0 {
		pct := float64(dups) / float64(frame.Len()) * 100
		res.warn(fmt.Sprintf("Found %d duplicate rows (%.1f%%).", dups, pct))
		score -= math.Min(maxDuplicatePenalty, pct)
	}

	rows := float64(frame.Len())
	for _, m := range mapping.Mappings {
		if !m.Role.IsNumeric() {
			continue
		}
		col, ok := frame.Column(m.SourceColumn)
		if !ok {
			continue
		}
		if col.Kind != dataset.Numeric {
			coerced := col.Coerce()
			nan := 0
			for _, v := range coerced {
				if math.IsNaN(v) {
					nan++
				}
			}
			if float64(nan) > rows*nonNumericShare {
				res.warn(fmt.Sprintf("Column '%s' mapped as numeric but contains non-numeric values.", col.Name))
			}
			continue
		}

		vals := col.Floats()
		for _, x := range vals {
			if x < 0 {
				res.warn(fmt.Sprintf("Column '%s' contains negative values.", col.Name))
				break
			}
		}
		if out := statistics.OutlierCount(vals, outlierIQRFactor); float64(out) > rows*outlierShare {
			res.warn(fmt.Sprintf("Column '%s' has %d potential outliers.", col.Name, out))
		}
	}

	return math.Max(0, score)
}
