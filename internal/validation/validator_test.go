package validation

import (
	"context"
	"fmt"
	"testing"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/dataset/datasettest"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, f *dataset.Frame, opts Options) *Result {
	t.Helper()
	res, err := NewSchemaValidator(nil).Validate(context.Background(), f, nil, opts)
	require.NoError(t, err)
	return res
}

func TestValidate_CleanTelco(t *testing.T) {
	res := validate(t, datasettest.Telco(t, 200), Options{})

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 100.0, res.QualityScore)
	require.NotNil(t, res.Mapping)
	assert.True(t, res.Mapping.HasRole("target"))
}

func TestValidate_MissingTarget(t *testing.T) {
	header := datasettest.TelcoHeader[:len(datasettest.TelcoHeader)-1]
	var records [][]string
	for _, r := range datasettest.TelcoRecords(120, 1) {
		records = append(records, r[:len(r)-1])
	}
	res := validate(t, datasettest.Frame(t, header, records), Options{})

	assert.False(t, res.IsValid)
	assert.Equal(t, []string{
		"Missing required column type: target. Please ensure your dataset has a column for 'Churn indicator (target variable)'",
	}, res.Errors)
}

func TestValidate_RecommendedStrict(t *testing.T) {
	f := datasettest.Frame(t,
		[]string{"tenure", "Churn"},
		[][]string{{"1", "Yes"}, {"5", "No"}, {"9", "No"}, {"3", "Yes"}})

	lenient := validate(t, f, Options{})
	assert.True(t, lenient.IsValid)
	assert.Contains(t, lenient.Warnings, "Recommended column type not found: cost_monthly")
	assert.Contains(t, lenient.Warnings, "Recommended column type not found: contract")
	assert.Contains(t, lenient.Warnings, "Dataset has only 4 rows. Predictions may be less reliable with small datasets.")

	strict := validate(t, f, Options{Strict: true})
	assert.False(t, strict.IsValid)
	assert.Equal(t, []string{
		"Recommended column type not found: cost_monthly",
		"Recommended column type not found: contract",
	}, strict.Errors)
}

func TestValidate_TargetChecks(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		errors  []string
		warning string
	}{
		{
			name:   "missing values",
			values: []string{"Yes", "No", "", "No"},
			errors: []string{"Target column has 25.0% missing values. Target column must not have missing values."},
		},
		{
			name:    "multiclass",
			values:  []string{"a", "b", "c", "a"},
			warning: "Target column has 3 unique values. Expected binary (0/1 or Yes/No).",
		},
		{
			name:    "imbalance",
			values:  append([]string{"Yes"}, repeat("No", 19)...),
			warning: "Severe class imbalance detected: minority class is only 5.0%. Consider using techniques like SMOTE or class weights.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([][]string, len(tt.values))
			for i, v := range tt.values {
				records[i] = []string{fmt.Sprint(i + 1), v}
			}
			res := validate(t, datasettest.Frame(t, []string{"tenure", "Churn"}, records), Options{})
			if tt.errors != nil {
				assert.Equal(t, tt.errors, res.Errors)
				assert.False(t, res.IsValid)
			}
			if tt.warning != "" {
				assert.Contains(t, res.Warnings, tt.warning)
				assert.True(t, res.IsValid)
			}
		})
	}
}

func missingFrame(t *testing.T, missing int) *dataset.Frame {
	t.Helper()
	records := make([][]string, 10)
	for i := range records {
		records[i] = []string{fmt.Sprint(i + 1), "v" + fmt.Sprint(i), "w" + fmt.Sprint(i), "x" + fmt.Sprint(i), "y" + fmt.Sprint(i)}
	}
	for k := 0; k < missing; k++ {
		records[k%10][1+k/10] = ""
	}
	return datasettest.Frame(t, []string{"uid", "f1", "f2", "f3", "f4"}, records)
}

func TestValidate_MissingRateScoring(t *testing.T) {
	tests := []struct {
		missing int
		score   float64
		warning string
	}{
		{0, 100, ""},
		{5, 90, "Moderate missing values: 10.0% of data is missing."},
		{10, 80, "Moderate missing values: 20.0% of data is missing."},
		{11, 78, "High missing value rate: 22.0% of data is missing."},
		{16, 70, "High missing value rate: 32.0% of data is missing."},
	}
	prev := 101.0
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.missing), func(t *testing.T) {
			res := validate(t, missingFrame(t, tt.missing), Options{})
			assert.InDelta(t, tt.score, res.QualityScore, 1e-9)
			if tt.warning != "" {
				assert.Contains(t, res.Warnings, tt.warning)
			}
			assert.LessOrEqual(t, res.QualityScore, prev)
			prev = res.QualityScore
		})
	}
}

func TestValidate_NumericColumnChecks(t *testing.T) {
	records := [][]string{}
	for i := 0; i < 40; i++ {
		charge := fmt.Sprint(50 + i%5)
		records = append(records, []string{fmt.Sprint(i + 1), charge, "Yes", fmt.Sprint(i)})
	}
	records[0][1] = "-5"
	records[1][1] = "5000"
	records[2][1] = "9000"
	records[3][1] = "7000"
	f := datasettest.Frame(t, []string{"tenure", "MonthlyCharges", "Churn", "row"}, records)

	m, err := mapper.New().Map(context.Background(), f, mapper.Request{Mode: mapper.ModeAuto})
	require.NoError(t, err)

	res, err := NewSchemaValidator(nil).Validate(context.Background(), f, m, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "Column 'MonthlyCharges' contains negative values.")
	assert.Contains(t, res.Warnings, "Column 'MonthlyCharges' has 4 potential outliers.")
}

func TestValidate_NonNumericMappedColumn(t *testing.T) {
	records := [][]string{}
	for i := 0; i < 20; i++ {
		tenure := fmt.Sprint(i)
		if i%4 == 0 {
			tenure = "unknown"
		}
		records = append(records, []string{tenure, "No"})
	}
	records[0][1] = "Yes"
	res := validate(t, datasettest.Frame(t, []string{"tenure", "Churn"}, records), Options{})
	assert.Contains(t, res.Warnings, "Column 'tenure' mapped as numeric but contains non-numeric values.")
}

func TestValidate_DuplicateRows(t *testing.T) {
	records := [][]string{{"1", "Yes"}, {"1", "Yes"}, {"2", "No"}, {"3", "No"}}
	res := validate(t, datasettest.Frame(t, []string{"tenure", "Churn"}, records), Options{})
	assert.Contains(t, res.Warnings, "Found 1 duplicate rows (25.0%).")
	assert.InDelta(t, 90, res.QualityScore, 1e-9)
}

func TestReport(t *testing.T) {
	res := validate(t, missingFrame(t, 0), Options{})
	out := Report(res)
	assert.Contains(t, out, "DATASET VALIDATION REPORT")
	assert.Contains(t, out, "❌ INVALID")
	assert.Contains(t, out, "Data Quality Score: 100.0/100")
	assert.Contains(t, out, "uid → id (keyword")
	assert.Contains(t, out, "Missing required column type: tenure")
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
