package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spboyer/churnkit/internal/artifact"
	"github.com/spboyer/churnkit/internal/dataset/datasettest"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/projectconfig"
	"github.com/spboyer/churnkit/internal/recommend"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testConfig = `paths:
  models: models/
  output: out/
model:
  hyperparameters:
    n_estimators: 10
`

// newTestProject creates a project directory with a .churnkit.yaml and
// returns its path. extra is appended to the config.
func newTestProject(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".churnkit.yaml"), []byte(testConfig+extra), 0o644))
	return dir
}

func writeCSV(t *testing.T, path string, header []string, records [][]string) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := csv.NewWriter(f)
	require.NoError(t, w.Write(header))
	require.NoError(t, w.WriteAll(records))
	return path
}

func telcoFile(t *testing.T, dir string, n int, seed int64) string {
	t.Helper()
	return writeCSV(t, filepath.Join(dir, "customers.csv"), datasettest.TelcoHeader, datasettest.TelcoRecords(n, seed))
}

// runCLI runs the root command with --project-dir set to dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--project-dir", dir))
	err := cmd.Execute()
	return out.String(), err
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCheckCommand(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 150, 3)

	out, err := runCLI(t, dir, "check", data)
	require.NoError(t, err)
	assert.Contains(t, out, "DATASET VALIDATION REPORT")
}

func TestCheckCommand_MultipleFiles(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 150, 3)
	missing := filepath.Join(dir, "missing.csv")

	out, err := runCLI(t, dir, "check", data, missing)
	var validationErr *ValidationFailedError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "1 of 2 dataset(s) failed pre-flight checks", validationErr.Message)

	assert.Contains(t, out, "File")
	assert.Contains(t, out, "customers.csv")
	assert.Contains(t, out, "missing.csv")
}

func TestCheckCommand_JSON(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 150, 3)

	out, err := runCLI(t, dir, "check", data, "--format", "json")
	require.NoError(t, err)

	var reports []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, true, reports[0]["is_valid"])
	assert.Equal(t, data, reports[0]["path"])

	_, err = runCLI(t, dir, "check", data, "--format", "xml")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestMapCommand(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 50, 1)

	out, err := runCLI(t, dir, "map", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Column")
	assert.Contains(t, out, "Confidence")
	var found bool
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "tenure" {
			found = true
			assert.Equal(t, string(schema.RoleTenure), fields[1])
		}
	}
	assert.True(t, found, "tenure row missing from:\n%s", out)
}

func TestMapCommand_JSONWithOverride(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 50, 1)

	out, err := runCLI(t, dir, "map", "--data", data, "--format", "json", "--override", "Contract=categorical")
	require.NoError(t, err)

	var doc mapper.Export
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, schema.RoleTarget, doc.Mappings["Churn"].Type)
	assert.Equal(t, schema.RoleCategorical, doc.Mappings["Contract"].Type)
	assert.Equal(t, mapper.MethodManual, doc.Mappings["Contract"].Method)
}

func TestMapCommand_OutputAndOverridesFile(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 50, 1)

	_, err := runCLI(t, dir, "map", "--data", data, "--output", "mapping.yaml")
	require.NoError(t, err)

	saved := filepath.Join(dir, "out", "mapping.yaml")
	raw, err := os.ReadFile(saved)
	require.NoError(t, err)
	var doc mapper.Export
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, schema.RoleTenure, doc.Mappings["tenure"].Type)

	out, err := runCLI(t, dir, "map", "--data", data, "--mode", "manual", "--overrides-file", saved, "--format", "json")
	require.NoError(t, err)
	var reused mapper.Export
	require.NoError(t, json.Unmarshal([]byte(out), &reused))
	require.Len(t, reused.Mappings, len(doc.Mappings))
	for col, entry := range reused.Mappings {
		assert.Equal(t, doc.Mappings[col].Type, entry.Type, col)
		assert.Equal(t, mapper.MethodManual, entry.Method, col)
	}
}

func TestMapCommand_Rejects(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 20, 1)

	_, err := runCLI(t, dir, "map", "--data", data, "--override", "tenure")
	assert.ErrorContains(t, err, `invalid override "tenure"`)

	_, err = runCLI(t, dir, "map", "--data", data, "--mode", "guess")
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"mappings": {"tenure": {"type": "age"}}}`), 0o644))
	_, err = runCLI(t, dir, "map", "--data", data, "--overrides-file", bad)
	assert.ErrorContains(t, err, "invalid mapping file")

	_, err = runCLI(t, dir, "map")
	assert.Error(t, err, "--data is required")
}

func TestMapCommand_MockEngine(t *testing.T) {
	dir := newTestProject(t, "llm:\n  engine: mock\ncache:\n  enabled: false\n")
	data := telcoFile(t, dir, 30, 1)

	// The mock engine never returns JSON, so every column keeps its
	// heuristic role.
	out, err := runCLI(t, dir, "map", "--data", data, "--use-llm", "--format", "json")
	require.NoError(t, err)
	var doc mapper.Export
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, schema.RoleTarget, doc.Mappings["Churn"].Type)
	for col, entry := range doc.Mappings {
		assert.NotEqual(t, mapper.MethodSemantic, entry.Method, col)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 200, 2)

	out, err := runCLI(t, dir, "validate", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "DATASET VALIDATION REPORT")

	noTarget := writeCSV(t, filepath.Join(dir, "no_target.csv"),
		[]string{"customerID", "tenure", "MonthlyCharges"},
		[][]string{{"a", "1", "20.5"}, {"b", "12", "70"}, {"c", "40", "99.9"}})
	_, err = runCLI(t, dir, "validate", "--data", noTarget)
	var validationErr *ValidationFailedError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "dataset failed validation")
}

func TestTrainAndPredict(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 150, 4)

	out, err := runCLI(t, dir, "train", "--data", data, "--key", "telco.churnkit")
	require.NoError(t, err)
	assert.Contains(t, out, "MODEL TRAINING REPORT")
	assert.Contains(t, out, "Model saved as telco.churnkit")
	assert.FileExists(t, filepath.Join(dir, "models", "telco.churnkit"))

	t.Run("with recommendations", func(t *testing.T) {
		out, err := runCLI(t, dir, "predict", "--data", data, "--key", "telco.churnkit",
			"--output", "preds.csv", "--report", "report.md", "--html", "report.html")
		require.NoError(t, err)
		assert.Contains(t, out, "Customers analyzed: 150")
		assert.Contains(t, out, "Report written to")

		records := readCSV(t, filepath.Join(dir, "out", "preds.csv"))
		require.Len(t, records, 151)
		header := records[0]
		assert.Equal(t, datasettest.TelcoHeader, header[:len(datasettest.TelcoHeader)])
		assert.Equal(t, recommend.ExportColumns, header[len(datasettest.TelcoHeader):])

		report, err := os.ReadFile(filepath.Join(dir, "out", "report.md"))
		require.NoError(t, err)
		assert.NotEmpty(t, report)

		page, err := os.ReadFile(filepath.Join(dir, "out", "report.html"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(page), "<!DOCTYPE html>"))
		assert.Contains(t, string(page), "<title>Churn Analysis Report</title>")
	})

	t.Run("predictions only", func(t *testing.T) {
		out, err := runCLI(t, dir, "predict", "--data", data, "--key", "telco.churnkit",
			"--output", "scores.csv", "--no-recommendations")
		require.NoError(t, err)
		assert.Contains(t, out, "Scored 150 customers")

		records := readCSV(t, filepath.Join(dir, "out", "scores.csv"))
		require.Len(t, records, 151)
		header := records[0]
		assert.Equal(t, []string{"churn_probability", "churn_prediction"}, header[len(header)-2:])
		for _, rec := range records[1:] {
			assert.Contains(t, []string{"Yes", "No"}, rec[len(rec)-1])
		}
	})

	t.Run("rejects", func(t *testing.T) {
		_, err := runCLI(t, dir, "predict", "--data", data, "--key", "missing.churnkit", "--output", "x.csv")
		assert.ErrorIs(t, err, artifact.ErrNotFound)

		_, err = runCLI(t, dir, "predict", "--data", data, "--key", "telco.churnkit", "--output", "x.csv", "--threshold", "1.5")
		assert.ErrorContains(t, err, "threshold must be between 0 and 1")

		_, err = runCLI(t, dir, "predict", "--data", data, "--key", "telco.churnkit", "--output", "x.csv",
			"--no-recommendations", "--report", "r.md")
		assert.ErrorContains(t, err, "need recommendations")
	})
}

func TestTrainCommand_UnknownFamily(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 60, 4)

	_, err := runCLI(t, dir, "train", "--data", data, "--model", "xgboost")
	assert.ErrorContains(t, err, "unknown model type: xgboost")
}

func TestSmartCommand(t *testing.T) {
	for _, backend := range []string{"document", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			dir := newTestProject(t, "registry:\n  backend: "+backend+"\n  dsn: state/registry.db\n")
			data := telcoFile(t, dir, 150, 5)

			out, err := runCLI(t, dir, "smart", "--data", data)
			require.NoError(t, err)
			assert.Contains(t, out, "Outcome: trained")
			assert.Contains(t, out, `Registered domain "Telecom"`)

			out, err = runCLI(t, dir, "registry", "list")
			require.NoError(t, err)
			assert.Contains(t, out, "Telecom")
			assert.Contains(t, out, "telecom_model.churnkit")

			out, err = runCLI(t, dir, "smart", "--data", data, "--report", "smart.md")
			require.NoError(t, err)
			assert.Contains(t, out, "Outcome: predicted")
			assert.Contains(t, out, "Matched domain: Telecom")

			records := readCSV(t, filepath.Join(dir, "out", "smart_predictions.csv"))
			assert.Len(t, records, 151)
			assert.FileExists(t, filepath.Join(dir, "out", "smart.md"))
		})
	}
}

func TestSmartCommand_ForceFlagsExclusive(t *testing.T) {
	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 20, 5)

	_, err := runCLI(t, dir, "smart", "--data", data, "--force-train", "--force-predict")
	assert.Error(t, err)
}

func TestRegistryList(t *testing.T) {
	dir := newTestProject(t, "")

	out, err := runCLI(t, dir, "registry", "list")
	require.NoError(t, err)
	assert.Equal(t, "No domains registered.\n", out)

	out, err = runCLI(t, dir, "registry", "list", "--format", "json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "models")
}

func TestCacheClear(t *testing.T) {
	dir := newTestProject(t, "")
	cacheDir := filepath.Join(dir, "llm-cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "abc.json"), []byte(`{}`), 0o644))

	out, err := runCLI(t, dir, "cache", "clear", "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared: "+cacheDir)
	assert.NoFileExists(t, filepath.Join(cacheDir, "abc.json"))
}

func TestNewEngine(t *testing.T) {
	for _, name := range []string{"", "none"} {
		e, err := newEngine(projectconfig.LLMConfig{Engine: name})
		require.NoError(t, err)
		assert.Nil(t, e)
	}

	e, err := newEngine(projectconfig.LLMConfig{Engine: "mock", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.NotNil(t, e)

	_, err = newEngine(projectconfig.LLMConfig{Engine: "openai"})
	assert.EqualError(t, err, "unknown engine type: openai")
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		items   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", items: nil, want: map[string]string{}},
		{name: "trimmed", items: []string{" tenure = tenure ", "Plan=contract"}, want: map[string]string{"tenure": "tenure", "Plan": "contract"}},
		{name: "last wins", items: []string{"a=id", "a=numeric"}, want: map[string]string{"a": "numeric"}},
		{name: "missing separator", items: []string{"tenure"}, wantErr: true},
		{name: "missing role", items: []string{"tenure="}, wantErr: true},
		{name: "missing column", items: []string{"=id"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.items)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []string{"Name", "Value"}, [][]string{
		{"tenure", "1"},
		{"日本語", strings.Repeat("x", 60)},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Name    Value", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "─"))
	assert.Equal(t, "tenure  1", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "日本語  x"))
	assert.True(t, strings.HasSuffix(lines[3], "…"))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
	assert.Equal(t, "日本  ", padRight("日本", 6))
}

func TestTrainCommand_ShowsProgress(t *testing.T) {
	var messages []string
	stopped := 0
	orig := startSpinner
	startSpinner = func(_ io.Writer, message string) func() {
		messages = append(messages, message)
		return func() { stopped++ }
	}
	t.Cleanup(func() { startSpinner = orig })

	dir := newTestProject(t, "")
	data := telcoFile(t, dir, 120, 6)

	_, err := runCLI(t, dir, "train", "--data", data, "--model", "random_forest")
	require.NoError(t, err)
	assert.Equal(t, []string{"Training random_forest model on 120 rows..."}, messages)
	assert.Equal(t, 1, stopped)
	assert.FileExists(t, filepath.Join(dir, "models", defaultModelKey))
}
