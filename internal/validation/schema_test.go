package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRegistryJSON = `{
  "models": {
    "telecom": {
      "domain_name": "Telecom",
      "model_location": "telecom_model.churnkit",
      "preprocessor_location": "telecom_model.churnkit",
      "training_columns": ["customerID", "tenure", "Churn"],
      "target_column": "Churn",
      "feature_count": 3,
      "sample_count": 100,
      "created_at": "2026-01-02T03:04:05Z"
    }
  }
}`

func TestValidateRegistryBytes(t *testing.T) {
	assert.Empty(t, ValidateRegistryBytes([]byte(validRegistryJSON)))
	assert.Empty(t, ValidateRegistryBytes([]byte(`{"models": {}}`)))

	errs := ValidateRegistryBytes([]byte(`{"models": {"x": {"domain_name": "x"}}}`))
	require.NotEmpty(t, errs)
	assert.True(t, strings.HasPrefix(errs[0], "/models/x"), errs[0])

	errs = ValidateRegistryBytes([]byte(`{not json`))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "JSON parse error")
}

func TestValidateConfigBytes(t *testing.T) {
	valid := `
model:
  family: random_forest
  test_size: 0.2
  cv_folds: 5
  hyperparameters:
    n_estimators: 50
mapping:
  mode: hybrid
  overrides:
    Churn: target
llm:
  engine: mock
storage:
  backend: file
`
	assert.Empty(t, ValidateConfigBytes([]byte(valid)))
	assert.Empty(t, ValidateConfigBytes([]byte("")))

	invalid := `
model:
  family: svm
  cv_folds: 1
unknown_section: true
`
	errs := ValidateConfigBytes([]byte(invalid))
	assert.GreaterOrEqual(t, len(errs), 3)

	errs = ValidateConfigBytes([]byte("model: [unclosed"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "YAML parse error")
}

func TestValidateMappingBytes(t *testing.T) {
	assert.Empty(t, ValidateMappingBytes([]byte(`
mappings:
  Churn: {type: target, confidence: 1}
  tenure: {type: tenure}
unmapped: [gender]
`)))
	assert.NotEmpty(t, ValidateMappingBytes([]byte(`
mappings:
  Churn: {type: label}
`)))
}

func TestValidateCollaboratorResponses(t *testing.T) {
	assert.Empty(t, ValidateSuggestionsJSON([]byte(`{"suggestions": {"a": "id"}, "insights": "x"}`)))
	assert.NotEmpty(t, ValidateSuggestionsJSON([]byte(`{"suggestions": {"a": 3}}`)))

	assert.Empty(t, ValidateDomainJSON([]byte(`{"domain": "Telecom", "confidence": 0.9}`)))
	assert.NotEmpty(t, ValidateDomainJSON([]byte(`{"domain": ""}`)))

	assert.Empty(t, ValidateActionsJSON([]byte(`{"personalized_actions": ["Call the customer"], "priority": "high"}`)))
	assert.NotEmpty(t, ValidateActionsJSON([]byte(`{"personalized_actions": "Call"}`)))
}
