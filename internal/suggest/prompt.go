package suggest

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/template"
)

// Limits on how much of a dataset or customer is put into a prompt.
const (
	domainColumns    = 10
	domainSampleCols = 3
	domainSampleVals = 2
	maxDomainLength  = 50

	customerFields  = 10
	narrativeFields = 8
	actionSignals   = 5
	summarySignals  = 3
	storySignals    = 3
)

var roleHints = map[schema.Role]string{
	schema.RoleID:          "Unique identifier",
	schema.RoleTarget:      "Churn label (the thing we're predicting)",
	schema.RoleTenure:      "Customer duration/relationship length",
	schema.RoleCostMonthly: "Monthly/recurring charges",
	schema.RoleCostTotal:   "Total/cumulative charges",
	schema.RoleContract:    "Commitment/subscription type",
	schema.RoleCategorical: "Service or feature category",
	schema.RoleBinary:      "Yes/No feature",
	schema.RoleNumeric:     "Other numeric value",
}

var columnsPrompt = template.MustParse(KindColumns, `Analyze these dataset columns for a churn prediction system.

Columns:
{{.Vars.columns}}

For each column, suggest one of these types:
{{.Vars.roles}}

Respond in JSON format:
{
    "suggestions": {"column_name": "type", ...},
    "insights": "Brief description of the dataset domain and key churn indicators"
}
`)

var domainPrompt = template.MustParse(KindDomain, `Dataset domain? Columns: {{.Vars.columns}}
Sample: {{.Vars.sample}}
Name the business domain (e.g., "Telecom churn", "Banking", "HR attrition"). Max 4 words.

Return JSON only:
{"domain": "name", "confidence": 0.0, "key_indicators": ["column"]}
`)

var actionsPrompt = template.MustParse(KindActions, `Analyze customer and provide retention recommendations.
Customer: {{.Vars.customer}}
Churn Risk: {{.Vars.probability}}
Signals: {{.Vars.signals}}
{{if .Domain}}Domain: {{.Domain}}
{{end}}
Return JSON only:
{"risk_assessment": "1-2 sentences", "personalized_actions": ["action1", "action2", "action3"], "key_insights": "insight", "priority": "critical|high|medium|low"}
`)

var summaryPrompt = template.MustParse(KindSummary, `Write 2-paragraph executive summary:
- Total: {{.Vars.total}}, High Risk: {{.Vars.high}} ({{.Vars.high_share}})
- Avg Churn: {{.Vars.avg}}
- Distribution: {{.Vars.distribution}}
- Top Signals: {{.Vars.signals}}
{{if .Domain}}- Domain: {{.Domain}}
{{end}}
Include key findings and 2-3 recommendations. Use markdown.
`)

var narrativePrompt = template.MustParse(KindNarrative, `2 sentences on customer's churn risk:
Data: {{.Vars.customer}}
Prediction: {{.Vars.prediction}}, Probability: {{.Vars.probability}}
Signals: {{.Vars.signals}}
`)

func roleList() string {
	lines := make([]string, len(schema.Roles))
	for i, r := range schema.Roles {
		lines[i] = fmt.Sprintf("- %s: %s", r, roleHints[r])
	}
	return strings.Join(lines, "\n")
}

// firstFields keeps the first n fields of row in name order.
func firstFields(row map[string]string, n int) map[string]string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(map[string]string, min(n, len(keys)))
	for _, k := range keys[:min(n, len(keys))] {
		out[k] = row[k]
	}
	return out
}

func joinOrNone(items []string, n int) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items[:min(n, len(items))], ", ")
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
