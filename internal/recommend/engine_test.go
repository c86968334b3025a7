package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spboyer/churnkit/internal/actions"
	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/dataset/datasettest"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"customerID", "tenure", "MonthlyCharges", "Contract", "Churn"}

func customers(t *testing.T) (*dataset.Frame, *mapper.MappingResult) {
	t.Helper()
	frame := datasettest.Frame(t, header, [][]string{
		{"C1", "1", "10", "Month-to-month", "Yes"},
		{"C2", "2", "20", "One year", "No"},
		{"C3", "3", "30", "Two year", "No"},
		{"C4", "4", "40", "Month-to-month", "Yes"},
		{"C5", "5", "50", "One year", "No"},
		{"C6", "6", "60", "Two year", "No"},
		{"C7", "7", "70", "Month-to-month", "Yes"},
		{"C8", "8", "80", "One year", "No"},
	})
	m := &mapper.MappingResult{Mappings: []mapper.ColumnMapping{
		{SourceColumn: "customerID", Role: schema.RoleID},
		{SourceColumn: "tenure", Role: schema.RoleTenure},
		{SourceColumn: "MonthlyCharges", Role: schema.RoleCostMonthly},
		{SourceColumn: "Contract", Role: schema.RoleContract},
		{SourceColumn: "Churn", Role: schema.RoleTarget},
	}}
	return frame, m
}

type fakeNarrator struct {
	domain       string
	summary      string
	plan         *Personalized
	narrative    string
	err          error
	personalized []string
}

func (f *fakeNarrator) DetectDomain(context.Context, []string, map[string][]string) (string, error) {
	return f.domain, f.err
}

func (f *fakeNarrator) SummaryReport(_ context.Context, in SummaryInput) (string, error) {
	return f.summary, f.err
}

func (f *fakeNarrator) Personalize(_ context.Context, c CustomerContext) (*Personalized, error) {
	f.personalized = append(f.personalized, c.Data["customerID"])
	return f.plan, f.err
}

func (f *fakeNarrator) CustomerNarrative(context.Context, CustomerContext) (string, error) {
	return f.narrative, f.err
}

func fitted(t *testing.T, opts ...Option) (*Engine, *dataset.Frame) {
	t.Helper()
	frame, m := customers(t)
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	require.NoError(t, e.Fit(context.Background(), frame, m))
	return e, frame
}

func ptr(v float64) *float64 { return &v }

func TestEngine_NotFitted(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	_, err = e.Recommend(dataset.Row{}, nil, "")
	require.ErrorIs(t, err, ErrNotFitted)

	frame, _ := customers(t)
	require.ErrorIs(t, e.Fit(context.Background(), frame, nil), signals.ErrNoMapping)
}

func TestNewEngine_RejectsBadTemplates(t *testing.T) {
	_, err := NewEngine(WithTemplates(map[string][]string{"x": {"{nope}"}}))
	assert.ErrorIs(t, err, actions.ErrUnknownPlaceholder)
}

func TestRecommend(t *testing.T) {
	e, frame := fitted(t)

	out, err := e.Recommend(frame.Row(0), ptr(0.82), "")
	require.NoError(t, err)
	assert.Equal(t, "C1", out.CustomerID)
	assert.Equal(t, "Yes", out.ChurnPrediction)
	assert.Equal(t, schema.TierCritical, out.RiskLevel)
	assert.Equal(t, actions.PriorityHigh, out.Priority)
	require.NotEmpty(t, out.Signals)
	assert.Equal(t, schema.SignalHighChurnProbability, out.Signals[0].Type)
	assert.Equal(t, schema.TierHigh, out.Signals[0].Risk)
	assert.Equal(t, "Immediate attention required - high churn risk", out.Recommendations[0].Action)

	urgent, err := e.Recommend(frame.Row(0), ptr(0.90), "")
	require.NoError(t, err)
	assert.Equal(t, schema.TierCritical, urgent.RiskLevel)
	assert.Equal(t, actions.PriorityUrgent, urgent.Priority)
	require.NotEmpty(t, urgent.Signals)
	assert.Equal(t, schema.SignalHighChurnProbability, urgent.Signals[0].Type)
	assert.Equal(t, schema.TierCritical, urgent.Signals[0].Risk)
	assert.Equal(t, actions.PriorityUrgent, urgent.Recommendations[0].Priority)

	calm, err := e.Recommend(frame.Row(5), ptr(0.1), "")
	require.NoError(t, err)
	assert.Equal(t, "No", calm.ChurnPrediction)
	assert.Equal(t, schema.TierLow, calm.RiskLevel)

	labeled, err := e.Recommend(frame.Row(5), nil, "Churned")
	require.NoError(t, err)
	assert.Equal(t, "Churned", labeled.ChurnPrediction)
	if labeled.ChurnProbability != nil {
		t.Errorf("expected no probability, got %v", *labeled.ChurnProbability)
	}
}

func TestRecommendBatchAndTable(t *testing.T) {
	e, frame := fitted(t)

	_, err := e.RecommendBatch(frame, []float64{0.1}, nil)
	assert.Error(t, err)
	_, err = e.RecommendBatch(frame, nil, []string{"Yes"})
	assert.Error(t, err)

	probs := []float64{0.9, 0.1, 0.2, 0.75, 0.1, 0.05, 0.55, 0.3}
	outs, err := e.RecommendBatch(frame, probs, nil)
	require.NoError(t, err)
	require.Len(t, outs, frame.Len())
	for i, o := range outs {
		assert.Equal(t, frame.Row(i)["customerID"], o.CustomerID)
	}

	rows := Table(outs)
	assert.Equal(t, "None detected", rows[5].ChurnSignals)
	assert.Equal(t, "No action needed", rows[5].Recommendations)
	assert.True(t, strings.HasPrefix(rows[0].ChurnSignals, "high_churn_probability: Model predicts high likelihood of churn; "))
	assert.Equal(t, 3, strings.Count(rows[0].Recommendations, "; ")+1)
	assert.True(t, strings.HasPrefix(rows[0].Recommendations, "[URGENT] "))
}

func TestStats(t *testing.T) {
	outs := []*Output{
		{RiskLevel: schema.TierCritical, ChurnProbability: ptr(0.9), Signals: []SignalView{{Type: "low_tenure"}, {Type: "high_cost"}}},
		{RiskLevel: schema.TierHigh, ChurnProbability: ptr(0.6), Signals: []SignalView{{Type: "high_cost"}}},
		{RiskLevel: schema.TierLow, ChurnProbability: ptr(0.0)},
		{RiskLevel: schema.TierLow, Signals: []SignalView{{Type: "no_commitment"}}},
	}
	s := Stats(outs)
	assert.Equal(t, 4, s.TotalCustomers)
	assert.Equal(t, 2, s.HighRiskCount)
	assert.Equal(t, 2, s.RiskDistribution[schema.TierLow])
	assert.Equal(t, 0, s.RiskDistribution[schema.TierMedium])
	assert.Equal(t, 50.0, s.RiskPercentages[schema.TierLow])
	assert.Equal(t, []SignalCount{{"high_cost", 2}, {"low_tenure", 1}, {"no_commitment", 1}}, s.SignalFrequency)
	assert.Equal(t, 1.0, s.AvgSignals)
	assert.Equal(t, 0.5, s.AvgChurnProbability)
	assert.Equal(t, 1, s.AboveSeventy)
	assert.Equal(t, []string{"high_cost", "low_tenure"}, s.TopSignals(2))

	empty := Stats(nil)
	assert.Equal(t, 0.0, empty.AvgSignals)
	assert.Empty(t, empty.SignalFrequency)
}

func TestHighRiskReport(t *testing.T) {
	assert.Equal(t, "No high-risk customers identified.", HighRiskReport([]*Output{{RiskLevel: schema.TierLow}}, schema.TierHigh))

	outs := []*Output{
		{CustomerID: "A", RiskLevel: schema.TierHigh, ChurnProbability: ptr(0.6)},
		{CustomerID: "B", RiskLevel: schema.TierCritical, ChurnProbability: ptr(0.8),
			Signals:         []SignalView{{Risk: schema.TierHigh, Description: "New or short-tenure customer"}},
			Recommendations: []ActionView{{Priority: actions.PriorityUrgent, Action: "Call"}}},
		{RiskLevel: schema.TierHigh, ChurnProbability: ptr(0.65)},
		{CustomerID: "D", RiskLevel: schema.TierMedium},
	}
	report := HighRiskReport(outs, schema.TierHigh)
	assert.Contains(t, report, "HIGH-RISK CUSTOMER REPORT (3 customers)")
	assert.Contains(t, report, "Churn Probability: 80.0%")
	assert.Contains(t, report, "  • [HIGH] New or short-tenure customer")
	assert.Contains(t, report, "  → [URGENT] Call")
	assert.NotContains(t, report, "Customer: D")

	b := strings.Index(report, "Customer: B")
	unknown := strings.Index(report, "Customer: Unknown")
	a := strings.Index(report, "Customer: A")
	assert.True(t, b < unknown && unknown < a, "ordered by risk then probability")
}

func TestEnhancedReport_WithoutNarrator(t *testing.T) {
	e, frame := fitted(t)
	outs, err := e.RecommendBatch(frame, []float64{0.9, 0.1, 0.2, 0.75, 0.1, 0.05, 0.55, 0.3}, nil)
	require.NoError(t, err)

	report := e.EnhancedReport(context.Background(), frame, outs)
	assert.Contains(t, report, "## Analysis Summary")
	assert.Contains(t, report, "- Total customers: 8")
	assert.NotContains(t, report, "Personalized")

	html, err := RenderHTML(report)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Churn Analysis Report</h1>")
	assert.Contains(t, html, "<table>")
}

func TestEnhancedReport_WithNarrator(t *testing.T) {
	n := &fakeNarrator{
		domain:  "Telecom",
		summary: "Churn is concentrated in month-to-month plans.",
		plan:    &Personalized{RiskAssessment: "Likely to leave", Actions: []string{"Offer annual plan", "Call", "Bundle", "Extra"}, KeyInsight: "Short tenure"},
	}
	e, frame := fitted(t, WithNarrator(n))
	assert.Equal(t, "Telecom", e.Domain())

	outs, err := e.RecommendBatch(frame, []float64{0.9, 0.1, 0.2, 0.75, 0.1, 0.05, 0.55, 0.3}, nil)
	require.NoError(t, err)

	report := e.EnhancedReport(context.Background(), frame, outs)
	assert.Contains(t, report, "**Detected domain:** Telecom")
	assert.Contains(t, report, "## Executive Summary\n\nChurn is concentrated in month-to-month plans.")
	assert.Contains(t, report, "### Customer C1")
	assert.NotContains(t, report, "  - Extra")
	assert.Equal(t, []string{"C1", "C4", "C7"}, n.personalized)
	assert.Equal(t, n.plan.Actions, outs[0].PersonalizedActions)

	n.narrative = "A new customer on a flexible plan."
	e.Narrate(context.Background(), frame.Row(0), outs[0])
	assert.Equal(t, "A new customer on a flexible plan.", outs[0].Narrative)
}

func TestEnhancedReport_NarratorFailuresDegrade(t *testing.T) {
	n := &fakeNarrator{err: errors.New("model unavailable")}
	e, frame := fitted(t, WithNarrator(n))
	assert.Empty(t, e.Domain())

	outs, err := e.RecommendBatch(frame, nil, nil)
	require.NoError(t, err)
	report := e.EnhancedReport(context.Background(), frame, outs)
	assert.Contains(t, report, "## Analysis Summary")

	e.Narrate(context.Background(), frame.Row(0), outs[0])
	assert.Empty(t, outs[0].Narrative)
}

func TestExportRecords(t *testing.T) {
	e, frame := fitted(t)
	outs, err := e.RecommendBatch(frame, []float64{0.9, 0.1, 0.2, 0.75, 0.1, 0.05, 0.55, 0.3}, nil)
	require.NoError(t, err)

	table, err := ExportRecords(frame, outs)
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, header...), ExportColumns...), table.Header)
	require.Len(t, table.Records, frame.Len())
	assert.Equal(t, []string{"C1", "1", "10", "Month-to-month", "Yes", "0.9000", "Yes", "critical"}, table.Records[0][:8])

	_, err = ExportRecords(frame, outs[:2])
	assert.Error(t, err)
}
