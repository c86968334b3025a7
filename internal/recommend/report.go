package recommend

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/metrics"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	tableActions      = 3
	reportCustomers   = 20
	reportItems       = 3
	personalizedTop   = 5
	summaryTopSignals = 5
	highProbability   = 0.70
)

// TableRow is the flattened view of one Output.
type TableRow struct {
	CustomerID       string   `json:"customer_id"`
	ChurnProbability *float64 `json:"churn_probability"`
	ChurnPrediction  string   `json:"churn_prediction"`
	RiskLevel        string   `json:"risk_level"`
	Priority         string   `json:"priority"`
	ChurnSignals     string   `json:"churn_signals"`
	Recommendations  string   `json:"recommendations"`
	Summary          string   `json:"summary"`
}

// Table flattens outputs into one row per customer.
func Table(outputs []*Output) []TableRow {
	rows := make([]TableRow, len(outputs))
	for i, o := range outputs {
		rows[i] = TableRow{
			CustomerID:       o.CustomerID,
			ChurnProbability: o.ChurnProbability,
			ChurnPrediction:  o.ChurnPrediction,
			RiskLevel:        string(o.RiskLevel),
			Priority:         string(o.Priority),
			ChurnSignals:     signalsText(o),
			Recommendations:  actionsText(o),
			Summary:          o.Summary,
		}
	}
	return rows
}

func signalsText(o *Output) string {
	if len(o.Signals) == 0 {
		return "None detected"
	}
	parts := make([]string, len(o.Signals))
	for i, s := range o.Signals {
		parts[i] = s.Type + ": " + s.Description
	}
	return strings.Join(parts, "; ")
}

func actionsText(o *Output) string {
	if len(o.Recommendations) == 0 {
		return "No action needed"
	}
	top := o.Recommendations[:min(len(o.Recommendations), tableActions)]
	parts := make([]string, len(top))
	for i, a := range top {
		parts[i] = fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Priority)), a.Action)
	}
	return strings.Join(parts, "; ")
}

// SignalCount is the number of customers showing a signal type.
type SignalCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Summary aggregates a batch of outputs.
type Summary struct {
	TotalCustomers      int                     `json:"total_customers"`
	RiskDistribution    map[schema.Tier]int     `json:"risk_distribution"`
	RiskPercentages     map[schema.Tier]float64 `json:"risk_percentages"`
	HighRiskCount       int                     `json:"high_risk_count"`
	SignalFrequency     []SignalCount           `json:"signal_frequency"`
	AvgSignals          float64                 `json:"avg_signals_per_customer"`
	AvgChurnProbability float64                 `json:"avg_churn_probability"`
	AboveSeventy        int                     `json:"customers_above_70pct"`
}

// Stats summarizes outputs. Probability statistics cover outputs that carry
// a probability.
func Stats(outputs []*Output) Summary {
	s := Summary{
		TotalCustomers:   len(outputs),
		RiskDistribution: map[schema.Tier]int{},
		RiskPercentages:  map[schema.Tier]float64{},
		SignalFrequency:  []SignalCount{},
	}
	for _, t := range schema.Tiers {
		s.RiskDistribution[t] = 0
	}

	counts := map[string]int{}
	totalSignals := 0
	var probs []float64
	for _, o := range outputs {
		s.RiskDistribution[o.RiskLevel]++
		for _, sig := range o.Signals {
			counts[sig.Type]++
		}
		totalSignals += len(o.Signals)
		if o.ChurnProbability != nil {
			probs = append(probs, *o.ChurnProbability)
			if *o.ChurnProbability >= highProbability {
				s.AboveSeventy++
			}
		}
	}

	total := float64(max(len(outputs), 1))
	for t, n := range s.RiskDistribution {
		s.RiskPercentages[t] = metrics.Round(float64(n)/total*100, 1)
	}
	s.HighRiskCount = s.RiskDistribution[schema.TierHigh] + s.RiskDistribution[schema.TierCritical]
	for t, n := range counts {
		s.SignalFrequency = append(s.SignalFrequency, SignalCount{Type: t, Count: n})
	}
	slices.SortFunc(s.SignalFrequency, func(a, b SignalCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	s.AvgSignals = metrics.Round(float64(totalSignals)/total, 2)
	s.AvgChurnProbability = metrics.Round(metrics.Mean(probs), 4)
	return s
}

// TopSignals returns up to n signal types, most frequent first.
func (s Summary) TopSignals(n int) []string {
	var out []string
	for _, sc := range s.SignalFrequency[:min(len(s.SignalFrequency), n)] {
		out = append(out, sc.Type)
	}
	return out
}

type ranked struct {
	index int
	out   *Output
}

// rankAtRisk returns outputs at or above minRisk, most severe and most
// probable first. Ties keep input order.
func rankAtRisk(outputs []*Output, minRisk schema.Tier) []ranked {
	var list []ranked
	for i, o := range outputs {
		if o.RiskLevel.IsAtLeast(minRisk) {
			list = append(list, ranked{index: i, out: o})
		}
	}
	slices.SortStableFunc(list, func(a, b ranked) int {
		if c := cmp.Compare(b.out.RiskLevel.Severity(), a.out.RiskLevel.Severity()); c != 0 {
			return c
		}
		return cmp.Compare(probabilityOf(b.out), probabilityOf(a.out))
	})
	return list
}

func probabilityOf(o *Output) float64 {
	if o.ChurnProbability == nil {
		return 0
	}
	return *o.ChurnProbability
}

// HighRiskReport renders the top at-risk customers as text.
func HighRiskReport(outputs []*Output, minRisk schema.Tier) string {
	list := rankAtRisk(outputs, minRisk)
	if len(list) == 0 {
		return "No high-risk customers identified."
	}

	rule := strings.Repeat("=", 70)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "HIGH-RISK CUSTOMER REPORT (%d customers)\n", len(list))
	fmt.Fprint(&b, rule)

	for _, r := range list[:min(len(list), reportCustomers)] {
		o := r.out
		id := o.CustomerID
		if id == "" {
			id = "Unknown"
		}
		fmt.Fprintf(&b, "\n\n%s\n", strings.Repeat("─", 60))
		fmt.Fprintf(&b, "Customer: %s\n", id)
		fmt.Fprintf(&b, "Risk Level: %s\n", strings.ToUpper(string(o.RiskLevel)))
		if o.ChurnProbability != nil {
			fmt.Fprintf(&b, "Churn Probability: %.1f%%\n", *o.ChurnProbability*100)
		}
		fmt.Fprintln(&b, "\nSignals:")
		for _, s := range o.Signals[:min(len(o.Signals), reportItems)] {
			fmt.Fprintf(&b, "  • [%s] %s\n", strings.ToUpper(string(s.Risk)), s.Description)
		}
		fmt.Fprint(&b, "\nRecommended Actions:")
		for _, a := range o.Recommendations[:min(len(o.Recommendations), reportItems)] {
			fmt.Fprintf(&b, "\n  → [%s] %s", strings.ToUpper(string(a.Priority)), a.Action)
		}
	}
	fmt.Fprintf(&b, "\n\n%s", rule)
	return b.String()
}

// EnhancedReport renders a markdown analysis report. Narrator sections are
// added when available; otherwise a statistics block stands in for the
// executive summary. frame must be the frame the outputs were built from.
func (e *Engine) EnhancedReport(ctx context.Context, frame *dataset.Frame, outputs []*Output) string {
	stats := Stats(outputs)
	var b strings.Builder
	fmt.Fprintln(&b, "# Churn Analysis Report")
	if e.domain != "" {
		fmt.Fprintf(&b, "\n**Detected domain:** %s\n", e.domain)
	}

	summary := e.executiveSummary(ctx, stats)
	if summary != "" {
		fmt.Fprintf(&b, "\n## Executive Summary\n\n%s\n", strings.TrimSpace(summary))
	} else {
		fmt.Fprintln(&b, "\n## Analysis Summary")
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "- Total customers: %d\n", stats.TotalCustomers)
		fmt.Fprintf(&b, "- High risk: %d customers\n", stats.HighRiskCount)
		fmt.Fprintf(&b, "- Average churn probability: %.1f%%\n", stats.AvgChurnProbability*100)
	}

	fmt.Fprintln(&b, "\n## Risk Distribution")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "| Risk | Customers | Share |")
	fmt.Fprintln(&b, "|------|-----------|-------|")
	for _, t := range slices.Backward(schema.Tiers) {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", t, stats.RiskDistribution[t], stats.RiskPercentages[t])
	}

	personal := e.personalize(ctx, frame, outputs)
	if len(personal) > 0 {
		fmt.Fprintf(&b, "\n## Personalized Recommendations (Top %d High-Risk)\n", personalizedTop)
		for _, p := range personal {
			fmt.Fprintf(&b, "\n### Customer %s\n\n", p.id)
			fmt.Fprintf(&b, "- Risk: %s (%.1f%%)\n", strings.ToUpper(string(p.out.RiskLevel)), probabilityOf(p.out)*100)
			if p.plan.RiskAssessment != "" {
				fmt.Fprintf(&b, "- Assessment: %s\n", p.plan.RiskAssessment)
			}
			if p.plan.KeyInsight != "" {
				fmt.Fprintf(&b, "- Key insight: %s\n", p.plan.KeyInsight)
			}
			for _, a := range p.plan.Actions[:min(len(p.plan.Actions), reportItems)] {
				fmt.Fprintf(&b, "  - %s\n", a)
			}
		}
	}
	return b.String()
}

func (e *Engine) executiveSummary(ctx context.Context, stats Summary) string {
	if IsNoop(e.narrator) {
		return ""
	}
	text, err := e.narrator.SummaryReport(ctx, SummaryInput{
		TotalCustomers:      stats.TotalCustomers,
		HighRiskCount:       stats.HighRiskCount,
		AvgChurnProbability: stats.AvgChurnProbability,
		RiskDistribution:    stats.RiskDistribution,
		TopSignals:          stats.TopSignals(summaryTopSignals),
		Domain:              e.domain,
	})
	if err != nil {
		slog.Warn("summary report failed", "error", err)
		return ""
	}
	return text
}

type personalized struct {
	id   string
	out  *Output
	plan *Personalized
}

func (e *Engine) personalize(ctx context.Context, frame *dataset.Frame, outputs []*Output) []personalized {
	if IsNoop(e.narrator) || frame == nil {
		return nil
	}
	var out []personalized
	list := rankAtRisk(outputs, schema.TierHigh)
	for _, r := range list[:min(len(list), personalizedTop)] {
		if r.index >= frame.Len() {
			continue
		}
		row := frame.Row(r.index)
		plan, err := e.narrator.Personalize(ctx, e.customerContext(row, r.out))
		if err != nil {
			slog.Warn("personalized recommendation failed", "customer", r.out.CustomerID, "error", err)
			continue
		}
		if plan == nil {
			continue
		}
		r.out.PersonalizedActions = plan.Actions
		id := r.out.CustomerID
		if id == "" {
			id = fmt.Sprintf("row %d", r.index+1)
		}
		out = append(out, personalized{id: id, out: r.out, plan: plan})
	}
	return out
}

// RenderHTML converts a markdown report to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

// ExportColumns are appended to the original columns by ExportRecords.
var ExportColumns = []string{"churn_probability", "churn_prediction", "risk_level", "churn_signals", "recommendations"}

// ExportRecords builds the prediction export: every original column followed
// by ExportColumns, in row order.
func ExportRecords(frame *dataset.Frame, outputs []*Output) (*dataset.Table, error) {
	if frame.Len() != len(outputs) {
		return nil, fmt.Errorf("got %d outputs for %d rows", len(outputs), frame.Len())
	}
	names := frame.Names()
	t := &dataset.Table{
		Header:  append(slices.Clone(names), ExportColumns...),
		Records: make([][]string, frame.Len()),
	}
	for i, row := range Table(outputs) {
		orig := frame.Row(i)
		rec := make([]string, 0, len(t.Header))
		for _, n := range names {
			rec = append(rec, orig[n])
		}
		prob := ""
		if row.ChurnProbability != nil {
			prob = fmt.Sprintf("%.4f", *row.ChurnProbability)
		}
		rec = append(rec, prob, row.ChurnPrediction, row.RiskLevel, row.ChurnSignals, row.Recommendations)
		t.Records[i] = rec
	}
	return t, nil
}
