package actions

import (
	"testing"

	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func riskyCustomer() *signals.CustomerSignals {
	cs := signals.NewCustomerSignals(ptr(0.9))
	cs.CustomerID = "7590-VHVEG"
	cs.Add(signals.Signal{Type: schema.SignalLowTenure, Tier: schema.TierHigh, Column: "tenure", Value: 1.0, Evidence: "tenure = 1"})
	cs.Add(signals.Signal{Type: schema.SignalHighCost, Tier: schema.TierMedium, Column: "MonthlyCharges", Value: 99.5})
	cs.Add(signals.Signal{Type: schema.SignalMissingFeatures, Tier: schema.TierMedium, Value: []string{"OnlineSecurity", "TechSupport", "StreamingTV", "DeviceProtection"}})
	cs.Add(signals.Signal{Type: schema.SignalHighChurnProbability, Tier: schema.TierCritical, Value: 0.9})
	return cs
}

func descriptions(r *CustomerRecommendations) []string {
	var out []string
	for _, a := range r.Actions {
		out = append(out, a.Description)
	}
	return out
}

func TestGenerate(t *testing.T) {
	g, err := NewGenerator(nil)
	require.NoError(t, err)

	recs := g.Generate(riskyCustomer())
	assert.Equal(t, "7590-VHVEG", recs.CustomerID)
	assert.Equal(t, []string{
		"Immediate attention required - high churn risk",
		"Schedule proactive customer outreach",
		"Assign dedicated onboarding support",
		"Initiate welcome program touchpoints",
		"Review pricing plan for optimization opportunities",
		"Consider loyalty discount: 10-20%",
		"Recommend additional services: OnlineSecurity, TechSupport, StreamingTV",
		"Offer free trial of value-add features",
	}, descriptions(recs))
	assert.Equal(t, PriorityUrgent, recs.Actions[0].Priority)
	assert.Equal(t, PriorityHigh, recs.Actions[2].Priority)
	assert.Equal(t, "tenure = 1", recs.Actions[2].Details)
	assert.Equal(t, PriorityUrgent, recs.PriorityLevel)
	assert.Equal(t,
		"Customer shows critical churn risk requiring immediate intervention (predicted probability: 90.0%). "+
			"Key factors: low_tenure, high_cost, missing_features (+1 more). Recommended 8 intervention actions.",
		recs.Summary)
}

func TestGenerate_NoSignals(t *testing.T) {
	g, err := NewGenerator(nil)
	require.NoError(t, err)

	recs := g.Generate(signals.NewCustomerSignals(nil))
	assert.Empty(t, recs.Actions)
	assert.Equal(t, PriorityLow, recs.PriorityLevel)
	assert.Equal(t, "No immediate churn risk indicators detected.", recs.Summary)
}

func TestGenerate_DeduplicatesAndIsIdempotent(t *testing.T) {
	g, err := NewGenerator(map[string][]string{
		schema.SignalLowTenure: {"Call the customer", "Call the customer"},
		schema.SignalHighCost:  {"Call the customer"},
	})
	require.NoError(t, err)

	cs := signals.NewCustomerSignals(nil)
	cs.Add(signals.Signal{Type: schema.SignalLowTenure, Tier: schema.TierHigh})
	cs.Add(signals.Signal{Type: schema.SignalHighCost, Tier: schema.TierMedium})

	first := g.Generate(cs)
	assert.Equal(t, []string{"Call the customer"}, descriptions(first))
	assert.Equal(t, "Customer shows elevated churn risk requiring prompt action. "+
		"Key factors: low_tenure, high_cost. Recommended 1 intervention actions.", first.Summary)

	second := g.Generate(cs)
	assert.Equal(t, descriptions(first), descriptions(second))
	assert.Equal(t, first.Summary, second.Summary)

	first.Add(Action{Description: "Call the customer", Priority: PriorityUrgent})
	assert.Len(t, first.Actions, 1)
	assert.Equal(t, PriorityHigh, first.PriorityLevel)
}

func TestNewGenerator_RejectsUnknownPlaceholder(t *testing.T) {
	_, err := NewGenerator(map[string][]string{"loyalty": {"Send {coupon_code}"}})
	assert.ErrorIs(t, err, ErrUnknownPlaceholder)

	g, err := NewGenerator(map[string][]string{"loyalty": {"Offer {discount_pct}% off"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Offer {discount_pct}% off"}, g.Templates("loyalty"))
	// extended templates replace the base set
	assert.Equal(t, "Review pricing plan for optimization opportunities", g.Templates(schema.SignalHighCost)[0])
}

func TestRender(t *testing.T) {
	tmpl := "Discuss {column_name} value ({value})"
	tests := []struct {
		name   string
		signal signals.Signal
		want   string
	}{
		{"resolved", signals.Signal{Column: "MonthlyCharges", Value: 70.5}, "Discuss MonthlyCharges value (70.50)"},
		{"integral value", signals.Signal{Column: "tenure", Value: 3.0}, "Discuss tenure value (3)"},
		{"string value", signals.Signal{Column: "Contract", Value: "Month-to-month"}, "Discuss Contract value (Month-to-month)"},
		{"unresolved", signals.Signal{}, "Discuss value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(tmpl, tt.signal))
		})
	}
	assert.Equal(t, "Recommend additional services", render("Recommend additional services: {missing_services}", signals.Signal{}))
}

func TestGenerateBatchAndPriorityActions(t *testing.T) {
	g, err := NewGenerator(nil)
	require.NoError(t, err)

	calm := signals.NewCustomerSignals(nil)
	calm.CustomerID = "calm"
	medium := signals.NewCustomerSignals(nil)
	medium.CustomerID = "medium"
	medium.Add(signals.Signal{Type: schema.SignalHighCost, Tier: schema.TierMedium})

	recs := g.GenerateBatch([]*signals.CustomerSignals{medium, calm, riskyCustomer()})
	require.Len(t, recs, 3)
	assert.Equal(t, "medium", recs[0].CustomerID)
	assert.Equal(t, "calm", recs[1].CustomerID)

	top := PriorityActions(recs, PriorityHigh)
	require.Len(t, top, 4)
	assert.Equal(t, PriorityUrgent, top[0].Priority)
	assert.Equal(t, "Immediate attention required - high churn risk", top[0].Action)
	assert.Equal(t, PriorityHigh, top[3].Priority)
	for _, a := range top {
		assert.Equal(t, "7590-VHVEG", a.CustomerID)
	}

	all := PriorityActions(recs, PriorityLow)
	assert.Len(t, all, 10)
	assert.Equal(t, "medium", all[4].CustomerID)
	assert.Equal(t, "7590-VHVEG", all[6].CustomerID)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, PriorityUrgent, PriorityForTier(schema.TierCritical))
	assert.Equal(t, PriorityLow, PriorityForTier(schema.TierLow))
	assert.Equal(t, PriorityMedium, PriorityForTier("unknown"))

	p, err := ParsePriority("high")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)
	_, err = ParsePriority("asap")
	assert.Error(t, err)
}
