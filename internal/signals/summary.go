package signals

import "github.com/spboyer/churnkit/internal/schema"

// Summary aggregates detection results over many customers.
type Summary struct {
	TotalCustomers   int                     `json:"total_customers"`
	RiskDistribution map[schema.Tier]int     `json:"risk_distribution"`
	RiskPercentages  map[schema.Tier]float64 `json:"risk_percentages"`
	SignalFrequency  map[string]int          `json:"signal_frequency"`
	AvgSignals       float64                 `json:"avg_signals_per_customer"`
}

// Summarize counts overall risk tiers and signal types.
func Summarize(results []*CustomerSignals) Summary {
	s := Summary{
		TotalCustomers:   len(results),
		RiskDistribution: map[schema.Tier]int{},
		RiskPercentages:  map[schema.Tier]float64{},
		SignalFrequency:  map[string]int{},
	}
	for _, t := range schema.Tiers {
		s.RiskDistribution[t] = 0
	}

	signals := 0
	for _, cs := range results {
		s.RiskDistribution[cs.OverallRisk]++
		for _, sig := range cs.Signals {
			s.SignalFrequency[sig.Type]++
		}
		signals += len(cs.Signals)
	}

	total := max(len(results), 1)
	for t, n := range s.RiskDistribution {
		s.RiskPercentages[t] = float64(n) / float64(total) * 100
	}
	s.AvgSignals = float64(signals) / float64(total)
	return s
}
