package recommend

import (
	"context"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/schema"
)

// SummaryInput is the portfolio-level context for an executive summary.
type SummaryInput struct {
	TotalCustomers      int                 `json:"total_customers"`
	HighRiskCount       int                 `json:"high_risk_count"`
	AvgChurnProbability float64             `json:"avg_churn_probability"`
	RiskDistribution    map[schema.Tier]int `json:"risk_distribution"`
	TopSignals          []string            `json:"top_signals"`
	Domain              string              `json:"domain,omitempty"`
}

// CustomerContext describes one customer for personalized output.
type CustomerContext struct {
	Data        dataset.Row `json:"customer_data"`
	Signals     []string    `json:"signals"`
	Probability float64     `json:"churn_probability"`
	Domain      string      `json:"domain,omitempty"`
}

// Personalized is a narrator's tailored plan for one customer.
type Personalized struct {
	RiskAssessment string   `json:"risk_assessment"`
	Actions        []string `json:"personalized_actions"`
	KeyInsight     string   `json:"key_insights"`
	Priority       string   `json:"priority"`
}

// Narrator produces natural language around the deterministic
// recommendations. Implementations may call a language model. An empty result
// with a nil error means "nothing to add".
type Narrator interface {
	DetectDomain(ctx context.Context, columns []string, samples map[string][]string) (string, error)
	SummaryReport(ctx context.Context, in SummaryInput) (string, error)
	Personalize(ctx context.Context, c CustomerContext) (*Personalized, error)
	CustomerNarrative(ctx context.Context, c CustomerContext) (string, error)
}

// NoopNarrator adds nothing.
type NoopNarrator struct{}

func (NoopNarrator) DetectDomain(context.Context, []string, map[string][]string) (string, error) {
	return "", nil
}

func (NoopNarrator) SummaryReport(context.Context, SummaryInput) (string, error) {
	return "", nil
}

func (NoopNarrator) Personalize(context.Context, CustomerContext) (*Personalized, error) {
	return nil, nil
}

func (NoopNarrator) CustomerNarrative(context.Context, CustomerContext) (string, error) {
	return "", nil
}

// IsNoop reports whether n is the no-op narrator.
func IsNoop(n Narrator) bool {
	switch n.(type) {
	case NoopNarrator, *NoopNarrator, nil:
		return true
	}
	return false
}
