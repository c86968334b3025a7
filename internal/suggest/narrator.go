package suggest

import (
	"context"
	"strconv"
	"strings"

	"github.com/spboyer/churnkit/internal/recommend"
	"github.com/spboyer/churnkit/internal/template"
	"github.com/spboyer/churnkit/internal/validation"
)

// Narrator writes the natural language parts of a churn report with a model.
type Narrator struct {
	client *Client
}

var _ recommend.Narrator = (*Narrator)(nil)

// NewNarrator returns a narrator over client.
func NewNarrator(client *Client) *Narrator {
	return &Narrator{client: client}
}

// DetectDomain names the business domain of a dataset from its first columns
// and a few sample values.
func (n *Narrator) DetectDomain(ctx context.Context, columns []string, samples map[string][]string) (string, error) {
	if len(columns) == 0 {
		return "", nil
	}
	shown := columns[:min(len(columns), domainColumns)]

	sample := make(map[string][]string, domainSampleCols)
	for _, c := range shown {
		if len(sample) == domainSampleCols {
			break
		}
		if vals, ok := samples[c]; ok {
			sample[c] = vals[:min(len(vals), domainSampleVals)]
		}
	}

	raw, err := n.client.Ask(ctx, KindDomain, domainPrompt, &template.Context{
		Vars: map[string]string{
			"columns": strings.Join(shown, ", "),
			"sample":  mustJSON(sample),
		},
	})
	if err != nil {
		return "", err
	}

	var reply struct {
		Domain string `json:"domain"`
	}
	if !decode(KindDomain, raw, validation.ValidateDomainJSON, &reply) {
		return "", nil
	}
	return clip(strings.TrimSpace(reply.Domain), maxDomainLength), nil
}

// SummaryReport writes a markdown executive summary of a scored batch.
func (n *Narrator) SummaryReport(ctx context.Context, in recommend.SummaryInput) (string, error) {
	share := 0.0
	if in.TotalCustomers > 0 {
		share = float64(in.HighRiskCount) / float64(in.TotalCustomers)
	}
	return n.client.Ask(ctx, KindSummary, summaryPrompt, &template.Context{
		Domain: in.Domain,
		Vars: map[string]string{
			"total":        strconv.Itoa(in.TotalCustomers),
			"high":         strconv.Itoa(in.HighRiskCount),
			"high_share":   percent(share),
			"avg":          percent(in.AvgChurnProbability),
			"distribution": mustJSON(in.RiskDistribution),
			"signals":      joinOrNone(in.TopSignals, summarySignals),
		},
	})
}

// Personalize proposes a tailored retention plan for one customer. A reply
// that does not match the expected shape yields nil.
func (n *Narrator) Personalize(ctx context.Context, c recommend.CustomerContext) (*recommend.Personalized, error) {
	raw, err := n.client.Ask(ctx, KindActions, actionsPrompt, &template.Context{
		Domain: c.Domain,
		Vars: map[string]string{
			"customer":    mustJSON(firstFields(c.Data, customerFields)),
			"probability": percent(c.Probability),
			"signals":     joinOrNone(c.Signals, actionSignals),
		},
	})
	if err != nil {
		return nil, err
	}

	var p recommend.Personalized
	if !decode(KindActions, raw, validation.ValidateActionsJSON, &p) {
		return nil, nil
	}
	if p.Priority == "" {
		p.Priority = "medium"
	}
	return &p, nil
}

// CustomerNarrative writes a two sentence story of one customer's risk.
func (n *Narrator) CustomerNarrative(ctx context.Context, c recommend.CustomerContext) (string, error) {
	prediction := "No"
	if c.Probability >= 0.5 {
		prediction = "Yes"
	}
	return n.client.Ask(ctx, KindNarrative, narrativePrompt, &template.Context{
		Vars: map[string]string{
			"customer":    mustJSON(firstFields(c.Data, narrativeFields)),
			"prediction":  prediction,
			"probability": percent(c.Probability),
			"signals":     joinOrNone(c.Signals, storySignals),
		},
	})
}
