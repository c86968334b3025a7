// Package actions turns detected churn signals into prioritized retention
// actions rendered from phrase templates.
package actions

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/signals"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrUnknownPlaceholder is returned for custom templates that reference a
// placeholder outside the supported set.
var ErrUnknownPlaceholder = errors.New("unknown template placeholder")

// Placeholders is the closed set of names a template may reference.
var Placeholders = []string{"discount_pct", "discount_range", "column_name", "value", "missing_services"}

const (
	templatesPerSignal = 2
	summaryTypes       = 3
	listedServices     = 3
)

var (
	placeholderRe = regexp.MustCompile(`\{([^{}]*)\}`)
	danglingRe    = regexp.MustCompile(`:\s*$|\(\s*\)`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// extendedTemplates overlay schema.ActionTemplates with domain-agnostic
// phrasings.
var extendedTemplates = map[string][]string{
	schema.SignalHighChurnProbability: {
		"Immediate attention required - high churn risk",
		"Schedule proactive customer outreach",
		"Review account for potential issues",
		"Consider personalized retention offer",
	},
	schema.SignalHighCost: {
		"Review pricing plan for optimization opportunities",
		"Consider loyalty discount: {discount_range}",
		"Propose value bundle with better price-to-value ratio",
		"Analyze usage patterns for cost reduction options",
	},
	schema.SignalLowTenure: {
		"Assign dedicated onboarding support",
		"Initiate welcome program touchpoints",
		"Schedule check-in call within 30 days",
		"Ensure smooth initial experience",
	},
	schema.SignalNoCommitment: {
		"Present long-term commitment benefits",
		"Offer upgrade incentive: annual plan discount",
		"Highlight premium features available with commitment",
		"Share success stories from committed customers",
	},
	schema.SignalMissingFeatures: {
		"Recommend additional services: {missing_services}",
		"Offer free trial of value-add features",
		"Educate on benefits of full product suite",
		"Consider feature bundle promotion",
	},
	"low_engagement": {
		"Trigger re-engagement campaign",
		"Offer usage incentives",
		"Check for product satisfaction issues",
		"Provide usage tips and best practices",
	},
}

var riskDescriptions = map[schema.Tier]string{
	schema.TierLow:      "minimal churn risk",
	schema.TierMedium:   "moderate churn risk requiring attention",
	schema.TierHigh:     "elevated churn risk requiring prompt action",
	schema.TierCritical: "critical churn risk requiring immediate intervention",
}

// Action is one recommended retention step.
type Action struct {
	Type        string   `json:"action_type"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	SignalType  string   `json:"signal_type"`
	Details     string   `json:"details,omitempty"`
}

// CustomerRecommendations holds the deduplicated actions for one customer.
type CustomerRecommendations struct {
	CustomerID    string   `json:"customer_id,omitempty"`
	Actions       []Action `json:"actions"`
	Summary       string   `json:"summary"`
	PriorityLevel Priority `json:"priority_level"`

	seen map[string]bool
}

func newRecommendations(customerID string) *CustomerRecommendations {
	return &CustomerRecommendations{
		CustomerID:    customerID,
		Actions:       []Action{},
		PriorityLevel: PriorityLow,
		seen:          map[string]bool{},
	}
}

// Add appends a unless an action with the same description exists.
func (r *CustomerRecommendations) Add(a Action) {
	if r.seen == nil {
		r.seen = map[string]bool{}
		for _, prev := range r.Actions {
			r.seen[prev.Description] = true
		}
	}
	if r.seen[a.Description] {
		return
	}
	r.seen[a.Description] = true
	r.Actions = append(r.Actions, a)
	if a.Priority.Level() > r.PriorityLevel.Level() {
		r.PriorityLevel = a.Priority
	}
}

// Generator renders actions from templates keyed by signal type.
type Generator struct {
	templates map[string][]string
}

// NewGenerator builds a generator from the base templates overlaid by the
// extended built-ins and then by custom, which may be nil.
func NewGenerator(custom map[string][]string) (*Generator, error) {
	templates := make(map[string][]string, len(schema.ActionTemplates)+len(extendedTemplates)+len(custom))
	for k, v := range schema.ActionTemplates {
		templates[k] = v
	}
	for k, v := range extendedTemplates {
		templates[k] = v
	}
	for signalType, list := range custom {
		for _, tmpl := range list {
			if err := checkPlaceholders(tmpl); err != nil {
				return nil, fmt.Errorf("template for %s: %w", signalType, err)
			}
		}
		templates[signalType] = slices.Clone(list)
	}
	return &Generator{templates: templates}, nil
}

// Templates returns the phrasings used for a signal type.
func (g *Generator) Templates(signalType string) []string {
	return slices.Clone(g.templates[signalType])
}

func checkPlaceholders(tmpl string) error {
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !slices.Contains(Placeholders, m[1]) {
			return fmt.Errorf("%w: {%s}", ErrUnknownPlaceholder, m[1])
		}
	}
	return nil
}

// Generate renders up to two actions per signal, most severe signals first.
func (g *Generator) Generate(cs *signals.CustomerSignals) *CustomerRecommendations {
	recs := newRecommendations(cs.CustomerID)

	ordered := slices.Clone(cs.Signals)
	slices.SortStableFunc(ordered, func(a, b signals.Signal) int {
		return cmp.Compare(b.Tier.Severity(), a.Tier.Severity())
	})
	for _, s := range ordered {
		list := g.templates[s.Type]
		for _, tmpl := range list[:min(len(list), templatesPerSignal)] {
			recs.Add(Action{
				Type:        s.Type,
				Description: render(tmpl, s),
				Priority:    PriorityForTier(s.Tier),
				SignalType:  s.Type,
				Details:     s.Evidence,
			})
		}
	}
	recs.Summary = summarize(cs, recs)
	return recs
}

// GenerateBatch returns one result per input, in order.
func (g *Generator) GenerateBatch(list []*signals.CustomerSignals) []*CustomerRecommendations {
	out := make([]*CustomerRecommendations, len(list))
	for i, cs := range list {
		out[i] = g.Generate(cs)
	}
	return out
}

func render(tmpl string, s signals.Signal) string {
	values := map[string]string{
		"discount_range": "10-20%",
		"discount_pct":   "15",
	}
	if s.Column != "" {
		values["column_name"] = s.Column
	}
	switch v := s.Value.(type) {
	case nil:
	case []string:
		values["missing_services"] = strings.Join(v[:min(len(v), listedServices)], ", ")
	case float64:
		values["value"] = formatValue(v)
	default:
		values["value"] = fmt.Sprint(v)
	}

	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		return values[m[1:len(m)-1]]
	})
	out = danglingRe.ReplaceAllString(out, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func summarize(cs *signals.CustomerSignals, recs *CustomerRecommendations) string {
	if len(cs.Signals) == 0 {
		return "No immediate churn risk indicators detected."
	}
	p := message.NewPrinter(language.English)

	prob := ""
	if cs.Probability != nil {
		prob = p.Sprintf(" (predicted probability: %.1f%%)", *cs.Probability*100)
	}

	var types []string
	for _, s := range cs.Signals {
		if !slices.Contains(types, s.Type) {
			types = append(types, s.Type)
		}
	}
	factors := strings.Join(types[:min(len(types), summaryTypes)], ", ")
	if extra := len(types) - summaryTypes; extra > 0 {
		factors += fmt.Sprintf(" (+%d more)", extra)
	}

	return fmt.Sprintf("Customer shows %s%s. Key factors: %s. Recommended %d intervention actions.",
		riskDescriptions[cs.OverallRisk], prob, factors, len(recs.Actions))
}

// PriorityAction is an action flattened with its customer.
type PriorityAction struct {
	CustomerID string   `json:"customer_id,omitempty"`
	Action     string   `json:"action"`
	Priority   Priority `json:"priority"`
	Signal     string   `json:"signal"`
	Details    string   `json:"details,omitempty"`
}

// PriorityActions returns every action at or above minPriority across
// customers, most urgent first. Equal priorities keep input order.
func PriorityActions(recs []*CustomerRecommendations, minPriority Priority) []PriorityAction {
	var out []PriorityAction
	for _, r := range recs {
		for _, a := range r.Actions {
			if a.Priority.Level() < minPriority.Level() {
				continue
			}
			out = append(out, PriorityAction{
				CustomerID: r.CustomerID,
				Action:     a.Description,
				Priority:   a.Priority,
				Signal:     a.SignalType,
				Details:    a.Details,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b PriorityAction) int {
		return cmp.Compare(b.Priority.Level(), a.Priority.Level())
	})
	return out
}
