// Package recommend combines signal detection and action generation into
// per-customer recommendations, with tabular, statistical and narrative
// views over a batch.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spboyer/churnkit/internal/actions"
	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/signals"
)

// ErrNotFitted is returned by Recommend before Fit or FitWithThresholds.
var ErrNotFitted = errors.New("engine not fitted")

const (
	predictionThreshold = 0.5
	domainColumns       = 10
	domainSamples       = 3
)

// SignalView is the output form of a detected signal.
type SignalView struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Risk        schema.Tier `json:"risk"`
	Evidence    string      `json:"evidence"`
}

// ActionView is the output form of a recommended action.
type ActionView struct {
	Action   string           `json:"action"`
	Priority actions.Priority `json:"priority"`
	Type     string           `json:"type"`
}

// Output is the complete recommendation for one customer.
type Output struct {
	CustomerID       string           `json:"customer_id,omitempty"`
	ChurnProbability *float64         `json:"churn_probability,omitempty"`
	ChurnPrediction  string           `json:"churn_prediction"`
	RiskLevel        schema.Tier      `json:"risk_level"`
	Signals          []SignalView     `json:"signals"`
	Recommendations  []ActionView     `json:"recommendations"`
	Summary          string           `json:"summary"`
	Priority         actions.Priority `json:"priority"`

	Narrative           string   `json:"ai_narrative,omitempty"`
	PersonalizedActions []string `json:"ai_personalized_actions,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithNarrator sets the narrative collaborator. The default adds nothing.
func WithNarrator(n Narrator) Option {
	return func(e *Engine) {
		if n != nil {
			e.narrator = n
		}
	}
}

// WithTemplates overlays custom action templates on the built-in ones.
func WithTemplates(custom map[string][]string) Option {
	return func(e *Engine) { e.templates = custom }
}

// Engine produces recommendations for customers of one dataset shape.
type Engine struct {
	narrator  Narrator
	templates map[string][]string
	generator *actions.Generator

	mapping    *mapper.MappingResult
	thresholds *signals.Thresholds
	detector   *signals.Detector
	domain     string
}

// NewEngine returns an unfitted engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{narrator: NoopNarrator{}}
	for _, opt := range opts {
		opt(e)
	}
	g, err := actions.NewGenerator(e.templates)
	if err != nil {
		return nil, err
	}
	e.generator = g
	return e, nil
}

// Fit computes thresholds on frame and asks the narrator for the business
// domain. Narrator failures are logged and ignored.
func (e *Engine) Fit(ctx context.Context, frame *dataset.Frame, mapping *mapper.MappingResult) error {
	th, err := signals.ComputeThresholds(frame, mapping)
	if err != nil {
		return err
	}
	if err := e.FitWithThresholds(mapping, th); err != nil {
		return err
	}

	if IsNoop(e.narrator) {
		return nil
	}
	columns := frame.Names()
	samples := make(map[string][]string)
	for _, name := range columns[:min(len(columns), domainColumns)] {
		col, _ := frame.Column(name)
		samples[name] = col.NonNull(domainSamples)
	}
	domain, err := e.narrator.DetectDomain(ctx, columns, samples)
	if err != nil {
		slog.Warn("domain detection failed", "error", err)
		return nil
	}
	e.domain = domain
	return nil
}

// FitWithThresholds binds previously computed thresholds, typically those
// stored with a trained model.
func (e *Engine) FitWithThresholds(mapping *mapper.MappingResult, th *signals.Thresholds) error {
	d, err := signals.NewDetector(mapping, th)
	if err != nil {
		return err
	}
	e.mapping = mapping
	e.thresholds = th
	e.detector = d
	return nil
}

// Domain is the business domain reported by the narrator, if any.
func (e *Engine) Domain() string { return e.domain }

// SetDomain overrides the detected domain.
func (e *Engine) SetDomain(d string) { e.domain = d }

// Thresholds returns the fitted thresholds.
func (e *Engine) Thresholds() *signals.Thresholds { return e.thresholds }

// Recommend builds the recommendation for one row. prob may be nil. An empty
// label is derived from prob.
func (e *Engine) Recommend(row dataset.Row, prob *float64, label string) (*Output, error) {
	if e.detector == nil {
		return nil, ErrNotFitted
	}
	cs := e.detector.Detect(row, prob)
	recs := e.generator.Generate(cs)

	if label == "" {
		label = "No"
		if prob != nil && *prob >= predictionThreshold {
			label = "Yes"
		}
	}

	out := &Output{
		CustomerID:       cs.CustomerID,
		ChurnProbability: prob,
		ChurnPrediction:  label,
		RiskLevel:        cs.OverallRisk,
		Signals:          make([]SignalView, len(cs.Signals)),
		Recommendations:  make([]ActionView, len(recs.Actions)),
		Summary:          recs.Summary,
		Priority:         recs.PriorityLevel,
	}
	for i, s := range cs.Signals {
		out.Signals[i] = SignalView{Type: s.Type, Description: s.Description, Risk: s.Tier, Evidence: s.Evidence}
	}
	for i, a := range recs.Actions {
		out.Recommendations[i] = ActionView{Action: a.Description, Priority: a.Priority, Type: a.Type}
	}
	return out, nil
}

// RecommendBatch recommends every row of frame in order. probs and labels
// are each nil or one entry per row.
func (e *Engine) RecommendBatch(frame *dataset.Frame, probs []float64, labels []string) ([]*Output, error) {
	n := frame.Len()
	if probs != nil && len(probs) != n {
		return nil, fmt.Errorf("got %d probabilities for %d rows", len(probs), n)
	}
	if labels != nil && len(labels) != n {
		return nil, fmt.Errorf("got %d labels for %d rows", len(labels), n)
	}
	out := make([]*Output, n)
	for i := range out {
		var p *float64
		if probs != nil {
			v := probs[i]
			p = &v
		}
		var label string
		if labels != nil {
			label = labels[i]
		}
		rec, err := e.Recommend(frame.Row(i), p, label)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// Narrate asks the narrator for a customer story and stores it on out.
// Failures leave out unchanged.
func (e *Engine) Narrate(ctx context.Context, row dataset.Row, out *Output) {
	if IsNoop(e.narrator) {
		return
	}
	text, err := e.narrator.CustomerNarrative(ctx, e.customerContext(row, out))
	if err != nil {
		slog.Warn("customer narrative failed", "customer", out.CustomerID, "error", err)
		return
	}
	out.Narrative = text
}

func (e *Engine) customerContext(row dataset.Row, out *Output) CustomerContext {
	c := CustomerContext{Data: row, Probability: predictionThreshold, Domain: e.domain}
	if out.ChurnProbability != nil {
		c.Probability = *out.ChurnProbability
	}
	for _, s := range out.Signals {
		c.Signals = append(c.Signals, s.Description)
	}
	return c
}
