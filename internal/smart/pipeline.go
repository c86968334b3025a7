// Package smart decides whether a dataset should be served by a previously
// trained model or needs a new one, and carries out that decision.
package smart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spboyer/churnkit/internal/artifact"
	"github.com/spboyer/churnkit/internal/classifier"
	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/model"
	"github.com/spboyer/churnkit/internal/recommend"
	"github.com/spboyer/churnkit/internal/registry"
	"github.com/spboyer/churnkit/internal/schema"
)

// Action is the outcome of Decide.
type Action string

const (
	ActionTrain   Action = "train"
	ActionPredict Action = "predict"
	ActionRetrain Action = "retrain"
)

const (
	predictScore = 0.70
	retrainScore = 0.40

	noTargetConfidence  = 0.8
	newDomainConfidence = 0.9

	overlapWeight = 0.5
	targetWeight  = 0.3
	featureWeight = 0.2

	domainColumns = 8
	domainSamples = 2
)

// Decision is the train-versus-reuse verdict for one dataset.
type Decision struct {
	Action        Action  `json:"action"`
	Reason        string  `json:"reason"`
	ModelLocation string  `json:"model_location,omitempty"`
	Confidence    float64 `json:"confidence"`
	MatchedDomain string  `json:"matched_domain,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMapper sets the column mapper.
func WithMapper(m *mapper.Mapper) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.mapper = m
		}
	}
}

// WithNarrator sets the collaborator used for domain detection and report
// narration.
func WithNarrator(n recommend.Narrator) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.narrator = n
		}
	}
}

// WithFamily sets the classifier family used when training.
func WithFamily(f classifier.Family) Option {
	return func(p *Pipeline) { p.family = f }
}

// WithModelOptions passes options to every trained model pipeline.
func WithModelOptions(opts ...model.Option) Option {
	return func(p *Pipeline) { p.modelOpts = append(p.modelOpts, opts...) }
}

// Pipeline routes datasets to training or prediction using a registry of
// previously trained domains.
type Pipeline struct {
	registry  registry.Store
	artifacts artifact.Store
	mapper    *mapper.Mapper
	narrator  recommend.Narrator
	family    classifier.Family
	modelOpts []model.Option
}

// New returns a pipeline over the given registry and artifact stores.
func New(reg registry.Store, artifacts artifact.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:  reg,
		artifacts: artifacts,
		mapper:    mapper.New(),
		narrator:  recommend.NoopNarrator{},
		family:    classifier.FamilyRandomForest,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide maps frame and compares it with every registered domain.
func (p *Pipeline) Decide(ctx context.Context, frame *dataset.Frame) (*Decision, error) {
	mapping, err := p.mapper.Map(ctx, frame, mapper.Request{Mode: mapper.ModeAuto})
	if err != nil {
		return nil, fmt.Errorf("mapping columns: %w", err)
	}
	return p.decide(ctx, frame, mapping)
}

func (p *Pipeline) decide(ctx context.Context, frame *dataset.Frame, mapping *mapper.MappingResult) (*Decision, error) {
	target, ok := mapping.FirstByRole(schema.RoleTarget)
	if !ok {
		return &Decision{
			Action:     ActionTrain,
			Reason:     "No target column detected. Training a new model.",
			Confidence: noTargetConfidence,
		}, nil
	}

	doc, err := p.registry.Load(ctx)
	if err != nil {
		return nil, err
	}

	columns := frame.Names()
	var (
		best      string
		bestScore float64
	)
	for _, name := range doc.Names() {
		score := Compatibility(columns, target, doc.Models[name])
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	slog.Debug("registry match", "domain", best, "score", bestScore)

	switch {
	case best != "" && bestScore >= predictScore:
		return &Decision{
			Action:        ActionPredict,
			Reason:        fmt.Sprintf("Found compatible model '%s' with %.0f%% similarity. Using existing model.", best, bestScore*100),
			ModelLocation: doc.Models[best].ModelLocation,
			Confidence:    bestScore,
			MatchedDomain: best,
		}, nil
	case best != "" && bestScore >= retrainScore:
		return &Decision{
			Action:        ActionRetrain,
			Reason:        fmt.Sprintf("Partial match with '%s' (%.0f%%). Recommend training a new model for better accuracy.", best, bestScore*100),
			ModelLocation: doc.Models[best].ModelLocation,
			Confidence:    bestScore,
			MatchedDomain: best,
		}, nil
	}
	domain := p.DetectDomain(ctx, frame)
	return &Decision{
		Action:     ActionTrain,
		Reason:     fmt.Sprintf("New domain '%s' detected. No compatible model found. Training a new model.", domain),
		Confidence: newDomainConfidence,
	}, nil
}

// Compatibility scores how well a dataset with columns and target fits a
// registered entry. The score is in [0,1] and is 1 for an identical shape.
func Compatibility(columns []string, target string, e registry.Entry) float64 {
	if len(e.TrainingColumns) == 0 {
		return 0
	}
	current := make(map[string]bool, len(columns))
	for _, c := range columns {
		current[c] = true
	}
	registered := make(map[string]bool, len(e.TrainingColumns))
	overlap := 0
	for _, c := range e.TrainingColumns {
		if registered[c] {
			continue
		}
		registered[c] = true
		if current[c] {
			overlap++
		}
	}
	score := overlapWeight * float64(overlap) / float64(len(registered))

	if target != "" && strings.EqualFold(target, e.TargetColumn) {
		score += targetWeight
	}
	if cur, reg := len(columns), e.FeatureCount; reg > 0 && cur > 0 {
		score += featureWeight * float64(min(cur, reg)) / float64(max(cur, reg))
	}
	return min(max(score, 0), 1)
}

var domainKeywords = []struct {
	domain   string
	keywords []string
}{
	{"Telecom", []string{"phone", "internet", "streaming", "fiber"}},
	{"Banking", []string{"credit", "balance", "loan", "deposit"}},
	{"HR/Employee", []string{"employee", "department", "salary", "job"}},
	{"SaaS/Subscription", []string{"subscription", "plan", "usage"}},
}

// DetectDomain names the business domain of frame. The narrator is asked
// first; column-name keywords are the fallback.
func (p *Pipeline) DetectDomain(ctx context.Context, frame *dataset.Frame) string {
	columns := frame.Names()
	if !recommend.IsNoop(p.narrator) {
		samples := make(map[string][]string)
		subset := columns[:min(len(columns), domainColumns)]
		for _, name := range subset {
			col, _ := frame.Column(name)
			samples[name] = col.NonNull(domainSamples)
		}
		domain, err := p.narrator.DetectDomain(ctx, subset, samples)
		if err != nil {
			slog.Warn("domain detection failed", "error", err)
		} else if domain = strings.TrimSpace(domain); domain != "" {
			return domain
		}
	}

	joined := strings.ToLower(strings.Join(columns, " "))
	for _, d := range domainKeywords {
		for _, k := range d.keywords {
			if strings.Contains(joined, k) {
				return d.domain
			}
		}
	}
	return "General"
}

// SafeName turns a domain label into an artifact key prefix.
func SafeName(domain string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(strings.ToLower(domain))
}

// ModelKey is the artifact key of the model trained for domain.
func ModelKey(domain string) string {
	return SafeName(domain) + "_model" + model.ArtifactExt
}
