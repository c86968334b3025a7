package smart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/model"
	"github.com/spboyer/churnkit/internal/recommend"
	"github.com/spboyer/churnkit/internal/registry"
	"github.com/spboyer/churnkit/internal/schema"
)

// Outcome describes what Run did.
type Outcome string

const (
	OutcomeTrained   Outcome = "trained"
	OutcomePredicted Outcome = "predicted"
	// OutcomeRetrainRecommended means a partial match was found. Nothing was
	// trained or predicted.
	OutcomeRetrainRecommended Outcome = "retrain_recommended"
)

// RunOptions overrides the decision.
type RunOptions struct {
	ForceTrain bool
	// ForcePredict uses the matched model even when the match is partial.
	ForcePredict bool
	// Threshold is the positive-class probability cut-off. Zero selects
	// model.DefaultThreshold.
	Threshold float64
}

// RunResult is the outcome of Run.
type RunResult struct {
	Decision      *Decision             `json:"decision"`
	Outcome       Outcome               `json:"outcome"`
	Domain        string                `json:"domain,omitempty"`
	ModelLocation string                `json:"model_location,omitempty"`
	Training      *model.TrainingResult `json:"training,omitempty"`
	Outputs       []*recommend.Output   `json:"recommendations,omitempty"`
	Stats         *recommend.Summary    `json:"stats,omitempty"`
	Export        *dataset.Table        `json:"-"`
	Report        string                `json:"report,omitempty"`
}

// Run decides and then trains, predicts, or only reports a retrain
// recommendation.
func (p *Pipeline) Run(ctx context.Context, frame *dataset.Frame, opts RunOptions) (*RunResult, error) {
	mapping, err := p.mapper.Map(ctx, frame, mapper.Request{Mode: mapper.ModeAuto})
	if err != nil {
		return nil, fmt.Errorf("mapping columns: %w", err)
	}
	decision, err := p.decide(ctx, frame, mapping)
	if err != nil {
		return nil, err
	}
	slog.Info("smart decision", "action", decision.Action, "confidence", decision.Confidence, "domain", decision.MatchedDomain)

	action := decision.Action
	switch {
	case opts.ForceTrain:
		action = ActionTrain
	case opts.ForcePredict && decision.ModelLocation != "":
		action = ActionPredict
	}

	switch action {
	case ActionTrain:
		return p.train(ctx, frame, mapping, decision)
	case ActionPredict:
		return p.predict(ctx, frame, decision, opts.Threshold)
	}
	return &RunResult{
		Decision:      decision,
		Outcome:       OutcomeRetrainRecommended,
		Domain:        decision.MatchedDomain,
		ModelLocation: decision.ModelLocation,
	}, nil
}

func (p *Pipeline) train(ctx context.Context, frame *dataset.Frame, mapping *mapper.MappingResult, decision *Decision) (*RunResult, error) {
	domain := p.DetectDomain(ctx, frame)
	key := ModelKey(domain)

	pipe, err := model.New(p.family, append([]model.Option{model.WithMapper(p.mapper)}, p.modelOpts...)...)
	if err != nil {
		return nil, err
	}
	res, err := pipe.Train(ctx, frame, mapping)
	if err != nil {
		return nil, err
	}
	if err := pipe.Save(ctx, p.artifacts, key); err != nil {
		return nil, err
	}

	doc, err := p.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	target, _ := mapping.FirstByRole(schema.RoleTarget)
	doc.Upsert(registry.Entry{
		DomainName:           domain,
		ModelLocation:        key,
		PreprocessorLocation: key,
		TrainingColumns:      frame.Names(),
		TargetColumn:         target,
		FeatureCount:         frame.Width(),
		SampleCount:          frame.Len(),
		CreatedAt:            pipe.CreatedAt(),
	})
	if err := p.registry.Save(ctx, doc); err != nil {
		return nil, err
	}
	slog.Info("registered model", "domain", domain, "key", key)

	return &RunResult{
		Decision:      decision,
		Outcome:       OutcomeTrained,
		Domain:        domain,
		ModelLocation: key,
		Training:      res,
		Report:        pipe.Report(),
	}, nil
}

func (p *Pipeline) predict(ctx context.Context, frame *dataset.Frame, decision *Decision, threshold float64) (*RunResult, error) {
	if threshold == 0 {
		threshold = model.DefaultThreshold
	}
	pipe, err := model.Load(ctx, p.artifacts, decision.ModelLocation, model.WithMapper(p.mapper))
	if err != nil {
		return nil, err
	}
	pred, err := pipe.Predict(frame, threshold)
	if err != nil {
		return nil, err
	}

	engine, err := recommend.NewEngine(recommend.WithNarrator(p.narrator))
	if err != nil {
		return nil, err
	}
	if err := engine.FitWithThresholds(pipe.Mapping(), pipe.Thresholds()); err != nil {
		return nil, err
	}
	engine.SetDomain(decision.MatchedDomain)

	outputs, err := engine.RecommendBatch(frame, pred.Probabilities, pred.Labels)
	if err != nil {
		return nil, err
	}
	export, err := recommend.ExportRecords(frame, outputs)
	if err != nil {
		return nil, err
	}
	stats := recommend.Stats(outputs)
	return &RunResult{
		Decision:      decision,
		Outcome:       OutcomePredicted,
		Domain:        decision.MatchedDomain,
		ModelLocation: decision.ModelLocation,
		Outputs:       outputs,
		Stats:         &stats,
		Export:        export,
		Report:        engine.EnhancedReport(ctx, frame, outputs),
	}, nil
}
