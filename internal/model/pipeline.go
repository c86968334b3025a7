// Package model trains churn classifiers on mapped datasets, evaluates them,
// and persists the fitted pipeline as a single artifact.
package model

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/churnkit/internal/classifier"
	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/metrics"
	"github.com/spboyer/churnkit/internal/preprocess"
	"github.com/spboyer/churnkit/internal/sampling"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/signals"
	"github.com/spboyer/churnkit/internal/statistics"
	"golang.org/x/sync/errgroup"
)

// ErrNotTrained is returned by Predict and Save before Train or Load.
var ErrNotTrained = errors.New("model not trained")

const (
	DefaultTestSize  = 0.2
	DefaultCVFolds   = 5
	DefaultSeed      = 42
	DefaultThreshold = 0.5

	ciLevel = 0.95
)

// FeatureScore is the importance of one encoded feature.
type FeatureScore struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TrainingResult holds the evaluation of a training run.
type TrainingResult struct {
	ModelName         classifier.Family             `json:"model_name"`
	Accuracy          float64                       `json:"accuracy"`
	Precision         float64                       `json:"precision"`
	Recall            float64                       `json:"recall"`
	F1                float64                       `json:"f1"`
	ROCAUC            float64                       `json:"roc_auc"`
	CVScores          []float64                     `json:"cv_scores"`
	CVInterval        statistics.ConfidenceInterval `json:"cv_interval"`
	FeatureImportance []FeatureScore                `json:"feature_importance"`
	TrainRows         int                           `json:"train_rows"`
	TestRows          int                           `json:"test_rows"`
	DroppedRows       int                           `json:"dropped_rows,omitempty"`
}

// PredictionResult holds per-row predictions in input order.
type PredictionResult struct {
	Predictions   []int     `json:"predictions"`
	Probabilities []float64 `json:"probabilities"`
	Labels        []string  `json:"prediction_labels"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMapper sets the mapper used when Train receives no mapping.
func WithMapper(m *mapper.Mapper) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.mapper = m
		}
	}
}

// WithHyperparameters overlays the family defaults.
func WithHyperparameters(params map[string]any) Option {
	return func(p *Pipeline) {
		p.params = params
	}
}

// WithTestSize sets the held-out fraction.
func WithTestSize(f float64) Option {
	return func(p *Pipeline) { p.testSize = f }
}

// WithCVFolds sets the cross-validation fold count.
func WithCVFolds(k int) Option {
	return func(p *Pipeline) { p.cvFolds = k }
}

// WithSeed seeds the split, folds and bootstrap. It is also the classifier
// random_state unless the hyperparameters set one.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) { p.seed = seed }
}

// Pipeline couples a preprocessor, a classifier and the signal thresholds
// learned from the same training data.
type Pipeline struct {
	family   classifier.Family
	params   map[string]any
	mapper   *mapper.Mapper
	testSize float64
	cvFolds  int
	seed     int64

	clf        classifier.Classifier
	prep       *preprocess.Preprocessor
	mapping    *mapper.MappingResult
	thresholds *signals.Thresholds
	result     *TrainingResult
	runID      string
	createdAt  time.Time
}

// New returns an untrained pipeline. Unknown families and invalid
// hyperparameters are rejected here rather than at Train.
func New(family classifier.Family, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		family:   family,
		mapper:   mapper.New(),
		testSize: DefaultTestSize,
		cvFolds:  DefaultCVFolds,
		seed:     DefaultSeed,
	}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := classifier.New(family, p.classifierParams()); err != nil {
		return nil, err
	}
	if p.testSize <= 0 || p.testSize >= 1 {
		return nil, fmt.Errorf("test size %g must be in (0, 1)", p.testSize)
	}
	if p.cvFolds < 2 {
		return nil, fmt.Errorf("cv folds must be at least 2, got %d", p.cvFolds)
	}
	return p, nil
}

func (p *Pipeline) classifierParams() map[string]any {
	out := make(map[string]any, len(p.params)+1)
	for k, v := range p.params {
		out[k] = v
	}
	if _, ok := out["random_state"]; !ok {
		out["random_state"] = p.seed
	}
	return out
}

func (p *Pipeline) Family() classifier.Family              { return p.family }
func (p *Pipeline) Trained() bool                          { return p.clf != nil }
func (p *Pipeline) Mapping() *mapper.MappingResult         { return p.mapping }
func (p *Pipeline) Thresholds() *signals.Thresholds        { return p.thresholds }
func (p *Pipeline) Preprocessor() *preprocess.Preprocessor { return p.prep }
func (p *Pipeline) Result() *TrainingResult                { return p.result }
func (p *Pipeline) RunID() string                          { return p.runID }

// Train fits the pipeline on frame. A nil mapping is detected automatically.
// Rows whose target is missing are dropped with a warning.
func (p *Pipeline) Train(ctx context.Context, frame *dataset.Frame, mapping *mapper.MappingResult) (*TrainingResult, error) {
	if mapping == nil {
		m, err := p.mapper.Map(ctx, frame, mapper.Request{Mode: mapper.ModeAuto})
		if err != nil {
			return nil, fmt.Errorf("mapping columns: %w", err)
		}
		mapping = m
	}
	target, ok := mapping.FirstByRole(schema.RoleTarget)
	if !ok {
		return nil, fmt.Errorf("training: %w", preprocess.ErrNoTarget)
	}

	frame, dropped, err := dropMissingTarget(frame, target)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		slog.Warn("dropping rows with missing target", "column", target, "rows", dropped)
	}

	prep := preprocess.New()
	X, err := prep.FitTransform(frame, mapping)
	if err != nil {
		return nil, fmt.Errorf("preprocessing: %w", err)
	}
	if n := len(prep.Labels()); n != 2 {
		return nil, fmt.Errorf("target column %q must have exactly 2 classes, got %d", target, n)
	}
	y, err := prep.EncodeTarget(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding target: %w", err)
	}

	split, err := sampling.StratifiedSplit(y, p.testSize, p.seed)
	if err != nil {
		return nil, fmt.Errorf("splitting: %w", err)
	}
	clf, err := classifier.New(p.family, p.classifierParams())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Debug("fitting classifier", "family", p.family, "train", len(split.Train), "test", len(split.Test), "features", len(X[0]))
	if err := clf.Fit(sampling.Rows(X, split.Train), sampling.Labels(y, split.Train)); err != nil {
		return nil, fmt.Errorf("fitting %s: %w", p.family, err)
	}

	yTest := sampling.Labels(y, split.Test)
	proba, err := clf.PredictProba(sampling.Rows(X, split.Test))
	if err != nil {
		return nil, err
	}
	cls := metrics.ComputeClassification(yTest, metrics.BinaryPredictions(proba, DefaultThreshold))

	cv, err := p.crossValidate(ctx, X, y)
	if err != nil {
		return nil, fmt.Errorf("cross-validation: %w", err)
	}

	th, err := signals.ComputeThresholds(frame, mapping)
	if err != nil {
		return nil, fmt.Errorf("computing thresholds: %w", err)
	}

	result := &TrainingResult{
		ModelName:         p.family,
		Accuracy:          cls.Accuracy,
		Precision:         cls.Precision,
		Recall:            cls.Recall,
		F1:                cls.F1,
		ROCAUC:            metrics.ROCAUC(yTest, proba),
		CVScores:          cv,
		CVInterval:        statistics.BootstrapCI(cv, ciLevel, p.seed),
		FeatureImportance: rankFeatures(prep.FeatureNames(), clf.FeatureImportance()),
		TrainRows:         len(split.Train),
		TestRows:          len(split.Test),
		DroppedRows:       dropped,
	}

	p.clf = clf
	p.prep = prep
	p.mapping = mapping
	p.thresholds = th
	p.result = result
	p.runID = uuid.NewString()
	p.createdAt = time.Now().UTC()
	slog.Info("model trained", "family", p.family, "run_id", p.runID, "roc_auc", result.ROCAUC)
	return result, nil
}

// crossValidate returns the ROC-AUC of each stratified fold, fitted
// concurrently.
func (p *Pipeline) crossValidate(ctx context.Context, X [][]float64, y []int) ([]float64, error) {
	folds, err := sampling.StratifiedKFold(y, p.cvFolds, p.seed)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(folds))
	g, ctx := errgroup.WithContext(ctx)
	for i, fold := range folds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			clf, err := classifier.New(p.family, p.classifierParams())
			if err != nil {
				return err
			}
			if err := clf.Fit(sampling.Rows(X, fold.Train), sampling.Labels(y, fold.Train)); err != nil {
				return fmt.Errorf("fold %d: %w", i+1, err)
			}
			proba, err := clf.PredictProba(sampling.Rows(X, fold.Test))
			if err != nil {
				return fmt.Errorf("fold %d: %w", i+1, err)
			}
			scores[i] = metrics.ROCAUC(sampling.Labels(y, fold.Test), proba)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// Predict scores frame. Probabilities at or above threshold are positive.
func (p *Pipeline) Predict(frame *dataset.Frame, threshold float64) (*PredictionResult, error) {
	if !p.Trained() {
		return nil, ErrNotTrained
	}
	X, err := p.prep.Transform(frame)
	if err != nil {
		return nil, fmt.Errorf("preprocessing: %w", err)
	}
	proba, err := p.clf.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("predicting: %w", err)
	}
	preds := metrics.BinaryPredictions(proba, threshold)
	labels, err := p.prep.DecodeTarget(preds)
	if err != nil {
		return nil, err
	}
	return &PredictionResult{Predictions: preds, Probabilities: proba, Labels: labels}, nil
}

func dropMissingTarget(frame *dataset.Frame, target string) (*dataset.Frame, int, error) {
	col, ok := frame.Column(target)
	if !ok {
		return nil, 0, fmt.Errorf("target column %q not in dataset", target)
	}
	keep := make([]int, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if !col.IsNull(i) && strings.TrimSpace(col.Text(i)) != "" {
			keep = append(keep, i)
		}
	}
	if len(keep) == col.Len() {
		return frame, 0, nil
	}
	return frame.Take(keep), col.Len() - len(keep), nil
}

// rankFeatures pairs names with importances, most important first. Ties keep
// feature order.
func rankFeatures(names []string, importance []float64) []FeatureScore {
	out := make([]FeatureScore, 0, len(names))
	for i, name := range names {
		if i < len(importance) {
			out = append(out, FeatureScore{Feature: name, Importance: importance[i]})
		}
	}
	slices.SortStableFunc(out, func(a, b FeatureScore) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	return out
}
