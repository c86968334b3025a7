package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

// probClamp keeps the initial log-odds finite for single-class targets.
const probClamp = 1e-6

// BoostingParams are the gradient boosting hyperparameters.
type BoostingParams struct {
	NEstimators     int     `mapstructure:"n_estimators" json:"n_estimators"`
	MaxDepth        int     `mapstructure:"max_depth" json:"max_depth"`
	LearningRate    float64 `mapstructure:"learning_rate" json:"learning_rate"`
	MinSamplesSplit int     `mapstructure:"min_samples_split" json:"min_samples_split"`
	MinSamplesLeaf  int     `mapstructure:"min_samples_leaf" json:"min_samples_leaf"`
	RandomState     int64   `mapstructure:"random_state" json:"random_state"`
}

// DefaultBoostingParams returns the boosting defaults.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		NEstimators:     100,
		MaxDepth:        5,
		LearningRate:    0.1,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
}

// Boosting is log-loss gradient boosting over regression trees. Each stage
// fits the residual y − p and sets leaf values with one Newton step.
type Boosting struct {
	P          BoostingParams `json:"params"`
	Init       float64        `json:"init"`
	Stages     []*tree        `json:"stages"`
	Importance []float64      `json:"importance"`
	Features   int            `json:"n_features"`
}

func newBoosting(p BoostingParams) (*Boosting, error) {
	if p.NEstimators < 1 {
		return nil, fmt.Errorf("n_estimators must be at least 1, got %d", p.NEstimators)
	}
	if p.LearningRate <= 0 {
		return nil, fmt.Errorf("learning_rate must be positive, got %g", p.LearningRate)
	}
	return &Boosting{P: p}, nil
}

func (b *Boosting) Family() Family         { return FamilyGradientBoosting }
func (b *Boosting) NumFeatures() int       { return b.Features }
func (b *Boosting) Params() map[string]any { return paramsMap(b.P) }

func (b *Boosting) FeatureImportance() []float64 {
	return append([]float64(nil), b.Importance...)
}

func (b *Boosting) MarshalState() ([]byte, error) { return json.Marshal(b) }

func (b *Boosting) Fit(X [][]float64, y []int) error {
	p, err := checkTraining(X, y)
	if err != nil {
		return err
	}
	n := len(X)
	pos := 0
	for _, v := range y {
		pos += v
	}
	prior := math.Min(math.Max(float64(pos)/float64(n), probClamp), 1-probClamp)
	b.Init = math.Log(prior / (1 - prior))

	cfg := treeConfig{
		maxDepth:        b.P.MaxDepth,
		minSamplesSplit: b.P.MinSamplesSplit,
		minSamplesLeaf:  b.P.MinSamplesLeaf,
	}
	rng := rand.New(rand.NewSource(b.P.RandomState))
	importance := make([]float64, p)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	score := make([]float64, n)
	for i := range score {
		score[i] = b.Init
	}
	residual := make([]float64, n)
	prob := make([]float64, n)
	b.Stages = make([]*tree, 0, b.P.NEstimators)

	for range b.P.NEstimators {
		for i := range residual {
			prob[i] = sigmoid(score[i])
			residual[i] = float64(y[i]) - prob[i]
		}
		t := growTree(X, residual, all, cfg, rng, importance)
		newtonLeaves(t, X, residual, prob)
		for i, x := range X {
			score[i] += b.P.LearningRate * t.predict(x)
		}
		b.Stages = append(b.Stages, t)
	}

	b.Importance = normalize(importance)
	b.Features = p
	return nil
}

// newtonLeaves replaces each leaf mean with sum(r) / sum(p(1−p)).
func newtonLeaves(t *tree, X [][]float64, residual, prob []float64) {
	num := make(map[int]float64)
	den := make(map[int]float64)
	for i, x := range X {
		leaf := t.leaf(x)
		num[leaf] += residual[i]
		den[leaf] += prob[i] * (1 - prob[i])
	}
	for leaf, s := range num {
		d := den[leaf]
		if math.Abs(d) < 1e-150 {
			t.Nodes[leaf].Value = 0
			continue
		}
		t.Nodes[leaf].Value = s / d
	}
}

func (b *Boosting) PredictProba(X [][]float64) ([]float64, error) {
	if err := checkPredict(X, b.Features); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		s := b.Init
		for _, t := range b.Stages {
			s += b.P.LearningRate * t.predict(x)
		}
		out[i] = sigmoid(s)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
