package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ForestParams are the random forest hyperparameters.
type ForestParams struct {
	NEstimators     int    `mapstructure:"n_estimators" json:"n_estimators"`
	MaxDepth        int    `mapstructure:"max_depth" json:"max_depth"`
	MinSamplesSplit int    `mapstructure:"min_samples_split" json:"min_samples_split"`
	MinSamplesLeaf  int    `mapstructure:"min_samples_leaf" json:"min_samples_leaf"`
	MaxFeatures     string `mapstructure:"max_features" json:"max_features"`
	RandomState     int64  `mapstructure:"random_state" json:"random_state"`
	// NJobs bounds concurrent tree fitting; values below 1 use GOMAXPROCS.
	NJobs int `mapstructure:"n_jobs" json:"n_jobs"`
}

// DefaultForestParams returns the forest defaults.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:     100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		RandomState:     42,
		NJobs:           -1,
	}
}

// Forest is a bagged ensemble of CART trees. Tree i draws its bootstrap
// sample and feature subsets from seed RandomState+i, so fitting is
// deterministic regardless of scheduling.
type Forest struct {
	P          ForestParams `json:"params"`
	Trees      []*tree      `json:"trees"`
	Importance []float64    `json:"importance"`
	Features   int          `json:"n_features"`
}

func newForest(p ForestParams) (*Forest, error) {
	if p.NEstimators < 1 {
		return nil, fmt.Errorf("n_estimators must be at least 1, got %d", p.NEstimators)
	}
	if _, err := resolveMaxFeatures(p.MaxFeatures, 1); err != nil {
		return nil, err
	}
	return &Forest{P: p}, nil
}

func (f *Forest) Family() Family         { return FamilyRandomForest }
func (f *Forest) NumFeatures() int       { return f.Features }
func (f *Forest) Params() map[string]any { return paramsMap(f.P) }

func (f *Forest) FeatureImportance() []float64 {
	return append([]float64(nil), f.Importance...)
}

func (f *Forest) MarshalState() ([]byte, error) { return json.Marshal(f) }

// Fit grows NEstimators trees concurrently.
func (f *Forest) Fit(X [][]float64, y []int) error {
	p, err := checkTraining(X, y)
	if err != nil {
		return err
	}
	k, err := resolveMaxFeatures(f.P.MaxFeatures, p)
	if err != nil {
		return err
	}
	cfg := treeConfig{
		maxDepth:        f.P.MaxDepth,
		minSamplesSplit: f.P.MinSamplesSplit,
		minSamplesLeaf:  f.P.MinSamplesLeaf,
		maxFeatures:     k,
	}
	target := make([]float64, len(y))
	for i, v := range y {
		target[i] = float64(v)
	}

	n := len(X)
	trees := make([]*tree, f.P.NEstimators)
	imps := make([][]float64, f.P.NEstimators)

	var g errgroup.Group
	limit := f.P.NJobs
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.P.RandomState + int64(i)))
			sample := make([]int, n)
			for j := range sample {
				sample[j] = rng.Intn(n)
			}
			imp := make([]float64, p)
			trees[i] = growTree(X, target, sample, cfg, rng, imp)
			imps[i] = normalize(imp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	importance := make([]float64, p)
	for _, imp := range imps {
		for j, v := range imp {
			importance[j] += v / float64(len(imps))
		}
	}
	f.Trees = trees
	f.Importance = normalize(importance)
	f.Features = p
	return nil
}

// PredictProba averages the class-1 rate of each tree's leaf.
func (f *Forest) PredictProba(X [][]float64) ([]float64, error) {
	if err := checkPredict(X, f.Features); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		sum := 0.0
		for _, t := range f.Trees {
			sum += t.predict(x)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// resolveMaxFeatures turns a max_features setting into a feature count for p
// features. Accepted forms are sqrt, log2, all (or empty), a positive integer
// and a fraction in (0, 1].
func resolveMaxFeatures(spec string, p int) (int, error) {
	switch spec {
	case "sqrt":
		return max(1, int(math.Sqrt(float64(p)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(p)))), nil
	case "", "all", "none", "None":
		return p, nil
	}
	if n, err := strconv.Atoi(spec); err == nil && n > 0 {
		return min(n, p), nil
	}
	if frac, err := strconv.ParseFloat(spec, 64); err == nil && frac > 0 && frac <= 1 {
		return max(1, int(frac*float64(p))), nil
	}
	return 0, fmt.Errorf("invalid max_features %q", spec)
}
