package classifier

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogisticParams are the logistic regression hyperparameters. C is the
// inverse L2 regularization strength.
type LogisticParams struct {
	MaxIter      int     `mapstructure:"max_iter" json:"max_iter"`
	C            float64 `mapstructure:"C" json:"C"`
	LearningRate float64 `mapstructure:"learning_rate" json:"learning_rate"`
	Tol          float64 `mapstructure:"tol" json:"tol"`
	RandomState  int64   `mapstructure:"random_state" json:"random_state"`
}

// DefaultLogisticParams returns the logistic regression defaults.
func DefaultLogisticParams() LogisticParams {
	return LogisticParams{
		MaxIter:      1000,
		C:            1.0,
		LearningRate: 0.1,
		Tol:          1e-6,
		RandomState:  42,
	}
}

// Logistic is binary logistic regression fit by full-batch gradient descent
// on the mean log-loss plus ||w||²/(2·C·n). Weights start at zero, so the
// fit does not depend on RandomState.
type Logistic struct {
	P        LogisticParams `json:"params"`
	Weights  []float64      `json:"weights"`
	Bias     float64        `json:"bias"`
	Iter     int            `json:"n_iter"`
	Features int            `json:"n_features"`
}

func newLogistic(p LogisticParams) (*Logistic, error) {
	if p.MaxIter < 1 {
		return nil, fmt.Errorf("max_iter must be at least 1, got %d", p.MaxIter)
	}
	if p.C <= 0 {
		return nil, fmt.Errorf("C must be positive, got %g", p.C)
	}
	if p.LearningRate <= 0 {
		return nil, fmt.Errorf("learning_rate must be positive, got %g", p.LearningRate)
	}
	return &Logistic{P: p}, nil
}

func (l *Logistic) Family() Family         { return FamilyLogisticRegression }
func (l *Logistic) NumFeatures() int       { return l.Features }
func (l *Logistic) Params() map[string]any { return paramsMap(l.P) }

func (l *Logistic) FeatureImportance() []float64 {
	out := make([]float64, len(l.Weights))
	for i, w := range l.Weights {
		out[i] = math.Abs(w)
	}
	return out
}

func (l *Logistic) MarshalState() ([]byte, error) { return json.Marshal(l) }

func (l *Logistic) Fit(X [][]float64, y []int) error {
	p, err := checkTraining(X, y)
	if err != nil {
		return err
	}
	n := float64(len(X))
	w := make([]float64, p)
	grad := make([]float64, p)
	bias := 0.0
	lambda := 1 / (l.P.C * n)

	iter := 0
	for iter < l.P.MaxIter {
		iter++
		for j := range grad {
			grad[j] = lambda * w[j]
		}
		gb := 0.0
		for i, x := range X {
			d := (sigmoid(floats.Dot(w, x)+bias) - float64(y[i])) / n
			floats.AddScaled(grad, d, x)
			gb += d
		}
		floats.AddScaled(w, -l.P.LearningRate, grad)
		bias -= l.P.LearningRate * gb

		if math.Max(floats.Norm(grad, math.Inf(1)), math.Abs(gb)) < l.P.Tol {
			break
		}
	}

	l.Weights = w
	l.Bias = bias
	l.Iter = iter
	l.Features = p
	return nil
}

func (l *Logistic) PredictProba(X [][]float64) ([]float64, error) {
	if err := checkPredict(X, l.Features); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = sigmoid(floats.Dot(l.Weights, x) + l.Bias)
	}
	return out, nil
}
