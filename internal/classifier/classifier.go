// Package classifier implements the binary classifier families used by the
// model pipeline: a random forest, gradient boosted trees and L2 logistic
// regression. Every family predicts the probability of class 1 and can be
// serialized to JSON and restored.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Family names a classifier family.
type Family string

const (
	FamilyRandomForest       Family = "random_forest"
	FamilyGradientBoosting   Family = "gradient_boosting"
	FamilyLogisticRegression Family = "logistic_regression"
)

// Families lists the available families.
var Families = []Family{FamilyRandomForest, FamilyGradientBoosting, FamilyLogisticRegression}

var (
	// ErrUnknownFamily is returned for a family name outside Families.
	ErrUnknownFamily = errors.New("unknown model type")
	// ErrNotFitted is returned when predicting before Fit or Restore.
	ErrNotFitted = errors.New("classifier not fitted")
)

// Classifier is a fitted or unfitted binary classifier.
type Classifier interface {
	Family() Family

	// Fit trains on X (n rows × p features) and labels y in {0, 1}.
	Fit(X [][]float64, y []int) error

	// PredictProba returns P(y = 1) for each row of X.
	PredictProba(X [][]float64) ([]float64, error)

	// FeatureImportance returns one non-negative weight per feature. Tree
	// families sum to 1; logistic regression reports |coefficient|.
	FeatureImportance() []float64

	// NumFeatures is the feature count seen at Fit.
	NumFeatures() int

	// Params returns the effective hyperparameters.
	Params() map[string]any

	MarshalState() ([]byte, error)
}

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s (available: %v)", ErrUnknownFamily, s, Families)
}

// New creates an unfitted classifier. params overlay the family defaults;
// unknown keys are rejected.
func New(family Family, params map[string]any) (Classifier, error) {
	switch family {
	case FamilyRandomForest:
		p := DefaultForestParams()
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return newForest(p)
	case FamilyGradientBoosting:
		p := DefaultBoostingParams()
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return newBoosting(p)
	case FamilyLogisticRegression:
		p := DefaultLogisticParams()
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return newLogistic(p)
	default:
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownFamily, family, Families)
	}
}

// Restore rebuilds a fitted classifier from MarshalState output.
func Restore(family Family, state []byte) (Classifier, error) {
	var c Classifier
	switch family {
	case FamilyRandomForest:
		c = &Forest{}
	case FamilyGradientBoosting:
		c = &Boosting{}
	case FamilyLogisticRegression:
		c = &Logistic{}
	default:
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownFamily, family, Families)
	}
	if err := json.Unmarshal(state, c); err != nil {
		return nil, fmt.Errorf("restoring %s: %w", family, err)
	}
	if c.NumFeatures() == 0 {
		return nil, fmt.Errorf("restoring %s: %w", family, ErrNotFitted)
	}
	return c, nil
}

func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid hyperparameters: %w", err)
	}
	return nil
}

func paramsMap(v any) map[string]any {
	out := map[string]any{}
	_ = mapstructure.Decode(v, &out)
	return out
}

// checkTraining validates X and y and returns the feature count.
func checkTraining(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("empty training set")
	}
	if len(y) != len(X) {
		return 0, fmt.Errorf("X has %d rows but y has %d labels", len(X), len(y))
	}
	p := len(X[0])
	if p == 0 {
		return 0, errors.New("training set has no features")
	}
	for i, row := range X {
		if len(row) != p {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), p)
		}
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return 0, fmt.Errorf("label %d at row %d is not binary", label, i)
		}
	}
	return p, nil
}

func checkPredict(X [][]float64, p int) error {
	if p == 0 {
		return ErrNotFitted
	}
	for i, row := range X {
		if len(row) != p {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), p)
		}
	}
	return nil
}

func normalize(w []float64) []float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	if total <= 0 {
		return w
	}
	for i := range w {
		w[i] /= total
	}
	return w
}
