package classifier

import (
	"math/rand"
	"testing"

	"github.com/spboyer/churnkit/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable returns n rows where feature 0 decides the label and feature 1 is
// noise.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		signal := rng.NormFloat64()
		X[i] = []float64{signal, rng.NormFloat64()}
		if signal+0.2*rng.NormFloat64() > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func smallParams(f Family) map[string]any {
	switch f {
	case FamilyRandomForest:
		return map[string]any{"n_estimators": 20, "max_features": "all"}
	case FamilyGradientBoosting:
		return map[string]any{"n_estimators": 30, "max_depth": 3}
	}
	return nil
}

func TestFamilies_LearnSeparableData(t *testing.T) {
	X, y := separable(300, 1)
	Xtest, ytest := separable(200, 2)

	for _, family := range Families {
		t.Run(string(family), func(t *testing.T) {
			c, err := New(family, smallParams(family))
			require.NoError(t, err)
			require.NoError(t, c.Fit(X, y))
			assert.Equal(t, family, c.Family())
			assert.Equal(t, 2, c.NumFeatures())

			probs, err := c.PredictProba(Xtest)
			require.NoError(t, err)
			require.Len(t, probs, len(Xtest))
			for _, p := range probs {
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
			}
			assert.Greater(t, metrics.ROCAUC(ytest, probs), 0.9)

			imp := c.FeatureImportance()
			require.Len(t, imp, 2)
			assert.Greater(t, imp[0], imp[1])
		})
	}
}

func TestTreeImportanceSumsToOne(t *testing.T) {
	X, y := separable(200, 3)
	for _, family := range []Family{FamilyRandomForest, FamilyGradientBoosting} {
		c, err := New(family, smallParams(family))
		require.NoError(t, err)
		require.NoError(t, c.Fit(X, y))
		sum := 0.0
		for _, v := range c.FeatureImportance() {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9, string(family))
	}
}

func TestForest_Deterministic(t *testing.T) {
	X, y := separable(150, 4)
	fit := func(jobs int) []float64 {
		c, err := New(FamilyRandomForest, map[string]any{"n_estimators": 15, "n_jobs": jobs})
		require.NoError(t, err)
		require.NoError(t, c.Fit(X, y))
		p, err := c.PredictProba(X)
		require.NoError(t, err)
		return p
	}
	assert.Equal(t, fit(1), fit(8))
}

func TestRestore(t *testing.T) {
	X, y := separable(120, 5)
	for _, family := range Families {
		t.Run(string(family), func(t *testing.T) {
			c, err := New(family, smallParams(family))
			require.NoError(t, err)
			require.NoError(t, c.Fit(X, y))
			want, err := c.PredictProba(X)
			require.NoError(t, err)

			state, err := c.MarshalState()
			require.NoError(t, err)
			restored, err := Restore(family, state)
			require.NoError(t, err)
			got, err := restored.PredictProba(X)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, c.Params(), restored.Params())
		})
	}

	_, err := Restore(FamilyLogisticRegression, []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestNew_Errors(t *testing.T) {
	_, err := New("xgboost", nil)
	require.ErrorIs(t, err, ErrUnknownFamily)
	assert.Contains(t, err.Error(), "unknown model type: xgboost (available: [random_forest gradient_boosting logistic_regression])")

	_, err = New(FamilyRandomForest, map[string]any{"n_trees": 10})
	assert.Error(t, err)

	_, err = New(FamilyRandomForest, map[string]any{"max_features": "most"})
	assert.Error(t, err)

	_, err = New(FamilyLogisticRegression, map[string]any{"C": 0})
	assert.Error(t, err)

	c, err := New(FamilyGradientBoosting, map[string]any{"n_estimators": "7"})
	require.NoError(t, err)
	assert.Equal(t, 7, c.Params()["n_estimators"])
}

func TestPredictBeforeFit(t *testing.T) {
	for _, family := range Families {
		c, err := New(family, nil)
		require.NoError(t, err)
		_, err = c.PredictProba([][]float64{{1, 2}})
		assert.ErrorIs(t, err, ErrNotFitted, string(family))
	}
}

func TestFit_RejectsBadInput(t *testing.T) {
	c, err := New(FamilyLogisticRegression, nil)
	require.NoError(t, err)
	assert.Error(t, c.Fit(nil, nil))
	assert.Error(t, c.Fit([][]float64{{1}, {2}}, []int{0}))
	assert.Error(t, c.Fit([][]float64{{1}, {2, 3}}, []int{0, 1}))
	assert.Error(t, c.Fit([][]float64{{1}, {2}}, []int{0, 2}))
}

func TestResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		spec string
		p    int
		want int
	}{
		{"sqrt", 16, 4},
		{"sqrt", 2, 1},
		{"log2", 16, 4},
		{"all", 7, 7},
		{"", 7, 7},
		{"3", 7, 3},
		{"30", 7, 7},
		{"0.5", 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := resolveMaxFeatures(tt.spec, tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
