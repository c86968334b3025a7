package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeClassification(t *testing.T) {
	yTrue := []int{1, 1, 1, 0, 0, 0, 0, 1}
	yPred := []int{1, 0, 1, 0, 1, 0, 0, 1}

	m := ComputeClassification(yTrue, yPred)
	require.NotNil(t, m)
	assert.Equal(t, 3, m.TP)
	assert.Equal(t, 1, m.FP)
	assert.Equal(t, 3, m.TN)
	assert.Equal(t, 1, m.FN)
	assert.InDelta(t, 0.75, m.Precision, epsilon)
	assert.InDelta(t, 0.75, m.Recall, epsilon)
	assert.InDelta(t, 0.75, m.F1, epsilon)
	assert.InDelta(t, 0.75, m.Accuracy, epsilon)
}

func TestComputeClassification_ZeroDivision(t *testing.T) {
	m := ComputeClassification([]int{0, 0, 1}, []int{0, 0, 0})
	require.NotNil(t, m)
	assert.Zero(t, m.Precision)
	assert.Zero(t, m.Recall)
	assert.Zero(t, m.F1)

	assert.Nil(t, ComputeClassification(nil, nil))
	assert.Nil(t, ComputeClassification([]int{1}, []int{1, 0}))
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		y      []int
		scores []float64
		want   float64
	}{
		{"perfect", []int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 1},
		{"inverted", []int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9}, 0},
		{"unsorted input", []int{1, 0, 1, 0}, []float64{0.9, 0.1, 0.8, 0.2}, 1},
		{"all tied", []int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"single class", []int{1, 1}, []float64{0.2, 0.9}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ROCAUC(tt.y, tt.scores), 1e-9)
		})
	}
}

func TestBinaryPredictions_InclusiveThreshold(t *testing.T) {
	assert.Equal(t, []int{0, 1, 1}, BinaryPredictions([]float64{0.49, 0.5, 0.9}, 0.5))
}
