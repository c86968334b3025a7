package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.25, 3.25},
		{0.5, 5.5},
		{0.75, 7.75},
		{1, 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Quantile(vals, tt.q), 1e-12, "q=%v", tt.q)
	}
}

func TestQuantile_IgnoresNaN(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{math.NaN(), 1, 2, 3}))
	assert.True(t, math.IsNaN(Quantile([]float64{math.NaN()}, 0.5)))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestQuartiles_Unsorted(t *testing.T) {
	q1, q3 := Quartiles([]float64{9, 1, 5, 3, 7})
	assert.Equal(t, 3.0, q1)
	assert.Equal(t, 7.0, q3)
}

func TestOutlierCount(t *testing.T) {
	vals := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 1000}
	assert.Equal(t, 1, OutlierCount(vals, 3))

	assert.Equal(t, 0, OutlierCount([]float64{5, 5, 5, 5}, 3), "zero IQR disables the check")
}
