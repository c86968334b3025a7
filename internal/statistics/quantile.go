package statistics

import (
	"math"
	"sort"
)

// Finite returns the non-NaN values of vals.
func Finite(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Quantile returns the q-th quantile of vals using linear interpolation
// between closest ranks (pos = q·(n−1)). NaN values are ignored. Returns NaN
// when no finite values remain.
func Quantile(vals []float64, q float64) float64 {
	sorted := Finite(vals)
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

// Median is Quantile(vals, 0.5).
func Median(vals []float64) float64 {
	return Quantile(vals, 0.5)
}

// Quartiles returns the 25th and 75th percentiles.
func Quartiles(vals []float64) (q1, q3 float64) {
	sorted := Finite(vals)
	if len(sorted) == 0 {
		return math.NaN(), math.NaN()
	}
	sort.Float64s(sorted)
	return quantileSorted(sorted, 0.25), quantileSorted(sorted, 0.75)
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// OutlierCount counts values outside [Q1−k·IQR, Q3+k·IQR]. It returns 0 when
// the IQR is not positive.
func OutlierCount(vals []float64, k float64) int {
	q1, q3 := Quartiles(vals)
	iqr := q3 - q1
	if math.IsNaN(iqr) || iqr <= 0 {
		return 0
	}
	lo, hi := q1-k*iqr, q3+k*iqr
	n := 0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if v < lo || v > hi {
			n++
		}
	}
	return n
}
