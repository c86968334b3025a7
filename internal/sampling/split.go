// Package sampling provides seeded, class-stratified row partitions for
// hold-out evaluation and cross-validation.
package sampling

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split holds row indices for a train/test partition, each in ascending order.
type Split struct {
	Train []int
	Test  []int
}

// Fold is one cross-validation round.
type Fold = Split

// byClass groups row indices by label and shuffles each group with rng.
// Groups are returned in ascending label order.
func byClass(y []int, rng *rand.Rand) [][]int {
	groups := map[int][]int{}
	for i, label := range y {
		groups[label] = append(groups[label], i)
	}
	labels := make([]int, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	out := make([][]int, len(labels))
	for k, l := range labels {
		g := groups[l]
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		out[k] = g
	}
	return out
}

// StratifiedSplit partitions rows so each class keeps its proportion in the
// test set. Every class with at least two members contributes at least one
// row to each side.
func StratifiedSplit(y []int, testSize float64, seed int64) (Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size %g must be in (0, 1)", testSize)
	}
	if len(y) < 2 {
		return Split{}, fmt.Errorf("need at least 2 rows to split, got %d", len(y))
	}

	rng := rand.New(rand.NewSource(seed))
	var s Split
	for _, g := range byClass(y, rng) {
		if len(g) < 2 {
			return Split{}, fmt.Errorf("the least populated class has only %d member; stratified split needs 2", len(g))
		}
		nTest := int(math.Round(testSize * float64(len(g))))
		nTest = min(max(nTest, 1), len(g)-1)
		s.Test = append(s.Test, g[:nTest]...)
		s.Train = append(s.Train, g[nTest:]...)
	}
	sort.Ints(s.Train)
	sort.Ints(s.Test)
	return s, nil
}

// StratifiedKFold deals each class's shuffled rows round-robin into k folds
// and returns, per fold, that fold as Test and the rest as Train.
func StratifiedKFold(y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold needs k >= 2, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", len(y), k)
	}

	rng := rand.New(rand.NewSource(seed))
	member := make([]int, len(y))
	next := 0
	for _, g := range byClass(y, rng) {
		for _, i := range g {
			member[i] = next % k
			next++
		}
	}

	folds := make([]Fold, k)
	for i, f := range member {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}

// Rows selects rows of X by index.
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for k, i := range idx {
		out[k] = X[i]
	}
	return out
}

// Labels selects labels by index.
func Labels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for k, i := range idx {
		out[k] = y[i]
	}
	return out
}
