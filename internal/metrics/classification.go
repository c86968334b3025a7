package metrics

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Classification holds binary classification metrics for the positive class (1).
type Classification struct {
	TP        int     `json:"true_positives"`
	FP        int     `json:"false_positives"`
	TN        int     `json:"true_negatives"`
	FN        int     `json:"false_negatives"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`
}

// ComputeClassification calculates precision, recall, F1, and accuracy from
// true and predicted labels. Undefined ratios (zero denominators) are 0.
// Returns nil when the inputs are empty or of different lengths.
func ComputeClassification(yTrue, yPred []int) *Classification {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return nil
	}

	var tp, fp, tn, fn int
	for i := range yTrue {
		actual, predicted := yTrue[i] == 1, yPred[i] == 1
		switch {
		case actual && predicted:
			tp++
		case !actual && predicted:
			fp++
		case !actual && !predicted:
			tn++
		case actual && !predicted:
			fn++
		}
	}

	precision := safeDivide(float64(tp), float64(tp+fp))
	recall := safeDivide(float64(tp), float64(tp+fn))

	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return &Classification{
		TP:        tp,
		FP:        fp,
		TN:        tn,
		FN:        fn,
		Precision: precision,
		Recall:    recall,
		F1:        f1,
		Accuracy:  safeDivide(float64(tp+tn), float64(len(yTrue))),
	}
}

// ROCAUC returns the area under the ROC curve of scores against binary labels.
// A label set with a single class has no defined curve; 0.5 is returned.
func ROCAUC(yTrue []int, scores []float64) float64 {
	n := len(yTrue)
	if n == 0 || n != len(scores) {
		return 0.5
	}

	pos := 0
	for _, y := range yTrue {
		if y == 1 {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return 0.5
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	y := make([]float64, n)
	classes := make([]bool, n)
	for k, i := range idx {
		y[k] = scores[i]
		classes[k] = yTrue[i] == 1
	}

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// BinaryPredictions thresholds probabilities; p >= threshold is positive.
func BinaryPredictions(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

func safeDivide(num, den float64) float64 {
	if den == 0 {
		return 0.0
	}
	return num / den
}
