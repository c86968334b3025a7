package model

import (
	"fmt"
	"strings"

	"github.com/spboyer/churnkit/internal/metrics"
)

const topFeatures = 10

// Report renders the training result as text.
func (p *Pipeline) Report() string {
	if p.result == nil {
		return "No training results available"
	}
	return FormatReport(p.result)
}

// FormatReport renders r as the human-readable training report.
func FormatReport(r *TrainingResult) string {
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "MODEL TRAINING REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "\nModel: %s\n", r.ModelName)
	if r.TrainRows > 0 {
		fmt.Fprintf(&b, "Rows:  %d train / %d test", r.TrainRows, r.TestRows)
		if r.DroppedRows > 0 {
			fmt.Fprintf(&b, " (%d dropped, missing target)", r.DroppedRows)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "\nPerformance Metrics:")
	fmt.Fprintf(&b, "  Accuracy:  %.4f\n", r.Accuracy)
	fmt.Fprintf(&b, "  Precision: %.4f\n", r.Precision)
	fmt.Fprintf(&b, "  Recall:    %.4f\n", r.Recall)
	fmt.Fprintf(&b, "  F1 Score:  %.4f\n", r.F1)
	fmt.Fprintf(&b, "  ROC-AUC:   %.4f\n", r.ROCAUC)

	if len(r.CVScores) > 0 {
		scores := make([]string, len(r.CVScores))
		for i, s := range r.CVScores {
			scores[i] = fmt.Sprintf("%.4f", s)
		}
		fmt.Fprintln(&b, "\nCross-Validation (ROC-AUC):")
		fmt.Fprintf(&b, "  Mean: %.4f ± %.4f\n", metrics.Mean(r.CVScores), metrics.StdDev(r.CVScores))
		fmt.Fprintf(&b, "  %.0f%% CI: [%.4f, %.4f]\n", r.CVInterval.ConfidenceLevel*100, r.CVInterval.Lower, r.CVInterval.Upper)
		fmt.Fprintf(&b, "  Scores: [%s]\n", strings.Join(scores, ", "))
	}

	if len(r.FeatureImportance) > 0 {
		fmt.Fprintf(&b, "\nTop %d Feature Importance:\n", topFeatures)
		for i, f := range r.FeatureImportance[:min(len(r.FeatureImportance), topFeatures)] {
			fmt.Fprintf(&b, "  %d. %s: %.4f\n", i+1, f.Feature, f.Importance)
		}
	}

	fmt.Fprintf(&b, "\n%s", rule)
	return b.String()
}
