package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/model"
	"github.com/spboyer/churnkit/internal/recommend"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spf13/cobra"
)

const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Churn Analysis Report</title>
</head>
<body>
%s</body>
</html>
`

func newPredictCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a dataset with a trained model",
		Long: `Score every row of a dataset with a saved model, detect churn signals and
recommend retention actions.

The output CSV holds every input column followed by churn_probability,
churn_prediction, risk_level, churn_signals and recommendations. With
--no-recommendations only the probability and prediction are added.

--report writes the markdown analysis report; --html writes the same report
rendered as an HTML page.`,
		RunE:          runPredict,
		SilenceErrors: true,
	}
	cmd.Flags().String("data", "", "CSV file to score (required)")
	cmd.Flags().String("output", "", "Output CSV file (required)")
	cmd.Flags().String("key", defaultModelKey, "Artifact key of the model to load")
	cmd.Flags().Float64("threshold", 0, "Positive-class probability cut-off (default from config)")
	cmd.Flags().Bool("no-recommendations", false, "Only add churn probability and prediction")
	cmd.Flags().String("report", "", "Write the markdown analysis report to this file")
	cmd.Flags().String("html", "", "Write the analysis report as HTML to this file")
	cmd.Flags().String("domain", "", "Business domain used in narrated report sections")
	cmd.Flags().Bool("use-llm", false, "Narrate the report with the configured language model")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runPredict(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	dataPath, _ := flags.GetString("data")
	outPath, _ := flags.GetString("output")
	key, _ := flags.GetString("key")
	thresholdFlag, _ := flags.GetFloat64("threshold")
	noRecs, _ := flags.GetBool("no-recommendations")
	reportPath, _ := flags.GetString("report")
	htmlPath, _ := flags.GetString("html")
	domain, _ := flags.GetString("domain")
	useLLM, _ := flags.GetBool("use-llm")

	if noRecs && (reportPath != "" || htmlPath != "") {
		return fmt.Errorf("--report and --html need recommendations")
	}

	p, err := openProject(cmd, useLLM)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())

	threshold, err := p.threshold(thresholdFlag)
	if err != nil {
		return err
	}
	store, err := p.artifacts(cmd.Context())
	if err != nil {
		return err
	}
	pipe, err := model.Load(cmd.Context(), store, key, model.WithMapper(p.mapper()))
	if err != nil {
		return err
	}

	frame, err := dataset.LoadCSV(dataPath)
	if err != nil {
		return err
	}
	pred, err := pipe.Predict(frame, threshold)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	outPath = p.outputPath(outPath)

	if noRecs {
		if err := saveCSV(outPath, predictionTable(frame, pred)); err != nil {
			return err
		}
		churners := 0
		for _, v := range pred.Predictions {
			churners += v
		}
		fmt.Fprintf(out, "Scored %d customers, %d predicted to churn\n", frame.Len(), churners)
		fmt.Fprintf(out, "Predictions written to %s\n", outPath)
		return nil
	}

	eng, err := recommend.NewEngine(recommend.WithNarrator(p.narrator))
	if err != nil {
		return err
	}
	if err := eng.FitWithThresholds(pipe.Mapping(), pipe.Thresholds()); err != nil {
		return err
	}
	eng.SetDomain(domain)

	outputs, err := eng.RecommendBatch(frame, pred.Probabilities, pred.Labels)
	if err != nil {
		return err
	}
	table, err := recommend.ExportRecords(frame, outputs)
	if err != nil {
		return err
	}
	if err := saveCSV(outPath, table); err != nil {
		return err
	}

	printStats(out, recommend.Stats(outputs))
	fmt.Fprintln(out)
	fmt.Fprintln(out, recommend.HighRiskReport(outputs, schema.TierHigh))
	fmt.Fprintf(out, "Recommendations written to %s\n", outPath)

	if reportPath == "" && htmlPath == "" {
		return nil
	}
	report := eng.EnhancedReport(cmd.Context(), frame, outputs)
	if reportPath != "" {
		reportPath = p.outputPath(reportPath)
		if err := writeFile(reportPath, []byte(report)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", reportPath)
	}
	if htmlPath != "" {
		body, err := recommend.RenderHTML(report)
		if err != nil {
			return err
		}
		htmlPath = p.outputPath(htmlPath)
		if err := writeFile(htmlPath, []byte(fmt.Sprintf(htmlPage, body))); err != nil {
			return err
		}
		fmt.Fprintf(out, "HTML report written to %s\n", htmlPath)
	}
	return nil
}

// predictionTable appends probability and label to every input row.
func predictionTable(frame *dataset.Frame, pred *model.PredictionResult) *dataset.Table {
	names := frame.Names()
	t := &dataset.Table{
		Header:  append(slices.Clone(names), "churn_probability", "churn_prediction"),
		Records: make([][]string, frame.Len()),
	}
	for i := range t.Records {
		row := frame.Row(i)
		rec := make([]string, 0, len(t.Header))
		for _, n := range names {
			rec = append(rec, row[n])
		}
		t.Records[i] = append(rec, strconv.FormatFloat(pred.Probabilities[i], 'f', 4, 64), pred.Labels[i])
	}
	return t
}

func printStats(w io.Writer, s recommend.Summary) {
	fmt.Fprintf(w, "Customers analyzed: %d\n", s.TotalCustomers)
	fmt.Fprintf(w, "Average churn probability: %.1f%%\n", s.AvgChurnProbability*100)
	fmt.Fprintf(w, "Above 70%%: %d\n\n", s.AboveSeventy)

	rows := make([][]string, 0, len(schema.Tiers))
	for _, t := range slices.Backward(schema.Tiers) {
		rows = append(rows, []string{string(t), strconv.Itoa(s.RiskDistribution[t]), fmt.Sprintf("%.1f%%", s.RiskPercentages[t])})
	}
	printTable(w, []string{"Risk", "Customers", "Share"}, rows)
}
