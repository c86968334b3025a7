package main

import (
	"fmt"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/recommend"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/smart"
	"github.com/spf13/cobra"
)

func newSmartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smart",
		Short: "Train or predict, depending on the registered domains",
		Long: `Compare the dataset with every domain in the model registry and act.

  - No target column, or a compatible model (score >= 0.70): predict with it
  - Partially compatible model (score >= 0.40): recommend retraining
  - Otherwise: detect the domain, train a new model and register it

--force-train always trains; --force-predict predicts with the best match
even when it is only partially compatible.`,
		RunE:          runSmart,
		SilenceErrors: true,
	}
	cmd.Flags().String("data", "", "Dataset CSV file (required)")
	cmd.Flags().String("output", "smart_predictions.csv", "Output CSV file when predicting")
	cmd.Flags().String("report", "", "Write the markdown analysis report to this file when predicting")
	cmd.Flags().String("model", "", "Model family used when training")
	cmd.Flags().Float64("threshold", 0, "Positive-class probability cut-off (default from config)")
	cmd.Flags().Bool("force-train", false, "Always train a new model")
	cmd.Flags().Bool("force-predict", false, "Predict with the best matching model")
	cmd.Flags().Bool("use-llm", false, "Use the configured language model for mapping, domain detection and narration")
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.MarkFlagsMutuallyExclusive("force-train", "force-predict")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runSmart(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	dataPath, _ := flags.GetString("data")
	outPath, _ := flags.GetString("output")
	reportPath, _ := flags.GetString("report")
	familyFlag, _ := flags.GetString("model")
	thresholdFlag, _ := flags.GetFloat64("threshold")
	forceTrain, _ := flags.GetBool("force-train")
	forcePredict, _ := flags.GetBool("force-predict")
	useLLM, _ := flags.GetBool("use-llm")
	format, _ := flags.GetString("format")
	if err := checkFormat(format, "text", "json"); err != nil {
		return err
	}

	p, err := openProject(cmd, useLLM)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())

	family, err := p.family(familyFlag)
	if err != nil {
		return err
	}
	threshold, err := p.threshold(thresholdFlag)
	if err != nil {
		return err
	}
	store, err := p.artifacts(cmd.Context())
	if err != nil {
		return err
	}
	reg, err := p.registry(cmd.Context(), store)
	if err != nil {
		return err
	}

	frame, err := dataset.LoadCSV(dataPath)
	if err != nil {
		return err
	}

	pipeline := smart.New(reg, store,
		smart.WithMapper(p.mapper()),
		smart.WithNarrator(p.narrator),
		smart.WithFamily(family),
		smart.WithModelOptions(p.modelOptions()...),
	)
	stop := startSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Analyzing %d customers...", frame.Len()))
	res, err := pipeline.Run(cmd.Context(), frame, smart.RunOptions{
		ForceTrain:   forceTrain,
		ForcePredict: forcePredict,
		Threshold:    threshold,
	})
	stop()
	if err != nil {
		return err
	}

	if res.Export != nil {
		outPath = p.outputPath(outPath)
		if err := saveCSV(outPath, res.Export); err != nil {
			return err
		}
	}
	if reportPath != "" && res.Outcome == smart.OutcomePredicted {
		reportPath = p.outputPath(reportPath)
		if err := writeFile(reportPath, []byte(res.Report)); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, res)
	}

	d := res.Decision
	fmt.Fprintf(out, "Decision: %s (confidence %.0f%%)\n", d.Action, d.Confidence*100)
	fmt.Fprintf(out, "Reason: %s\n", d.Reason)
	if d.MatchedDomain != "" {
		fmt.Fprintf(out, "Matched domain: %s\n", d.MatchedDomain)
	}
	fmt.Fprintf(out, "Outcome: %s\n\n", res.Outcome)

	switch res.Outcome {
	case smart.OutcomeTrained:
		fmt.Fprintln(out, res.Report)
		fmt.Fprintf(out, "Registered domain %q as %s\n", res.Domain, res.ModelLocation)
	case smart.OutcomePredicted:
		if res.Stats != nil {
			printStats(out, *res.Stats)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, recommend.HighRiskReport(res.Outputs, schema.TierHigh))
		fmt.Fprintf(out, "Predictions written to %s\n", outPath)
		if reportPath != "" {
			fmt.Fprintf(out, "Report written to %s\n", reportPath)
		}
	case smart.OutcomeRetrainRecommended:
		fmt.Fprintf(out, "Model %s is only partially compatible. Re-run with --force-train to retrain or --force-predict to use it anyway.\n", res.ModelLocation)
	}
	return nil
}
