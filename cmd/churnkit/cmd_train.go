package main

import (
	"fmt"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/model"
	"github.com/spf13/cobra"
)

const defaultModelKey = "churn_model" + model.ArtifactExt

func newTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a churn model on a labelled dataset",
		Long: `Map the dataset, train a churn classifier and save the model artifact.

The artifact holds the classifier, the fitted preprocessing and the signal
thresholds learned from the training data. It is written to the configured
storage backend (paths.models by default).`,
		RunE:          runTrain,
		SilenceErrors: true,
	}
	cmd.Flags().String("data", "", "Training CSV file (required)")
	cmd.Flags().String("model", "", "Model family: random_forest | gradient_boosting | logistic_regression")
	cmd.Flags().String("key", defaultModelKey, "Artifact key to save the model under")
	cmd.Flags().String("mode", "", "Mapping mode: manual | auto | hybrid (default from config)")
	cmd.Flags().StringArray("override", nil, "Column override as column=role (repeatable)")
	cmd.Flags().Bool("use-llm", false, "Ask the configured language model for role suggestions")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	dataPath, _ := flags.GetString("data")
	familyFlag, _ := flags.GetString("model")
	key, _ := flags.GetString("key")
	mode, _ := flags.GetString("mode")
	assignments, _ := flags.GetStringArray("override")
	useLLM, _ := flags.GetBool("use-llm")

	overrides, err := parseAssignments(assignments)
	if err != nil {
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
	store, err := p.artifacts(cmd.Context())
	if err != nil {
		return err
	}

	frame, err := dataset.LoadCSV(dataPath)
	if err != nil {
		return err
	}
	req, err := p.mapRequest(mode, overrides)
	if err != nil {
		return err
	}
	mapping, err := p.mapper().Map(cmd.Context(), frame, req)
	if err != nil {
		return err
	}

	pipe, err := model.New(family, p.modelOptions()...)
	if err != nil {
		return err
	}
	stop := startSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Training %s model on %d rows...", family, frame.Len()))
	_, err = pipe.Train(cmd.Context(), frame, mapping)
	stop()
	if err != nil {
		return fmt.Errorf("training %s: %w", family, err)
	}
	if err := pipe.Save(cmd.Context(), store, key); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, pipe.Report())
	fmt.Fprintf(out, "Model saved as %s (run %s)\n", key, pipe.RunID())
	return nil
}
