package main

import (
	"fmt"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/validation"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a dataset against the churn schema",
		Long: `Map the dataset and validate it against the churn schema.

Required roles (target, tenure) must be present. Recommended roles
(cost_monthly, contract) are warnings, or errors with --strict. The target
column, missing values, numeric columns and duplicates are checked and a data
quality score out of 100 is reported.

Exits with code 1 when the dataset is invalid.`,
		RunE:          runValidate,
		SilenceErrors: true,
	}
	cmd.Flags().String("data", "", "Dataset CSV file (required)")
	cmd.Flags().Bool("strict", false, "Treat missing recommended roles as errors")
	cmd.Flags().Bool("use-llm", false, "Ask the configured language model for role suggestions")
	cmd.Flags().String("format", "text", "Output format: text | json")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	dataPath, _ := flags.GetString("data")
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

	strict := *p.cfg.Validation.Strict
	if flags.Changed("strict") {
		strict, _ = flags.GetBool("strict")
	}

	frame, err := dataset.LoadCSV(dataPath)
	if err != nil {
		return err
	}
	req, err := p.mapRequest("", nil)
	if err != nil {
		return err
	}
	mapping, err := p.mapper().Map(cmd.Context(), frame, req)
	if err != nil {
		return err
	}

	res, err := validation.NewSchemaValidator(p.mapper()).Validate(cmd.Context(), frame, mapping, validation.Options{
		Strict:      strict,
		UseSemantic: req.UseSemantic,
	})
	if err != nil {
		return err
	}

	if format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), validation.Report(res))
	}

	if !res.IsValid {
		return &ValidationFailedError{Message: fmt.Sprintf("dataset failed validation with %d error(s)", len(res.Errors))}
	}
	return nil
}
