package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spboyer/churnkit/internal/utils"
	"github.com/spboyer/churnkit/internal/validation"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file.csv> [file.csv...]",
		Short: "Run pre-flight checks on dataset files",
		Long: `Run pre-flight checks on one or more CSV files before mapping or training.

Checks the file is readable, has enough rows and columns, has a usable churn
target, and flags missing values, numbers stored as text and constant columns.

With more than one file a summary table is printed after the reports.`,
		Args:          cobra.MinimumNArgs(1),
		RunE:          runCheck,
		SilenceErrors: true,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if err := checkFormat(format, "text", "json"); err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	v := validation.NewDatasetValidator()
	var reports []*validation.DatasetReport
	for _, path := range utils.ResolvePaths(args, wd) {
		reports = append(reports, v.Validate(path))
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		if err := writeJSON(out, reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Fprint(out, r.Summary())
		}
		if len(reports) > 1 {
			fmt.Fprintln(out)
			printCheckTable(cmd, reports)
		}
	}

	failed := 0
	for _, r := range reports {
		if !r.IsValid {
			failed++
		}
	}
	if failed > 0 {
		return &ValidationFailedError{Message: fmt.Sprintf("%d of %d dataset(s) failed pre-flight checks", failed, len(reports))}
	}
	return nil
}

func printCheckTable(cmd *cobra.Command, reports []*validation.DatasetReport) {
	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = []string{
			filepath.Base(r.Path),
			strconv.Itoa(r.Rows),
			statusIcon(r.IsValid),
			statusIcon(r.CanTrain),
			statusIcon(r.CanPredict),
			strconv.Itoa(r.Count(validation.StatusWarning)),
		}
	}
	printTable(cmd.OutOrStdout(), []string{"File", "Rows", "Valid", "Train", "Predict", "Warnings"}, rows)
}

func statusIcon(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
