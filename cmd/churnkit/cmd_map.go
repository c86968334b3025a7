package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/validation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map dataset columns onto churn roles",
		Long: `Map every column of a dataset onto one of the churn roles (id, target,
tenure, cost_monthly, cost_total, contract, categorical, binary, numeric).

Modes:
  manual  only the overrides are applied
  auto    keyword, value and type detection
  hybrid  auto detection, then overrides win (default)

Overrides come from mapping.overrides in .churnkit.yaml, an exported mapping
file (--overrides-file) and repeated --override column=role flags, in that
order. With --interactive every column can be confirmed or changed.`,
		RunE:          runMap,
		SilenceErrors: true,
	}
	cmd.Flags().String("data", "", "Dataset CSV file (required)")
	cmd.Flags().String("mode", "", "Mapping mode: manual | auto | hybrid (default from config)")
	cmd.Flags().StringArray("override", nil, "Column override as column=role (repeatable)")
	cmd.Flags().String("overrides-file", "", "Exported mapping file (JSON or YAML) to reuse as overrides")
	cmd.Flags().Bool("use-llm", false, "Ask the configured language model for role suggestions")
	cmd.Flags().Bool("interactive", false, "Confirm or change each column's role")
	cmd.Flags().String("format", "table", "Output format: table | json | yaml")
	cmd.Flags().String("output", "", "Write the mapping document to this file")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runMap(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	dataPath, _ := flags.GetString("data")
	mode, _ := flags.GetString("mode")
	assignments, _ := flags.GetStringArray("override")
	overridesFile, _ := flags.GetString("overrides-file")
	useLLM, _ := flags.GetBool("use-llm")
	interactive, _ := flags.GetBool("interactive")
	format, _ := flags.GetString("format")
	outPath, _ := flags.GetString("output")

	if err := checkFormat(format, "table", "json", "yaml"); err != nil {
		return err
	}

	overrides := map[string]string{}
	if overridesFile != "" {
		fileOverrides, err := loadOverridesFile(overridesFile)
		if err != nil {
			return err
		}
		overrides = fileOverrides
	}
	flagOverrides, err := parseAssignments(assignments)
	if err != nil {
		return err
	}
	for k, v := range flagOverrides {
		overrides[k] = v
	}

	p, err := openProject(cmd, useLLM)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())

	frame, err := dataset.LoadCSV(dataPath)
	if err != nil {
		return err
	}

	req, err := p.mapRequest(mode, overrides)
	if err != nil {
		return err
	}
	m := p.mapper()
	res, err := m.Map(cmd.Context(), frame, req)
	if err != nil {
		return err
	}

	if interactive {
		res, err = m.Interactive(cmd.InOrStdin(), cmd.OutOrStdout(), frame, res)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		if err := writeJSON(out, res.Export()); err != nil {
			return err
		}
	case "yaml":
		data, err := yaml.Marshal(res.Export())
		if err != nil {
			return fmt.Errorf("encoding mapping: %w", err)
		}
		fmt.Fprint(out, string(data))
	default:
		printMapping(cmd, res)
	}

	if outPath != "" {
		if err := saveMapping(p.outputPath(outPath), res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Mapping written to %s\n", p.outputPath(outPath))
	}
	return nil
}

func printMapping(cmd *cobra.Command, res *mapper.MappingResult) {
	out := cmd.OutOrStdout()
	rows := make([][]string, len(res.Mappings))
	for i, m := range res.Mappings {
		rows[i] = []string{m.SourceColumn, string(m.Role), string(m.Method), fmt.Sprintf("%.0f%%", m.Confidence*100), m.Notes}
	}
	printTable(out, []string{"Column", "Role", "Method", "Confidence", "Notes"}, rows)

	if len(res.Unmapped) > 0 {
		fmt.Fprintf(out, "\nUnmapped: %s\n", strings.Join(res.Unmapped, ", "))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "⚠️  %s\n", w)
	}
	if res.DomainInsight != "" {
		fmt.Fprintf(out, "\nInsights: %s\n", res.DomainInsight)
	}
}

// loadOverridesFile reads an exported mapping document.
func loadOverridesFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides file: %w", err)
	}
	if errs := validation.ValidateMappingBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid mapping file %s: %s", path, strings.Join(errs, "; "))
	}
	var doc mapper.Export
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}
	return doc.Overrides(), nil
}

func saveMapping(path string, res *mapper.MappingResult) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(res.Export())
	default:
		var b strings.Builder
		err = writeJSON(&b, res.Export())
		data = []byte(b.String())
	}
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	return writeFile(path, data)
}
