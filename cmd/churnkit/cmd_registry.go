package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the domain model registry",
	}
	cmd.AddCommand(newRegistryListCommand())
	return cmd
}

func newRegistryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List registered domains and their models",
		RunE:          runRegistryList,
		SilenceErrors: true,
	}
	cmd.Flags().String("format", "table", "Output format: table | json")
	return cmd
}

func runRegistryList(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, "table", "json"); err != nil {
		return err
	}

	p, err := openProject(cmd, false)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())

	store, err := p.artifacts(cmd.Context())
	if err != nil {
		return err
	}
	reg, err := p.registry(cmd.Context(), store)
	if err != nil {
		return err
	}
	doc, err := reg.Load(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, doc)
	}
	names := doc.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, "No domains registered.")
		return nil
	}
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		e, _ := doc.Get(name)
		rows = append(rows, []string{
			e.DomainName,
			e.ModelLocation,
			e.TargetColumn,
			strconv.Itoa(e.FeatureCount),
			strconv.Itoa(e.SampleCount),
			e.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	printTable(out, []string{"Domain", "Model", "Target", "Features", "Samples", "Created"}, rows)
	return nil
}
