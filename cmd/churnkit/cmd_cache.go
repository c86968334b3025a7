package main

import (
	"fmt"
	"path/filepath"

	"github.com/spboyer/churnkit/internal/cache"
	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the language model response cache",
		Long: `Manage the language model response cache.

When cache.enabled is set, replies to column, domain and narrative prompts are
stored by model and prompt so repeated runs over the same data reuse them.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the response cache",
		RunE:  cacheClearE,
	}

	cmd.Flags().String("cache-dir", "", "Cache directory to clear (default from config)")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("cache-dir")
	if dir == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir = cfg.Cache.Dir
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c := cache.New(absDir)
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", absDir)
	return nil
}
