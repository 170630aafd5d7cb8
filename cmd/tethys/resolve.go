package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tethysdb/tethys"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Re-run cross-file resolution without extracting any files",
	Long:  "Runs phases 3-5 only: the file-dependency fixed point, cross-file reference resolution, and call-graph materialization. Useful after a partial index run or to pick up stale references left by a prior IndexFiles call.",
	Args:  cobra.NoArgs,
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	engine, err := tethys.New(dbPath)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	start := time.Now()
	if err := engine.Resolve(context.Background()); err != nil {
		return fmt.Errorf("resolving: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resolved in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
