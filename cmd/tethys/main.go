package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tethysdb/tethys"
	"github.com/tethysdb/tethys/internal/config"
	"github.com/tethysdb/tethys/internal/telemetry"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tethys",
	Short:         "Deterministic, tree-sitter-based code intelligence for Rust and C#",
	Long:          "Tethys indexes Rust and C# source with tree-sitter, producing a SQLite database of symbols, references, and a call graph for semantic queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .rivets/index/<repo-name>.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
}

func validateFormat(format string) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid --format %q: must be json or text", format)
	}
	return nil
}

var (
	flagForce       bool
	flagLanguages   string
	flagWorkers     int
	flagMetricsAddr string
	flagStreaming   bool
	flagBatchSize   int
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository for code intelligence",
	Long:  "Parses Rust and C# source with tree-sitter, extracts symbols/imports/references, and resolves them across files into the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (rust,csharp)")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "extraction worker pool size (default: number of CPUs)")
	indexCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	indexCmd.Flags().BoolVar(&flagStreaming, "streaming", false, "use the bounded-memory streaming writer instead of batch mode")
	indexCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "streaming writer drain threshold (default: 100; only meaningful with --streaming)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	tethysDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(tethysDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", tethysDir, err)
	}

	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	cfg, err := config.Load(config.PathIn(repoRoot))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var opts []tethys.Option
	languages := cfg.Indexing.Languages
	if flagLanguages != "" {
		languages = strings.Split(flagLanguages, ",")
		for i := range languages {
			languages[i] = strings.TrimSpace(languages[i])
		}
	}
	if len(languages) > 0 {
		opts = append(opts, tethys.WithLanguages(languages...))
	}
	workers := cfg.Indexing.Workers
	if flagWorkers > 0 {
		workers = flagWorkers
	}
	if workers > 0 {
		opts = append(opts, tethys.WithWorkers(workers))
	}
	if len(cfg.Indexing.Exclude) > 0 {
		opts = append(opts, tethys.WithExclude(cfg.Indexing.Exclude...))
	}
	if cfg.Indexing.MaxFileSize > 0 {
		opts = append(opts, tethys.WithMaxFileSize(cfg.Indexing.MaxFileSize))
	}
	streaming := cfg.Indexing.Streaming || flagStreaming
	if streaming {
		opts = append(opts, tethys.WithStreaming(true))
	}
	batchSize := cfg.Indexing.BatchSize
	if flagBatchSize > 0 {
		batchSize = flagBatchSize
	}
	if batchSize > 0 {
		opts = append(opts, tethys.WithBatchSize(batchSize))
	}

	metricsAddr := flagMetricsAddr
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if metricsAddr != "" {
		metricsCtx, cancelMetrics := context.WithCancel(context.Background())
		defer cancelMetrics()
		go telemetry.Serve(metricsCtx, metricsAddr, newCLILogger())
	}

	var bar *progressbar.ProgressBar
	var barPhase string
	if isatty.IsTerminal(os.Stderr.Fd()) {
		opts = append(opts, tethys.WithProgress(func(current, total int, phase string) {
			if phase != barPhase {
				if bar != nil {
					_ = bar.Finish()
				}
				barPhase = phase
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription(phaseDescription(phase)),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(current)
		}))
	}

	engine, err := tethys.New(dbPath, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()

	extractStart := time.Now()
	report, err := engine.IndexDirectory(ctx, targetDir)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	extractDuration := time.Since(extractStart)
	metrics.ObserveExtractDuration(extractDuration)
	metrics.ObserveReport(report.Indexed, report.Skipped, len(report.Errors))

	resolveStart := time.Now()
	if err := engine.Resolve(ctx); err != nil {
		return fmt.Errorf("resolving: %w", err)
	}
	resolveDuration := time.Since(resolveStart)
	metrics.ObserveResolveDuration(resolveDuration)

	if symbolCount, err := countRows(engine, "symbols"); err == nil {
		metrics.SetSymbolsTotal(symbolCount)
	}
	if unresolvedCount, err := countRows(engine, "refs WHERE symbol_id IS NULL AND reference_name IS NOT NULL"); err == nil {
		metrics.SetUnresolvedReferences(unresolvedCount)
	}

	if bar != nil {
		_ = bar.Finish()
	}

	totalDuration := time.Since(start)

	indexedText := color.GreenString("%d indexed", report.Indexed)
	skippedText := fmt.Sprintf("%d skipped", report.Skipped)
	errorsText := fmt.Sprintf("%d errors", len(report.Errors))
	if len(report.Errors) > 0 {
		errorsText = color.RedString("%d errors", len(report.Errors))
	}

	fmt.Fprintf(os.Stderr, "Indexed %s: %s, %s, %s (extract: %s, resolve: %s, total: %s)\n",
		targetDir, indexedText, skippedText, errorsText,
		extractDuration.Round(time.Millisecond),
		resolveDuration.Round(time.Millisecond),
		totalDuration.Round(time.Millisecond),
	)
	for _, fe := range report.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", fe.Path, fe.Err)
	}
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)

	return nil
}

// phaseDescription returns a human-readable progress bar label for a
// pipeline phase reported by tethys.ProgressFunc.
func phaseDescription(phase string) string {
	switch phase {
	case "extract":
		return "Extracting"
	case "resolve":
		return "Resolving"
	default:
		return phase
	}
}

// newCLILogger builds the slog.Logger handed to background goroutines (the
// metrics server) that have no Cobra command to report errors through.
func newCLILogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// countRows runs "SELECT COUNT(*) FROM " + whereClause against the engine's
// store. whereClause is a compile-time constant at every call site, never
// user input, so string concatenation here doesn't risk injection.
func countRows(engine *tethys.Engine, whereClause string) (int, error) {
	var n int
	err := engine.Store().DB().QueryRow("SELECT COUNT(*) FROM " + whereClause).Scan(&n)
	return n, err
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// default <repoRoot>/.rivets/index/<repo-name>.db.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	name := filepath.Base(repoRoot)
	return filepath.Join(repoRoot, ".rivets", "index", name+".db")
}
