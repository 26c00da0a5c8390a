package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sczmerge/internal/config"
	"sczmerge/internal/files"
	"sczmerge/internal/infrastructure"
	"sczmerge/internal/operations"
	"sczmerge/pkg/contracts"
)

const telemetryShutdownTimeout = 5 * time.Second

// options holds the command line overrides. Only flags the user actually set
// are applied on top of the loaded configuration.
type options struct {
	configFile  string
	input       string
	output      string
	csvName     string
	parquetName string
	xlsx        bool
	workers     int
	onLoadError string
	exclude     []string
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// createRootCmd builds the sczmerge command tree
func createRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "sczmerge",
		Short: "Merge surveillance CSV extracts into one unified table",
		Long: `sczmerge walks a directory tree of CSV extracts, reads each file with an
encoding fallback, normalizes municipality codes and DDMMYYYY dates, aligns
every file to the union of columns and writes one unified CSV, plus optional
Parquet and XLSX copies.`,
		Version:      contracts.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, opts)
		},
	}
	rootCmd.SetVersionTemplate(contracts.GetFullVersionString() + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "configuration file (default: sczmerge.yaml lookup)")
	flags.StringVarP(&opts.input, "input", "i", "", "input directory scanned recursively")
	flags.StringVarP(&opts.output, "output", "o", "", "output directory (default: input directory)")
	flags.StringVar(&opts.csvName, "csv-name", "", "file name of the unified CSV")
	flags.StringVar(&opts.parquetName, "parquet-name", "", "file name of the Parquet copy")
	flags.BoolVar(&opts.xlsx, "xlsx", false, "also write an XLSX copy")
	flags.IntVar(&opts.workers, "workers", 0, "files loaded in parallel")
	flags.StringVar(&opts.onLoadError, "on-load-error", "", "what to do with unreadable files: abort or skip")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "glob of input file names to ignore (repeatable)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(createDiscoverCmd(opts))
	rootCmd.AddCommand(createVersionCmd())

	return rootCmd
}

// createDiscoverCmd lists the files a merge would read, without reading them
func createDiscoverCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List the input files a merge would read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			paths, err := cfg.ResolvePaths()
			if err != nil {
				return err
			}

			found, err := files.NewDiscovery(paths.InputDir).FindFiles(paths.InputDir, operations.DiscoveryOptionsFor(cfg, paths))
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return fmt.Errorf("%w under %s", operations.ErrNoInputFiles, paths.InputDir)
			}

			out := cmd.OutOrStdout()
			for _, f := range found {
				fmt.Fprintln(out, f.Path)
			}
			fmt.Fprintf(out, "%d files, %d bytes\n", len(found), files.TotalSize(found))
			return nil
		},
	}
}

func createVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
		},
	}
}

// loadConfig loads file and environment configuration and applies the flags
// the user set on top of it
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	// An unset output dir follows whichever input dir wins, see ResolvePaths
	if flags.Changed("input") {
		cfg.Paths.InputDir = opts.input
	}
	if flags.Changed("output") {
		cfg.Paths.OutputDir = opts.output
	}
	if flags.Changed("csv-name") {
		cfg.Paths.CSVName = opts.csvName
	}
	if flags.Changed("parquet-name") {
		cfg.Paths.ParquetName = opts.parquetName
	}
	if flags.Changed("xlsx") {
		cfg.Output.XLSX = opts.xlsx
	}
	if flags.Changed("workers") {
		cfg.Load.Workers = opts.workers
	}
	if flags.Changed("on-load-error") {
		cfg.Load.OnError = opts.onLoadError
	}
	if flags.Changed("exclude") {
		cfg.Load.ExcludePatterns = append(cfg.Load.ExcludePatterns, opts.exclude...)
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// runMerge executes one full merge run and prints its summary
func runMerge(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return err
	}
	paths.LogPathResolution(logger)

	tel, err := infrastructure.InitializeTelemetry(cfg.Telemetry, logger)
	if err != nil {
		infrastructure.WithError(logger, err).Warn("Telemetry disabled")
		tel = infrastructure.NewNoopTelemetry(logger)
	}
	defer shutdownTelemetry(tel, logger)

	runID := infrastructure.GenerateRunID()
	ctx := infrastructure.WithRunID(cmd.Context(), runID)

	logger.InfoContext(ctx, "Starting merge",
		slog.String("version", contracts.Version),
		slog.String("input_dir", paths.InputDir),
		slog.String("output_dir", paths.OutputDir))

	steps := operations.NewMergeSteps(operations.Dependencies{
		Manager: files.NewManager(paths, logger),
		Metrics: tel.Metrics,
		Logger:  logger,
	})
	state := operations.NewRunState(runID, cfg, paths)
	runErr := operations.NewPipeline(tel, logger, steps...).Run(ctx, state)

	printSummary(cmd.OutOrStdout(), state)
	return runErr
}

func shutdownTelemetry(tel *infrastructure.Telemetry, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		infrastructure.WithError(logger, err).Warn("Telemetry shutdown failed")
	}
}

// printSummary writes the human readable outcome of a run
func printSummary(w io.Writer, state *operations.RunState) {
	if len(state.Files) > 0 {
		fmt.Fprintf(w, "Discovered %d files under %s (e.g. %s)\n",
			len(state.Files), state.Paths.InputDir, state.Files[0].Path)
	}

	if state.Loaded != nil {
		fmt.Fprintf(w, "Loaded %d files, %d with fallback encoding, %d skipped\n",
			len(state.Loaded.Files), state.Loaded.FallbackCount(), len(state.Loaded.Skipped))
		for _, s := range state.Loaded.Skipped {
			fmt.Fprintf(w, "WARNING: skipped %s: %v\n", s.Path, s.Err)
		}
	}

	if p := state.Persisted; p != nil {
		for _, a := range p.Written() {
			fmt.Fprintf(w, "Saved %s: %s (%d bytes)\n", a.Format, a.Path, a.Size)
		}
		for _, a := range p.Failed() {
			fmt.Fprintf(w, "WARNING: %s not saved (%s): %v\n", a.Format, a.Path, a.Err)
		}
		if p.Primary.Written {
			fmt.Fprintf(w, "Unified table: %d rows x %d columns\n", p.Rows, p.Columns)
		}
	}

	if len(state.Uploads) > 0 {
		published := 0
		for _, u := range state.Uploads {
			if u.Err != nil {
				fmt.Fprintf(w, "WARNING: %s not published: %v\n", u.Path, u.Err)
				continue
			}
			published++
		}
		fmt.Fprintf(w, "Published %d of %d artifacts\n", published, len(state.Uploads))
	}

	if state.Error != nil {
		fmt.Fprintf(w, "Merge failed after %s: %v\n", state.Duration().Round(time.Millisecond), state.Error)
	}
}
