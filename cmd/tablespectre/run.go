package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/metrics"
	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/internal/reporter"
	"github.com/ppiankov/tablespectre/internal/runner"
	"github.com/ppiankov/tablespectre/internal/sink"
	"github.com/ppiankov/tablespectre/internal/warehouse"
	"github.com/ppiankov/tablespectre/pkg/config"
	"github.com/spf13/cobra"
)

// openWarehouse is replaced in tests.
var openWarehouse = func(ctx context.Context, dsn string, opts warehouse.Options) (*warehouse.Client, error) {
	return warehouse.Open(ctx, dsn, opts)
}

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	// String variables for custom duration parsing
	var backoffStr string
	var timeoutStr string
	var failOnFindings bool
	var set checks.Set

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run table health checks and record the results",
		Long: `Run every check in the checks file against the warehouse, compare
group row counts with their recent history, and write results, row-count
history and run metadata to the sink tables.

A run that cannot finish or cannot record its results exits with status 4.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			fc, path, err := loadChecksFile(cfg.ChecksPath)
			if err != nil {
				return err
			}
			if fc == nil {
				return &config.ConfigError{Err: errors.New("no checks file found, pass --config")}
			}
			slog.Debug("loaded checks file", slog.String("path", path))

			applyFileSettings(cmd, cfg, fc.Settings, &backoffStr, &timeoutStr)

			if backoffStr != "" {
				cfg.BackoffUnit, err = config.ParseDuration(backoffStr)
				if err != nil {
					return fmt.Errorf("invalid --backoff-unit duration: %w", err)
				}
			}
			if timeoutStr != "" {
				cfg.RunTimeout, err = config.ParseDuration(timeoutStr)
				if err != nil {
					return fmt.Errorf("invalid --timeout duration: %w", err)
				}
			}

			cfg.Verbose = verbose
			cfg.Normalize()
			if err := cfg.Validate(); err != nil {
				return err
			}

			all, err := checks.FromFile(fc)
			if err != nil {
				return err
			}
			set = all.Select(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runChecks(cmd.Context(), cfg, set, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if failOnFindings {
				if n := len(report.FailingResults()); n > 0 {
					return &FindingsError{Count: n}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.ChecksPath, "config", "", "Checks file (default: tablespectre.yaml in the working or home directory)")
	cmd.Flags().StringVar(&cfg.Category, "checks", config.CategoryAll, "Check category to run ("+strings.Join(config.Categories, ", ")+")")

	// Warehouse flags
	cmd.Flags().StringVar(&cfg.WarehouseDSN, "warehouse-dsn", "", "Warehouse DSN (clickhouse://, postgres://, mysql://)")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Checks run in parallel within a phase")
	cmd.Flags().Float64Var(&cfg.QueriesPerSecond, "qps", cfg.QueriesPerSecond, "Warehouse query rate limit, 0 for unlimited")
	cmd.Flags().IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Attempts per query before giving up")
	cmd.Flags().StringVar(&backoffStr, "backoff-unit", "1s", "Retry backoff unit, doubled per attempt (e.g., 500ms, 1s)")
	cmd.Flags().StringVar(&timeoutStr, "timeout", "", "Run deadline (e.g., 10m, 1h); empty for none")

	// Sink flags
	cmd.Flags().StringVar(&cfg.SinkDSN, "sink-dsn", "", "DSN of the database holding the audit tables (default: warehouse DSN)")
	cmd.Flags().StringVar(&cfg.ResultsTable, "results-table", cfg.ResultsTable, "Check results table")
	cmd.Flags().StringVar(&cfg.HistoryTable, "history-table", cfg.HistoryTable, "Row-count history table")
	cmd.Flags().StringVar(&cfg.RunsTable, "runs-table", cfg.RunsTable, "Run metadata table")

	// Selection flags
	cmd.Flags().StringSliceVar(&cfg.ExcludeTables, "exclude-table", nil, "Skip tables matching pattern (dataset.table, globs allowed)")
	cmd.Flags().StringSliceVar(&cfg.ExcludeDatasets, "exclude-dataset", nil, "Skip datasets matching pattern")

	// Output flags
	cmd.Flags().StringVar(&cfg.OutputDir, "output", "", "Also write the report to this directory")
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format (text, json)")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address during the run")
	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "Exit with status 6 when any check fails")

	// Operational flags
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Query the warehouse and read history, but keep every write in memory")

	return cmd
}

func loadChecksFile(path string) (*config.FileConfig, string, error) {
	if strings.TrimSpace(path) != "" {
		fc, err := config.LoadFile(path)
		return fc, path, err
	}
	return config.AutoLoadFile()
}

// applyFileSettings copies values from the checks file into cfg for every
// flag the user did not set.
func applyFileSettings(cmd *cobra.Command, cfg *config.Config, s *config.FileSettings, backoffStr, timeoutStr *string) {
	if s == nil {
		return
	}
	unset := func(name string) bool { return !cmd.Flags().Changed(name) }

	if unset("warehouse-dsn") && s.WarehouseDSN != "" {
		cfg.WarehouseDSN = s.WarehouseDSN
	}
	if unset("sink-dsn") && s.SinkDSN != "" {
		cfg.SinkDSN = s.SinkDSN
	}
	if unset("results-table") && s.ResultsTable != "" {
		cfg.ResultsTable = s.ResultsTable
	}
	if unset("history-table") && s.HistoryTable != "" {
		cfg.HistoryTable = s.HistoryTable
	}
	if unset("runs-table") && s.RunsTable != "" {
		cfg.RunsTable = s.RunsTable
	}
	if unset("concurrency") && s.Concurrency != nil {
		cfg.Concurrency = *s.Concurrency
	}
	if unset("qps") && s.QueriesPerSecond != nil {
		cfg.QueriesPerSecond = *s.QueriesPerSecond
	}
	if unset("max-attempts") && s.MaxAttempts != nil {
		cfg.MaxAttempts = *s.MaxAttempts
	}
	if unset("backoff-unit") && s.BackoffUnit != "" {
		*backoffStr = s.BackoffUnit
	}
	if unset("timeout") && s.Timeout != "" {
		*timeoutStr = s.Timeout
	}
	if unset("exclude-table") && len(s.ExcludeTables) > 0 {
		cfg.ExcludeTables = append([]string(nil), s.ExcludeTables...)
	}
	if unset("exclude-dataset") && len(s.ExcludeDatasets) > 0 {
		cfg.ExcludeDatasets = append([]string(nil), s.ExcludeDatasets...)
	}
}

// runChecks executes the run workflow and prints the report to out. A run
// that produced results is always reported, even when it failed.
func runChecks(ctx context.Context, cfg *config.Config, set checks.Set, out io.Writer) (*models.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.With(slog.Bool("dry_run", cfg.DryRun))

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to stop metrics endpoint", slog.String("error", err.Error()))
			}
		}()
	}

	opts := warehouse.Options{
		MaxAttempts:      cfg.MaxAttempts,
		BackoffUnit:      cfg.BackoffUnit,
		QueriesPerSecond: cfg.QueriesPerSecond,
	}
	wh, err := openWarehouse(ctx, cfg.WarehouseDSN, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer func() {
		if err := wh.Close(); err != nil {
			logger.Warn("failed to close warehouse connection", slog.String("error", err.Error()))
		}
	}()

	tables := sink.Tables{
		Results: cfg.ResultsTable,
		History: cfg.HistoryTable,
		Runs:    cfg.RunsTable,
	}
	s, closeSink, err := openSink(ctx, cfg, wh, tables, opts)
	if err != nil {
		return nil, err
	}
	defer closeSink()

	logger.Debug("starting run",
		slog.Int("checks", set.Len()),
		slog.String("dialect", string(wh.Dialect())),
		slog.Int("concurrency", cfg.Concurrency),
	)

	r := runner.New(wh, s, runner.Options{
		Dialect:     wh.Dialect(),
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.RunTimeout,
		Tables:      tables,
	})
	res, runErr := r.Run(ctx, set)
	if res == nil {
		return nil, &RunFailedError{Err: runErr}
	}

	report := models.NewReport("tablespectre", version, res.Run, res.Results)
	if err := reporter.NewWithWriter(cfg, out).Generate(report); err != nil {
		err = fmt.Errorf("failed to generate report: %w", err)
		if runErr == nil {
			return report, err
		}
		runErr = errors.Join(runErr, err)
	}

	if runErr != nil {
		return report, &RunFailedError{RunID: res.Run.RunID, Err: runErr}
	}
	return report, nil
}

// openSink picks where results go: the warehouse connection itself or a
// separate database. A dry run reads baselines from there but keeps every
// write in memory.
func openSink(ctx context.Context, cfg *config.Config, wh *warehouse.Client, tables sink.Tables, opts warehouse.Options) (sink.Sink, func(), error) {
	noop := func() {}
	conn := wh
	closeConn := noop

	if dsn := cfg.EffectiveSinkDSN(); dsn != strings.TrimSpace(cfg.WarehouseDSN) {
		c, err := openWarehouse(ctx, dsn, opts)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to sink: %w", err)
		}
		conn = c
		closeConn = func() {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close sink connection", slog.String("error", err.Error()))
			}
		}
	}

	store := sink.NewSQL(conn, tables)
	if cfg.DryRun {
		return sink.NewDryRun(store), closeConn, nil
	}
	return store, closeConn, nil
}
