package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ppiankov/tablespectre/internal/logging"
	"github.com/ppiankov/tablespectre/pkg/config"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	verbose bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitRunFailed  = 4
	ExitNetwork    = 5
	ExitFindings   = 6
)

// RunFailedError indicates a run started but could not complete or record
// its results.
type RunFailedError struct {
	RunID string
	Err   error
}

func (e *RunFailedError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("run failed: %v", e.Err)
	}
	// The runner already names the run in its error.
	return e.Err.Error()
}

func (e *RunFailedError) Unwrap() error {
	return e.Err
}

// FindingsError indicates the run completed but checks reported failures
// and --fail-on-findings was set.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d failing checks", e.Count)
}

func main() {
	logging.Init(false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		exitCode := classifyError(err)
		var fe *FindingsError
		if errors.As(err, &fe) {
			slog.Info("failing checks detected", slog.Int("count", fe.Count))
		} else {
			slog.Error("command failed", slog.String("error", err.Error()))
		}
		stop()
		os.Exit(exitCode)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tablespectre",
		Short: "Data warehouse table health checks",
		Long: `TableSpectre runs declarative health checks against warehouse tables:
null rates, duplicate keys, conditional rules and per-group row-count
anomalies against recent history.

Every result, the row-count history and the run itself are written to
audit tables so later runs have a baseline to compare against.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewValidateCmd())
	root.AddCommand(NewVersionCmd())
	return root
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var fe *FindingsError
	if errors.As(err, &fe) {
		return ExitFindings
	}

	var rfe *RunFailedError
	if errors.As(err, &rfe) {
		return ExitRunFailed
	}

	var ce *config.ConfigError
	if errors.As(err, &ce) {
		if errors.Is(err, fs.ErrNotExist) {
			return ExitNotFound
		}
		return ExitInvalidArg
	}

	if errors.Is(err, fs.ErrNotExist) {
		return ExitNotFound
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "not a directory") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must be") ||
		strings.Contains(msg, "expected") ||
		strings.Contains(msg, "unsupported") {
		return ExitInvalidArg
	}

	return ExitInternal
}
