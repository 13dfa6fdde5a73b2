// Package runner executes one batch of table health checks: threshold
// checks, group-count snapshots and anomaly detection, in that order, and
// records the outcome of the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/tablespectre/internal/anomaly"
	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/metrics"
	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/internal/recorder"
	"github.com/ppiankov/tablespectre/internal/sink"
	"github.com/ppiankov/tablespectre/internal/warehouse"
)

// Options configure a Runner.
type Options struct {
	Dialect     checks.Dialect
	Concurrency int
	Timeout     time.Duration
	// WriteTimeout bounds storing results and run metadata once the run
	// context ended; 0 means DefaultWriteTimeout.
	WriteTimeout time.Duration
	Tables       sink.Tables
}

// Result is what a run produced. It is returned even when the run failed.
type Result struct {
	Run     models.RunMetadata
	Results []models.CheckResult
}

// Runner executes check sets against one warehouse.
type Runner struct {
	exec     warehouse.Executor
	sink     sink.Sink
	detector *anomaly.Detector
	opts     Options

	now      func() time.Time
	newRunID func(time.Time) (string, error)
}

// New returns a Runner querying exec and writing to s.
func New(exec warehouse.Executor, s sink.Sink, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Runner{
		exec:     exec,
		sink:     s,
		detector: anomaly.New(s),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: NewRunID,
	}
}

// groupCounts carries the snapshot phase's per-definition outcome to the
// anomaly phase.
type groupCounts struct {
	query  string
	counts []anomaly.GroupCount
	err    error
}

// Run executes set and records its results and run metadata. Per-check
// failures become error rows; failing to store results or run metadata
// fails the run and is returned after the metadata write was attempted.
func (r *Runner) Run(ctx context.Context, set checks.Set) (*Result, error) {
	start := r.now()
	runID, err := r.newRunID(start)
	if err != nil {
		return nil, err
	}
	logger := slog.With(slog.String("run_id", runID))
	logger.Info("run started", slog.Int("checks", set.Len()))

	rec := recorder.New(r.sink, runID, r.opts.Tables)
	runCtx, cancel := withRunTimeout(ctx, r.opts.Timeout)
	defer cancel()

	var results []models.CheckResult
	results = append(results, runPhase(runCtx, r.opts.Concurrency, set.Null, r.thresholdCheck(rec))...)
	results = append(results, runPhase(runCtx, r.opts.Concurrency, set.Uniqueness, r.thresholdCheck(rec))...)
	results = append(results, runPhase(runCtx, r.opts.Concurrency, set.Conditional, r.thresholdCheck(rec))...)

	collected := make([]groupCounts, len(set.Groups))
	forEach(runCtx, r.opts.Concurrency, set.Groups, func(ctx context.Context, i int, def checks.GroupAnomalyCheck) {
		collected[i] = r.collectSnapshot(ctx, rec, def)
	})

	anomalies := make([][]models.CheckResult, len(set.Groups))
	forEach(runCtx, r.opts.Concurrency, set.Groups, func(ctx context.Context, i int, def checks.GroupAnomalyCheck) {
		anomalies[i] = r.detect(ctx, rec, def, collected[i])
	})
	for _, a := range anomalies {
		results = append(results, a...)
	}

	runErr := runInterrupted(runCtx)

	writeCtx, cancelWrite := withWriteContext(ctx, r.opts.WriteTimeout)
	defer cancelWrite()

	if err := rec.SaveResults(writeCtx, results); err != nil {
		logger.Error("failed to store check results", slog.String("error", err.Error()))
		runErr = errors.Join(runErr, err)
	}

	run := models.RunMetadata{
		RunID:     runID,
		StartTime: start,
		EndTime:   r.now(),
		Status:    models.RunSuccess,
	}
	if runErr != nil {
		run.Status = models.RunFailure
		run.ErrorMessage = runErr.Error()
	}
	if err := rec.SaveRun(writeCtx, run); err != nil {
		logger.Error("failed to store run metadata", slog.String("error", err.Error()))
		runErr = errors.Join(runErr, err)
		run.Status = models.RunFailure
		run.ErrorMessage = runErr.Error()
	}

	metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	logger.Info("run finished",
		slog.String("status", string(run.Status)),
		slog.Int("results", len(results)),
		slog.Duration("duration", run.EndTime.Sub(run.StartTime)),
	)

	res := &Result{Run: run, Results: results}
	if runErr != nil {
		return res, fmt.Errorf("run %s failed: %w", runID, runErr)
	}
	return res, nil
}

// thresholdCheck runs one null, uniqueness or conditional check. It never
// fails: any problem, including a panic, becomes an error row.
func (r *Runner) thresholdCheck(rec *recorder.Recorder) func(context.Context, checks.Definition) models.CheckResult {
	return func(ctx context.Context, def checks.Definition) (res models.CheckResult) {
		var query string
		defer func() {
			if p := recover(); p != nil {
				slog.Error("check panicked", slog.String("check", def.Name()), slog.Any("panic", p))
				res = rec.Failed(def, query, fmt.Errorf("internal error: %v", p))
			}
		}()

		query, err := checks.Render(r.opts.Dialect, def)
		if err != nil {
			return rec.Failed(def, query, err)
		}

		rows, err := r.exec.Query(ctx, query)
		if err == nil {
			var m recorder.Measurement
			if m, err = measure(def, rows); err == nil {
				return rec.Measured(def, query, m)
			}
		}

		slog.Warn("check failed",
			slog.String("table", def.Target().FullName()),
			slog.String("check", def.Name()),
			slog.String("error", err.Error()),
		)
		return rec.Failed(def, query, err)
	}
}

// collectSnapshot reads current group counts and stores them as history.
// Storing is best-effort; the counts are still used for detection.
func (r *Runner) collectSnapshot(ctx context.Context, rec *recorder.Recorder, def checks.GroupAnomalyCheck) groupCounts {
	out := groupCounts{query: checks.RenderGroupCount(r.opts.Dialect, def)}

	rows, err := r.exec.Query(ctx, out.query)
	if err == nil {
		out.counts, err = anomaly.ParseGroupCounts(def, rows)
	}
	if err != nil {
		out.err = fmt.Errorf("collect group counts: %w", err)
		slog.Warn("snapshot collection failed",
			slog.String("table", def.On.FullName()),
			slog.String("group_by", anomaly.GroupByColumns(def.GroupBy)),
			slog.String("error", err.Error()),
		)
		return out
	}

	snapshots := anomaly.Snapshots(rec.RunID(), def, out.counts, rec.Now())
	if err := rec.SaveSnapshots(ctx, snapshots); err != nil {
		slog.Warn("failed to store snapshots",
			slog.String("table", def.On.FullName()),
			slog.String("error", err.Error()),
		)
	}
	return out
}

// detect classifies the groups of one definition. A failure yields a single
// error row for the definition instead of per-group rows.
func (r *Runner) detect(ctx context.Context, rec *recorder.Recorder, def checks.GroupAnomalyCheck, gc groupCounts) []models.CheckResult {
	if gc.err != nil {
		return []models.CheckResult{rec.Failed(def, gc.query, gc.err)}
	}
	if len(gc.counts) == 0 {
		slog.Info("no groups to evaluate", slog.String("table", def.On.FullName()))
		return nil
	}

	outcomes, err := r.detector.Evaluate(ctx, rec.RunID(), def, gc.counts)
	if err != nil {
		slog.Warn("anomaly detection failed",
			slog.String("table", def.On.FullName()),
			slog.String("group_by", anomaly.GroupByColumns(def.GroupBy)),
			slog.String("error", err.Error()),
		)
		return []models.CheckResult{rec.Failed(def, gc.query, err)}
	}

	results := make([]models.CheckResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = rec.Anomaly(def, gc.query, o)
	}
	return results
}

// runPhase runs fn over defs with at most limit in flight and returns the
// results in definition order.
func runPhase[T checks.Definition](ctx context.Context, limit int, defs []T, fn func(context.Context, checks.Definition) models.CheckResult) []models.CheckResult {
	slots := make([]models.CheckResult, len(defs))
	forEach(ctx, limit, defs, func(ctx context.Context, i int, def T) {
		slots[i] = fn(ctx, def)
	})
	return slots
}

// forEach calls fn for every item with bounded parallelism. Each call owns
// index i, so callers may write to slot i without locking.
func forEach[T any](ctx context.Context, limit int, items []T, fn func(context.Context, int, T)) {
	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
}
