// Package recorder assembles audit rows for check outcomes and persists
// them through a sink.
package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/tablespectre/internal/anomaly"
	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/metrics"
	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/internal/sink"
)

// Metric names stored with results.
const (
	MetricNullCount      = "null_count"
	MetricDuplicateCount = "duplicate_count"
	MetricFailureCount   = "failure_count"
	MetricRowCount       = "row_count"
)

// Measurement is what a threshold check's query produced.
type Measurement struct {
	TotalRows int64
	Value     float64
}

// Recorder builds and stores the rows of one run.
type Recorder struct {
	sink   sink.Sink
	runID  string
	tables sink.Tables
	now    func() time.Time
}

// New returns a Recorder writing rows for runID to s.
func New(s sink.Sink, runID string, tables sink.Tables) *Recorder {
	return &Recorder{
		sink:   s,
		runID:  runID,
		tables: tables,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RunID returns the run the recorder writes for.
func (r *Recorder) RunID() string {
	return r.runID
}

// Measured records a completed threshold check.
func (r *Recorder) Measured(def checks.Definition, query string, m Measurement) models.CheckResult {
	res := r.base(def, query)
	res.MetricValue = models.Float64Ptr(m.Value)
	res.TotalRows = models.Int64Ptr(m.TotalRows)
	res.Status = checks.EvaluateThreshold(m.Value, checks.Threshold(def))
	return finish(res)
}

// Failed records a check whose query or evaluation failed.
func (r *Recorder) Failed(def checks.Definition, query string, err error) models.CheckResult {
	res := r.base(def, query)
	res.Status = models.StatusError
	if err != nil {
		res.ErrorMessage = err.Error()
	}
	return finish(res)
}

// Anomaly records the classification of one group.
func (r *Recorder) Anomaly(def checks.GroupAnomalyCheck, query string, o anomaly.Outcome) models.CheckResult {
	res := r.base(def, query)
	res.GroupValues = o.Group.Key.Readable()
	res.MetricValue = models.Float64Ptr(float64(o.Group.RowCount))
	res.ExpectedValue = o.Expected
	res.Status = o.Status
	return finish(res)
}

// base fills the fields every result of def shares.
func (r *Recorder) base(def checks.Definition, query string) models.CheckResult {
	t := def.Target()
	res := models.CheckResult{
		RunID:           r.runID,
		Dataset:         t.Dataset,
		Table:           t.Table,
		CheckType:       def.Kind(),
		CheckName:       def.Name(),
		Threshold:       checks.Threshold(def),
		FilterCondition: t.Filter,
		GeneratedSQL:    query,
		Timestamp:       r.now(),
	}

	switch c := def.(type) {
	case checks.NullCheck:
		res.Columns = c.Column
		res.MetricName = MetricNullCount
	case checks.UniquenessCheck:
		res.Columns = strings.Join(c.Columns, ", ")
		res.MetricName = MetricDuplicateCount
	case checks.ConditionalCheck:
		res.Condition = c.Condition
		res.MetricName = MetricFailureCount
	case checks.GroupAnomalyCheck:
		res.GroupByColumns = anomaly.GroupByColumns(c.GroupBy)
		res.MetricName = MetricRowCount
	default:
		panic(fmt.Sprintf("recorder: unhandled check definition %T", def))
	}
	return res
}

func finish(res models.CheckResult) models.CheckResult {
	metrics.CheckResults.WithLabelValues(string(res.CheckType), string(res.Status)).Inc()
	return res
}

// SaveResults stores all results of the run in one call.
func (r *Recorder) SaveResults(ctx context.Context, results []models.CheckResult) error {
	if len(results) == 0 {
		return nil
	}
	if errs := r.sink.InsertResults(ctx, results); len(errs) > 0 {
		return &InsertionError{Table: r.tables.Results, Total: len(results), Errors: errs}
	}
	return nil
}

// SaveSnapshots stores row-count history. Callers decide whether a
// failure matters.
func (r *Recorder) SaveSnapshots(ctx context.Context, snapshots []models.GroupCountSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if errs := r.sink.InsertSnapshots(ctx, snapshots); len(errs) > 0 {
		return &InsertionError{Table: r.tables.History, Total: len(snapshots), Errors: errs}
	}
	return nil
}

// SaveRun stores the single metadata row of the run.
func (r *Recorder) SaveRun(ctx context.Context, run models.RunMetadata) error {
	if err := r.sink.InsertRunMetadata(ctx, run); err != nil {
		return &InsertionError{
			Table:  r.tables.Runs,
			Total:  1,
			Errors: []sink.RowError{{Index: 0, Err: err}},
		}
	}
	return nil
}

// Now returns the recorder clock, UTC.
func (r *Recorder) Now() time.Time {
	return r.now()
}
