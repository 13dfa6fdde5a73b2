package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/tablespectre/internal/anomaly"
	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/metrics"
	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/internal/warehouse"
)

// Conn is the subset of warehouse.Client the SQL sink writes through.
type Conn interface {
	warehouse.Executor
	Exec(ctx context.Context, query string, args ...any) error
	Dialect() checks.Dialect
}

// Tables names the three audit tables, optionally schema-qualified.
type Tables struct {
	Results string
	History string
	Runs    string
}

var (
	resultColumns = []string{
		"run_id", "dataset", "table", "check_type", "check_name", "columns",
		"condition", "group_by_columns", "group_values", "threshold",
		"metric_name", "metric_value", "expected_value", "total_rows", "status",
		"filter_condition", "generated_sql", "error_message", "timestamp",
	}
	historyColumns = []string{
		"run_id", "dataset", "table", "group_by_columns", "group_key",
		"group_values", "row_count", "filter_condition", "timestamp",
	}
	runColumns = []string{"run_id", "start_time", "end_time", "status", "error_message"}
)

// SQL writes rows one INSERT at a time into tables reachable through conn.
type SQL struct {
	conn   Conn
	tables Tables

	insertResult   string
	insertSnapshot string
	insertRun      string
	selectHistory  string
}

var _ Sink = (*SQL)(nil)

// NewSQL prepares the statements for the given tables.
func NewSQL(conn Conn, tables Tables) *SQL {
	d := conn.Dialect()
	return &SQL{
		conn:           conn,
		tables:         tables,
		insertResult:   insertStatement(d, tables.Results, resultColumns),
		insertSnapshot: insertStatement(d, tables.History, historyColumns),
		insertRun:      insertStatement(d, tables.Runs, runColumns),
		selectHistory:  historyStatement(d, tables.History),
	}
}

func insertStatement(d checks.Dialect, table string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteName(table), strings.Join(quoted, ", "), strings.Join(params, ", "))
}

func historyStatement(d checks.Dialect, table string) string {
	q := d.QuoteIdent
	return fmt.Sprintf(`SELECT %s
FROM %s
WHERE %s = %s
  AND %s = %s
  AND %s = %s
  AND %s = %s
  AND %s < %s
ORDER BY %s DESC, %s DESC`,
		q("row_count"),
		d.QuoteName(table),
		q("dataset"), d.Placeholder(1),
		q("table"), d.Placeholder(2),
		q("group_by_columns"), d.Placeholder(3),
		q("group_key"), d.Placeholder(4),
		q("run_id"), d.Placeholder(5),
		q("timestamp"), q("run_id"),
	)
}

// InsertResults stores each result with its own INSERT.
func (s *SQL) InsertResults(ctx context.Context, results []models.CheckResult) []RowError {
	var errs []RowError
	for i, r := range results {
		err := s.conn.Exec(ctx, s.insertResult,
			r.RunID, r.Dataset, r.Table, string(r.CheckType), r.CheckName,
			nullString(r.Columns), nullString(r.Condition), nullString(r.GroupByColumns),
			nullString(r.GroupValues), r.Threshold, r.MetricName,
			nullFloat(r.MetricValue), nullFloat(r.ExpectedValue), nullInt(r.TotalRows),
			string(r.Status), nullString(r.FilterCondition), r.GeneratedSQL,
			nullString(r.ErrorMessage), r.Timestamp.UTC(),
		)
		if err != nil {
			errs = append(errs, s.rowError(s.tables.Results, i, err))
		}
	}
	return errs
}

// InsertSnapshots stores each snapshot with its own INSERT.
func (s *SQL) InsertSnapshots(ctx context.Context, snapshots []models.GroupCountSnapshot) []RowError {
	var errs []RowError
	for i, snap := range snapshots {
		err := s.conn.Exec(ctx, s.insertSnapshot,
			snap.RunID, snap.Dataset, snap.Table, snap.GroupByColumns, snap.GroupKey,
			snap.GroupValues, snap.RowCount, nullString(snap.FilterCondition),
			snap.Timestamp.UTC(),
		)
		if err != nil {
			errs = append(errs, s.rowError(s.tables.History, i, err))
		}
	}
	return errs
}

// InsertRunMetadata stores the single metadata row of a run.
func (s *SQL) InsertRunMetadata(ctx context.Context, run models.RunMetadata) error {
	err := s.conn.Exec(ctx, s.insertRun,
		run.RunID, run.StartTime.UTC(), nullTime(run.EndTime), string(run.Status),
		nullString(run.ErrorMessage),
	)
	if err != nil {
		metrics.InsertErrors.WithLabelValues(s.tables.Runs).Inc()
		return fmt.Errorf("insert run metadata into %s: %w", s.tables.Runs, err)
	}
	return nil
}

// RecentCounts reads up to q.Limit earlier row counts of one group,
// newest first.
func (s *SQL) RecentCounts(ctx context.Context, q anomaly.HistoryQuery) ([]int64, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf("%s\nLIMIT %d", s.selectHistory, q.Limit)
	rows, err := s.conn.Query(ctx, query, q.Dataset, q.Table, q.GroupByColumns, q.GroupKey, q.BeforeRunID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.tables.History, err)
	}

	counts := make([]int64, 0, len(rows))
	for _, row := range rows {
		n, valid, err := row.Int64("row_count")
		if err != nil {
			return nil, err
		}
		if valid {
			counts = append(counts, n)
		}
	}
	return counts, nil
}

func (s *SQL) rowError(table string, index int, err error) RowError {
	metrics.InsertErrors.WithLabelValues(table).Inc()
	slog.Debug("row rejected", slog.String("table", table), slog.Int("row", index), slog.String("error", err.Error()))
	return RowError{Index: index, Err: err}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
