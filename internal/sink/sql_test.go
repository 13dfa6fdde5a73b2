package sink

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tablespectre/internal/anomaly"
	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/dbtest"
	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/internal/warehouse"
)

var testTables = Tables{
	Results: "data_quality.check_results",
	History: "data_quality.row_count_history",
	Runs:    "data_quality.runs",
}

func newSQLSink(t *testing.T, dialect checks.Dialect, state *dbtest.State) *SQL {
	t.Helper()
	client := warehouse.NewClient(dbtest.Open(t, state), dialect, warehouse.Options{MaxAttempts: 1})
	return NewSQL(client, testTables)
}

func TestInsertStatementPerDialect(t *testing.T) {
	tests := []struct {
		desc    string
		dialect checks.Dialect
		want    string
	}{
		{
			desc:    "postgres",
			dialect: checks.Postgres,
			want:    `INSERT INTO "data_quality"."runs" ("run_id", "start_time", "end_time", "status", "error_message") VALUES ($1, $2, $3, $4, $5)`,
		},
		{
			desc:    "clickhouse",
			dialect: checks.ClickHouse,
			want:    "INSERT INTO `data_quality`.`runs` (`run_id`, `start_time`, `end_time`, `status`, `error_message`) VALUES (?, ?, ?, ?, ?)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.want, insertStatement(tc.dialect, testTables.Runs, runColumns))
		})
	}
}

func TestSQLInsertResultsCollectsRowErrors(t *testing.T) {
	state := &dbtest.State{
		ExecErr: func(call int, _ string, _ []any) error {
			if call == 1 || call == 3 {
				return errors.New("column status: invalid enum value")
			}
			return nil
		},
	}
	s := newSQLSink(t, checks.Postgres, state)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	results := make([]models.CheckResult, 4)
	for i := range results {
		results[i] = models.CheckResult{
			RunID:        "run_1",
			Dataset:      "analytics",
			Table:        "users",
			CheckType:    models.KindNull,
			CheckName:    "Null check on email",
			Columns:      "email",
			Threshold:    0,
			MetricName:   checks.ColNullCount,
			MetricValue:  models.Float64Ptr(0),
			TotalRows:    models.Int64Ptr(100),
			Status:       models.StatusPass,
			GeneratedSQL: "SELECT 1",
			Timestamp:    ts,
		}
	}

	errs := s.InsertResults(context.Background(), results)
	require.Len(t, errs, 2)
	require.Equal(t, 1, errs[0].Index)
	require.Equal(t, 3, errs[1].Index)
	require.Contains(t, errs[0].Error(), "row 1:")

	execs := state.Execs()
	require.Len(t, execs, 4)
	args := execs[0].Args
	require.Len(t, args, len(resultColumns))
	require.Equal(t, "run_1", args[0])
	require.Equal(t, "null_check", args[3])
	require.Equal(t, "email", args[5])
	require.Nil(t, args[6], "empty condition is stored as NULL")
	require.Equal(t, 0.0, args[11])
	require.Nil(t, args[12], "missing expected value is stored as NULL")
	require.Equal(t, int64(100), args[13])
	require.Equal(t, "pass", args[14])
	require.Nil(t, args[17])
	require.Equal(t, ts, args[18])
}

func TestSQLInsertSnapshotsAndRunMetadata(t *testing.T) {
	state := &dbtest.State{}
	s := newSQLSink(t, checks.MySQL, state)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	errs := s.InsertSnapshots(context.Background(), []models.GroupCountSnapshot{{
		RunID: "run_1", Dataset: "analytics", Table: "events", GroupByColumns: "country",
		GroupKey: "abc", GroupValues: `{"country":"US"}`, RowCount: 42, Timestamp: ts,
	}})
	require.Empty(t, errs)

	err := s.InsertRunMetadata(context.Background(), models.RunMetadata{
		RunID: "run_1", StartTime: ts, EndTime: ts.Add(time.Minute), Status: models.RunFailure,
		ErrorMessage: "boom",
	})
	require.NoError(t, err)

	execs := state.Execs()
	require.Len(t, execs, 2)
	require.Contains(t, execs[0].Query, "INSERT INTO `data_quality`.`row_count_history`")
	require.Equal(t, int64(42), execs[0].Args[6])
	require.Nil(t, execs[0].Args[7])
	require.Equal(t, []any{"run_1", ts, ts.Add(time.Minute), "failure", "boom"}, execs[1].Args)
}

func TestSQLInsertRunMetadataError(t *testing.T) {
	state := &dbtest.State{
		ExecErr: func(int, string, []any) error { return errors.New("table runs does not exist") },
	}
	s := newSQLSink(t, checks.Postgres, state)

	err := s.InsertRunMetadata(context.Background(), models.RunMetadata{RunID: "run_1", Status: models.RunSuccess})
	require.Error(t, err)
	require.Contains(t, err.Error(), "data_quality.runs")
}

func TestSQLRecentCounts(t *testing.T) {
	state := &dbtest.State{
		Responder: func(int, string) dbtest.Result {
			return dbtest.Result{
				Columns: []string{"row_count"},
				Rows:    [][]driver.Value{{int64(101)}, {int64(99)}, {nil}},
			}
		},
	}
	s := newSQLSink(t, checks.Postgres, state)

	counts, err := s.RecentCounts(context.Background(), anomaly.HistoryQuery{
		Dataset: "analytics", Table: "events", GroupByColumns: "country",
		GroupKey: "abc", BeforeRunID: "run_2", Limit: 7,
	})
	require.NoError(t, err)
	require.Equal(t, []int64{101, 99}, counts)

	queries := state.Queries()
	require.Len(t, queries, 1)
	require.Contains(t, queries[0].Query, `FROM "data_quality"."row_count_history"`)
	require.Contains(t, queries[0].Query, `AND "run_id" < $5`)
	require.Contains(t, queries[0].Query, "ORDER BY \"timestamp\" DESC, \"run_id\" DESC\nLIMIT 7")
	require.Equal(t, []any{"analytics", "events", "country", "abc", "run_2"}, queries[0].Args)
}

func TestSQLRecentCountsZeroLimit(t *testing.T) {
	state := &dbtest.State{}
	s := newSQLSink(t, checks.Postgres, state)

	counts, err := s.RecentCounts(context.Background(), anomaly.HistoryQuery{Limit: 0})
	require.NoError(t, err)
	require.Empty(t, counts)
	require.Empty(t, state.Queries())
}
