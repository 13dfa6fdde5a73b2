package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tablespectre/internal/anomaly"
	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/internal/sink"
)

var testTables = sink.Tables{Results: "dq.results", History: "dq.history", Runs: "dq.runs"}

type rejectingSink struct {
	*sink.Memory
	rejectResults []int
	runErr        error
}

func (s *rejectingSink) InsertResults(ctx context.Context, results []models.CheckResult) []sink.RowError {
	var errs []sink.RowError
	for _, i := range s.rejectResults {
		errs = append(errs, sink.RowError{Index: i, Err: errors.New("quota exceeded")})
	}
	return errs
}

func (s *rejectingSink) InsertSnapshots(ctx context.Context, snaps []models.GroupCountSnapshot) []sink.RowError {
	return []sink.RowError{{Index: 0, Err: errors.New("history table missing")}}
}

func (s *rejectingSink) InsertRunMetadata(ctx context.Context, run models.RunMetadata) error {
	if s.runErr != nil {
		return s.runErr
	}
	return s.Memory.InsertRunMetadata(ctx, run)
}

func newTestRecorder(s sink.Sink) *Recorder {
	r := New(s, "run_20240501_000000_abc", testTables)
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	return r
}

var users = checks.Target{Dataset: "analytics", Table: "users", Filter: "active = 1"}

func TestMeasuredNullCheck(t *testing.T) {
	r := newTestRecorder(sink.NewMemory())
	def := checks.NullCheck{On: users, Column: "email", Threshold: 0}

	tests := []struct {
		desc   string
		nulls  float64
		status models.Status
	}{
		{desc: "scenario A", nulls: 0, status: models.StatusPass},
		{desc: "scenario B", nulls: 5, status: models.StatusFail},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			res := r.Measured(def, "SELECT ...", Measurement{TotalRows: 100, Value: tc.nulls})
			require.Equal(t, tc.status, res.Status)
			require.Equal(t, "run_20240501_000000_abc", res.RunID)
			require.Equal(t, models.KindNull, res.CheckType)
			require.Equal(t, "Null check on email", res.CheckName)
			require.Equal(t, "email", res.Columns)
			require.Equal(t, MetricNullCount, res.MetricName)
			require.Equal(t, tc.nulls, *res.MetricValue)
			require.Equal(t, int64(100), *res.TotalRows)
			require.Nil(t, res.ExpectedValue)
			require.Equal(t, "active = 1", res.FilterCondition)
			require.Equal(t, "SELECT ...", res.GeneratedSQL)
		})
	}
}

func TestMeasuredUniquenessAndConditional(t *testing.T) {
	r := newTestRecorder(sink.NewMemory())

	uniq := r.Measured(checks.UniquenessCheck{On: users, Columns: []string{"id", "tenant"}, Threshold: 2},
		"q", Measurement{TotalRows: 10, Value: 3})
	require.Equal(t, models.StatusFail, uniq.Status)
	require.Equal(t, "id, tenant", uniq.Columns)
	require.Equal(t, MetricDuplicateCount, uniq.MetricName)

	cond := r.Measured(checks.ConditionalCheck{On: users, Condition: "age >= 0", Threshold: 0},
		"q", Measurement{TotalRows: 10, Value: 0})
	require.Equal(t, models.StatusPass, cond.Status)
	require.Equal(t, "age >= 0", cond.Condition)
	require.Empty(t, cond.Columns)
	require.Equal(t, "Conditional check: age >= 0", cond.CheckName)
}

func TestFailedResult(t *testing.T) {
	r := newTestRecorder(sink.NewMemory())
	def := checks.GroupAnomalyCheck{On: users, GroupBy: []string{"country"}, AnomalyThreshold: 0.2}

	res := r.Failed(def, "q", errors.New("max retries exceeded after 3 attempts"))
	require.Equal(t, models.StatusError, res.Status)
	require.Equal(t, "max retries exceeded after 3 attempts", res.ErrorMessage)
	require.Nil(t, res.MetricValue)
	require.Nil(t, res.TotalRows)
	require.Equal(t, 0.2, res.Threshold)
	require.Equal(t, "country", res.GroupByColumns)
}

func TestAnomalyResult(t *testing.T) {
	r := newTestRecorder(sink.NewMemory())
	def := checks.GroupAnomalyCheck{On: users, GroupBy: []string{"country"}, AnomalyThreshold: 0.1}
	key, err := anomaly.NewGroupKey(def.GroupBy, []any{"US"})
	require.NoError(t, err)

	res := r.Anomaly(def, "q", anomaly.Outcome{
		Group:    anomaly.GroupCount{Key: key, RowCount: 130},
		Status:   models.StatusAnomaly,
		Expected: models.Float64Ptr(100),
	})
	require.Equal(t, models.KindAnomaly, res.CheckType)
	require.Equal(t, "Anomaly detection on country", res.CheckName)
	require.Equal(t, `{"country":"US"}`, res.GroupValues)
	require.Equal(t, 130.0, *res.MetricValue)
	require.Equal(t, 100.0, *res.ExpectedValue)
	require.Nil(t, res.TotalRows)
	require.Equal(t, MetricRowCount, res.MetricName)
}

func TestSaveResultsInsertionError(t *testing.T) {
	s := &rejectingSink{Memory: sink.NewMemory(), rejectResults: []int{0, 2}}
	r := newTestRecorder(s)

	err := r.SaveResults(context.Background(), make([]models.CheckResult, 3))
	var ie *InsertionError
	require.ErrorAs(t, err, &ie)
	require.Len(t, ie.Errors, 2)
	require.Equal(t, "2 of 3 rows rejected by dq.results: row 0: quota exceeded", err.Error())
	require.True(t, IsInsertionError(err))

	var rowErr sink.RowError
	require.ErrorAs(t, err, &rowErr)
}

func TestSaveSnapshotsAndRun(t *testing.T) {
	s := &rejectingSink{Memory: sink.NewMemory(), runErr: errors.New("runs table missing")}
	r := newTestRecorder(s)

	require.NoError(t, r.SaveSnapshots(context.Background(), nil))
	err := r.SaveSnapshots(context.Background(), make([]models.GroupCountSnapshot, 1))
	require.ErrorContains(t, err, "dq.history")

	err = r.SaveRun(context.Background(), models.RunMetadata{RunID: r.RunID()})
	require.ErrorContains(t, err, "runs table missing")

	ok := newTestRecorder(sink.NewMemory())
	require.NoError(t, ok.SaveResults(context.Background(), nil))
	require.NoError(t, ok.SaveRun(context.Background(), models.RunMetadata{RunID: ok.RunID()}))
}
