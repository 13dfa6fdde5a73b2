package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPass, StatusFail, StatusError, StatusAnomaly, StatusNormal, StatusInsufficientData} {
		require.True(t, s.Valid(), s)
	}
	require.False(t, Status("warn").Valid())
	require.False(t, Status("").Valid())
}

func TestStatusFailing(t *testing.T) {
	require.True(t, StatusFail.Failing())
	require.True(t, StatusError.Failing())
	require.True(t, StatusAnomaly.Failing())
	require.False(t, StatusPass.Failing())
	require.False(t, StatusNormal.Failing())
	require.False(t, StatusInsufficientData.Failing())
}

func TestNewReportSummary(t *testing.T) {
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	run := RunMetadata{RunID: "run_1", StartTime: start, EndTime: start.Add(1500 * time.Millisecond), Status: RunSuccess}
	results := []CheckResult{
		{Dataset: "a", Table: "users", Status: StatusPass},
		{Dataset: "a", Table: "users", Status: StatusFail},
		{Dataset: "b", Table: "orders", Status: StatusAnomaly},
	}

	report := NewReport("tablespectre", "dev", run, results)
	require.Equal(t, 3, report.Summary.TotalChecks)
	require.Equal(t, 2, report.Summary.Tables)
	require.Equal(t, 1, report.Summary.ByStatus[StatusPass])
	require.Equal(t, 1, report.Summary.ByStatus[StatusFail])
	require.Equal(t, "1.5s", report.Summary.Duration)
	require.Len(t, report.FailingResults(), 2)
}
