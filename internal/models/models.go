package models

import "time"

// Status is the outcome of a single check evaluation
type Status string

const (
	StatusPass             Status = "pass"
	StatusFail             Status = "fail"
	StatusError            Status = "error"
	StatusAnomaly          Status = "anomaly"
	StatusNormal           Status = "normal"
	StatusInsufficientData Status = "insufficient_data"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusError, StatusAnomaly, StatusNormal, StatusInsufficientData:
		return true
	}
	return false
}

// Failing reports whether the status should draw attention in reports.
func (s Status) Failing() bool {
	return s == StatusFail || s == StatusError || s == StatusAnomaly
}

// CheckKind identifies the check variant that produced a result
type CheckKind string

const (
	KindNull        CheckKind = "null_check"
	KindUniqueness  CheckKind = "uniqueness_check"
	KindConditional CheckKind = "conditional_check"
	KindAnomaly     CheckKind = "anomaly_detection"
)

// CheckResult is one row of the audit trail. All check kinds share this
// shape; fields that do not apply to a kind are left empty or nil.
type CheckResult struct {
	RunID           string    `json:"run_id"`
	Dataset         string    `json:"dataset"`
	Table           string    `json:"table"`
	CheckType       CheckKind `json:"check_type"`
	CheckName       string    `json:"check_name"`
	Columns         string    `json:"columns,omitempty"`
	Condition       string    `json:"condition,omitempty"`
	GroupByColumns  string    `json:"group_by_columns,omitempty"`
	GroupValues     string    `json:"group_values,omitempty"`
	Threshold       float64   `json:"threshold"`
	MetricName      string    `json:"metric_name"`
	MetricValue     *float64  `json:"metric_value"`
	ExpectedValue   *float64  `json:"expected_value"`
	TotalRows       *int64    `json:"total_rows"`
	Status          Status    `json:"status"`
	FilterCondition string    `json:"filter_condition,omitempty"`
	GeneratedSQL    string    `json:"generated_sql"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// FullTableName returns "dataset.table"
func (r CheckResult) FullTableName() string {
	return r.Dataset + "." + r.Table
}

// GroupCountSnapshot is one observed row count for one group of a table.
// Snapshots are append-only history used to build future baselines.
type GroupCountSnapshot struct {
	RunID           string    `json:"run_id"`
	Dataset         string    `json:"dataset"`
	Table           string    `json:"table"`
	GroupByColumns  string    `json:"group_by_columns"`
	GroupKey        string    `json:"group_key"`
	GroupValues     string    `json:"group_values"`
	RowCount        int64     `json:"row_count"`
	FilterCondition string    `json:"filter_condition,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// RunStatus is the overall outcome of a run
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

// RunMetadata records one invocation of the engine
type RunMetadata struct {
	RunID        string    `json:"run_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       RunStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}
