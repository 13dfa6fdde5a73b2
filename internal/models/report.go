package models

import "time"

// Report is the complete output structure of a run
type Report struct {
	Tool      string        `json:"tool"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Run       RunMetadata   `json:"run"`
	Summary   Summary       `json:"summary"`
	Results   []CheckResult `json:"results"`
}

// Summary counts results by status
type Summary struct {
	TotalChecks int            `json:"total_checks"`
	ByStatus    map[Status]int `json:"by_status"`
	Tables      int            `json:"tables"`
	Duration    string         `json:"duration"`
}

// NewReport builds a report from run metadata and the results of that run.
func NewReport(tool, version string, run RunMetadata, results []CheckResult) *Report {
	summary := Summary{
		TotalChecks: len(results),
		ByStatus:    make(map[Status]int),
	}
	tables := make(map[string]struct{})
	for _, r := range results {
		summary.ByStatus[r.Status]++
		tables[r.FullTableName()] = struct{}{}
	}
	summary.Tables = len(tables)
	if !run.EndTime.IsZero() && !run.StartTime.IsZero() {
		summary.Duration = run.EndTime.Sub(run.StartTime).Round(time.Millisecond).String()
	}

	return &Report{
		Tool:      tool,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Run:       run,
		Summary:   summary,
		Results:   results,
	}
}

// FailingResults returns results whose status draws attention.
func (r *Report) FailingResults() []CheckResult {
	if r == nil {
		return nil
	}
	var out []CheckResult
	for _, res := range r.Results {
		if res.Status.Failing() {
			out = append(out, res)
		}
	}
	return out
}
