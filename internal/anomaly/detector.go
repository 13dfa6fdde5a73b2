// Package anomaly classifies per-group row counts against the mean of
// earlier snapshots of the same group.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/internal/warehouse"
)

// HistoryQuery selects earlier snapshots of one group.
type HistoryQuery struct {
	Dataset        string
	Table          string
	GroupByColumns string
	GroupKey       string
	// BeforeRunID excludes the current run and anything after it.
	BeforeRunID string
	Limit       int
}

// HistoryStore returns snapshot row counts, newest first.
type HistoryStore interface {
	RecentCounts(ctx context.Context, q HistoryQuery) ([]int64, error)
}

// GroupCount is the current row count of one group.
type GroupCount struct {
	Key      GroupKey
	RowCount int64
}

// Outcome is the classification of one group.
type Outcome struct {
	Group     GroupCount
	Status    models.Status
	Expected  *float64
	Deviation float64
	History   int
}

// GroupByColumns renders a column list the way it is stored with
// snapshots and results.
func GroupByColumns(columns []string) string {
	return strings.Join(columns, ", ")
}

// ParseGroupCounts reads the result of a group-count query. Group values
// are taken by position so expression columns work regardless of the label
// the backend gives them.
func ParseGroupCounts(def checks.GroupAnomalyCheck, rows []warehouse.Row) ([]GroupCount, error) {
	n := len(def.GroupBy)
	counts := make([]GroupCount, 0, len(rows))
	for i, row := range rows {
		if len(row.Values) < n+1 {
			return nil, fmt.Errorf("group count row %d has %d values, want %d", i, len(row.Values), n+1)
		}
		key, err := NewGroupKey(def.GroupBy, row.Values[:n])
		if err != nil {
			return nil, err
		}
		count, valid, err := row.Int64(checks.ColRowCount)
		if err != nil {
			return nil, fmt.Errorf("group count row %d: %w", i, err)
		}
		if !valid {
			return nil, fmt.Errorf("group count row %d: %s is NULL", i, checks.ColRowCount)
		}
		counts = append(counts, GroupCount{Key: key, RowCount: count})
	}
	return counts, nil
}

// Snapshots turns current counts into history rows for runID.
func Snapshots(runID string, def checks.GroupAnomalyCheck, counts []GroupCount, at time.Time) []models.GroupCountSnapshot {
	out := make([]models.GroupCountSnapshot, 0, len(counts))
	for _, c := range counts {
		out = append(out, models.GroupCountSnapshot{
			RunID:           runID,
			Dataset:         def.On.Dataset,
			Table:           def.On.Table,
			GroupByColumns:  GroupByColumns(def.GroupBy),
			GroupKey:        c.Key.Hash(),
			GroupValues:     c.Key.Readable(),
			RowCount:        c.RowCount,
			FilterCondition: def.On.Filter,
			Timestamp:       at,
		})
	}
	return out
}

// Classify compares current with the mean of history.
//
// Fewer than minimum history points (or none at all) yields
// insufficient_data without an expected value. A zero baseline is normal
// when current is also zero and an anomaly with infinite deviation
// otherwise.
func Classify(current int64, history []int64, minimum int, threshold float64) (models.Status, *float64, float64) {
	if len(history) == 0 || len(history) < minimum {
		return models.StatusInsufficientData, nil, 0
	}

	var sum float64
	for _, h := range history {
		sum += float64(h)
	}
	baseline := sum / float64(len(history))

	var deviation float64
	switch {
	case baseline == 0 && current == 0:
		deviation = 0
	case baseline == 0:
		deviation = math.Inf(1)
	default:
		deviation = math.Abs(float64(current)-baseline) / baseline
	}

	if deviation >= threshold {
		return models.StatusAnomaly, &baseline, deviation
	}
	return models.StatusNormal, &baseline, deviation
}

// Detector looks up group history and classifies current counts.
type Detector struct {
	history HistoryStore
}

// New returns a Detector reading history from store.
func New(store HistoryStore) *Detector {
	return &Detector{history: store}
}

// Evaluate classifies every group in counts. Any history lookup failure
// aborts the whole definition.
func (d *Detector) Evaluate(ctx context.Context, runID string, def checks.GroupAnomalyCheck, counts []GroupCount) ([]Outcome, error) {
	groupBy := GroupByColumns(def.GroupBy)
	outcomes := make([]Outcome, 0, len(counts))

	for _, c := range counts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history, err := d.history.RecentCounts(ctx, HistoryQuery{
			Dataset:        def.On.Dataset,
			Table:          def.On.Table,
			GroupByColumns: groupBy,
			GroupKey:       c.Key.Hash(),
			BeforeRunID:    runID,
			Limit:          def.HistoricalDataPoints,
		})
		if err != nil {
			return nil, fmt.Errorf("history lookup for %s %s: %w", def.On.FullName(), c.Key.Readable(), err)
		}
		if len(history) > def.HistoricalDataPoints {
			history = history[:def.HistoricalDataPoints]
		}

		status, expected, deviation := Classify(c.RowCount, history, def.MinimumDataPoints, def.AnomalyThreshold)
		slog.Debug("group classified",
			slog.String("table", def.On.FullName()),
			slog.String("group", c.Key.Readable()),
			slog.Int64("current", c.RowCount),
			slog.Int("history", len(history)),
			slog.String("status", string(status)),
		)
		outcomes = append(outcomes, Outcome{
			Group:     c,
			Status:    status,
			Expected:  expected,
			Deviation: deviation,
			History:   len(history),
		})
	}

	return outcomes, nil
}
