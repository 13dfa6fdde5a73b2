package sink

import (
	"context"

	"github.com/ppiankov/tablespectre/internal/anomaly"
)

// DryRun keeps every write in memory but reads baselines from history, so
// a dry run classifies groups against real snapshots without adding to them.
type DryRun struct {
	*Memory
	history anomaly.HistoryStore
}

var _ Sink = (*DryRun)(nil)

// NewDryRun returns a sink reading history from h. A nil h falls back to
// the in-memory snapshots.
func NewDryRun(h anomaly.HistoryStore) *DryRun {
	d := &DryRun{Memory: NewMemory(), history: h}
	if h == nil {
		d.history = d.Memory
	}
	return d
}

func (d *DryRun) RecentCounts(ctx context.Context, q anomaly.HistoryQuery) ([]int64, error) {
	return d.history.RecentCounts(ctx, q)
}
