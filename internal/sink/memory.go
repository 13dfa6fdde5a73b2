package sink

import (
	"context"
	"sort"
	"sync"

	"github.com/ppiankov/tablespectre/internal/anomaly"
	"github.com/ppiankov/tablespectre/internal/models"
)

// Memory keeps everything in process. It backs --dry-run and tests.
type Memory struct {
	mu        sync.Mutex
	results   []models.CheckResult
	snapshots []models.GroupCountSnapshot
	runs      []models.RunMetadata
}

var _ Sink = (*Memory)(nil)

// NewMemory returns an empty in-process sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) InsertResults(_ context.Context, results []models.CheckResult) []RowError {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, results...)
	return nil
}

func (m *Memory) InsertSnapshots(_ context.Context, snapshots []models.GroupCountSnapshot) []RowError {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshots...)
	return nil
}

func (m *Memory) InsertRunMetadata(_ context.Context, run models.RunMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// RecentCounts mirrors the SQL sink: matching snapshots from runs before
// q.BeforeRunID, newest first.
func (m *Memory) RecentCounts(_ context.Context, q anomaly.HistoryQuery) ([]int64, error) {
	m.mu.Lock()
	var matched []models.GroupCountSnapshot
	for _, s := range m.snapshots {
		if s.Dataset == q.Dataset && s.Table == q.Table &&
			s.GroupByColumns == q.GroupByColumns && s.GroupKey == q.GroupKey &&
			s.RunID < q.BeforeRunID {
			matched = append(matched, s)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].RunID > matched[j].RunID
	})
	if q.Limit >= 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	counts := make([]int64, len(matched))
	for i, s := range matched {
		counts[i] = s.RowCount
	}
	return counts, nil
}

// Results returns a copy of the stored results.
func (m *Memory) Results() []models.CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CheckResult(nil), m.results...)
}

// Snapshots returns a copy of the stored snapshots.
func (m *Memory) Snapshots() []models.GroupCountSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.GroupCountSnapshot(nil), m.snapshots...)
}

// Runs returns a copy of the stored run metadata.
func (m *Memory) Runs() []models.RunMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RunMetadata(nil), m.runs...)
}
