// Package sink persists check results, row-count history and run metadata.
package sink

import (
	"context"
	"fmt"

	"github.com/ppiankov/tablespectre/internal/anomaly"
	"github.com/ppiankov/tablespectre/internal/models"
)

// RowError reports one rejected row. Rows are inserted independently, so
// rows before and after it may have been stored.
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Sink stores the audit trail of runs. Inserts are at-least-once and never
// roll back rows that were accepted.
type Sink interface {
	InsertResults(ctx context.Context, results []models.CheckResult) []RowError
	InsertSnapshots(ctx context.Context, snapshots []models.GroupCountSnapshot) []RowError
	InsertRunMetadata(ctx context.Context, run models.RunMetadata) error
	anomaly.HistoryStore
}
