package runner

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns run_<yyyymmdd_hhmmss>_<uuidv7>. Ids sort by creation
// time, and the UUIDv7 suffix keeps runs started in the same second
// ordered and distinct.
func NewRunID(now time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return fmt.Sprintf("run_%s_%s", now.UTC().Format("20060102_150405"), id.String()), nil
}
