package checks

import "github.com/ppiankov/tablespectre/internal/models"

// EvaluateThreshold returns pass when value <= threshold, fail otherwise.
// A missing metric is an execution failure and must be reported as
// models.StatusError by the caller instead.
func EvaluateThreshold(value, threshold float64) models.Status {
	if value <= threshold {
		return models.StatusPass
	}
	return models.StatusFail
}
