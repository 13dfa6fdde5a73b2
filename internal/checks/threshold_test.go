package checks

import (
	"testing"

	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/stretchr/testify/require"
)

func TestEvaluateThreshold(t *testing.T) {
	for _, tc := range []struct {
		desc      string
		value     float64
		threshold float64
		want      models.Status
	}{
		{desc: "no nulls against zero threshold", value: 0, threshold: 0, want: models.StatusPass},
		{desc: "five nulls against zero threshold", value: 5, threshold: 0, want: models.StatusFail},
		{desc: "equal is a pass", value: 10, threshold: 10, want: models.StatusPass},
		{desc: "just above", value: 10.0001, threshold: 10, want: models.StatusFail},
		{desc: "below", value: 3, threshold: 10, want: models.StatusPass},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.want, EvaluateThreshold(tc.value, tc.threshold))
		})
	}
}

func TestEvaluateThresholdLaw(t *testing.T) {
	values := []float64{-1, 0, 0.5, 1, 2, 99, 100, 101, 1e9}
	for _, v := range values {
		for _, th := range values {
			got := EvaluateThreshold(v, th)
			if v <= th {
				require.Equal(t, models.StatusPass, got, "v=%v t=%v", v, th)
			} else {
				require.Equal(t, models.StatusFail, got, "v=%v t=%v", v, th)
			}
		}
	}
}
