package runner

import (
	"fmt"

	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/recorder"
	"github.com/ppiankov/tablespectre/internal/warehouse"
)

// measure extracts the metric of a threshold check from its single result
// row. A NULL metric is an error: it means the query did not produce one.
func measure(def checks.Definition, rows []warehouse.Row) (recorder.Measurement, error) {
	if len(rows) != 1 {
		return recorder.Measurement{}, fmt.Errorf("expected 1 result row, got %d", len(rows))
	}
	row := rows[0]

	total, err := requireInt(row, checks.ColTotalRows)
	if err != nil {
		return recorder.Measurement{}, err
	}

	var value int64
	switch def.(type) {
	case checks.NullCheck:
		value, err = requireInt(row, checks.ColNullCount)
	case checks.UniquenessCheck:
		var unique int64
		unique, err = requireInt(row, checks.ColUniqueCount)
		value = total - unique
	case checks.ConditionalCheck:
		value, err = requireInt(row, checks.ColFailureCount)
	case checks.GroupAnomalyCheck:
		err = fmt.Errorf("%s is not a threshold check", def.Kind())
	default:
		panic(fmt.Sprintf("runner: unhandled check definition %T", def))
	}
	if err != nil {
		return recorder.Measurement{}, err
	}

	return recorder.Measurement{TotalRows: total, Value: float64(value)}, nil
}

func requireInt(row warehouse.Row, column string) (int64, error) {
	n, valid, err := row.Int64(column)
	if err != nil {
		return 0, err
	}
	if !valid {
		return 0, fmt.Errorf("metric %s is NULL", column)
	}
	return n, nil
}
