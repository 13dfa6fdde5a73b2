package checks

import (
	"fmt"
	"strings"
)

// Metric column aliases produced by the rendered queries.
const (
	ColTotalRows    = "total_rows"
	ColNullCount    = "null_count"
	ColUniqueCount  = "unique_count"
	ColFailureCount = "failure_count"
	ColRowCount     = "row_count"
)

// Render returns the query text for def. The same definition always yields
// the same text.
func Render(d Dialect, def Definition) (string, error) {
	switch c := def.(type) {
	case NullCheck:
		return renderNull(d, c), nil
	case UniquenessCheck:
		return renderUniqueness(d, c), nil
	case ConditionalCheck:
		return renderConditional(d, c), nil
	case GroupAnomalyCheck:
		return RenderGroupCount(d, c), nil
	default:
		return "", fmt.Errorf("no query template for %T", def)
	}
}

func renderNull(d Dialect, c NullCheck) string {
	return buildSelect(d, c.On, []string{
		"COUNT(*) AS " + ColTotalRows,
		fmt.Sprintf("SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END) AS %s", c.Column, ColNullCount),
	}, nil)
}

func renderUniqueness(d Dialect, c UniquenessCheck) string {
	return buildSelect(d, c.On, []string{
		"COUNT(*) AS " + ColTotalRows,
		fmt.Sprintf("COUNT(DISTINCT %s) AS %s", d.encodeTuple(c.Columns), ColUniqueCount),
	}, nil)
}

func renderConditional(d Dialect, c ConditionalCheck) string {
	return buildSelect(d, c.On, []string{
		"COUNT(*) AS " + ColTotalRows,
		fmt.Sprintf("SUM(CASE WHEN NOT (%s) THEN 1 ELSE 0 END) AS %s", c.Condition, ColFailureCount),
	}, nil)
}

// RenderGroupCount returns the per-group row count query of c.
func RenderGroupCount(d Dialect, c GroupAnomalyCheck) string {
	selects := append(append([]string(nil), c.GroupBy...), "COUNT(*) AS "+ColRowCount)
	return buildSelect(d, c.On, selects, c.GroupBy)
}

func buildSelect(d Dialect, t Target, selects []string, groupBy []string) string {
	var b strings.Builder
	b.WriteString("SELECT\n  ")
	b.WriteString(strings.Join(selects, ",\n  "))
	b.WriteString("\nFROM ")
	b.WriteString(d.QuoteTable(t.Dataset, t.Table))
	if t.Filter != "" {
		b.WriteString("\nWHERE (")
		b.WriteString(t.Filter)
		b.WriteString(")")
	}
	if len(groupBy) > 0 {
		cols := strings.Join(groupBy, ", ")
		b.WriteString("\nGROUP BY ")
		b.WriteString(cols)
		b.WriteString("\nORDER BY ")
		b.WriteString(cols)
	}
	return b.String()
}
