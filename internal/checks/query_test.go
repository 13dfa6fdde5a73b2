package checks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderNullCheck(t *testing.T) {
	def := NullCheck{
		On:        Target{Dataset: "analytics", Table: "users", Filter: "created_at >= today() - 1"},
		Column:    "email",
		Threshold: 0,
	}

	got, err := Render(ClickHouse, def)
	require.NoError(t, err)
	require.Equal(t, "SELECT\n"+
		"  COUNT(*) AS total_rows,\n"+
		"  SUM(CASE WHEN email IS NULL THEN 1 ELSE 0 END) AS null_count\n"+
		"FROM `analytics`.`users`\n"+
		"WHERE (created_at >= today() - 1)", got)
}

func TestRenderWithoutFilterOmitsWhere(t *testing.T) {
	got, err := Render(Postgres, ConditionalCheck{
		On:        Target{Dataset: "sales", Table: "orders"},
		Condition: "amount >= 0",
	})
	require.NoError(t, err)
	require.Equal(t, "SELECT\n"+
		"  COUNT(*) AS total_rows,\n"+
		"  SUM(CASE WHEN NOT (amount >= 0) THEN 1 ELSE 0 END) AS failure_count\n"+
		`FROM "sales"."orders"`, got)
	require.NotContains(t, got, "WHERE")
}

func TestRenderUniquenessSingleColumn(t *testing.T) {
	got, err := Render(MySQL, UniquenessCheck{
		On:      Target{Dataset: "shop", Table: "orders"},
		Columns: []string{"order_id"},
	})
	require.NoError(t, err)
	require.Contains(t, got, "COUNT(DISTINCT COALESCE(CONCAT(CHAR_LENGTH(CAST(order_id AS CHAR)), ':', CAST(order_id AS CHAR)), 'N')) AS unique_count")
	require.Contains(t, got, "FROM `shop`.`orders`")
}

func TestRenderUniquenessMultiColumnIsLengthPrefixed(t *testing.T) {
	for _, tc := range []struct {
		dialect Dialect
		joiner  string
	}{
		{dialect: ClickHouse, joiner: "concat(ifNull("},
		{dialect: Postgres, joiner: " || COALESCE("},
		{dialect: MySQL, joiner: "CONCAT(COALESCE("},
	} {
		t.Run(string(tc.dialect), func(t *testing.T) {
			got, err := Render(tc.dialect, UniquenessCheck{
				On:      Target{Dataset: "d", Table: "t"},
				Columns: []string{"first_name", "last_name"},
			})
			require.NoError(t, err)
			require.Contains(t, got, tc.joiner)
			// Every column carries its own length prefix and NULL marker.
			require.Equal(t, 2, strings.Count(got, "'N'"))
			require.Equal(t, 2, strings.Count(got, "':'"))
			require.NotContains(t, got, "CONCAT(CAST(first_name")
		})
	}
}

func TestRenderGroupCount(t *testing.T) {
	def := GroupAnomalyCheck{
		On:      Target{Dataset: "events", Table: "clicks", Filter: "dt = yesterday()"},
		GroupBy: []string{"country", "platform"},
	}
	got, err := Render(ClickHouse, def)
	require.NoError(t, err)
	require.Equal(t, "SELECT\n"+
		"  country,\n"+
		"  platform,\n"+
		"  COUNT(*) AS row_count\n"+
		"FROM `events`.`clicks`\n"+
		"WHERE (dt = yesterday())\n"+
		"GROUP BY country, platform\n"+
		"ORDER BY country, platform", got)
	require.Equal(t, got, RenderGroupCount(ClickHouse, def))
}

func TestRenderIsDeterministic(t *testing.T) {
	defs := []Definition{
		NullCheck{On: Target{Dataset: "a", Table: "b"}, Column: "c"},
		UniquenessCheck{On: Target{Dataset: "a", Table: "b"}, Columns: []string{"x", "y", "z"}},
		ConditionalCheck{On: Target{Dataset: "a", Table: "b", Filter: "f = 1"}, Condition: "x > y"},
		GroupAnomalyCheck{On: Target{Dataset: "a", Table: "b"}, GroupBy: []string{"g"}},
	}
	for _, d := range []Dialect{ClickHouse, Postgres, MySQL} {
		for _, def := range defs {
			first, err := Render(d, def)
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				again, err := Render(d, def)
				require.NoError(t, err)
				require.Equal(t, first, again)
			}
		}
	}
}

func TestQuoteTableEscapes(t *testing.T) {
	require.Equal(t, "`we\\`ird`.`t`", ClickHouse.QuoteTable("we`ird", "t"))
	require.Equal(t, `"we""ird"."t"`, Postgres.QuoteTable(`we"ird`, "t"))
	require.Equal(t, "`we``ird`.`t`", MySQL.QuoteTable("we`ird", "t"))
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"clickhouse": ClickHouse,
		"HTTPS":      ClickHouse,
		"postgresql": Postgres,
		"postgres":   Postgres,
		"mysql":      MySQL,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseDialect("bigquery")
	require.EqualError(t, err, `unsupported dialect "bigquery"`)
}
