package checks

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavour queries are rendered in.
type Dialect string

const (
	ClickHouse Dialect = "clickhouse"
	Postgres   Dialect = "postgres"
	MySQL      Dialect = "mysql"
)

// ParseDialect maps a DSN scheme or dialect name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "clickhouse", "tcp", "http", "https":
		return ClickHouse, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", name)
}

// QuoteTable renders dataset.table as a quoted identifier pair.
func (d Dialect) QuoteTable(dataset, table string) string {
	return d.QuoteIdent(dataset) + "." + d.QuoteIdent(table)
}

// QuoteName quotes a possibly qualified name such as "schema.table".
func (d Dialect) QuoteName(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// Placeholder returns the bind parameter marker for the n-th argument,
// counting from 1.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdent quotes a single identifier.
func (d Dialect) QuoteIdent(name string) string {
	switch d {
	case Postgres:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	case ClickHouse:
		return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
	default:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
}

// encodeValue renders an expression that maps a column value to
// "<length>:<text>", or to N when the value is NULL. Each encoded value
// is self-delimiting, so concatenating several of them cannot make two
// different tuples collide.
func (d Dialect) encodeValue(column string) string {
	switch d {
	case ClickHouse:
		return fmt.Sprintf("ifNull(concat(toString(lengthUTF8(toString(%[1]s))), ':', toString(%[1]s)), 'N')", column)
	case Postgres:
		return fmt.Sprintf("COALESCE(CHAR_LENGTH(CAST(%[1]s AS TEXT)) || ':' || CAST(%[1]s AS TEXT), 'N')", column)
	default:
		return fmt.Sprintf("COALESCE(CONCAT(CHAR_LENGTH(CAST(%[1]s AS CHAR)), ':', CAST(%[1]s AS CHAR)), 'N')", column)
	}
}

// encodeTuple combines the encodings of several columns into one string.
func (d Dialect) encodeTuple(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = d.encodeValue(c)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	switch d {
	case ClickHouse:
		return "concat(" + strings.Join(parts, ", ") + ")"
	case Postgres:
		return strings.Join(parts, " || ")
	default:
		return "CONCAT(" + strings.Join(parts, ", ") + ")"
	}
}
