package warehouse

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial failed" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		desc string
		err  error
		want bool
	}{
		{desc: "nil", err: nil, want: false},
		{desc: "typed transient", err: &TransientBackendError{Err: errors.New("x")}, want: true},
		{desc: "typed fatal wins over timeout text", err: &FatalBackendError{Err: errors.New("timeout")}, want: false},
		{desc: "clickhouse overload", err: &clickhouse.Exception{Code: 202, Message: "too many"}, want: true},
		{desc: "clickhouse syntax", err: &clickhouse.Exception{Code: 62, Message: "syntax error"}, want: false},
		{desc: "clickhouse auth", err: &clickhouse.Exception{Code: 516, Message: "bad password"}, want: false},
		{desc: "postgres connection failure", err: &pgconn.PgError{Code: "08006"}, want: true},
		{desc: "postgres serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{desc: "postgres undefined table", err: &pgconn.PgError{Code: "42P01"}, want: false},
		{desc: "postgres auth", err: &pgconn.PgError{Code: "28P01"}, want: false},
		{desc: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, want: true},
		{desc: "mysql access denied", err: &mysql.MySQLError{Number: 1045}, want: false},
		{desc: "mysql unknown column", err: &mysql.MySQLError{Number: 1054}, want: false},
		{desc: "bad conn", err: fmt.Errorf("query: %w", driver.ErrBadConn), want: true},
		{desc: "deadline", err: context.DeadlineExceeded, want: true},
		{desc: "canceled", err: context.Canceled, want: false},
		{desc: "net timeout", err: timeoutErr{}, want: true},
		{desc: "connection reset text", err: errors.New("read: connection reset by peer"), want: true},
		{desc: "auth text", err: errors.New("Access denied for user"), want: false},
		{desc: "unknown", err: errors.New("column foo does not exist"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
