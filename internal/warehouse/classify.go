package warehouse

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	authErrorSubstrings = []string{
		"authentication failed",
		"authentication error",
		"invalid credentials",
		"invalid password",
		"password is incorrect",
		"wrong password",
		"unknown user",
		"unauthorized",
		"access denied",
		"permission denied",
		"not enough privileges",
		"sqlstate[28000]",
		"sqlstate 28000",
		"code: 193",
		"code: 194",
		"code: 497",
		"code: 516",
	}
	retryableErrorSubstrings = []string{
		"timeout",
		"i/o timeout",
		"tls handshake timeout",
		"eof",
		"unexpected eof",
		"broken pipe",
		"connection reset",
		"connection refused",
		"connection aborted",
		"connection closed",
		"use of closed network connection",
		"network is unreachable",
		"no route to host",
		"no such host",
		"too many simultaneous queries",
		"server is overloaded",
		"too many connections",
	}
)

// ClickHouse exception codes that indicate overload or a network problem.
var clickhouseTransientCodes = map[int32]struct{}{
	159: {}, // TIMEOUT_EXCEEDED
	202: {}, // TOO_MANY_SIMULTANEOUS_QUERIES
	203: {}, // NO_FREE_CONNECTION
	209: {}, // SOCKET_TIMEOUT
	210: {}, // NETWORK_ERROR
	241: {}, // MEMORY_LIMIT_EXCEEDED
	252: {}, // TOO_MANY_PARTS
	999: {}, // KEEPER_EXCEPTION
}

var clickhouseAuthCodes = map[int32]struct{}{
	193: {}, // WRONG_PASSWORD
	194: {}, // REQUIRED_PASSWORD
	497: {}, // ACCESS_DENIED
	516: {}, // AUTHENTICATION_FAILED
}

var mysqlTransientNumbers = map[uint16]struct{}{
	1040: {}, // ER_CON_COUNT_ERROR
	1053: {}, // ER_SERVER_SHUTDOWN
	1205: {}, // ER_LOCK_WAIT_TIMEOUT
	1213: {}, // ER_LOCK_DEADLOCK
	3024: {}, // ER_QUERY_TIMEOUT
}

var mysqlAuthNumbers = map[uint16]struct{}{
	1044: {}, // ER_DBACCESS_DENIED_ERROR
	1045: {}, // ER_ACCESS_DENIED_ERROR
	1142: {}, // ER_TABLEACCESS_DENIED_ERROR
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientBackendError
	if errors.As(err, &transient) {
		return true
	}
	var fatal *FatalBackendError
	if errors.As(err, &fatal) {
		return false
	}
	if isAuthError(err) {
		return false
	}
	if transient, known := classifyDriverError(err); known {
		return transient
	}
	return isRetryableError(err)
}

// classifyDriverError inspects typed errors of the supported drivers. The
// second return value is false when err is not a recognised driver error.
func classifyDriverError(err error) (transient bool, known bool) {
	var chErr *clickhouse.Exception
	if errors.As(err, &chErr) {
		_, ok := clickhouseTransientCodes[chErr.Code]
		return ok, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		case strings.HasPrefix(code, "08"), // connection exception
			strings.HasPrefix(code, "53"), // insufficient resources
			code == "57P01", code == "57P02", code == "57P03",
			code == "57014", // query_canceled, raised by statement_timeout
			code == "40001", code == "40P01":
			return true, true
		}
		return false, true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := mysqlTransientNumbers[myErr.Number]
		return ok, true
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true, true
	}

	return false, false
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	var chErr *clickhouse.Exception
	if errors.As(err, &chErr) {
		if _, ok := clickhouseAuthCodes[chErr.Code]; ok {
			return true
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "28") || pgErr.Code == "42501" {
			return true
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if _, ok := mysqlAuthNumbers[myErr.Number]; ok {
			return true
		}
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range authErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range retryableErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}
