package retry

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// IsTransient reports whether err is a backing-store failure that may succeed
// on a fresh attempt: broken connections, server restarts, lock contention and
// serialization conflicts. Constraint violations, syntax errors and missing
// rows are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientPostgres(pqErr)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return transientMySQL(myErr)
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// IsRetryableWrite reports whether a failed write certainly did not take
// effect, so running it again cannot apply it twice: the connection was never
// usable, or the server rejected the statement on a lock conflict.
// Dropped connections and timeouts after the statement was sent are not
// retryable since the write may already have been applied.
func IsRetryableWrite(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"57P03": // cannot_connect_now
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// lock wait timeout, deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	return false
}

func transientPostgres(err *pq.Error) bool {
	// Class 08: connection exception
	if err.Code.Class() == "08" {
		return true
	}
	switch err.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"53300", // too_many_connections
		"57P01", // admin_shutdown
		"57P02", // crash_shutdown
		"57P03": // cannot_connect_now
		return true
	}
	return false
}

func transientMySQL(err *mysql.MySQLError) bool {
	switch err.Number {
	case 1040, // too many connections
		1205, // lock wait timeout
		1213, // deadlock
		2006, // server has gone away
		2013: // lost connection during query
		return true
	}
	return false
}
