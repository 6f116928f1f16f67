package retry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func fastPolicy(attempts int) *Policy {
	return &Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("failed to get user: %w", driver.ErrBadConn), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"no rows", sql.ErrNoRows, false},
		{"postgres connection failure", &pq.Error{Code: "08006"}, true},
		{"postgres deadlock", &pq.Error{Code: "40P01"}, true},
		{"postgres unique violation", &pq.Error{Code: "23505"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062}, false},
		{"mysql invalid conn", mysql.ErrInvalidConn, true},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain error", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", driver.ErrBadConn
		}
		return "head1", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "head1" {
		t.Errorf("Do() = %q, want head1", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(4), func() (int, error) {
		calls++
		return 0, driver.ErrBadConn
	})
	if !errors.Is(err, driver.ErrBadConn) {
		t.Fatalf("Do() error = %v, want ErrBadConn", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := &pq.Error{Code: "23505"}
	calls := 0
	err := Run(context.Background(), fastPolicy(5), func() error {
		calls++
		return permanent
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		t.Errorf("Run() error = %v, want the original pq error", err)
	}
}

func TestDoNilPolicyRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), nil, func() (bool, error) {
		calls++
		return false, driver.ErrBadConn
	})
	if !errors.Is(err, driver.ErrBadConn) {
		t.Errorf("Do() error = %v, want ErrBadConn", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy(10)
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = 50 * time.Millisecond

	calls := 0
	_, err := Do(ctx, policy, func() (int, error) {
		calls++
		cancel()
		return 0, driver.ErrBadConn
	})
	if err == nil {
		t.Fatal("Do() should fail once the context is cancelled")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCustomClassifier(t *testing.T) {
	flaky := errors.New("flaky")
	policy := fastPolicy(2)
	policy.Classify = func(err error) bool { return errors.Is(err, flaky) }

	calls := 0
	_ = Run(context.Background(), policy, func() error {
		calls++
		return flaky
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestIsRetryableWrite(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"connection reset", syscall.ECONNRESET, false},
		{"unexpected eof", io.ErrUnexpectedEOF, false},
		{"postgres connection failure", &pq.Error{Code: "08006"}, false},
		{"postgres serialization failure", &pq.Error{Code: "40001"}, true},
		{"postgres deadlock", &pq.Error{Code: "40P01"}, true},
		{"postgres starting up", &pq.Error{Code: "57P03"}, true},
		{"mysql lock wait timeout", &mysql.MySQLError{Number: 1205}, true},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lost connection", &mysql.MySQLError{Number: 2013}, false},
		{"mysql invalid conn", mysql.ErrInvalidConn, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableWrite(tt.err); got != tt.want {
				t.Errorf("IsRetryableWrite(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWritesPolicyDoesNotRepeatAmbiguousFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"reply lost after send", io.ErrUnexpectedEOF, 1},
		{"connection never usable", driver.ErrBadConn, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), fastPolicy(3).Writes(), func() (int64, error) {
				calls++
				return 0, tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("Do() error = %v, want %v", err, tt.err)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestWritesKeepsCustomWriteClassifier(t *testing.T) {
	p := fastPolicy(2)
	p.ClassifyWrite = func(error) bool { return true }
	calls := 0
	Do(context.Background(), p.Writes(), func() (int, error) {
		calls++
		return 0, io.ErrUnexpectedEOF
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	var nilPolicy *Policy
	if nilPolicy.Writes() != nil {
		t.Error("Writes() on a nil policy should stay nil")
	}
}
