package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/retry"
)

// store is the connection handle shared by every repository. All SQL goes
// through the helpers below so the retry policy applies to each round trip:
// reads retry on any transient error, writes only when nothing ran.
// Inside a transaction the policy is nil: a failed statement poisons the
// transaction, so the caller retries the whole unit instead.
type store struct {
	db    database.DBTX
	retry *retry.Policy
	log   *logger.Logger
}

func newStore(db database.DBTX, policy *retry.Policy, log *logger.Logger, name string) store {
	if log == nil {
		log = logger.Nop()
	}
	return store{db: db, retry: policy, log: log.With("repo", name)}
}

func (s store) withTx(tx *database.Tx) store {
	return store{db: tx, log: s.log}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// getOne runs a single-row query; a missing row yields (nil, nil)
func getOne[T any](ctx context.Context, s store, scan func(scanner) (*T, error), query string, args ...interface{}) (*T, error) {
	return retry.Do(ctx, s.retry, func() (*T, error) {
		item, err := scan(s.db.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return item, err
	})
}

// getAll runs a multi-row query; no rows yields an empty, non-nil slice
func getAll[T any](ctx context.Context, s store, scan func(scanner) (*T, error), query string, args ...interface{}) ([]T, error) {
	return retry.Do(ctx, s.retry, func() ([]T, error) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		items := make([]T, 0)
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return nil, err
			}
			items = append(items, *item)
		}
		return items, rows.Err()
	})
}

// exec runs a statement and returns the number of affected rows. Writes use
// the narrower write policy so a statement is never applied twice.
func exec(ctx context.Context, s store, query string, args ...interface{}) (int64, error) {
	return retry.Do(ctx, s.retry.Writes(), func() (int64, error) {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()
	})
}

// insert runs an INSERT and returns the generated id
func insert(ctx context.Context, s store, query string, args ...interface{}) (int64, error) {
	return retry.Do(ctx, s.retry.Writes(), func() (int64, error) {
		return s.db.ExecReturningID(ctx, query, args...)
	})
}

// assignments collects the SET clause of a partial update
type assignments struct {
	cols []string
	args []interface{}
}

func (a *assignments) set(col string, v interface{}) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, v)
}

func setIf[T any](a *assignments, col string, v *T) {
	if v != nil {
		a.set(col, *v)
	}
}

func (a *assignments) empty() bool {
	return len(a.cols) == 0
}

// update applies the assignments to the row with the given id. Callers
// re-read the row afterwards; RowsAffected is unreliable for no-op updates on MySQL.
func (a *assignments) update(ctx context.Context, s store, table string, id int64) error {
	if a.empty() {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(a.cols, ", "))
	_, err := exec(ctx, s, query, append(a.args, id)...)
	return err
}

// inClause renders "?, ?, ?" for n placeholders along with the args
func inClause(ids []int64) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

func now() time.Time {
	return time.Now().UTC()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
