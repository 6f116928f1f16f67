package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const logColumns = "id, type, user_id, message, created_at"

// maxLimit stands in for "no limit" when only an offset is given; MySQL
// rejects OFFSET without LIMIT.
const maxLimit = 2147483647

// LogRepository handles the append-only audit log
type LogRepository struct {
	store
}

// NewLogRepository creates a new log repository
func NewLogRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *LogRepository {
	return &LogRepository{store: newStore(db, policy, log, "LogRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *LogRepository) WithTx(tx *database.Tx) *LogRepository {
	return &LogRepository{store: r.store.withTx(tx)}
}

func scanLog(row scanner) (*models.LogEntry, error) {
	entry := &models.LogEntry{}
	var userID sql.NullInt64
	if err := row.Scan(&entry.ID, &entry.Type, &userID, &entry.Message, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.UserID = nullInt64(userID)
	return entry, nil
}

// escapeLike escapes LIKE wildcards with '!' so a search matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// CreateLog appends an audit entry
func (r *LogRepository) CreateLog(ctx context.Context, entry models.LogEntry) (*models.LogEntry, error) {
	entry.CreatedAt = now()
	var userID sql.NullInt64
	if entry.UserID != nil {
		userID = sql.NullInt64{Int64: *entry.UserID, Valid: true}
	}
	query := "INSERT INTO logs (type, user_id, message, created_at) VALUES (?, ?, ?, ?)"
	id, err := insert(ctx, r.store, query, entry.Type, userID, entry.Message, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create log: %w", err)
	}
	entry.ID = id
	return &entry, nil
}

// ListLogs retrieves log entries matching the filter, newest first
func (r *LogRepository) ListLogs(ctx context.Context, filter models.LogFilter) ([]models.LogEntry, error) {
	var where []string
	var args []interface{}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Search != "" {
		where = append(where, "LOWER(message) LIKE ? ESCAPE '!'")
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
	}

	query := "SELECT " + logColumns + " FROM logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	switch {
	case filter.Limit > 0:
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		query += " LIMIT ?"
		args = append(args, maxLimit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	entries, err := getAll(ctx, r.store, scanLog, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return entries, nil
}

// ClearLogs removes every log entry
func (r *LogRepository) ClearLogs(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM logs"); err != nil {
		return fmt.Errorf("failed to clear logs: %w", err)
	}
	return nil
}
