package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const notificationColumns = "id, title, message, target, recipients, created_at"

// NotificationRepository handles database operations for notifications.
// Recipients are stored as a JSON array of user ids.
type NotificationRepository struct {
	store
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *NotificationRepository {
	return &NotificationRepository{store: newStore(db, policy, log, "NotificationRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *NotificationRepository) WithTx(tx *database.Tx) *NotificationRepository {
	return &NotificationRepository{store: r.store.withTx(tx)}
}

func scanNotification(row scanner) (*models.Notification, error) {
	n := &models.Notification{}
	var recipients sql.NullString
	if err := row.Scan(&n.ID, &n.Title, &n.Message, &n.Target, &recipients, &n.CreatedAt); err != nil {
		return nil, err
	}
	if recipients.Valid && recipients.String != "" {
		if err := json.Unmarshal([]byte(recipients.String), &n.Recipients); err != nil {
			return nil, fmt.Errorf("failed to decode recipients of notification %d: %w", n.ID, err)
		}
	}
	return n, nil
}

// encodeRecipients stores a nil list as NULL and any other list, empty
// included, as a JSON array, so nil and empty survive a round trip
func encodeRecipients(ids []int64) (sql.NullString, error) {
	if ids == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// GetNotificationByID retrieves a notification by ID
func (r *NotificationRepository) GetNotificationByID(ctx context.Context, id int64) (*models.Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE id = ?"
	n, err := getOne(ctx, r.store, scanNotification, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// ListNotifications retrieves every notification, newest first
func (r *NotificationRepository) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications ORDER BY created_at DESC, id DESC"
	ns, err := getAll(ctx, r.store, scanNotification, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return ns, nil
}

// CreateNotification inserts a new notification. An empty target becomes "all".
func (r *NotificationRepository) CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if n.Target == "" {
		n.Target = models.TargetAll
	}
	recipients, err := encodeRecipients(n.Recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipients: %w", err)
	}
	n.CreatedAt = now()

	query := "INSERT INTO notifications (title, message, target, recipients, created_at) VALUES (?, ?, ?, ?, ?)"
	id, err := insert(ctx, r.store, query, n.Title, n.Message, n.Target, recipients, n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return &n, nil
}

// UpdateNotification applies a partial update. It returns nil when the
// notification does not exist.
func (r *NotificationRepository) UpdateNotification(ctx context.Context, id int64, patch models.NotificationPatch) (*models.Notification, error) {
	var a assignments
	setIf(&a, "title", patch.Title)
	setIf(&a, "message", patch.Message)
	setIf(&a, "target", patch.Target)
	if patch.Recipients != nil {
		recipients, err := encodeRecipients(*patch.Recipients)
		if err != nil {
			return nil, fmt.Errorf("failed to encode recipients: %w", err)
		}
		a.set("recipients", recipients)
	}
	if err := a.update(ctx, r.store, "notifications", id); err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}
	return r.GetNotificationByID(ctx, id)
}

// DeleteNotification removes a notification
func (r *NotificationRepository) DeleteNotification(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	return n > 0, nil
}

// ClearNotifications removes every notification
func (r *NotificationRepository) ClearNotifications(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	return nil
}
