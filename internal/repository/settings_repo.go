package repository

import (
	"context"
	"database/sql"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

// SettingsRepository stores key/value settings. Reads normally go through
// service.SettingsCache rather than hitting this repository directly.
type SettingsRepository struct {
	store
}

func NewSettingsRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *SettingsRepository {
	return &SettingsRepository{store: newStore(db, policy, log, "SettingsRepository")}
}

func (r *SettingsRepository) WithTx(tx *database.Tx) *SettingsRepository {
	return &SettingsRepository{store: r.store.withTx(tx)}
}

func scanSetting(row scanner) (*models.Setting, error) {
	s := &models.Setting{}
	var description sql.NullString
	if err := row.Scan(&s.Key, &s.Value, &description); err != nil {
		return nil, err
	}
	s.Description = nullString(description)
	return s, nil
}

// GetSetting retrieves a setting by key
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	query := "SELECT name, value, description FROM settings WHERE name = ?"
	s, err := getOne(ctx, r.store, scanSetting, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

// ListSettings retrieves every setting ordered by key
func (r *SettingsRepository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	settings, err := getAll(ctx, r.store, scanSetting, "SELECT name, value, description FROM settings ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

// UpsertSetting inserts or updates a setting and returns the stored row. A nil
// description keeps the one already stored.
func (r *SettingsRepository) UpsertSetting(ctx context.Context, key, value string, description *string) (*models.Setting, error) {
	var desc sql.NullString
	if description != nil {
		desc = sql.NullString{String: *description, Valid: true}
	}
	if _, err := exec(ctx, r.store, r.db.GetDialect().UpsertSetting(), key, value, desc); err != nil {
		return nil, fmt.Errorf("failed to set setting: %w", err)
	}
	return r.GetSetting(ctx, key)
}

// DeleteSetting removes a setting
func (r *SettingsRepository) DeleteSetting(ctx context.Context, key string) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM settings WHERE name = ?", key)
	if err != nil {
		return false, fmt.Errorf("failed to delete setting: %w", err)
	}
	return n > 0, nil
}

// ClearSettings removes every setting
func (r *SettingsRepository) ClearSettings(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM settings"); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}
