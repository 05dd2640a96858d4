package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/biodata-api/internal/models"
)

// SettingRepository persists platform settings.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository constructs the repository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get fetches a setting by key.
func (r *SettingRepository) Get(ctx context.Context, key string) (*models.AppSetting, error) {
	var setting models.AppSetting
	if err := r.db.GetContext(ctx, &setting, `SELECT key, value, updated_by, updated_at FROM app_settings WHERE key = $1`, key); err != nil {
		return nil, err
	}
	return &setting, nil
}

// Upsert inserts or updates a setting.
func (r *SettingRepository) Upsert(ctx context.Context, setting *models.AppSetting) error {
	const query = `INSERT INTO app_settings (key, value, updated_by, updated_at)
VALUES (:key, :value, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	setting.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
