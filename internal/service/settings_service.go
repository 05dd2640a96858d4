package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

type settingStore interface {
	Get(ctx context.Context, key string) (*models.AppSetting, error)
	Upsert(ctx context.Context, setting *models.AppSetting) error
}

// SettingsService is the injected accessor for platform settings. The monetization flag is
// read once and served from memory until Invalidate is called.
type SettingsService struct {
	store  settingStore
	logger *zap.Logger

	mu           sync.Mutex
	loaded       bool
	monetization bool
}

// NewSettingsService constructs the accessor.
func NewSettingsService(store settingStore, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: store, logger: logger}
}

// MonetizationEnabled reports the flag, loading it on first use. A missing row means disabled.
// Load failures are returned and not cached.
func (s *SettingsService) MonetizationEnabled(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.monetization, nil
	}

	setting, err := s.store.Get(ctx, models.SettingMonetizationEnabled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.monetization = false
	case err != nil:
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	default:
		enabled, parseErr := strconv.ParseBool(setting.Value)
		if parseErr != nil {
			s.logger.Warn("invalid monetization setting", zap.String("value", setting.Value))
		}
		s.monetization = enabled
	}
	s.loaded = true
	return s.monetization, nil
}

// SetMonetization persists the flag and drops the cached value.
func (s *SettingsService) SetMonetization(ctx context.Context, actor *models.JWTClaims, enabled bool) (bool, error) {
	if err := requireAdmin(actor); err != nil {
		return false, err
	}
	updatedBy := actor.UserID
	setting := &models.AppSetting{
		Key:       models.SettingMonetizationEnabled,
		Value:     strconv.FormatBool(enabled),
		UpdatedBy: &updatedBy,
	}
	if err := s.store.Upsert(ctx, setting); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}
	s.Invalidate()
	s.logger.Info("monetization toggled", zap.Bool("enabled", enabled), zap.String("actor_id", actor.UserID))
	return enabled, nil
}

// Invalidate forces the next read to reload from storage.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}
