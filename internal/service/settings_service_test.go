package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biodata-api/internal/models"
)

type settingStoreStub struct {
	values map[string]string
	gets   int
	err    error
}

func (s *settingStoreStub) Get(ctx context.Context, key string) (*models.AppSetting, error) {
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.values[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.AppSetting{Key: key, Value: v}, nil
}

func (s *settingStoreStub) Upsert(ctx context.Context, setting *models.AppSetting) error {
	s.values[setting.Key] = setting.Value
	return nil
}

func TestSettingsServiceFetchesOnce(t *testing.T) {
	store := &settingStoreStub{values: map[string]string{models.SettingMonetizationEnabled: "true"}}
	svc := NewSettingsService(store, nil)

	for i := 0; i < 3; i++ {
		enabled, err := svc.MonetizationEnabled(context.Background())
		require.NoError(t, err)
		assert.True(t, enabled)
	}
	assert.Equal(t, 1, store.gets)
}

func TestSettingsServiceUpdateInvalidates(t *testing.T) {
	store := &settingStoreStub{values: map[string]string{}}
	svc := NewSettingsService(store, nil)
	ctx := context.Background()

	enabled, err := svc.MonetizationEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	_, err = svc.SetMonetization(ctx, adminClaims(), true)
	require.NoError(t, err)
	enabled, err = svc.MonetizationEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, 2, store.gets)

	_, err = svc.SetMonetization(ctx, ownerClaims("u1"), false)
	assert.Error(t, err)
}

func TestSettingsServiceDoesNotCacheFailures(t *testing.T) {
	store := &settingStoreStub{values: map[string]string{}, err: errors.New("db down")}
	svc := NewSettingsService(store, nil)

	_, err := svc.MonetizationEnabled(context.Background())
	require.Error(t, err)
	store.err = nil
	_, err = svc.MonetizationEnabled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets)
}
