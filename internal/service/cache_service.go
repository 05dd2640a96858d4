package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the public listing cache. Failures are logged and read as misses.
//
// Every Invalidate advances an epoch. Fills that observed an older epoch are discarded so a
// listing read that raced a moderation decision cannot put the pre-decision page back.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	epoch      atomic.Uint64
}

// NewCacheService constructs a cache service. A disabled service reports every read as a miss.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger.Named("public_cache"), enabled: enabled}
}

// Enabled reports whether reads and fills reach the repository.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Epoch returns the invalidation counter to pass to Fill.
func (s *CacheService) Epoch() uint64 {
	if s == nil {
		return 0
	}
	return s.epoch.Load()
}

// Get decodes the entry at key into dest and reports a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	started := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(started))
	switch {
	case err == nil:
		return true
	case errors.Is(err, appErrors.ErrCacheMiss):
	default:
		s.logger.Warn("read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

// Fill stores value at key unless an invalidation happened after epoch was read.
// ttl <= 0 uses the default. It reports whether the value was written.
func (s *CacheService) Fill(ctx context.Context, key string, value interface{}, ttl time.Duration, epoch uint64) bool {
	if !s.Enabled() {
		return false
	}
	if s.epoch.Load() != epoch {
		s.logger.Debug("fill skipped after invalidation", zap.String("key", key))
		return false
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	started := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(started))
	if err != nil {
		s.logger.Warn("write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Invalidate advances the epoch and removes keys matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if s == nil {
		return nil
	}
	s.epoch.Add(1)
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
