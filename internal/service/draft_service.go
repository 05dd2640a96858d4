package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

type draftStore interface {
	GetByOwner(ctx context.Context, ownerID string) (*models.Draft, error)
	Upsert(ctx context.Context, draft *models.Draft) (*models.Draft, bool, error)
	Delete(ctx context.Context, ownerID string) error
}

type accountStatusReader interface {
	AccountStatus(ctx context.Context, id string) (models.AccountStatus, error)
}

// DraftServiceConfig bounds what a draft save may carry.
type DraftServiceConfig struct {
	MaxStep         int
	MaxPayloadBytes int64
}

// DraftService owns the per-owner draft. The owner is always the authenticated caller.
type DraftService struct {
	store     draftStore
	accounts  accountStatusReader
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       DraftServiceConfig
}

// NewDraftService constructs the service.
func NewDraftService(store draftStore, accounts accountStatusReader, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg DraftServiceConfig) *DraftService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = models.BiodataSteps
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 256 << 10
	}
	return &DraftService{store: store, accounts: accounts, validator: validate, metrics: metrics, logger: logger, cfg: cfg}
}

// Get returns the caller's draft. A missing draft is NotFound; a storage failure is never
// reported as a missing draft.
func (s *DraftService) Get(ctx context.Context, actor *models.JWTClaims) (*models.Draft, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	draft, err := s.store.GetByOwner(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, storageUnavailable(err, "failed to load draft")
	}
	return draft, nil
}

// Save overwrites the caller's draft. A save carrying an older revision than the stored one
// is ignored and the stored draft is returned.
func (s *DraftService) Save(ctx context.Context, actor *models.JWTClaims, req dto.SaveDraftRequest) (*models.Draft, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validateSave(req); err != nil {
		s.metrics.RecordDraftSave("rejected")
		return nil, err
	}
	if err := s.ensureWritable(ctx, actor.UserID); err != nil {
		s.metrics.RecordDraftSave("rejected")
		return nil, err
	}

	draft := &models.Draft{
		OwnerID:     actor.UserID,
		CurrentStep: req.CurrentStep,
		DraftData:   req.DraftData,
		Revision:    req.Revision,
	}
	saved, applied, err := s.store.Upsert(ctx, draft)
	if err != nil {
		s.metrics.RecordDraftSave("error")
		s.logger.Warn("draft save failed", zap.String("owner_id", actor.UserID), zap.Error(err))
		return nil, storageUnavailable(err, "failed to save draft")
	}
	if !applied {
		s.metrics.RecordDraftSave("stale")
		s.logger.Debug("stale draft save ignored",
			zap.String("owner_id", actor.UserID),
			zap.Int64("revision", req.Revision),
			zap.Int64("stored_revision", saved.Revision),
		)
		return saved, nil
	}
	s.metrics.RecordDraftSave("applied")
	return saved, nil
}

// Delete removes the caller's draft; deleting a missing draft succeeds.
func (s *DraftService) Delete(ctx context.Context, actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if err := s.store.Delete(ctx, actor.UserID); err != nil {
		return storageUnavailable(err, "failed to delete draft")
	}
	return nil
}

func (s *DraftService) validateSave(req dto.SaveDraftRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}
	if req.CurrentStep > s.cfg.MaxStep {
		return appErrors.WithDetails(appErrors.ErrValidation, "invalid draft payload", map[string]string{
			"currentStep": fmt.Sprintf("must be between 1 and %d", s.cfg.MaxStep),
		})
	}
	if int64(len(req.DraftData)) > s.cfg.MaxPayloadBytes {
		return appErrors.WithDetails(appErrors.ErrValidation, "invalid draft payload", map[string]string{
			"draftData": fmt.Sprintf("must not exceed %d bytes", s.cfg.MaxPayloadBytes),
		})
	}
	if !isJSONObject(req.DraftData) {
		return appErrors.WithDetails(appErrors.ErrValidation, "invalid draft payload", map[string]string{
			"draftData": "must be a JSON object",
		})
	}
	return nil
}

func (s *DraftService) ensureWritable(ctx context.Context, userID string) error {
	if s.accounts == nil {
		return nil
	}
	status, err := s.accounts.AccountStatus(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "account not found")
		}
		return storageUnavailable(err, "failed to load account")
	}
	if !status.CanWrite() {
		return appErrors.Clone(appErrors.ErrForbidden, "account is banned")
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func storageUnavailable(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, message)
}
