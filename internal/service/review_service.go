package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	"github.com/noah-isme/biodata-api/internal/repository"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

type reportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	Review(ctx context.Context, params repository.ReviewReportParams) (*models.Report, error)
}

type creditTransactionStore interface {
	GetByID(ctx context.Context, id string) (*models.CreditTransaction, error)
	Review(ctx context.Context, params repository.ReviewCreditParams) (*models.CreditTransaction, error)
}

type profileLookup interface {
	GetByID(ctx context.Context, profileID string) (*models.Profile, error)
}

// ReviewService handles user reports and manual credit purchase verification.
type ReviewService struct {
	reports   reportStore
	credits   creditTransactionStore
	profiles  profileLookup
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewReviewService constructs the service.
func NewReviewService(reports reportStore, credits creditTransactionStore, profiles profileLookup, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		reports:   reports,
		credits:   credits,
		profiles:  profiles,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateReport files a pending report against another user's profile.
func (s *ReviewService) CreateReport(ctx context.Context, actor *models.JWTClaims, req dto.CreateReportRequest) (*models.Report, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	profile, err := s.profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if profile.UserID == actor.UserID {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid report payload", map[string]string{"profileId": "cannot report your own profile"})
	}

	report := &models.Report{ProfileID: profile.ProfileID, ReporterID: actor.UserID, Reason: req.Reason}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	return report, nil
}

// ReviewReport moves a report to investigating or dismissed. Repeating the current decision
// succeeds without writing; reopening a dismissed report is a conflict.
func (s *ReviewService) ReviewReport(ctx context.Context, actor *models.JWTClaims, reportID string, req dto.ReviewReportRequest) (*models.Report, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	var (
		to         models.ReportStatus
		from       []models.ReportStatus
		actionType models.ModerationActionType
	)
	switch req.Action {
	case string(models.ActionInvestigate):
		to, from, actionType = models.ReportInvestigating, []models.ReportStatus{models.ReportPending}, models.ActionInvestigate
	default:
		to, from, actionType = models.ReportDismissed, []models.ReportStatus{models.ReportPending, models.ReportInvestigating}, models.ActionDismiss
	}

	current, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, false, err
	}
	if current.Status == to {
		s.metrics.RecordModeration(string(models.TargetReport), string(actionType), "unchanged")
		return current, false, nil
	}
	if !containsReportStatus(from, current.Status) {
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "report already "+string(current.Status))
	}

	var notes *string
	if trimmed := strings.TrimSpace(req.Notes); trimmed != "" {
		notes = &trimmed
	}
	now := s.now()
	updated, err := s.reports.Review(ctx, repository.ReviewReportParams{
		ID:         reportID,
		From:       from,
		To:         to,
		Notes:      notes,
		ReviewedBy: actor.UserID,
		ReviewedAt: now,
		Action: &models.ModerationAction{
			TargetType: models.TargetReport,
			TargetID:   reportID,
			Action:     actionType,
			ActorID:    actor.UserID,
			Reason:     notes,
			CreatedAt:  now,
		},
	})
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordModeration(string(models.TargetReport), string(actionType), "failed")
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review report")
		}
		latest, loadErr := s.loadReport(ctx, reportID)
		if loadErr != nil {
			return nil, false, loadErr
		}
		if latest.Status == to {
			return latest, false, nil
		}
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "report status changed concurrently")
	}
	s.metrics.RecordModeration(string(models.TargetReport), string(actionType), "changed")
	return updated, true, nil
}

// ReviewCreditTransaction settles a pending credit purchase. Approval credits the buyer once;
// approved and rejected are terminal.
func (s *ReviewService) ReviewCreditTransaction(ctx context.Context, actor *models.JWTClaims, id string, req dto.ReviewCreditTransactionRequest) (*models.CreditTransaction, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	to, actionType := models.CreditApproved, models.ActionApprove
	if req.Action == string(models.ActionReject) {
		to, actionType = models.CreditRejected, models.ActionReject
	}

	current, err := s.loadCreditTransaction(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if current.Status != models.CreditPending {
		return s.settledCreditTransaction(current, to, actionType)
	}

	var note *string
	if trimmed := strings.TrimSpace(req.Note); trimmed != "" {
		note = &trimmed
	}
	now := s.now()
	updated, err := s.credits.Review(ctx, repository.ReviewCreditParams{
		ID:         id,
		To:         to,
		Note:       note,
		ReviewedBy: actor.UserID,
		ReviewedAt: now,
		Action: &models.ModerationAction{
			TargetType: models.TargetCreditTransaction,
			TargetID:   id,
			Action:     actionType,
			ActorID:    actor.UserID,
			Reason:     note,
			CreatedAt:  now,
		},
	})
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordModeration(string(models.TargetCreditTransaction), string(actionType), "failed")
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review credit transaction")
		}
		latest, loadErr := s.loadCreditTransaction(ctx, id)
		if loadErr != nil {
			return nil, false, loadErr
		}
		return s.settledCreditTransaction(latest, to, actionType)
	}

	s.metrics.RecordModeration(string(models.TargetCreditTransaction), string(actionType), "changed")
	s.logger.Info("credit transaction reviewed",
		zap.String("transaction_id", id),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actor.UserID),
	)
	return updated, true, nil
}

func (s *ReviewService) settledCreditTransaction(txn *models.CreditTransaction, to models.CreditTransactionStatus, actionType models.ModerationActionType) (*models.CreditTransaction, bool, error) {
	if txn.Status == to {
		s.metrics.RecordModeration(string(models.TargetCreditTransaction), string(actionType), "unchanged")
		return txn, false, nil
	}
	return nil, false, appErrors.Clone(appErrors.ErrConflict, "credit transaction already "+string(txn.Status))
}

func (s *ReviewService) loadReport(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

func (s *ReviewService) loadCreditTransaction(ctx context.Context, id string) (*models.CreditTransaction, error) {
	txn, err := s.credits.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "credit transaction not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credit transaction")
	}
	return txn, nil
}

func containsReportStatus(statuses []models.ReportStatus, status models.ReportStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
