package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	"github.com/noah-isme/biodata-api/internal/repository"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
	"github.com/noah-isme/biodata-api/pkg/export"
)

type moderationProfileStore interface {
	GetByID(ctx context.Context, profileID string) (*models.Profile, error)
	TransitionStatus(ctx context.Context, params repository.TransitionParams) (*models.Profile, error)
	Delete(ctx context.Context, profileID, ownerID string, action *models.ModerationAction) error
	List(ctx context.Context, filter models.ProfileFilter) ([]models.ProfileListItem, int, error)
}

type userModerationStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateAccountStatus(ctx context.Context, id string, status models.AccountStatus, from []models.AccountStatus, action *models.ModerationAction) error
}

type moderationActionLister interface {
	ListByTarget(ctx context.Context, targetType models.ModerationTargetType, targetID string) ([]models.ModerationAction, error)
}

// ModerationServiceConfig toggles admin extras.
type ModerationServiceConfig struct {
	ExportEnabled bool
	ExportLimit   int
}

// ExportFile is a rendered admin export.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ModerationService applies admin decisions to profiles and accounts. Every applied change
// is guarded by the status it was decided against and recorded as a moderation action.
type ModerationService struct {
	profiles  moderationProfileStore
	users     userModerationStore
	actions   moderationActionLister
	publisher lifecyclePublisher
	metrics   *MetricsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	cfg       ModerationServiceConfig
	now       func() time.Time
}

// NewModerationService constructs the service. publisher may be nil.
func NewModerationService(
	profiles moderationProfileStore,
	users userModerationStore,
	actions moderationActionLister,
	publisher lifecyclePublisher,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ModerationServiceConfig,
) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExportLimit <= 0 {
		cfg.ExportLimit = 1000
	}
	return &ModerationService{
		profiles:  profiles,
		users:     users,
		actions:   actions,
		publisher: publisher,
		metrics:   metrics,
		csv:       export.NewCSVExporter(export.WithBOM()),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Approve publishes a profile. Approving an approved profile succeeds without writing.
func (s *ModerationService) Approve(ctx context.Context, actor *models.JWTClaims, profileID string) (*models.Profile, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	current, err := s.loadProfile(ctx, profileID)
	if err != nil {
		return nil, false, err
	}
	transition, err := models.Apply(current.Status, models.EventApprove)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "profile cannot be approved")
	}
	if transition.Noop {
		s.metrics.RecordModeration(string(models.TargetProfile), string(models.ActionApprove), "unchanged")
		return current, false, nil
	}

	now := s.now()
	updated, err := s.profiles.TransitionStatus(ctx, repository.TransitionParams{
		ProfileID:   profileID,
		From:        models.SourcesFor(models.EventApprove),
		To:          transition.To,
		ClearReason: transition.ClearReason,
		ReviewedBy:  actor.UserID,
		ReviewedAt:  now,
		Action:      s.newAction(models.TargetProfile, profileID, models.ActionApprove, actor, nil, now),
	})
	if err != nil {
		return s.resolveProfileRace(ctx, err, profileID, models.ProfileApproved, models.ActionApprove)
	}

	s.afterProfileChange(models.EventApprove, models.ActionApprove, transition.From, updated)
	return updated, true, nil
}

// Reject sends a profile back to its owner with a reason. The reason is checked before any
// read or write. Rejecting again with the same reason succeeds without writing.
func (s *ModerationService) Reject(ctx context.Context, actor *models.JWTClaims, profileID, reason string) (*models.Profile, bool, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, false, appErrors.ErrReasonRequired
	}
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	current, err := s.loadProfile(ctx, profileID)
	if err != nil {
		return nil, false, err
	}
	transition, err := models.Apply(current.Status, models.EventReject)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "profile cannot be rejected")
	}
	if current.Status == models.ProfileRejected && current.ActiveRejectionReason() == reason {
		s.metrics.RecordModeration(string(models.TargetProfile), string(models.ActionReject), "unchanged")
		return current, false, nil
	}

	now := s.now()
	updated, err := s.profiles.TransitionStatus(ctx, repository.TransitionParams{
		ProfileID:  profileID,
		From:       models.SourcesFor(models.EventReject),
		To:         transition.To,
		Reason:     &reason,
		ReviewedBy: actor.UserID,
		ReviewedAt: now,
		Action:     s.newAction(models.TargetProfile, profileID, models.ActionReject, actor, &reason, now),
	})
	if err != nil {
		return s.resolveProfileRace(ctx, err, profileID, models.ProfileRejected, models.ActionReject)
	}

	s.afterProfileChange(models.EventReject, models.ActionReject, transition.From, updated)
	return updated, true, nil
}

// DeleteProfile removes any profile with its bookmarks and contact unlocks.
func (s *ModerationService) DeleteProfile(ctx context.Context, actor *models.JWTClaims, profileID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	current, err := s.loadProfile(ctx, profileID)
	if err != nil {
		return err
	}
	action := s.newAction(models.TargetProfile, profileID, models.ActionDelete, actor, nil, s.now())
	if err := s.profiles.Delete(ctx, profileID, "", action); err != nil {
		s.metrics.RecordModeration(string(models.TargetProfile), string(models.ActionDelete), "failed")
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete profile")
	}

	s.metrics.RecordModeration(string(models.TargetProfile), string(models.ActionDelete), "changed")
	s.metrics.RecordTransition(string(models.EventDelete), string(current.Status), "")
	s.publish(LifecycleNotice{Event: string(models.EventDelete), ProfileID: profileID, UserID: current.UserID, From: string(current.Status)})
	s.logger.Info("profile deleted by admin", zap.String("profile_id", profileID), zap.String("actor_id", actor.UserID))
	return nil
}

// RestrictUser hides the user's profiles from other users without blocking the owner.
func (s *ModerationService) RestrictUser(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, bool, error) {
	return s.setAccountStatus(ctx, actor, userID, models.AccountRestricted, models.ActionRestrict)
}

// BanUser hides the user's profiles and blocks further writes.
func (s *ModerationService) BanUser(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, bool, error) {
	return s.setAccountStatus(ctx, actor, userID, models.AccountBanned, models.ActionBan)
}

// UnrestrictUser restores an account to active.
func (s *ModerationService) UnrestrictUser(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, bool, error) {
	return s.setAccountStatus(ctx, actor, userID, models.AccountActive, models.ActionUnrestrict)
}

func (s *ModerationService) setAccountStatus(ctx context.Context, actor *models.JWTClaims, userID string, to models.AccountStatus, actionType models.ModerationActionType) (*models.User, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	if actor.UserID == userID {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "cannot moderate your own account")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if user.Role != models.RoleUser && actor.Role != models.RoleSuperAdmin {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin may moderate staff accounts")
	}
	if user.AccountStatus == to {
		s.metrics.RecordModeration(string(models.TargetUser), string(actionType), "unchanged")
		return user, false, nil
	}

	var from []models.AccountStatus
	for _, status := range []models.AccountStatus{models.AccountActive, models.AccountRestricted, models.AccountBanned} {
		if status != to {
			from = append(from, status)
		}
	}
	action := s.newAction(models.TargetUser, userID, actionType, actor, nil, s.now())
	if err := s.users.UpdateAccountStatus(ctx, userID, to, from, action); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordModeration(string(models.TargetUser), string(actionType), "failed")
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account status")
		}
		latest, loadErr := s.loadUser(ctx, userID)
		if loadErr != nil {
			return nil, false, loadErr
		}
		if latest.AccountStatus == to {
			s.metrics.RecordModeration(string(models.TargetUser), string(actionType), "unchanged")
			return latest, false, nil
		}
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "account status changed concurrently")
	}

	previous := user.AccountStatus
	user.AccountStatus = to
	s.metrics.RecordModeration(string(models.TargetUser), string(actionType), "changed")
	s.publish(LifecycleNotice{Event: string(actionType), UserID: userID, From: string(previous), To: string(to)})
	s.logger.Info("account status changed",
		zap.String("user_id", userID),
		zap.String("from", string(previous)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.UserID),
	)
	return user, true, nil
}

// ListProfiles returns a page of profiles for admins, newest first.
func (s *ModerationService) ListProfiles(ctx context.Context, actor *models.JWTClaims, query dto.ProfileQuery) ([]models.ProfileListItem, *models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	filter, err := profileFilterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.profiles.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetProfile returns any profile regardless of status.
func (s *ModerationService) GetProfile(ctx context.Context, actor *models.JWTClaims, profileID string) (*models.Profile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.loadProfile(ctx, profileID)
}

// ListActions returns the moderation history of a profile, newest first.
func (s *ModerationService) ListActions(ctx context.Context, actor *models.JWTClaims, profileID string) ([]models.ModerationAction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	actions, err := s.actions.ListByTarget(ctx, models.TargetProfile, profileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list moderation actions")
	}
	return actions, nil
}

var exportHeaders = []string{"Profile ID", "Owner", "Email", "Gender", "Status", "Account", "Edits", "Rejection Reason", "Created At"}

// Export renders the filtered admin listing as csv or pdf.
func (s *ModerationService) Export(ctx context.Context, actor *models.JWTClaims, query dto.ProfileQuery, format string) (*ExportFile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !s.cfg.ExportEnabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile export is disabled")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "unsupported export format", map[string]string{"format": "must be one of: csv, pdf"})
	}
	filter, err := profileFilterFromQuery(query)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: exportHeaders}
	filter.PageSize = 100
	for filter.Page = 1; len(dataset.Rows) < s.cfg.ExportLimit; filter.Page++ {
		items, total, err := s.profiles.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
		}
		for _, item := range items {
			if len(dataset.Rows) >= s.cfg.ExportLimit {
				break
			}
			dataset.Rows = append(dataset.Rows, exportRow(item))
		}
		if len(items) == 0 || filter.Page*filter.PageSize >= total {
			break
		}
	}

	stamp := s.now().Format("20060102-150405")
	file := &ExportFile{Filename: fmt.Sprintf("profiles-%s.%s", stamp, format)}
	switch format {
	case "pdf":
		file.ContentType = "application/pdf"
		file.Payload, err = s.pdf.Render(dataset, "Biodata profiles")
	default:
		file.ContentType = "text/csv"
		file.Payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return file, nil
}

func exportRow(item models.ProfileListItem) map[string]string {
	return map[string]string{
		"Profile ID":       item.ProfileID,
		"Owner":            item.OwnerName,
		"Email":            item.OwnerEmail,
		"Gender":           item.Gender,
		"Status":           string(item.Status),
		"Account":          string(item.AccountStatus),
		"Edits":            strconv.Itoa(item.EditCount),
		"Rejection Reason": item.ActiveRejectionReason(),
		"Created At":       item.CreatedAt.Format(time.RFC3339),
	}
}

func profileFilterFromQuery(query dto.ProfileQuery) (models.ProfileFilter, error) {
	filter := models.ProfileFilter{Search: strings.TrimSpace(query.Search), Page: query.Page, PageSize: query.Limit}
	if query.Status != "" && query.Status != "all" {
		status, err := models.ParseProfileStatus(query.Status)
		if err != nil {
			return filter, appErrors.WithDetails(appErrors.ErrValidation, "invalid status filter", map[string]string{"status": "must be one of: pending_approval, approved, rejected"})
		}
		filter.Status = &status
	}
	return filter, nil
}

func (s *ModerationService) resolveProfileRace(ctx context.Context, err error, profileID string, target models.ProfileStatus, actionType models.ModerationActionType) (*models.Profile, bool, error) {
	if !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordModeration(string(models.TargetProfile), string(actionType), "failed")
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile status")
	}
	latest, loadErr := s.loadProfile(ctx, profileID)
	if loadErr != nil {
		return nil, false, loadErr
	}
	if latest.Status == target {
		s.metrics.RecordModeration(string(models.TargetProfile), string(actionType), "unchanged")
		return latest, false, nil
	}
	return nil, false, appErrors.Clone(appErrors.ErrConflict, "profile status changed concurrently")
}

func (s *ModerationService) afterProfileChange(event models.LifecycleEvent, actionType models.ModerationActionType, from models.ProfileStatus, updated *models.Profile) {
	s.metrics.RecordModeration(string(models.TargetProfile), string(actionType), "changed")
	s.metrics.RecordTransition(string(event), string(from), string(updated.Status))
	s.publish(LifecycleNotice{Event: string(event), ProfileID: updated.ProfileID, UserID: updated.UserID, From: string(from), To: string(updated.Status)})
}

func (s *ModerationService) loadProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

func (s *ModerationService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *ModerationService) newAction(target models.ModerationTargetType, targetID string, action models.ModerationActionType, actor *models.JWTClaims, reason *string, at time.Time) *models.ModerationAction {
	return &models.ModerationAction{
		TargetType: target,
		TargetID:   targetID,
		Action:     action,
		ActorID:    actor.UserID,
		Reason:     reason,
		CreatedAt:  at,
	}
}

func (s *ModerationService) publish(notice LifecycleNotice) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(notice)
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return nil
}
