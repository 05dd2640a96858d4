package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	"github.com/noah-isme/biodata-api/internal/repository"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

const publicProfilesCachePattern = "profiles:public:*"

type profileStore interface {
	CreateFromDraft(ctx context.Context, userID string, sections models.ProfileSections) (*models.Profile, error)
	GetByID(ctx context.Context, profileID string) (*models.Profile, error)
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	GetPublic(ctx context.Context, profileID string) (*models.Profile, error)
	UpdateByOwner(ctx context.Context, profileID, userID string, sections models.ProfileSections, editedAt time.Time) (*models.Profile, error)
	Delete(ctx context.Context, profileID, ownerID string, action *models.ModerationAction) error
	ListPublic(ctx context.Context, filter models.PublicProfileFilter) ([]models.Profile, int, error)
}

type draftReader interface {
	GetByOwner(ctx context.Context, ownerID string) (*models.Draft, error)
}

type lifecyclePublisher interface {
	Publish(notice LifecycleNotice)
}

// ProfileServiceConfig tunes public listing behaviour.
type ProfileServiceConfig struct {
	PublicCacheTTL  time.Duration
	DefaultPageSize int
}

// ProfileService implements the owner side of the profile lifecycle plus public reads.
type ProfileService struct {
	profiles  profileStore
	drafts    draftReader
	accounts  accountStatusReader
	biodata   *BiodataValidator
	cache     *CacheService
	publisher lifecyclePublisher
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ProfileServiceConfig
	now       func() time.Time
}

// NewProfileService constructs the service. cache and publisher may be nil.
func NewProfileService(
	profiles profileStore,
	drafts draftReader,
	accounts accountStatusReader,
	biodata *BiodataValidator,
	cache *CacheService,
	publisher lifecyclePublisher,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ProfileServiceConfig,
) *ProfileService {
	if biodata == nil {
		biodata = NewBiodataValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	return &ProfileService{
		profiles:  profiles,
		drafts:    drafts,
		accounts:  accounts,
		biodata:   biodata,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit promotes the caller's draft, or the supplied payload, into a pending profile. The
// draft is removed only when the profile is created; validation failures leave it untouched.
func (s *ProfileService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitProfileRequest) (*models.Profile, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.ensureWritable(ctx, actor.UserID); err != nil {
		return nil, err
	}

	data := req.DraftData
	if len(data) == 0 {
		draft, err := s.drafts.GetByOwner(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "no draft to submit")
			}
			return nil, storageUnavailable(err, "failed to load draft")
		}
		data = draft.DraftData
	}

	transition, err := models.Apply("", models.EventSubmit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "profile cannot be submitted")
	}

	form, err := s.biodata.Parse(data)
	if err != nil {
		return nil, err
	}
	sections, err := form.Sections()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode profile")
	}

	profile, err := s.profiles.CreateFromDraft(ctx, actor.UserID, sections)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateProfile) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "profile already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}

	s.metrics.RecordTransition(string(models.EventSubmit), string(transition.From), string(transition.To))
	s.publish(LifecycleNotice{Event: string(models.EventSubmit), ProfileID: profile.ProfileID, UserID: actor.UserID, To: string(profile.Status)})
	s.logger.Info("profile submitted", zap.String("profile_id", profile.ProfileID), zap.String("user_id", actor.UserID))
	return profile, nil
}

// Edit replaces the editable sections of the caller's profile and sends it back to review.
// Declaration fields in the payload are ignored; the stored declaration is kept.
func (s *ProfileService) Edit(ctx context.Context, actor *models.JWTClaims, profileID string, req dto.EditProfileRequest) (*models.Profile, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	current, err := s.loadOwned(ctx, actor, profileID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWritable(ctx, actor.UserID); err != nil {
		return nil, err
	}

	transition, err := models.Apply(current.Status, models.EventOwnerEdit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "profile cannot be edited")
	}

	form, typeErrs, err := models.ParseBiodataForm(req.Data)
	if err != nil {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "biodata must be a JSON object", map[string]string{"data": "must be a JSON object"})
	}
	form.Declaration = models.DeclarationSection{}
	if len(current.Declaration) > 0 {
		if err := json.Unmarshal(current.Declaration, &form.Declaration); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read stored declaration")
		}
	}
	if err := s.biodata.Check(form, withoutDeclarationErrors(typeErrs)); err != nil {
		return nil, err
	}
	sections, err := form.Sections()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode profile")
	}

	updated, err := s.profiles.UpdateByOwner(ctx, profileID, actor.UserID, sections, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	s.metrics.RecordTransition(string(models.EventOwnerEdit), string(transition.From), string(transition.To))
	s.publish(LifecycleNotice{Event: string(models.EventOwnerEdit), ProfileID: profileID, UserID: actor.UserID, From: string(transition.From), To: string(updated.Status)})
	return updated, nil
}

// Delete removes the caller's own profile together with its bookmarks and contact unlocks.
func (s *ProfileService) Delete(ctx context.Context, actor *models.JWTClaims, profileID string) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	current, err := s.loadOwned(ctx, actor, profileID)
	if err != nil {
		return err
	}
	if err := s.profiles.Delete(ctx, profileID, actor.UserID, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete profile")
	}
	s.metrics.RecordTransition(string(models.EventDelete), string(current.Status), "")
	s.publish(LifecycleNotice{Event: string(models.EventDelete), ProfileID: profileID, UserID: actor.UserID, From: string(current.Status)})
	return nil
}

// Mine returns the caller's profile.
func (s *ProfileService) Mine(ctx context.Context, actor *models.JWTClaims) (*models.Profile, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	profile, err := s.profiles.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// PublicGet returns an approved profile of an active account. Anything else is NotFound.
func (s *ProfileService) PublicGet(ctx context.Context, profileID string) (*dto.PublicProfileView, bool, error) {
	key := fmt.Sprintf("profiles:public:id:%s", profileID)
	var cached dto.PublicProfileView
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	epoch := s.cache.Epoch()
	profile, err := s.profiles.GetPublic(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	view := dto.NewPublicProfileView(profile)
	s.cache.Fill(ctx, key, view, s.cfg.PublicCacheTTL, epoch)
	return &view, false, nil
}

// PublicList pages through approved profiles of active accounts.
func (s *ProfileService) PublicList(ctx context.Context, query dto.PublicProfileQuery) (*dto.PublicProfileList, *models.Pagination, bool, error) {
	if query.Gender != "" && query.Gender != "male" && query.Gender != "female" {
		return nil, nil, false, appErrors.WithDetails(appErrors.ErrValidation, "invalid listing filter", map[string]string{"gender": "must be one of: male, female"})
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > 100 {
		limit = 100
	}
	pagination := &models.Pagination{Page: page, PageSize: limit}

	key := fmt.Sprintf("profiles:public:list:%s:%d:%d", query.Gender, page, limit)
	var cached dto.PublicProfileList
	if s.cache.Get(ctx, key, &cached) {
		pagination.TotalCount = cached.Total
		return &cached, pagination, true, nil
	}

	epoch := s.cache.Epoch()
	profiles, total, err := s.profiles.ListPublic(ctx, models.PublicProfileFilter{Gender: query.Gender, Page: page, PageSize: limit})
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	list := dto.PublicProfileList{Items: make([]dto.PublicProfileView, 0, len(profiles)), Total: total}
	for i := range profiles {
		list.Items = append(list.Items, dto.NewPublicProfileView(&profiles[i]))
	}
	s.cache.Fill(ctx, key, list, s.cfg.PublicCacheTTL, epoch)
	pagination.TotalCount = total
	return &list, pagination, false, nil
}

func (s *ProfileService) loadOwned(ctx context.Context, actor *models.JWTClaims, profileID string) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if profile.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another user")
	}
	return profile, nil
}

func (s *ProfileService) ensureWritable(ctx context.Context, userID string) error {
	if s.accounts == nil {
		return nil
	}
	status, err := s.accounts.AccountStatus(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if !status.CanWrite() {
		return appErrors.Clone(appErrors.ErrForbidden, "account is banned")
	}
	return nil
}

func (s *ProfileService) publish(notice LifecycleNotice) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(notice)
}

var declarationFields = map[string]bool{
	"guardianKnowledge":         true,
	"informationTruthfulness":   true,
	"falseInformationAgreement": true,
}

func withoutDeclarationErrors(errs []*models.FieldTypeError) []*models.FieldTypeError {
	out := errs[:0:0]
	for _, e := range errs {
		if !declarationFields[e.Field] {
			out = append(out, e)
		}
	}
	return out
}
