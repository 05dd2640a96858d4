package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]*models.User
	updates int
	actions []models.ModerationAction
}

func newUserStoreStub(users ...models.User) *userStoreStub {
	s := &userStoreStub{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	return s
}

func (s *userStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s *userStoreStub) UpdateAccountStatus(ctx context.Context, id string, status models.AccountStatus, from []models.AccountStatus, action *models.ModerationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	for _, f := range from {
		if f == u.AccountStatus {
			u.AccountStatus = status
			s.updates++
			s.actions = append(s.actions, *action)
			return nil
		}
	}
	return sql.ErrNoRows
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func newModerationFixture(t *testing.T) (*profileFixture, *userStoreStub, *ModerationService, string) {
	t.Helper()
	f := newProfileFixture("u1")
	created, err := f.profiles.Submit(context.Background(), ownerClaims("u1"), dto.SubmitProfileRequest{DraftData: completeBiodata(nil)})
	require.NoError(t, err)
	users := newUserStoreStub(
		models.User{ID: "u1", Role: models.RoleUser, AccountStatus: models.AccountActive},
		models.User{ID: "admin-2", Role: models.RoleAdmin, AccountStatus: models.AccountActive},
	)
	svc := NewModerationService(f.store, users, f.store, f.publisher, NewMetricsService(), nil, ModerationServiceConfig{ExportEnabled: true})
	return f, users, svc, created.ProfileID
}

func TestModerationApproveIsIdempotent(t *testing.T) {
	f, _, svc, id := newModerationFixture(t)
	ctx := context.Background()

	approved, changed, err := svc.Approve(ctx, adminClaims(), id)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ProfileApproved, approved.Status)

	again, changed, err := svc.Approve(ctx, adminClaims(), id)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.ProfileApproved, again.Status)
	assert.Len(t, f.store.actions, 1)
}

func TestModerationRejectRequiresReasonBeforeIO(t *testing.T) {
	f, _, svc, id := newModerationFixture(t)

	_, _, err := svc.Reject(context.Background(), adminClaims(), id, "   ")
	assert.True(t, errors.Is(err, appErrors.ErrReasonRequired))

	_, _, err = svc.Reject(context.Background(), adminClaims(), "BD-999999", "")
	assert.True(t, errors.Is(err, appErrors.ErrReasonRequired))

	stored, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ProfilePendingApproval, stored.Status)
	assert.Empty(t, f.store.actions)
}

func TestModerationRejectRevokesApprovalAndReplacesReason(t *testing.T) {
	f, _, svc, id := newModerationFixture(t)
	ctx := context.Background()

	_, _, err := svc.Approve(ctx, adminClaims(), id)
	require.NoError(t, err)
	rejected, changed, err := svc.Reject(ctx, adminClaims(), id, "Photo missing")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Photo missing", rejected.ActiveRejectionReason())

	_, changed, err = svc.Reject(ctx, adminClaims(), id, "Photo missing")
	require.NoError(t, err)
	assert.False(t, changed)

	replaced, changed, err := svc.Reject(ctx, adminClaims(), id, "Contact invalid")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Contact invalid", replaced.ActiveRejectionReason())

	history, err := svc.ListActions(ctx, adminClaims(), id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.ActionReject, history[0].Action)
	assert.Equal(t, "Contact invalid", *history[0].Reason)
	assert.Len(t, f.store.actions, 3)
}

func TestModerationApproveConcurrentApprovalIsIdempotent(t *testing.T) {
	f, _, svc, id := newModerationFixture(t)
	f.store.beforeTransition = func(p *models.Profile) {
		p.Status = models.ProfileApproved
	}

	profile, changed, err := svc.Approve(context.Background(), adminClaims(), id)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.ProfileApproved, profile.Status)
}

func TestModerationApproveMissingProfile(t *testing.T) {
	_, _, svc, _ := newModerationFixture(t)
	_, _, err := svc.Approve(context.Background(), adminClaims(), "BD-999999")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestModerationRequiresAdmin(t *testing.T) {
	f, _, svc, id := newModerationFixture(t)

	_, _, err := svc.Approve(context.Background(), ownerClaims("u1"), id)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
	_, _, err = svc.Approve(context.Background(), nil, id)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))

	stored, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ProfilePendingApproval, stored.Status)
}

func TestModerationDeleteProfile(t *testing.T) {
	f, _, svc, id := newModerationFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteProfile(ctx, adminClaims(), id))
	assert.Empty(t, f.store.profiles)
	err := svc.DeleteProfile(ctx, adminClaims(), id)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
	assert.Contains(t, f.publisher.events(), "delete")
}

func TestModerationUserStatusFlags(t *testing.T) {
	_, users, svc, _ := newModerationFixture(t)
	ctx := context.Background()

	user, changed, err := svc.RestrictUser(ctx, adminClaims(), "u1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.AccountRestricted, user.AccountStatus)

	_, changed, err = svc.RestrictUser(ctx, adminClaims(), "u1")
	require.NoError(t, err)
	assert.False(t, changed)

	user, _, err = svc.BanUser(ctx, adminClaims(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AccountBanned, user.AccountStatus)

	user, _, err = svc.UnrestrictUser(ctx, adminClaims(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AccountActive, user.AccountStatus)
	assert.Equal(t, 3, users.updates)

	_, _, err = svc.BanUser(ctx, adminClaims(), "missing")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
	_, _, err = svc.BanUser(ctx, adminClaims(), "admin-1")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
	_, _, err = svc.BanUser(ctx, adminClaims(), "admin-2")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
}

func TestModerationListAndExport(t *testing.T) {
	_, _, svc, id := newModerationFixture(t)
	ctx := context.Background()

	items, pagination, err := svc.ListProfiles(ctx, adminClaims(), dto.ProfileQuery{Status: "pending_approval"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ProfileID)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.ListProfiles(ctx, adminClaims(), dto.ProfileQuery{Status: "archived"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	file, err := svc.Export(ctx, adminClaims(), dto.ProfileQuery{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, string(file.Payload), id)

	file, err = svc.Export(ctx, adminClaims(), dto.ProfileQuery{}, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file.Payload, []byte("%PDF")))

	_, err = svc.Export(ctx, adminClaims(), dto.ProfileQuery{}, "xlsx")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestProfileLifecycleEndToEnd(t *testing.T) {
	f := newProfileFixture("u1")
	users := newUserStoreStub(models.User{ID: "u1", Role: models.RoleUser, AccountStatus: models.AccountActive})
	moderation := NewModerationService(f.store, users, f.store, f.publisher, nil, nil, ModerationServiceConfig{})
	ctx := context.Background()
	owner := ownerClaims("u1")

	_, err := f.drafting.Save(ctx, owner, dto.SaveDraftRequest{CurrentStep: 2, DraftData: json.RawMessage(`{"educationMedium":"Bengali"}`)})
	require.NoError(t, err)
	loaded, err := f.drafting.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.CurrentStep)
	assert.JSONEq(t, `{"educationMedium":"Bengali"}`, string(loaded.DraftData))

	full := completeBiodata(map[string]interface{}{"educationMedium": "Bengali"})
	_, err = f.drafting.Save(ctx, owner, dto.SaveDraftRequest{CurrentStep: 4, DraftData: full})
	require.NoError(t, err)
	profile, err := f.profiles.Submit(ctx, owner, dto.SubmitProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ProfilePendingApproval, profile.Status)
	assert.Zero(t, profile.EditCount)
	_, err = f.drafting.Get(ctx, owner)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	rejected, _, err := moderation.Reject(ctx, adminClaims(), profile.ProfileID, "Missing contact info")
	require.NoError(t, err)
	assert.Equal(t, models.ProfileRejected, rejected.Status)
	assert.Equal(t, "Missing contact info", rejected.ActiveRejectionReason())

	edited, err := f.profiles.Edit(ctx, owner, profile.ProfileID, dto.EditProfileRequest{
		Data: completeBiodata(map[string]interface{}{"educationMedium": "Bengali", "contactEmail": "guardian@example.com"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProfilePendingApproval, edited.Status)
	assert.Equal(t, 1, edited.EditCount)
	require.NotNil(t, edited.RejectionReason)
	assert.Equal(t, "Missing contact info", *edited.RejectionReason)
	assert.Equal(t, "Missing contact info", edited.PreviousRejectionReason())

	approved, changed, err := moderation.Approve(ctx, adminClaims(), profile.ProfileID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ProfileApproved, approved.Status)
	assert.Nil(t, approved.RejectionReason)

	assert.Equal(t, []string{"submit", "reject", "owner_edit", "approve"}, f.publisher.events())
}
