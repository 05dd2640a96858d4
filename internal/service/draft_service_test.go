package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

type draftStoreStub struct {
	drafts    map[string]*models.Draft
	getErr    error
	upsertErr error
	deleteErr error
	upserts   int
}

func newDraftStoreStub() *draftStoreStub {
	return &draftStoreStub{drafts: map[string]*models.Draft{}}
}

func (s *draftStoreStub) GetByOwner(ctx context.Context, ownerID string) (*models.Draft, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.drafts[ownerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

// Upsert mirrors the conditional write of the SQL repository.
func (s *draftStoreStub) Upsert(ctx context.Context, draft *models.Draft) (*models.Draft, bool, error) {
	if s.upsertErr != nil {
		return nil, false, s.upsertErr
	}
	s.upserts++
	if current, ok := s.drafts[draft.OwnerID]; ok && draft.Revision != 0 && draft.Revision < current.Revision {
		cp := *current
		return &cp, false, nil
	}
	cp := *draft
	s.drafts[draft.OwnerID] = &cp
	out := cp
	return &out, true, nil
}

func (s *draftStoreStub) Delete(ctx context.Context, ownerID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.drafts, ownerID)
	return nil
}

type accountStub struct {
	statuses map[string]models.AccountStatus
	err      error
}

func (s accountStub) AccountStatus(ctx context.Context, id string) (models.AccountStatus, error) {
	if s.err != nil {
		return "", s.err
	}
	status, ok := s.statuses[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return status, nil
}

func ownerClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleUser}
}

func activeAccounts(ids ...string) accountStub {
	statuses := map[string]models.AccountStatus{}
	for _, id := range ids {
		statuses[id] = models.AccountActive
	}
	return accountStub{statuses: statuses}
}

func TestDraftServiceSaveIsIdempotentOverwrite(t *testing.T) {
	store := newDraftStoreStub()
	svc := NewDraftService(store, activeAccounts("u1"), nil, nil, nil, DraftServiceConfig{})
	req := dto.SaveDraftRequest{CurrentStep: 2, DraftData: json.RawMessage(`{"gender":"male"}`)}

	first, err := svc.Save(context.Background(), ownerClaims("u1"), req)
	require.NoError(t, err)
	second, err := svc.Save(context.Background(), ownerClaims("u1"), req)
	require.NoError(t, err)
	assert.Equal(t, first.DraftData, second.DraftData)

	got, err := svc.Get(context.Background(), ownerClaims("u1"))
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStep)
	assert.JSONEq(t, `{"gender":"male"}`, string(got.DraftData))
}

func TestDraftServiceIgnoresStaleRevision(t *testing.T) {
	store := newDraftStoreStub()
	svc := NewDraftService(store, activeAccounts("u1"), nil, nil, nil, DraftServiceConfig{})
	ctx := context.Background()

	_, err := svc.Save(ctx, ownerClaims("u1"), dto.SaveDraftRequest{CurrentStep: 1, DraftData: json.RawMessage(`{"height":"170"}`), Revision: 20})
	require.NoError(t, err)

	stale, err := svc.Save(ctx, ownerClaims("u1"), dto.SaveDraftRequest{CurrentStep: 1, DraftData: json.RawMessage(`{"height":"1"}`), Revision: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(20), stale.Revision)
	assert.JSONEq(t, `{"height":"170"}`, string(store.drafts["u1"].DraftData))
}

func TestDraftServiceValidation(t *testing.T) {
	store := newDraftStoreStub()
	svc := NewDraftService(store, activeAccounts("u1"), nil, nil, nil, DraftServiceConfig{MaxPayloadBytes: 64})
	ctx := context.Background()

	cases := map[string]dto.SaveDraftRequest{
		"step zero":     {CurrentStep: 0, DraftData: json.RawMessage(`{}`)},
		"step too high": {CurrentStep: 5, DraftData: json.RawMessage(`{}`)},
		"array payload": {CurrentStep: 1, DraftData: json.RawMessage(`[1]`)},
		"invalid json":  {CurrentStep: 1, DraftData: json.RawMessage(`{"a":`)},
		"too large":     {CurrentStep: 1, DraftData: json.RawMessage(`{"aboutMe":"` + string(make([]byte, 80)) + `"}`)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Save(ctx, ownerClaims("u1"), req)
			require.Error(t, err)
			assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
		})
	}
	assert.Zero(t, store.upserts)
}

func TestDraftServiceRejectsBannedOwner(t *testing.T) {
	store := newDraftStoreStub()
	accounts := accountStub{statuses: map[string]models.AccountStatus{"u1": models.AccountBanned}}
	svc := NewDraftService(store, accounts, nil, nil, nil, DraftServiceConfig{})

	_, err := svc.Save(context.Background(), ownerClaims("u1"), dto.SaveDraftRequest{CurrentStep: 1, DraftData: json.RawMessage(`{}`)})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
	assert.Zero(t, store.upserts)
}

func TestDraftServiceStorageFailureIsNotNotFound(t *testing.T) {
	store := newDraftStoreStub()
	store.getErr = errors.New("connection refused")
	store.upsertErr = errors.New("connection refused")
	svc := NewDraftService(store, activeAccounts("u1"), nil, nil, nil, DraftServiceConfig{})

	_, err := svc.Get(context.Background(), ownerClaims("u1"))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrStorageUnavailable.Code))

	_, err = svc.Save(context.Background(), ownerClaims("u1"), dto.SaveDraftRequest{CurrentStep: 1, DraftData: json.RawMessage(`{}`)})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrStorageUnavailable.Code))
}

func TestDraftServiceGetMissingAndDelete(t *testing.T) {
	store := newDraftStoreStub()
	svc := NewDraftService(store, activeAccounts("u1"), nil, nil, nil, DraftServiceConfig{})

	_, err := svc.Get(context.Background(), ownerClaims("u1"))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
	require.NoError(t, svc.Delete(context.Background(), ownerClaims("u1")))

	_, err = svc.Get(context.Background(), nil)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))
}
