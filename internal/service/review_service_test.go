package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	"github.com/noah-isme/biodata-api/internal/repository"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

type reportStoreStub struct {
	reports map[string]*models.Report
	reviews []repository.ReviewReportParams
}

func (s *reportStoreStub) Create(ctx context.Context, report *models.Report) error {
	report.ID = "report-1"
	report.Status = models.ReportPending
	cp := *report
	s.reports[report.ID] = &cp
	return nil
}

func (s *reportStoreStub) GetByID(ctx context.Context, id string) (*models.Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (s *reportStoreStub) Review(ctx context.Context, params repository.ReviewReportParams) (*models.Report, error) {
	r, ok := s.reports[params.ID]
	if !ok || !containsReportStatus(params.From, r.Status) {
		return nil, sql.ErrNoRows
	}
	s.reviews = append(s.reviews, params)
	r.Status = params.To
	if params.Notes != nil {
		r.ReviewNotes = params.Notes
	}
	cp := *r
	return &cp, nil
}

type creditStoreStub struct {
	txns    map[string]*models.CreditTransaction
	credits map[string]int
	err     error
}

func (s *creditStoreStub) GetByID(ctx context.Context, id string) (*models.CreditTransaction, error) {
	t, ok := s.txns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (s *creditStoreStub) Review(ctx context.Context, params repository.ReviewCreditParams) (*models.CreditTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.txns[params.ID]
	if !ok || t.Status != models.CreditPending {
		return nil, sql.ErrNoRows
	}
	t.Status = params.To
	if params.To == models.CreditApproved {
		s.credits[t.UserID] += t.Credits
	}
	cp := *t
	return &cp, nil
}

type profileLookupStub map[string]*models.Profile

func (s profileLookupStub) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	p, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func newReviewFixture() (*ReviewService, *reportStoreStub, *creditStoreStub) {
	reports := &reportStoreStub{reports: map[string]*models.Report{}}
	credits := &creditStoreStub{
		txns: map[string]*models.CreditTransaction{
			"txn-1": {ID: "txn-1", UserID: "u1", Credits: 5, Status: models.CreditPending},
		},
		credits: map[string]int{},
	}
	profiles := profileLookupStub{"BD-000001": {ProfileID: "BD-000001", UserID: "u1"}}
	return NewReviewService(reports, credits, profiles, nil, nil, nil), reports, credits
}

func TestReviewServiceReportFlow(t *testing.T) {
	svc, reports, _ := newReviewFixture()
	ctx := context.Background()

	report, err := svc.CreateReport(ctx, ownerClaims("u2"), dto.CreateReportRequest{ProfileID: "BD-000001", Reason: " fake photos "})
	require.NoError(t, err)
	assert.Equal(t, "fake photos", report.Reason)
	assert.Equal(t, models.ReportPending, report.Status)

	investigating, changed, err := svc.ReviewReport(ctx, adminClaims(), report.ID, dto.ReviewReportRequest{Action: "investigate", Notes: "checking"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ReportInvestigating, investigating.Status)

	_, changed, err = svc.ReviewReport(ctx, adminClaims(), report.ID, dto.ReviewReportRequest{Action: "investigate"})
	require.NoError(t, err)
	assert.False(t, changed)

	dismissed, changed, err := svc.ReviewReport(ctx, adminClaims(), report.ID, dto.ReviewReportRequest{Action: "dismiss"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ReportDismissed, dismissed.Status)

	_, _, err = svc.ReviewReport(ctx, adminClaims(), report.ID, dto.ReviewReportRequest{Action: "investigate"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
	assert.Len(t, reports.reviews, 2)
	assert.Equal(t, models.ActionDismiss, reports.reviews[1].Action.Action)
}

func TestReviewServiceReportValidation(t *testing.T) {
	svc, _, _ := newReviewFixture()
	ctx := context.Background()

	_, err := svc.CreateReport(ctx, ownerClaims("u1"), dto.CreateReportRequest{ProfileID: "BD-000001", Reason: "spam"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	_, err = svc.CreateReport(ctx, ownerClaims("u2"), dto.CreateReportRequest{ProfileID: "BD-000404", Reason: "spam"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
	_, err = svc.CreateReport(ctx, ownerClaims("u2"), dto.CreateReportRequest{ProfileID: "BD-000001", Reason: "   "})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	_, _, err = svc.ReviewReport(ctx, adminClaims(), "report-1", dto.ReviewReportRequest{Action: "close"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestReviewServiceCreditApproval(t *testing.T) {
	svc, _, credits := newReviewFixture()
	ctx := context.Background()

	txn, changed, err := svc.ReviewCreditTransaction(ctx, adminClaims(), "txn-1", dto.ReviewCreditTransactionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.CreditApproved, txn.Status)
	assert.Equal(t, 5, credits.credits["u1"])

	_, changed, err = svc.ReviewCreditTransaction(ctx, adminClaims(), "txn-1", dto.ReviewCreditTransactionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 5, credits.credits["u1"])

	_, _, err = svc.ReviewCreditTransaction(ctx, adminClaims(), "txn-1", dto.ReviewCreditTransactionRequest{Action: "reject"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
}

func TestReviewServiceCreditFailures(t *testing.T) {
	svc, _, credits := newReviewFixture()
	ctx := context.Background()

	_, _, err := svc.ReviewCreditTransaction(ctx, adminClaims(), "missing", dto.ReviewCreditTransactionRequest{Action: "approve"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	credits.err = errors.New("deadlock")
	_, _, err = svc.ReviewCreditTransaction(ctx, adminClaims(), "txn-1", dto.ReviewCreditTransactionRequest{Action: "reject"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))

	_, _, err = svc.ReviewCreditTransaction(ctx, ownerClaims("u1"), "txn-1", dto.ReviewCreditTransactionRequest{Action: "approve"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
}
