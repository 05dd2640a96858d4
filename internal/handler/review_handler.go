package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/middleware"
	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
	"github.com/noah-isme/biodata-api/pkg/response"
)

type reviewService interface {
	CreateReport(ctx context.Context, actor *models.JWTClaims, req dto.CreateReportRequest) (*models.Report, error)
	ReviewReport(ctx context.Context, actor *models.JWTClaims, reportID string, req dto.ReviewReportRequest) (*models.Report, bool, error)
	ReviewCreditTransaction(ctx context.Context, actor *models.JWTClaims, id string, req dto.ReviewCreditTransactionRequest) (*models.CreditTransaction, bool, error)
}

// ReviewHandler exposes report filing and admin review of reports and credit purchases.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler builds a new handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// CreateReport godoc
// @Summary Report a profile
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Report"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReviewHandler) CreateReport(c *gin.Context) {
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}
	report, err := h.service.CreateReport(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, report.ID)
	response.Created(c, report)
}

// ReviewReport godoc
// @Summary Investigate or dismiss a report
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ReviewReportRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/{id}/review [put]
func (h *ReviewHandler) ReviewReport(c *gin.Context) {
	var req dto.ReviewReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	report, changed, err := h.service.ReviewReport(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "changed", changed)
	respond(c, report, nil)
}

// ReviewCreditTransaction godoc
// @Summary Approve or reject a credit purchase
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param payload body dto.ReviewCreditTransactionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /admin/credit-transactions/{id}/review [put]
func (h *ReviewHandler) ReviewCreditTransaction(c *gin.Context) {
	var req dto.ReviewCreditTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	txn, changed, err := h.service.ReviewCreditTransaction(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "changed", changed)
	respond(c, txn, nil)
}
