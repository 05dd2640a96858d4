package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
	"github.com/noah-isme/biodata-api/pkg/response"
)

type draftService interface {
	Get(ctx context.Context, actor *models.JWTClaims) (*models.Draft, error)
	Save(ctx context.Context, actor *models.JWTClaims, req dto.SaveDraftRequest) (*models.Draft, error)
	Delete(ctx context.Context, actor *models.JWTClaims) error
}

// DraftHandler exposes the caller's in-progress biodata draft.
type DraftHandler struct {
	service draftService
}

// NewDraftHandler builds a new handler.
func NewDraftHandler(service draftService) *DraftHandler {
	return &DraftHandler{service: service}
}

// Get godoc
// @Summary Get my draft
// @Tags Drafts
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /drafts/me [get]
func (h *DraftHandler) Get(c *gin.Context) {
	draft, err := h.service.Get(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Save godoc
// @Summary Save my draft
// @Description Overwrites the draft. A save older than the stored revision returns the stored draft.
// @Tags Drafts
// @Accept json
// @Produce json
// @Param payload body dto.SaveDraftRequest true "Draft payload"
// @Success 200 {object} response.Envelope
// @Router /drafts/me [put]
func (h *DraftHandler) Save(c *gin.Context) {
	var req dto.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid draft payload"))
		return
	}
	draft, err := h.service.Save(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Delete godoc
// @Summary Discard my draft
// @Tags Drafts
// @Success 204
// @Router /drafts/me [delete]
func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
