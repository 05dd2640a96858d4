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

type profileService interface {
	Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitProfileRequest) (*models.Profile, error)
	Edit(ctx context.Context, actor *models.JWTClaims, profileID string, req dto.EditProfileRequest) (*models.Profile, error)
	Delete(ctx context.Context, actor *models.JWTClaims, profileID string) error
	Mine(ctx context.Context, actor *models.JWTClaims) (*models.Profile, error)
	PublicGet(ctx context.Context, profileID string) (*dto.PublicProfileView, bool, error)
	PublicList(ctx context.Context, query dto.PublicProfileQuery) (*dto.PublicProfileList, *models.Pagination, bool, error)
}

// ProfileHandler exposes owner profile operations and public reads.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler builds a new handler.
func NewProfileHandler(service profileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Submit godoc
// @Summary Submit my biodata for review
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body dto.SubmitProfileRequest false "Optional full payload; defaults to the stored draft"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /profiles [post]
func (h *ProfileHandler) Submit(c *gin.Context) {
	var req dto.SubmitProfileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submit payload"))
			return
		}
	}
	profile, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, profile.ProfileID)
	response.Created(c, dto.NewProfileView(profile))
}

// Mine godoc
// @Summary Get my profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profiles/me [get]
func (h *ProfileHandler) Mine(c *gin.Context) {
	profile, err := h.service.Mine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewProfileView(profile), nil)
}

// Edit godoc
// @Summary Edit my profile
// @Description Sends the profile back to review. Declaration fields are ignored.
// @Tags Profiles
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param payload body dto.EditProfileRequest true "Biodata"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id} [put]
func (h *ProfileHandler) Edit(c *gin.Context) {
	var req dto.EditProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}
	profile, err := h.service.Edit(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewProfileView(profile), nil)
}

// Delete godoc
// @Summary Delete my profile
// @Tags Profiles
// @Param id path string true "Profile ID"
// @Success 204
// @Router /profiles/{id} [delete]
func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PublicList godoc
// @Summary List approved profiles
// @Tags Profiles
// @Produce json
// @Param gender query string false "male or female"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /profiles [get]
func (h *ProfileHandler) PublicList(c *gin.Context) {
	query := dto.PublicProfileQuery{
		Gender: c.Query("gender"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	list, pagination, hit, err := h.service.PublicList(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respond(c, list.Items, pagination)
}

// PublicGet godoc
// @Summary Get an approved profile
// @Tags Profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profiles/{id}/public [get]
func (h *ProfileHandler) PublicGet(c *gin.Context) {
	view, hit, err := h.service.PublicGet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respond(c, view, nil)
}
