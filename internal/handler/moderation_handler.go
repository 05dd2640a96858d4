package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/middleware"
	"github.com/noah-isme/biodata-api/internal/models"
	"github.com/noah-isme/biodata-api/internal/service"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
	"github.com/noah-isme/biodata-api/pkg/response"
)

type moderationService interface {
	Approve(ctx context.Context, actor *models.JWTClaims, profileID string) (*models.Profile, bool, error)
	Reject(ctx context.Context, actor *models.JWTClaims, profileID, reason string) (*models.Profile, bool, error)
	DeleteProfile(ctx context.Context, actor *models.JWTClaims, profileID string) error
	RestrictUser(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, bool, error)
	BanUser(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, bool, error)
	UnrestrictUser(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, bool, error)
	ListProfiles(ctx context.Context, actor *models.JWTClaims, query dto.ProfileQuery) ([]models.ProfileListItem, *models.Pagination, error)
	GetProfile(ctx context.Context, actor *models.JWTClaims, profileID string) (*models.Profile, error)
	ListActions(ctx context.Context, actor *models.JWTClaims, profileID string) ([]models.ModerationAction, error)
	Export(ctx context.Context, actor *models.JWTClaims, query dto.ProfileQuery, format string) (*service.ExportFile, error)
}

// ModerationHandler exposes admin moderation endpoints.
type ModerationHandler struct {
	service moderationService
}

// NewModerationHandler builds a new handler.
func NewModerationHandler(service moderationService) *ModerationHandler {
	return &ModerationHandler{service: service}
}

func profileQueryFromRequest(c *gin.Context) dto.ProfileQuery {
	return dto.ProfileQuery{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
}

// List godoc
// @Summary List profiles for moderation
// @Tags Moderation
// @Produce json
// @Param status query string false "pending_approval, approved, rejected or all"
// @Param search query string false "Matches profile id, owner name or email"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/profiles [get]
func (h *ModerationHandler) List(c *gin.Context) {
	items, pagination, err := h.service.ListProfiles(c.Request.Context(), claimsFromContext(c), profileQueryFromRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export the profile listing
// @Tags Moderation
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /admin/profiles/export [get]
func (h *ModerationHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), claimsFromContext(c), profileQueryFromRequest(c), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}

// Get godoc
// @Summary Get any profile
// @Tags Moderation
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Router /admin/profiles/{id} [get]
func (h *ModerationHandler) Get(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewProfileView(profile), nil)
}

// Actions godoc
// @Summary Moderation history of a profile
// @Tags Moderation
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Router /admin/profiles/{id}/actions [get]
func (h *ModerationHandler) Actions(c *gin.Context) {
	actions, err := h.service.ListActions(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, nil)
}

// Approve godoc
// @Summary Approve a profile
// @Description Approving an approved profile succeeds without changes.
// @Tags Moderation
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Router /admin/profiles/{id}/approve [put]
func (h *ModerationHandler) Approve(c *gin.Context) {
	profile, changed, err := h.service.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "changed", changed)
	respond(c, dto.NewProfileView(profile), nil)
}

// Reject godoc
// @Summary Reject a profile
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param payload body dto.RejectProfileRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/profiles/{id}/reject [put]
func (h *ModerationHandler) Reject(c *gin.Context) {
	var req dto.RejectProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrReasonRequired.Code, http.StatusBadRequest, appErrors.ErrReasonRequired.Message))
		return
	}
	profile, changed, err := h.service.Reject(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "changed", changed)
	respond(c, dto.NewProfileView(profile), nil)
}

// Delete godoc
// @Summary Delete a profile
// @Tags Moderation
// @Param id path string true "Profile ID"
// @Success 204
// @Router /admin/profiles/{id} [delete]
func (h *ModerationHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteProfile(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restrict godoc
// @Summary Restrict a user
// @Tags Moderation
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/restrict [put]
func (h *ModerationHandler) Restrict(c *gin.Context) {
	h.userAction(c, h.service.RestrictUser)
}

// Ban godoc
// @Summary Ban a user
// @Tags Moderation
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/ban [put]
func (h *ModerationHandler) Ban(c *gin.Context) {
	h.userAction(c, h.service.BanUser)
}

// Unrestrict godoc
// @Summary Restore a user to active
// @Tags Moderation
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/unrestrict [put]
func (h *ModerationHandler) Unrestrict(c *gin.Context) {
	h.userAction(c, h.service.UnrestrictUser)
}

type userActionFunc func(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, bool, error)

func (h *ModerationHandler) userAction(c *gin.Context, action userActionFunc) {
	user, changed, err := action(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ModerationResult{TargetID: user.ID, Status: string(user.AccountStatus), Changed: changed}, nil)
}
