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

type settingsService interface {
	MonetizationEnabled(ctx context.Context) (bool, error)
	SetMonetization(ctx context.Context, actor *models.JWTClaims, enabled bool) (bool, error)
}

// SettingsHandler exposes platform settings.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Monetization godoc
// @Summary Get the monetization flag
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/monetization [get]
func (h *SettingsHandler) Monetization(c *gin.Context) {
	enabled, err := h.service.MonetizationEnabled(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MonetizationView{Enabled: enabled}, nil)
}

// UpdateMonetization godoc
// @Summary Toggle the monetization flag
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdateMonetizationRequest true "Flag"
// @Success 200 {object} response.Envelope
// @Router /admin/settings/monetization [put]
func (h *SettingsHandler) UpdateMonetization(c *gin.Context) {
	var req dto.UpdateMonetizationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "invalid settings payload", map[string]string{"enabled": "is required"}))
		return
	}
	enabled, err := h.service.SetMonetization(c.Request.Context(), claimsFromContext(c), *req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MonetizationView{Enabled: enabled}, nil)
}
