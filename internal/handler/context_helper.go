package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/biodata-api/internal/middleware"
	"github.com/noah-isme/biodata-api/internal/models"
	"github.com/noah-isme/biodata-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback))); err == nil {
		return value
	}
	return fallback
}

// respond writes data with any response metadata gathered during the request.
func respond(c *gin.Context, data interface{}, pagination *models.Pagination) {
	response.JSON(c, http.StatusOK, data, pagination, middleware.ResponseMeta(c))
}
