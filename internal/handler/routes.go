package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/middleware"
	"github.com/noah-isme/biodata-api/internal/models"
)

// Router groups every handler with the middleware they depend on.
type Router struct {
	Drafts     *DraftHandler
	Profiles   *ProfileHandler
	Moderation *ModerationHandler
	Reviews    *ReviewHandler
	Settings   *SettingsHandler
	Metrics    *MetricsHandler

	Auth   middleware.TokenValidator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// Register mounts ops endpoints at the root and the API under prefix.
func (r *Router) Register(engine *gin.Engine, prefix string) {
	if r.Metrics != nil {
		engine.GET("/health", r.Metrics.Health)
		engine.GET("/ready", r.Metrics.Ready)
		engine.GET("/metrics", r.Metrics.Prometheus)
	}

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(r.Audit, r.Logger, action, resource)
	}

	api := engine.Group(prefix, middleware.WithResponseMeta(), middleware.JWT(r.Auth))

	drafts := api.Group("/drafts")
	drafts.GET("/me", r.Drafts.Get)
	drafts.PUT("/me", r.Drafts.Save)
	drafts.DELETE("/me", audit(models.AuditActionDraftRestart, "draft"), r.Drafts.Delete)

	profiles := api.Group("/profiles")
	profiles.GET("", r.Profiles.PublicList)
	profiles.POST("", audit(models.AuditActionProfileSubmit, "profile"), r.Profiles.Submit)
	profiles.GET("/me", r.Profiles.Mine)
	profiles.GET("/:id/public", r.Profiles.PublicGet)
	profiles.PUT("/:id", audit(models.AuditActionProfileEdit, "profile"), r.Profiles.Edit)
	profiles.DELETE("/:id", audit(models.AuditActionProfileDelete, "profile"), r.Profiles.Delete)

	api.POST("/reports", audit(models.AuditActionReportCreate, "report"), r.Reviews.CreateReport)
	api.GET("/settings/monetization", r.Settings.Monetization)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.GET("/profiles", r.Moderation.List)
	admin.GET("/profiles/export", r.Moderation.Export)
	admin.GET("/profiles/:id", r.Moderation.Get)
	admin.GET("/profiles/:id/actions", r.Moderation.Actions)
	admin.PUT("/profiles/:id/approve", r.Moderation.Approve)
	admin.PUT("/profiles/:id/reject", r.Moderation.Reject)
	admin.DELETE("/profiles/:id", r.Moderation.Delete)
	admin.PUT("/users/:id/restrict", r.Moderation.Restrict)
	admin.PUT("/users/:id/ban", r.Moderation.Ban)
	admin.PUT("/users/:id/unrestrict", r.Moderation.Unrestrict)
	admin.PUT("/reports/:id/review", r.Reviews.ReviewReport)
	admin.PUT("/credit-transactions/:id/review", r.Reviews.ReviewCreditTransaction)
	admin.PUT("/settings/monetization", r.Settings.UpdateMonetization)
}
