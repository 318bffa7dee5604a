package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/config"
)

// NewRouter assembles the gin engine: public endpoints, JWT-guarded user
// endpoints, and webhook-secret-guarded machine endpoints.
func NewRouter(cfg *config.Config, logger logging.Logger, h *Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))

	r.GET("/health", h.Health)
	r.GET("/image-count", h.ImageCount)

	hooks := r.Group("/", RequireWebhookSecret(cfg.WebhookSecret))
	hooks.POST("/uploads/confirm", h.ConfirmUpload)
	hooks.POST("/batch-complete", h.CompleteBatch)

	authed := r.Group("/", Authenticate([]byte(cfg.SecretKey)))
	authed.POST("/uploads", h.InitiateBatch)
	authed.GET("/targets", h.ListTargets)
	authed.GET("/images", h.ListImages)
	authed.GET("/download", h.Download)
	authed.DELETE("/files", h.DeleteFile)

	return r
}
