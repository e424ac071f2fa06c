package server

import (
	"github.com/abduss/mediagate/internal/auth"
	"github.com/abduss/mediagate/internal/config"
	"github.com/abduss/mediagate/internal/logger"
	"github.com/abduss/mediagate/internal/media"
	"github.com/abduss/mediagate/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Dependencies groups the services required by the HTTP router. Nil pingers
// are skipped by the readiness check.
type Dependencies struct {
	Config       config.Config
	DB           Pinger
	ObjectStore  Pinger
	Cache        Pinger
	AuthService  *auth.Service
	MediaService *media.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)

	metricsPath := deps.Config.Metrics.PrometheusPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	metrics.Register(router, metricsPath)

	root := router.Group("")
	if deps.AuthService != nil {
		auth.RegisterRoutes(root, deps.AuthService)

		if deps.MediaService != nil {
			media.RegisterRoutes(root, deps.MediaService, deps.AuthService, deps.Config.Media.DebugEnabled)
		}
	}

	return router
}
