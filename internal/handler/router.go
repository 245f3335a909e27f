package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/intellipatent/intellipatent/internal/middleware"
)

type RouterDeps struct {
	Sessions        *SessionHandler
	Search          *SearchHandler
	Health          *HealthHandler
	JWTSecret       []byte
	SearchRateLimit time.Duration
}

func RegisterRoutes(root *gin.Engine, api *gin.RouterGroup, deps RouterDeps) {
	root.GET("/healthz", deps.Health.Liveness)
	root.GET("/health", deps.Health.Readiness)

	api.POST("/sessions", deps.Sessions.Create)

	authGroup := api.Group("")
	authGroup.Use(middleware.SessionAuth(deps.JWTSecret))
	authGroup.DELETE("/sessions", deps.Sessions.Delete)

	searchGroup := authGroup.Group("")
	searchGroup.Use(middleware.RateLimit(deps.SearchRateLimit))
	searchGroup.POST("/search", deps.Search.Search)
}
