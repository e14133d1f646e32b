package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coachrag/internal/middleware"
	"github.com/xxxsen/coachrag/internal/pkg/jwt"
)

type RouterDeps struct {
	Search          *SearchHandler
	Ingest          *IngestHandler
	Sources         *SourceHandler
	JWTSecret       []byte
	SearchRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/search", middleware.RateLimit(deps.SearchRateLimit), deps.Search.Search)

	adminGroup := authGroup.Group("")
	adminGroup.Use(middleware.RequireRole(jwt.RoleService))
	adminGroup.POST("/ingest", deps.Ingest.Ingest)
	adminGroup.GET("/sources/:id", deps.Sources.Get)
}
