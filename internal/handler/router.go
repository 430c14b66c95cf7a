package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/papersearch/internal/middleware"
)

type RouterDeps struct {
	Search    *SearchHandler
	Admin     *AdminHandler
	Health    *HealthHandler
	JWTSecret []byte
	RateLimit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.Health.Health)

	limited := api.Group("")
	if deps.RateLimit != nil {
		limited.Use(deps.RateLimit)
	}
	limited.POST("/search", deps.Search.Search)

	if deps.Admin == nil {
		return
	}
	limited.POST("/admin/login", deps.Admin.Login)
	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AdminAuth(deps.JWTSecret))
	adminGroup.POST("/enrich", deps.Admin.Enrich)
	adminGroup.GET("/stats", deps.Admin.Stats)
}
