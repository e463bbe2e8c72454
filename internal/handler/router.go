package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cvkit/cvault/internal/middleware"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Versions  *VersionHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/documents", deps.Documents.Create)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.PUT("/documents/:id", deps.Documents.Update)

	authGroup.POST("/documents/:id/versions", deps.Versions.Create)
	authGroup.GET("/documents/:id/versions", deps.Versions.List)
	authGroup.GET("/documents/:id/versions/:version", deps.Versions.Get)
	authGroup.POST("/documents/:id/versions/:version/restore", deps.Versions.Restore)

	authGroup.POST("/documents/:id/branches", deps.Versions.CreateBranch)
	authGroup.GET("/documents/:id/branches", deps.Versions.ListBranches)
	authGroup.GET("/documents/:id/compare", deps.Versions.Compare)

	authGroup.GET("/storage/usage", deps.Versions.StorageUsage)
}
