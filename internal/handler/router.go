package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/middleware"
)

type RouterDeps struct {
	Documents      *DocumentHandler
	Query          *QueryHandler
	JWTSecret      []byte
	QueryRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/documents", deps.Documents.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.DELETE("/documents/:source", deps.Documents.Delete)
	authGroup.POST("/query", middleware.RateLimit(deps.QueryRateLimit), deps.Query.Query)
}
