package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/parse", handler.ParseExport)
		api.POST("/link", handler.LinkRecords)
		api.POST("/score", handler.ScoreCandidates)
		api.GET("/runs", handler.ListRuns)
		api.GET("/runs/:id/merged", handler.GetRunMerged)
		api.GET("/runs/:id/shortlist", handler.GetRunShortlist)
	}
}
