package handler

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the operator routes
func NewRouter(campaigns *CampaignHandler, credentials *CredentialHandler, health *HealthHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", health.Health)

	campaignRoutes := router.Group("/campaigns/:id")
	{
		campaignRoutes.POST("/start", campaigns.Start)
		campaignRoutes.POST("/pause", campaigns.Pause)
		campaignRoutes.POST("/resume", campaigns.Resume)
		campaignRoutes.POST("/stop", campaigns.Stop)
		campaignRoutes.POST("/contacts", campaigns.AssignContacts)
		campaignRoutes.GET("/processing-info", campaigns.ProcessingInfo)
	}

	router.DELETE("/users/:userId/credential", credentials.Revoke)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
