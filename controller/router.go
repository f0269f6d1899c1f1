package controller

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/logger"
)

// NewRouter builds the gin engine with logging, recovery and CORS in front
// of the controller routes.
func NewRouter(c *RAGController, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinMiddleware(log), gin.Recovery(), corsMiddleware())
	c.RegisterRoutes(router)
	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionHeader)
		c.Header("Access-Control-Expose-Headers", SessionHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
