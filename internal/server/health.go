package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 5 * time.Second

func registerHealthRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				degraded(c, "postgres", err)
				return
			}
		}

		if deps.StorageCheck != nil {
			if err := deps.StorageCheck(ctx); err != nil {
				degraded(c, "storage", err)
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"storage": deps.Storage.Strategy(),
		})
	})
}

func degraded(c *gin.Context, component string, err error) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":    "degraded",
		"component": component,
		"error":     err.Error(),
	})
}
