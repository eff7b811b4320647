package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the API routes. Every request runs under a default
// deadline unless the client already set one via context cancellation.
func NewRouter(h *BreaksHandler, requestTimeout time.Duration) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), withRequestTimeout(requestTimeout))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/slots/scan", h.ScanSlots)
		v1.POST("/breaks", h.ScheduleBreak)
		v1.GET("/breaks", h.ListBreaks)
		v1.DELETE("/breaks/:id", h.CancelBreak)
	}

	return router
}

func withRequestTimeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
