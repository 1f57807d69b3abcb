// Package api wires up the Gin routers for both node roles: the primary's
// client-facing /messages and /health, and the replica's /replicate,
// /messages and /health. Each role gets a Handler struct wrapping its
// domain objects with a Register(router) method; both share the
// zap-backed Logger/Recovery middleware below.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger is a Gin middleware that logs every request with method, path,
// status code, and latency.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Recovery replaces Gin's default recovery middleware: it logs panics
// through zap and answers with a 500 JSON error.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", zap.Any("error", err))
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
