package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/hfcache-go/pkg/logger"
	"go.uber.org/zap"
)

// Logger returns a gin middleware for logging
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// LoggerWithAdapter logs every request to the general logger and copies
// server errors into the error log under the category the route belongs to
func LoggerWithAdapter(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	general := Logger(logAdapter.General())
	return func(c *gin.Context) {
		general(c)

		statusCode := c.Writer.Status()
		if statusCode >= 500 {
			logAdapter.LogError(routeCategory(c.Request.URL.Path), "HTTP error response",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", statusCode),
				zap.String("client_ip", c.ClientIP()),
				zap.Strings("errors", c.Errors.Errors()),
			)
		}
	}
}

func routeCategory(path string) logger.LogCategory {
	if strings.HasPrefix(path, "/api/cache/download") {
		return logger.CategoryDownload
	}
	return logger.CategoryCache
}
