package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janus-koncepts/wabot/pkg/logger"
)

// LoggerMiddleware attaches a request-scoped logger and logs completed requests.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		reqLog := log.With("method", c.Request.Method, "path", path)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), reqLog))
		c.Next()
		reqLog.Info("Request completed",
			"status_code", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
