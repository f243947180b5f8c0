package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reusedev/detect-hub/internal/modules/logs"
)

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		clientIP := c.ClientIP()

		c.Next()

		statusCode := c.Writer.Status()
		event := logs.Logger.Info()
		if statusCode >= http.StatusInternalServerError {
			event = logs.Logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Str("method", method).
			Str("path", path).
			Str("client_ip", clientIP).
			Int("status", statusCode).
			Dur("duration", time.Since(start)).
			Msg("request log")
	}
}
