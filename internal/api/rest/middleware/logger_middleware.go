package middleware

import (
	"time"

	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/gin-gonic/gin"
)

// LoggerMiddleware access-лог; уровень зависит от класса статуса.
// Логируется шаблон маршрута, а не URI с query.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", statusCode,
			"latency", time.Since(startTime).String(),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case statusCode >= 500:
			log.Errorw("HTTP request", fields...)
		case statusCode >= 400:
			log.Warnw("HTTP request", fields...)
		default:
			log.Infow("HTTP request", fields...)
		}
	}
}
