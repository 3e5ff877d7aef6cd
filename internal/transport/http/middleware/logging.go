package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Logging пишет структурированную запись на каждый запрос и проставляет
// X-Request-Id для трассировки между сервисами.
func Logging(logger *log.Entry) gin.HandlerFunc {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set("X-Request-Id", reqID)
		}
		c.Header("X-Request-Id", reqID)

		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"req_id": reqID,
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"remote": c.ClientIP(),
			"status": status,
			"dur_ms": time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		if status >= http.StatusInternalServerError {
			entry.Error("http request")
			return
		}
		if status >= http.StatusBadRequest {
			entry.Warn("http request")
			return
		}
		entry.Info("http request")
	}
}
