package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/shared/telemetry"
)

// Context keys handlers set so the access log can correlate domain objects.
const (
	ClientIDKey    = "clientId"
	RequestUUIDKey = "requestUuid"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if p, ok := PrincipalFromContext(c); ok {
			fields["rm_id"] = p.UserID
		}
		if v, ok := c.Get(ClientIDKey); ok {
			fields["client_id"] = v
		}
		if v, ok := c.Get(RequestUUIDKey); ok {
			fields["request_uuid"] = v
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		telemetry.Info("request.complete", fields)
	}
}
