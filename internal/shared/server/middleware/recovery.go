package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/shared/telemetry"
)

// Recovery recovers from panics and answers with a plain 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				fields := map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      rec,
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
				}
				if p, ok := PrincipalFromContext(c); ok {
					fields["rm_id"] = p.UserID
				}
				telemetry.Error("panic", fields)
				if !c.Writer.Written() {
					c.String(http.StatusInternalServerError, "Unexpected server error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
