package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/telemetry"
)

// Error renders the status page and logs the failure. err may be nil.
func Error(c *gin.Context, status int, message string, err error) {
	fields := map[string]any{
		"status":     status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": middleware.RequestIDFromContext(c),
	}
	if p, ok := middleware.PrincipalFromContext(c); ok {
		fields["rm_id"] = p.UserID
	}
	if err != nil {
		fields["error"] = err
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	HTML(c, status, "status.html", gin.H{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	})
	c.Abort()
}

// NotFound renders the 404 page.
func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "The page you requested does not exist.", nil)
}

// Internal renders the 500 page for an unexpected error.
func Internal(c *gin.Context, err error) {
	Error(c, http.StatusInternalServerError, "Unexpected server error.", err)
}
