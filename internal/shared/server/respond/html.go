package respond

import (
	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/shared/server/middleware"
)

// HTML renders a page template with the signed-in principal and pending flashes.
func HTML(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if p, ok := middleware.PrincipalFromContext(c); ok {
		data["Principal"] = &p
	}
	// Flashes are popped before the body is written so the session cookie update lands.
	data["Flashes"] = middleware.Flashes(c)
	c.HTML(status, page, data)
}

// Text writes a plain text response.
func Text(c *gin.Context, status int, body string) {
	c.String(status, body)
}
