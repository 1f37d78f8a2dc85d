package rms

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/server/respond"
	"docrequests-backend/internal/shared/telemetry"
)

const (
	msgInvalidCredentials = "Please enter a correct username and password. Note that both fields may be case-sensitive."
	msgNoDashboardAccess  = "You don't have access to the dashboard"
)

type Handler struct {
	Svc           *Service
	GoogleEnabled bool
}

func NewHandler(svc *Service, googleEnabled bool) *Handler {
	return &Handler{Svc: svc, GoogleEnabled: googleEnabled}
}

// RegisterRoutes attaches login routes. limit guards the credential POST.
func (h *Handler) RegisterRoutes(r gin.IRoutes, limit gin.HandlerFunc) {
	r.GET("/", h.loginForm)
	r.GET("/login", h.loginForm)
	r.POST("/", limit, h.login)
	r.POST("/login", limit, h.login)
	r.GET("/logout", h.logout)
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (h *Handler) loginForm(c *gin.Context) {
	if _, ok := middleware.PrincipalFromContext(c); ok {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	h.render(c, http.StatusOK, loginForm{Next: c.Query("next")}, "")
}

func (h *Handler) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, form, msgInvalidCredentials)
		return
	}
	user, err := h.Svc.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.render(c, http.StatusOK, form, msgInvalidCredentials)
		case errors.Is(err, ErrNotSuperuser):
			telemetry.Warn("login.not_superuser", map[string]any{"username": form.Username})
			h.render(c, http.StatusOK, form, msgNoDashboardAccess)
		default:
			respond.Internal(c, err)
		}
		return
	}
	if err := SignIn(c, user); err != nil {
		respond.Internal(c, err)
		return
	}
	telemetry.Info("login.success", map[string]any{"rm_id": user.ID})
	c.Redirect(http.StatusSeeOther, safeNext(form.Next))
}

func (h *Handler) logout(c *gin.Context) {
	if err := middleware.SignOut(c); err != nil {
		respond.Internal(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) render(c *gin.Context, status int, form loginForm, errMsg string) {
	respond.HTML(c, status, "login.html", gin.H{
		"Title":         "Log in",
		"Username":      form.Username,
		"Next":          form.Next,
		"Error":         errMsg,
		"GoogleEnabled": h.GoogleEnabled,
	})
}

// SignIn establishes the session for user.
func SignIn(c *gin.Context, user User) error {
	return middleware.SignIn(c, middleware.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Name:     user.Name,
	})
}

// safeNext only follows local redirects.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}
